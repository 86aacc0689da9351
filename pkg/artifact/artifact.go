// Package artifact persists captured review pages.
//
// The file on disk is the only record of a captured page: its existence is
// what lets a rerun skip the page. Other sinks (Redis) only receive copies.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey is returned for keys that cannot name a file safely.
	ErrInvalidKey = errors.New("invalid artifact key")

	// ErrNotFound is returned by Load when no artifact exists.
	ErrNotFound = errors.New("artifact not found")
)

// Key identifies one captured page.
type Key struct {
	Domain string
	ID     string
	Page   int
}

// Validate rejects empty parts, non-positive pages and path separators.
func (k Key) Validate() error {
	if k.Domain == "" || k.ID == "" {
		return fmt.Errorf("%w: empty domain or id", ErrInvalidKey)
	}
	if k.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidKey, k.Page)
	}
	for _, part := range []string{k.Domain, k.ID} {
		if part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, part)
		}
	}
	return nil
}

// String renders the key as domain/id/page.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Domain, k.ID, k.Page)
}

// Store decides resumability and keeps captured pages.
type Store interface {
	Exists(ctx context.Context, key Key) (bool, error)
	Save(ctx context.Context, key Key, content string) error
}

// Loader is implemented by stores that can return a saved page.
type Loader interface {
	Load(ctx context.Context, key Key) (string, error)
}

// Sink receives a copy of every saved page.
type Sink interface {
	Save(ctx context.Context, key Key, content string) error
}

// StoreError wraps a failed store operation.
type StoreError struct {
	Key Key
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}
