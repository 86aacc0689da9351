package fetcher

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// ErrCancelled is returned when the caller's context ends during a fetch.
var ErrCancelled = errors.New("fetch cancelled")

// GiveUpStatus is reported when every attempt failed before a response
// was read. It is a marker, not a status the site returned.
const GiveUpStatus = 404

// ErrorClass classifies a failed connection attempt.
type ErrorClass string

const (
	// ErrorClassTimeout is a per-call deadline or socket timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork is a dial, DNS, TLS or protocol failure.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassRead is a failure while reading the response body.
	ErrorClassRead ErrorClass = "read"
)

// classifyError maps an attempt error to its class. All classes are
// transient: the attempt is counted and the fetch tries again.
func classifyError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorClassNetwork
	}
	if errors.As(err, &netErr) {
		return ErrorClassNetwork
	}
	return ErrorClassRead
}
