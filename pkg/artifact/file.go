package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps pages under <root>/<domain>/<id>/<id>_<page>.html.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root. Nothing is created until
// the first Save.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the output root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Dir returns the directory holding the pages of one product.
func (s *FileStore) Dir(domain, id string) string {
	return filepath.Join(s.root, domain, id)
}

// Path returns the file path for key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.Dir(key.Domain, key.ID), fmt.Sprintf("%s_%d.html", key.ID, key.Page))
}

// Exists implements Store.
func (s *FileStore) Exists(_ context.Context, key Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.Path(key))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	Errors.WithLabelValues("exists").Inc()
	return false, &StoreError{Key: key, Op: "exists", Err: err}
}

// Save implements Store. The page is written to a temporary file and
// renamed into place so an interrupted write never looks captured.
func (s *FileStore) Save(_ context.Context, key Key, content string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	fail := func(err error) error {
		Errors.WithLabelValues("save").Inc()
		return &StoreError{Key: key, Op: "save", Err: err}
	}

	dir := s.Dir(key.Domain, key.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fail(err)
	}

	BytesWritten.Add(float64(len(content)))
	return nil
}

// Load implements Loader.
func (s *FileStore) Load(_ context.Context, key Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		Errors.WithLabelValues("load").Inc()
		return "", &StoreError{Key: key, Op: "load", Err: err}
	}
	return string(data), nil
}
