package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore is the binary store holding uploaded report files, keyed by
// objectKey. Implementations are expected to be durable; the metadata record
// is the authority for content type and original filename.
type ObjectStore interface {
	Put(key string, r io.Reader, contentType string) error
	Open(key string) (*os.File, error)
	Delete(key string) error
	PublicURL(key string) string
}

// LocalObjectStore persists objects on disk under a base directory.
type LocalObjectStore struct {
	baseDir string
	urlBase string
}

// NewLocalObjectStore ensures the base directory exists and returns a handle.
// urlBase is the public prefix objects are reachable under, typically
// https://{bucket-host}; when empty a bucket-style default is derived.
func NewLocalObjectStore(baseDir, bucket, urlBase string) (*LocalObjectStore, error) {
	if baseDir == "" {
		baseDir = "./reports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create object store directory: %w", err)
	}
	if urlBase == "" {
		urlBase = fmt.Sprintf("https://%s", bucket)
	}
	return &LocalObjectStore{
		baseDir: baseDir,
		urlBase: strings.TrimRight(urlBase, "/"),
	}, nil
}

// Put copies from reader into the object keyed by key. The content type is
// accepted for interface parity with remote stores; the local backend does not
// need it since serving reads it from the metadata record.
func (s *LocalObjectStore) Put(key string, r io.Reader, contentType string) error {
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare object directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write object stream: %w", err)
	}
	return nil
}

// Open returns a read-only handle for the stored object.
func (s *LocalObjectStore) Open(key string) (*os.File, error) {
	file, err := os.Open(s.resolve(key))
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Delete removes a stored object. Deleting a missing key is not an error so
// that a retried delete converges.
func (s *LocalObjectStore) Delete(key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PublicURL returns the deterministic read URL for an object key.
func (s *LocalObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.urlBase, key)
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalObjectStore) Path(key string) string {
	return s.resolve(key)
}

func (s *LocalObjectStore) resolve(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}
