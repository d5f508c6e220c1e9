// Package storagetest provides an in-memory media store for tests.
package storagetest

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/storage"
)

// Store is an in-memory storage.Opener. Failure switches make every session
// it hands out fail the matching operation.
type Store struct {
	mu sync.Mutex

	files   map[string][]byte
	deleted []string
	opens   int
	closes  int

	FailUpload  func(remoteName string) error
	FailDelete  func(remoteName string) error
	FailOpen    error
	UploadCount int
}

func NewStore() *Store {
	return &Store{files: map[string][]byte{}}
}

func (s *Store) Open(ctx context.Context) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOpen != nil {
		return nil, s.FailOpen
	}
	s.opens++
	return &session{store: s}, nil
}

// Put seeds a remote file.
func (s *Store) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
}

func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[name]
	return ok
}

// Files returns the stored names in lexical order.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for name := range s.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Deleted lists every name a Delete was attempted for, in call order.
func (s *Store) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Balanced reports whether every opened session was closed.
func (s *Store) Balanced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens == s.closes
}

type session struct {
	store  *Store
	closed bool
}

func (c *session) Upload(ctx context.Context, r io.Reader, remoteName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.store.FailUpload != nil {
		if err := c.store.FailUpload(remoteName); err != nil {
			return storage.TransferError("upload", remoteName, err)
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.TransferError("upload", remoteName, err)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.files[remoteName] = data
	c.store.UploadCount++
	return nil
}

func (c *session) Delete(ctx context.Context, remoteName string) error {
	c.store.mu.Lock()
	c.store.deleted = append(c.store.deleted, remoteName)
	c.store.mu.Unlock()

	if c.store.FailDelete != nil {
		if err := c.store.FailDelete(remoteName); err != nil {
			return storage.TransferError("delete", remoteName, err)
		}
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if _, ok := c.store.files[remoteName]; !ok {
		return storage.ErrNotFound
	}
	delete(c.store.files, remoteName)
	return nil
}

func (c *session) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.store.mu.Lock()
	c.store.closes++
	c.store.mu.Unlock()
	return nil
}
