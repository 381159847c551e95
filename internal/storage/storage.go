// Package storage holds uploaded PPT decks in object storage, behind a
// backend-agnostic interface with MinIO and GCS implementations.
package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// DeckStore wraps an ObjectStorage backend and owns the key layout for
// hackathon deck objects.
type DeckStore struct {
	backend ObjectStorage
}

// NewDeckStore constructs a DeckStore for the provided backend.
func NewDeckStore(backend ObjectStorage) *DeckStore {
	return &DeckStore{backend: backend}
}

// DeckKey returns the object key for a hackathon's deck.
func DeckKey(hackathonID int, filename string) string {
	return fmt.Sprintf("decks/%d/%s", hackathonID, filename)
}

// EnsureBucket ensures the configured bucket exists.
func (s *DeckStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads a deck object.
func (s *DeckStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for a deck object.
func (s *DeckStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes a deck object.
func (s *DeckStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *DeckStore) Bucket() string {
	return s.backend.Bucket()
}
