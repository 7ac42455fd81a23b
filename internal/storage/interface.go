package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an export does not exist
var ErrNotFound = errors.New("export not found")

// Object describes one stored export
type Object struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// StorageInterface defines the contract for export storage operations.
// Names are slash separated and relative to the storage root.
type StorageInterface interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, name string) error
}
