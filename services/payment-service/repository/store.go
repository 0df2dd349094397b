package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Read when no document has the id.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned by Write when the stored version moved on.
	ErrVersionConflict = errors.New("document version conflict")
)

// Document is one whole-collection document as persisted.
type Document struct {
	ID      string
	Data    []byte
	Version int64
}

// DocumentStore reads and writes whole documents by id. Version 0 means the
// document does not exist yet; every successful Write bumps the version by one.
type DocumentStore interface {
	Read(ctx context.Context, id string) (Document, error)
	// Write replaces the document only if its current version equals
	// expectedVersion and returns the new version.
	Write(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error)
}
