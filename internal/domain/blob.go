package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports aged fill history to blob storage and prunes it from the
// primary store.
type Archiver interface {
	// ArchiveFills uploads all fills executed before the cutoff as JSONL and
	// deletes them from the fill store. It returns the number of archived
	// rows.
	ArchiveFills(ctx context.Context, before time.Time) (int64, error)
}
