package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves old data from the database to cold storage. It returns the
// keys of the swaps it uploaded and marked archived.
type Archiver interface {
	ArchiveFilledSwaps(ctx context.Context, before time.Time) ([]SwapKey, error)
}
