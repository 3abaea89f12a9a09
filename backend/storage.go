package backend

import (
	"context"

	"github.com/mwantia/blockfile/data"
)

// ObjectStorageBackend is a flat key to byte-sequence store scoped to a
// single namespace (pool, bucket or table partition).
//
// Implementations follow these rules:
//   - ReadObject on a missing key returns data.ErrNotExist. Reading at or
//     past the end of an object returns a short (possibly zero) count and
//     a nil error.
//   - WriteObject creates the object if needed. Writing past the current
//     end zero-fills the gap.
//   - WriteFullObject replaces the whole object.
//   - RemoveObject on a missing key returns data.ErrNotExist.
type ObjectStorageBackend interface {
	Backend

	Namespace() string

	StatObject(ctx context.Context, key string) (*data.ObjectStat, error)

	ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error)

	WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error)

	WriteFullObject(ctx context.Context, key string, buf []byte) error

	RemoveObject(ctx context.Context, key string) error
}

// Flusher is implemented by backends that buffer writes and can force
// them to durable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Flush calls Flush on backends implementing Flusher and is a no-op otherwise.
func Flush(ctx context.Context, b ObjectStorageBackend) error {
	if f, ok := b.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
