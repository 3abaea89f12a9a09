package blockfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/blockfile/data"
)

// File is a handle on an open catalog entry. It holds a snapshot of the
// entry that follows the writes issued through it. ReadAt and WriteAt may
// be called concurrently.
type File struct {
	mu sync.Mutex

	id       uuid.UUID
	session  *Session
	entry    data.Entry
	position int64
	closed   bool
}

func newFile(s *Session, entry data.Entry) *File {
	return &File{
		id:      newHandleID(),
		session: s,
		entry:   entry,
	}
}

// ID returns the unique id of this handle.
func (f *File) ID() uuid.UUID {
	return f.id
}

func (f *File) Path() string {
	return f.entry.Path
}

func (f *File) Type() data.FileType {
	return f.entry.Type
}

func (f *File) BlockSize() uint32 {
	return f.entry.BlockSize
}

// Size returns the size as seen by this handle.
func (f *File) Size() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.entry.Size
}

// Entry returns the snapshot held by this handle.
func (f *File) Entry() data.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.entry
}

// ReadAt reads len(buf) bytes starting at offset. Reaching the end of the
// stored data returns a short count and a nil error.
func (f *File) ReadAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	entry, err := f.snapshot(offset)
	if err != nil {
		return 0, err
	}

	return f.session.readBlocks(ctx, entry, buf, offset)
}

// WriteAt writes buf starting at offset and extends the file size when
// writing past its end. On failure the bytes committed before the failing
// block are returned together with an ErrIO error.
func (f *File) WriteAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	entry, err := f.snapshot(offset)
	if err != nil {
		return 0, err
	}

	n, updated, err := f.session.writeBlocks(ctx, entry, buf, offset)

	f.mu.Lock()
	f.entry.Size = max(f.entry.Size, updated.Size)
	f.mu.Unlock()

	return n, err
}

// Close releases the handle. It is the same as Session.Close.
func (f *File) Close() error {
	return f.session.Close(context.Background(), f)
}

func (f *File) snapshot(offset int64) (data.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return data.Entry{}, fmt.Errorf("%w: handle %s", data.ErrClosed, f.id)
	}
	if offset < 0 {
		return data.Entry{}, fmt.Errorf("%w: negative offset %d", data.ErrInvalid, offset)
	}

	return f.entry, nil
}

// markClosed reports whether this call closed the handle.
func (f *File) markClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	f.closed = true
	return true
}
