package blockfile

import (
	"context"
	"fmt"
	"io"

	"github.com/mwantia/blockfile/data"
)

// Stream adapts a File to the io interfaces. Read, Write and Seek share
// the position of the file, so every stream of one handle sees the same
// cursor. The context is used for every call.
type Stream struct {
	ctx  context.Context
	file *File
}

var (
	_ io.ReadWriteSeeker = (*Stream)(nil)
	_ io.ReaderAt        = (*Stream)(nil)
	_ io.WriterAt        = (*Stream)(nil)
)

// Stream returns an io adapter bound to ctx.
func (f *File) Stream(ctx context.Context) *Stream {
	return &Stream{ctx: ctx, file: f}
}

// Position returns the current cursor of the handle.
func (f *File) Position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.position
}

// Read reads from the current position and advances it. io.EOF is
// returned once no more data is stored.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := s.file.ReadAt(s.ctx, p, s.file.Position())
	s.advance(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes at the current position and advances it.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.file.WriteAt(s.ctx, p, s.file.Position())
	s.advance(n)
	return n, err
}

func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.file.ReadAt(s.ctx, p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (s *Stream) WriteAt(p []byte, off int64) (int, error) {
	return s.file.WriteAt(s.ctx, p, off)
}

// Seek sets the position for the next Read or Write. SeekEnd is relative
// to the size recorded in the catalog.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.file.Position()
	case io.SeekEnd:
		entry, err := s.file.session.Stat(s.ctx, s.file.Path(), s.file.Type())
		if err != nil {
			return 0, err
		}
		base = int64(entry.Size)
	default:
		return 0, fmt.Errorf("%w: whence %d", data.ErrInvalid, whence)
	}

	position := base + offset
	if position < 0 {
		return 0, fmt.Errorf("%w: negative position %d", data.ErrInvalid, position)
	}

	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	if s.file.closed {
		return 0, fmt.Errorf("%w: handle %s", data.ErrClosed, s.file.id)
	}

	s.file.position = position
	return position, nil
}

func (s *Stream) advance(n int) {
	if n <= 0 {
		return
	}

	s.file.mu.Lock()
	s.file.position += int64(n)
	s.file.mu.Unlock()
}
