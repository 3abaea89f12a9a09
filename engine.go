package blockfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/blockfile/blockmap"
	"github.com/mwantia/blockfile/data"
)

// readBlocks fills buf from the blocks of entry starting at offset. A block
// that is missing or shorter than expected ends the read; the bytes read so
// far are returned without an error.
func (s *Session) readBlocks(ctx context.Context, entry data.Entry, buf []byte, offset int64) (int, error) {
	read := 0

	for chunk := range blockmap.MapRange(entry.BlockSize, offset, int64(len(buf))) {
		part := buf[read : read+int(chunk.Length)]
		name := s.layout.ObjectName(entry.Path, chunk.BlockStart)

		n, err := s.store.ReadObject(ctx, name, chunk.Offset, part)
		if errors.Is(err, data.ErrNotExist) {
			return read, nil
		}
		if err != nil {
			return read, fmt.Errorf("%w: read block '%s': %w", data.ErrIO, name, err)
		}

		read += n
		if n < len(part) {
			break
		}
	}

	return read, nil
}

// writeBlocks writes buf into the blocks of entry starting at offset using
// only the write primitive. It stops at the first chunk that is not fully
// committed and returns the bytes committed before it. The catalog size is
// extended once all chunks are written.
func (s *Session) writeBlocks(ctx context.Context, entry data.Entry, buf []byte, offset int64) (int, data.Entry, error) {
	written := 0

	for chunk := range blockmap.MapRange(entry.BlockSize, offset, int64(len(buf))) {
		part := buf[written : written+int(chunk.Length)]
		name := s.layout.ObjectName(entry.Path, chunk.BlockStart)

		n, err := s.store.WriteObject(ctx, name, chunk.Offset, part)
		if err != nil {
			s.log.Warn("Failed to write block '%s': %v", name, err)
			return written, entry, fmt.Errorf("%w: write block '%s': %w", data.ErrIO, name, err)
		}
		if n < len(part) {
			s.log.Warn("Short write on block '%s': %d of %d bytes", name, n, len(part))
			return written, entry, fmt.Errorf("%w: short write on block '%s': %d of %d bytes", data.ErrIO, name, n, len(part))
		}

		written += n
	}

	if written == 0 {
		return 0, entry, nil
	}

	end := uint64(offset) + uint64(written)
	updated, err := s.catalog.Update(ctx, entry.Path, entry.Type, func(e *data.Entry) {
		e.Size = max(e.Size, end)
	})
	if err != nil {
		return written, entry, err
	}

	return written, updated, nil
}
