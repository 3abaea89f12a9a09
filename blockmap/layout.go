package blockmap

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// Layout names the objects backing the blocks of a file.
//
// The name of a block is the file path, followed by Separator and the
// decimal logical offset the block starts at. With an empty separator
// "a1" + "0" and "a" + "10" collide; a non-empty separator avoids that.
type Layout struct {
	Separator string
}

// ObjectName returns the object key of the block starting at blockStart.
func (l Layout) ObjectName(path string, blockStart int64) string {
	return path + l.Separator + strconv.FormatInt(blockStart, 10)
}

// Purge removes the block objects of path in ascending order, starting at
// block 0 and stopping at the first block that does not exist. It returns
// the number of removed objects. Objects beyond a gap are left behind.
func (l Layout) Purge(ctx context.Context, store backend.ObjectStorageBackend, path string, blockSize uint32) (int, error) {
	if blockSize == 0 {
		return 0, fmt.Errorf("%w: block size must be greater than zero", data.ErrInvalid)
	}

	removed := 0
	for start := int64(0); ; start += int64(blockSize) {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		err := store.RemoveObject(ctx, l.ObjectName(path, start))
		if errors.Is(err, data.ErrNotExist) {
			return removed, nil
		}
		if err != nil {
			return removed, fmt.Errorf("%w: remove block %d of '%s': %w", data.ErrIO, start, path, err)
		}

		removed++
	}
}
