package nutsdb

import (
	"context"
	"errors"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
	"github.com/nutsdb/nutsdb"
)

func (nb *NutsDBBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	var stat *data.ObjectStat

	err := nb.db.View(func(tx *nutsdb.Tx) error {
		value, err := tx.Get(nb.bucket, []byte(key))
		if err != nil {
			return err
		}

		stat = &data.ObjectStat{
			Key:  key,
			Size: int64(len(value)),
		}
		return nil
	})

	return stat, mapError(err)
}

func (nb *NutsDBBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	var n int

	err := nb.db.View(func(tx *nutsdb.Tx) error {
		value, err := tx.Get(nb.bucket, []byte(key))
		if err != nil {
			return err
		}

		n = backend.ReadAt(value, offset, buf)
		return nil
	})

	return n, mapError(err)
}

func (nb *NutsDBBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	err := nb.db.Update(func(tx *nutsdb.Tx) error {
		existing, err := tx.Get(nb.bucket, []byte(key))
		if err != nil && !errors.Is(mapError(err), data.ErrNotExist) {
			return err
		}

		// Never grow the slice handed out by the index in place
		content := backend.WriteAt(append([]byte{}, existing...), offset, buf)
		return tx.Put(nb.bucket, []byte(key), content, 0)
	})
	if err != nil {
		return 0, mapError(err)
	}

	return len(buf), nil
}

func (nb *NutsDBBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	return nb.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(nb.bucket, []byte(key), append([]byte{}, buf...), 0)
	})
}

func (nb *NutsDBBackend) RemoveObject(ctx context.Context, key string) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	err := nb.db.Update(func(tx *nutsdb.Tx) error {
		if _, err := tx.Get(nb.bucket, []byte(key)); err != nil {
			return err
		}
		return tx.Delete(nb.bucket, []byte(key))
	})

	return mapError(err)
}

// The bucket is created on construction, so a missing bucket index only
// means that nothing has been written yet.
func mapError(err error) error {
	if errors.Is(err, nutsdb.ErrKeyNotFound) ||
		errors.Is(err, nutsdb.ErrNotFoundKey) ||
		errors.Is(err, nutsdb.ErrBucketNotFound) {
		return data.ErrNotExist
	}
	return err
}
