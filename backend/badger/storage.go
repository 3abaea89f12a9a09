package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

func (bb *BadgerBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	var stat *data.ObjectStat

	err := bb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bb.key(key))
		if err != nil {
			return err
		}

		stat = &data.ObjectStat{
			Key:  key,
			Size: item.ValueSize(),
		}
		return nil
	})

	return stat, mapError(err)
}

func (bb *BadgerBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	var n int

	err := bb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bb.key(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			n = backend.ReadAt(val, offset, buf)
			return nil
		})
	})

	return n, mapError(err)
}

func (bb *BadgerBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	err := bb.db.Update(func(txn *badger.Txn) error {
		var existing []byte

		item, err := txn.Get(bb.key(key))
		switch {
		case err == nil:
			if existing, err = item.ValueCopy(nil); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		return txn.Set(bb.key(key), backend.WriteAt(existing, offset, buf))
	})
	if err != nil {
		return 0, mapError(err)
	}

	return len(buf), nil
}

func (bb *BadgerBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	return bb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bb.key(key), append([]byte{}, buf...))
	})
}

func (bb *BadgerBackend) RemoveObject(ctx context.Context, key string) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	err := bb.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(bb.key(key)); err != nil {
			return err
		}
		return txn.Delete(bb.key(key))
	})

	return mapError(err)
}

// Flush syncs the value log and memtables to disk. In-memory databases
// have nothing to sync.
func (bb *BadgerBackend) Flush(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	if bb.db.Opts().InMemory {
		return nil
	}
	return bb.db.Sync()
}

func mapError(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return data.ErrNotExist
	}
	return err
}
