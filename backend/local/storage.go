package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/mwantia/blockfile/data"
)

func (lb *LocalBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	info, err := os.Stat(lb.resolvePath(key))
	if err != nil {
		return nil, mapError(err)
	}

	return &data.ObjectStat{
		Key:        key,
		Size:       info.Size(),
		ModifyTime: info.ModTime(),
	}, nil
}

func (lb *LocalBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	file, err := os.Open(lb.resolvePath(key))
	if err != nil {
		return 0, mapError(err)
	}
	defer file.Close()

	n, err := file.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}

	return n, nil
}

func (lb *LocalBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	file, err := os.OpenFile(lb.resolvePath(key), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, mapError(err)
	}
	defer file.Close()

	lb.dirty[key] = struct{}{}

	if len(buf) == 0 {
		info, err := file.Stat()
		if err != nil {
			return 0, err
		}
		if info.Size() < offset {
			return 0, file.Truncate(offset)
		}
		return 0, nil
	}

	return file.WriteAt(buf, offset)
}

func (lb *LocalBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	target := lb.resolvePath(key)

	// Write into a sibling first so readers never observe a partial object
	temp, err := os.CreateTemp(lb.root(), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(temp.Name())

	if _, err := temp.Write(buf); err != nil {
		temp.Close()
		return err
	}
	// The content must be durable before the rename makes it visible
	if err := temp.Sync(); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return err
	}

	if err := os.Rename(temp.Name(), target); err != nil {
		return err
	}
	delete(lb.dirty, key)

	return lb.syncDir()
}

func (lb *LocalBackend) RemoveObject(ctx context.Context, key string) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	delete(lb.dirty, key)
	return mapError(os.Remove(lb.resolvePath(key)))
}

// Flush syncs every object written since the last flush and the namespace
// directory, so that written, created and renamed objects survive a crash.
func (lb *LocalBackend) Flush(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	errs := data.Errors{}
	for key := range lb.dirty {
		if err := syncFile(lb.resolvePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs.Add(fmt.Errorf("sync '%s': %w", key, err))
			continue
		}
		delete(lb.dirty, key)
	}

	if err := lb.syncDir(); err != nil {
		errs.Add(err)
	}

	return errs.Errors()
}

// Dirty returns the number of objects waiting for a Flush.
func (lb *LocalBackend) Dirty() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return len(lb.dirty)
}

func syncFile(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	return file.Sync()
}

func (lb *LocalBackend) syncDir() error {
	dir, err := os.Open(lb.root())
	if err != nil {
		return err
	}
	defer dir.Close()

	return dir.Sync()
}

func mapError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return data.ErrNotExist
	}
	return err
}
