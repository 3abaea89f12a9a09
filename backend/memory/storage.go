package memory

import (
	"context"
	"slices"
	"time"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

func (mb *MemoryBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	obj, exists := mb.objects.Get(backend.NamespacedKey(mb.namespace, key))
	if !exists {
		return nil, data.ErrNotExist
	}

	return &data.ObjectStat{
		Key:        key,
		Size:       int64(len(obj.data)),
		ModifyTime: obj.modifyTime,
	}, nil
}

func (mb *MemoryBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	obj, exists := mb.objects.Get(backend.NamespacedKey(mb.namespace, key))
	if !exists {
		return 0, data.ErrNotExist
	}

	return backend.ReadAt(obj.data, offset, buf), nil
}

func (mb *MemoryBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	nsKey := backend.NamespacedKey(mb.namespace, key)
	obj, exists := mb.objects.Get(nsKey)
	if !exists {
		obj = &object{}
		mb.objects.Set(nsKey, obj)
	}

	obj.data = backend.WriteAt(obj.data, offset, buf)
	obj.modifyTime = time.Now()

	return len(buf), nil
}

func (mb *MemoryBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.objects.Set(backend.NamespacedKey(mb.namespace, key), &object{
		data:       slices.Clone(buf),
		modifyTime: time.Now(),
	})

	return nil
}

func (mb *MemoryBackend) RemoveObject(ctx context.Context, key string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, deleted := mb.objects.Delete(backend.NamespacedKey(mb.namespace, key)); !deleted {
		return data.ErrNotExist
	}

	return nil
}
