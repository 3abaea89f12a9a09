package consul

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// casRetries bounds how often a partial write is retried after losing a
// check-and-set race against another writer.
const casRetries = 8

var errTooLarge = errors.New("write would exceed max object size of Consul KV")

func (cb *ConsulBackend) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	pair, err := cb.get(ctx, key)
	if err != nil {
		return nil, err
	}

	return &data.ObjectStat{
		Key:  key,
		Size: int64(len(pair.Value)),
	}, nil
}

func (cb *ConsulBackend) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	pair, err := cb.get(ctx, key)
	if err != nil {
		return 0, err
	}

	return backend.ReadAt(pair.Value, offset, buf), nil
}

func (cb *ConsulBackend) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	capabilities := cb.GetCapabilities()
	if !capabilities.Fits(offset + int64(len(buf))) {
		return 0, fmt.Errorf("%w: %d bytes", errTooLarge, capabilities.MaxObjectSize)
	}

	consulKey := cb.buildKey(key)
	for range casRetries {
		pair, _, err := cb.kv.Get(consulKey, (&api.QueryOptions{}).WithContext(ctx))
		if err != nil {
			return 0, err
		}

		// A zero ModifyIndex makes the CAS succeed only if the key is still absent
		next := &api.KVPair{Key: consulKey}
		if pair != nil {
			next.ModifyIndex = pair.ModifyIndex
			next.Value = backend.WriteAt(pair.Value, offset, buf)
		} else {
			next.Value = backend.WriteAt(nil, offset, buf)
		}

		ok, _, err := cb.kv.CAS(next, (&api.WriteOptions{}).WithContext(ctx))
		if err != nil {
			return 0, err
		}
		if ok {
			return len(buf), nil
		}
	}

	return 0, fmt.Errorf("check-and-set on '%s' failed after %d attempts", consulKey, casRetries)
}

func (cb *ConsulBackend) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.GetCapabilities().Fits(int64(len(buf))) {
		return errTooLarge
	}

	pair := &api.KVPair{
		Key:   cb.buildKey(key),
		Value: buf,
	}

	_, err := cb.kv.Put(pair, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

func (cb *ConsulBackend) RemoveObject(ctx context.Context, key string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if _, err := cb.get(ctx, key); err != nil {
		return err
	}

	_, err := cb.kv.Delete(cb.buildKey(key), (&api.WriteOptions{}).WithContext(ctx))
	return err
}

func (cb *ConsulBackend) get(ctx context.Context, key string) (*api.KVPair, error) {
	pair, _, err := cb.kv.Get(cb.buildKey(key), (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, data.ErrNotExist
	}

	return pair, nil
}
