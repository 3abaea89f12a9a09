// Package backendtest provides an instrumented object storage backend for
// tests of code built on top of the gateway.
package backendtest

import (
	"context"
	"sync"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// Op identifies a gateway primitive.
type Op string

const (
	OpStat      Op = "stat"
	OpRead      Op = "read"
	OpWrite     Op = "write"
	OpWriteFull Op = "write_full"
	OpRemove    Op = "remove"
)

// Call is a single recorded gateway call.
type Call struct {
	Op  Op
	Key string
}

// FaultFunc decides whether a call fails. Returning a non-nil error makes
// the call fail without reaching the wrapped backend.
type FaultFunc func(op Op, key string, offset int64) error

// Recorder wraps a backend and records every object call.
type Recorder struct {
	backend.ObjectStorageBackend

	mu    sync.Mutex
	calls []Call
	fault FaultFunc
}

func NewRecorder(inner backend.ObjectStorageBackend) *Recorder {
	return &Recorder{ObjectStorageBackend: inner}
}

// SetFault installs a fault injector; nil removes it.
func (r *Recorder) SetFault(fault FaultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fault = fault
}

// Calls returns a copy of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Call(nil), r.calls...)
}

// Count returns how often op was called, optionally restricted to key.
func (r *Recorder) Count(op Op, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, call := range r.calls {
		if call.Op == op && (key == "" || call.Key == key) {
			count++
		}
	}
	return count
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = nil
}

func (r *Recorder) record(op Op, key string, offset int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, Call{Op: op, Key: key})
	if r.fault != nil {
		return r.fault(op, key, offset)
	}
	return nil
}

func (r *Recorder) StatObject(ctx context.Context, key string) (*data.ObjectStat, error) {
	if err := r.record(OpStat, key, 0); err != nil {
		return nil, err
	}
	return r.ObjectStorageBackend.StatObject(ctx, key)
}

func (r *Recorder) ReadObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	if err := r.record(OpRead, key, offset); err != nil {
		return 0, err
	}
	return r.ObjectStorageBackend.ReadObject(ctx, key, offset, buf)
}

func (r *Recorder) WriteObject(ctx context.Context, key string, offset int64, buf []byte) (int, error) {
	if err := r.record(OpWrite, key, offset); err != nil {
		return 0, err
	}
	return r.ObjectStorageBackend.WriteObject(ctx, key, offset, buf)
}

func (r *Recorder) WriteFullObject(ctx context.Context, key string, buf []byte) error {
	if err := r.record(OpWriteFull, key, 0); err != nil {
		return err
	}
	return r.ObjectStorageBackend.WriteFullObject(ctx, key, buf)
}

func (r *Recorder) RemoveObject(ctx context.Context, key string) error {
	if err := r.record(OpRemove, key, 0); err != nil {
		return err
	}
	return r.ObjectStorageBackend.RemoveObject(ctx, key)
}

// Flush forwards to the wrapped backend so that wrapping does not hide it.
func (r *Recorder) Flush(ctx context.Context) error {
	return backend.Flush(ctx, r.ObjectStorageBackend)
}
