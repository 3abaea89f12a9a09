package blockfile_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/mwantia/blockfile"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/backend/backendtest"
	"github.com/mwantia/blockfile/backend/badger"
	"github.com/mwantia/blockfile/backend/local"
	"github.com/mwantia/blockfile/backend/memory"
	"github.com/mwantia/blockfile/backend/sqlite"
	"github.com/mwantia/blockfile/catalog"
	"github.com/mwantia/blockfile/data"
	"github.com/mwantia/blockfile/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type TestSessionFactory func(t *testing.T) (*blockfile.Session, error)

func GetTestSessionFactories() map[string]TestSessionFactory {
	open := func(t *testing.T, store backend.ObjectStorageBackend) (*blockfile.Session, error) {
		s, err := blockfile.New(t.Context(), store, blockfile.WithLogger(log.NewDiscard()))
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() {
			_ = s.Destroy(t.Context())
		})
		return s, nil
	}

	return map[string]TestSessionFactory{
		"memory": func(t *testing.T) (*blockfile.Session, error) {
			return open(t, memory.NewMemoryBackend("pool"))
		},
		"local": func(t *testing.T) (*blockfile.Session, error) {
			return open(t, local.NewLocalBackend(t.TempDir(), "pool"))
		},
		"sqlite": func(t *testing.T) (*blockfile.Session, error) {
			store, err := sqlite.NewSQLiteBackend(":memory:", "pool")
			if err != nil {
				return nil, err
			}
			return open(t, store)
		},
		"badger": func(t *testing.T) (*blockfile.Session, error) {
			store, err := badger.NewBadgerBackend(&badger.BadgerBackendConfig{}, "pool")
			if err != nil {
				return nil, err
			}
			return open(t, store)
		},
	}
}

// newRecordedSession returns a session on an instrumented memory backend.
func newRecordedSession(t *testing.T, opts ...blockfile.SessionOption) (*blockfile.Session, *backendtest.Recorder, *memory.MemoryBackend) {
	t.Helper()

	mem := memory.NewMemoryBackend("pool")
	store := backendtest.NewRecorder(mem)

	opts = append([]blockfile.SessionOption{blockfile.WithLogger(log.NewDiscard())}, opts...)
	s, err := blockfile.New(t.Context(), store, opts...)
	require.NoError(t, err)

	return s, store, mem
}

func pattern(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i*7 + i/251)
	}
	return buf
}

// TestAllSessions_RoundTrip verifies that bytes written across several blocks read back identically.
func TestAllSessions_RoundTrip(t *testing.T) {
	for name, factory := range GetTestSessionFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			s, err := factory(tst)
			require.NoError(tst, err)

			f, err := s.OpenCreate(ctx, "sbtest/sbtest1.ibd", data.FileTypeFile, 4096)
			require.NoError(tst, err)

			content := pattern(3 * 4096)
			n, err := f.WriteAt(ctx, content, 1000)
			require.NoError(tst, err)
			assert.Equal(tst, len(content), n)
			assert.EqualValues(tst, 1000+len(content), f.Size())

			buf := make([]byte, len(content))
			n, err = f.ReadAt(ctx, buf, 1000)
			require.NoError(tst, err)
			assert.Equal(tst, len(content), n)
			assert.True(tst, bytes.Equal(content, buf))

			// The gap in front of the write reads as zeros
			head := make([]byte, 1000)
			n, err = f.ReadAt(ctx, head, 0)
			require.NoError(tst, err)
			assert.Equal(tst, 1000, n)
			assert.Equal(tst, make([]byte, 1000), head)

			entry, err := s.Stat(ctx, "sbtest/sbtest1.ibd", data.FileTypeFile)
			require.NoError(tst, err)
			assert.EqualValues(tst, 1000+len(content), entry.Size)
			assert.Equal(tst, 1, entry.RefCount)

			require.NoError(tst, f.Close())
			assert.Zero(tst, s.OpenFiles())
		})
	}
}

// TestAllSessions_ShortRead verifies that missing or short trailing blocks end a read without an error.
func TestAllSessions_ShortRead(t *testing.T) {
	for name, factory := range GetTestSessionFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			s, err := factory(tst)
			require.NoError(tst, err)

			f, err := s.OpenCreate(ctx, "data", data.FileTypeFile, 4096)
			require.NoError(tst, err)
			defer f.Close()

			_, err = f.WriteAt(ctx, pattern(2*4096), 0)
			require.NoError(tst, err)

			buf := make([]byte, 3*4096)
			n, err := f.ReadAt(ctx, buf, 0)
			require.NoError(tst, err)
			assert.Equal(tst, 2*4096, n)

			n, err = f.ReadAt(ctx, buf, 10*4096)
			require.NoError(tst, err)
			assert.Zero(tst, n)

			g, err := s.OpenCreate(ctx, "partial", data.FileTypeFile, 4096)
			require.NoError(tst, err)
			defer g.Close()

			_, err = g.WriteAt(ctx, pattern(5000), 0)
			require.NoError(tst, err)

			n, err = g.ReadAt(ctx, buf[:8192], 0)
			require.NoError(tst, err)
			assert.Equal(tst, 5000, n)
		})
	}
}

// TestAllSessions_CreateTwice verifies that a (path, type) pair can only be created once.
func TestAllSessions_CreateTwice(t *testing.T) {
	for name, factory := range GetTestSessionFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			s, err := factory(tst)
			require.NoError(tst, err)

			require.NoError(tst, s.Create(ctx, "p", data.FileTypeFile, 4096))

			err = s.Create(ctx, "p", data.FileTypeFile, 4096)
			assert.ErrorIs(tst, err, data.ErrExist)
			assert.ErrorIs(tst, err, blockfile.ErrExist)

			require.NoError(tst, s.Create(ctx, "p", data.FileTypeDirectory, 4096))

			entries, err := s.List(ctx)
			require.NoError(tst, err)
			assert.Len(tst, entries, 2)
		})
	}
}

func TestSession_DeferredDeletion(t *testing.T) {
	ctx := t.Context()
	s, store, mem := newRecordedSession(t)

	first, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 4096)
	require.NoError(t, err)
	second, err := s.Open(ctx, "f", data.FileTypeFile)
	require.NoError(t, err)

	_, err = first.WriteAt(ctx, pattern(2*4096), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"f0", "f4096", catalog.DefaultKey}, mem.Keys())

	require.NoError(t, s.Delete(ctx, "f", data.FileTypeFile))
	assert.Zero(t, store.Count(backendtest.OpRemove, ""))

	entry, err := s.Stat(ctx, "f", data.FileTypeFile)
	require.NoError(t, err)
	assert.True(t, entry.Deleted)
	assert.Equal(t, 2, entry.RefCount)

	_, err = s.Open(ctx, "f", data.FileTypeFile)
	assert.ErrorIs(t, err, data.ErrNotExist)

	_, err = s.OpenCreate(ctx, "f", data.FileTypeFile, 4096)
	assert.ErrorIs(t, err, data.ErrExist)

	// Open handles keep working on a deleted file
	buf := make([]byte, 4096)
	n, err := second.ReadAt(ctx, buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)

	require.NoError(t, s.Close(ctx, first))
	assert.Equal(t, []string{"f0", "f4096", catalog.DefaultKey}, mem.Keys())

	require.NoError(t, s.Close(ctx, second))
	assert.Equal(t, []string{catalog.DefaultKey}, mem.Keys())

	_, err = s.Stat(ctx, "f", data.FileTypeFile)
	assert.ErrorIs(t, err, data.ErrNotExist)

	// Closing again is a no-op
	require.NoError(t, s.Close(ctx, first))
	require.NoError(t, second.Close())
	require.NoError(t, s.Close(ctx, nil))
}

func TestSession_DeleteUnreferenced(t *testing.T) {
	ctx := t.Context()
	s, store, mem := newRecordedSession(t, blockfile.WithBlockSeparator("_"))

	f, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 10)
	require.NoError(t, err)
	_, err = f.WriteAt(ctx, pattern(25), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, []string{"f_0", "f_10", "f_20", catalog.DefaultKey}, mem.Keys())

	store.Reset()
	require.NoError(t, s.Delete(ctx, "f", data.FileTypeFile))
	assert.Equal(t, []string{catalog.DefaultKey}, mem.Keys())
	// Three blocks plus the probe that finds the end
	assert.Equal(t, 4, store.Count(backendtest.OpRemove, ""))

	assert.ErrorIs(t, s.Delete(ctx, "f", data.FileTypeFile), data.ErrNotExist)
}

func TestSession_FailedPurgeIsRetried(t *testing.T) {
	ctx := t.Context()
	s, store, mem := newRecordedSession(t)

	require.NoError(t, s.Create(ctx, "f", data.FileTypeFile, 10))
	f, err := s.Open(ctx, "f", data.FileTypeFile)
	require.NoError(t, err)
	_, err = f.WriteAt(ctx, pattern(15), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	store.SetFault(func(op backendtest.Op, key string, offset int64) error {
		if op == backendtest.OpRemove && key == "f0" {
			return errors.New("injected")
		}
		return nil
	})

	err = s.Delete(ctx, "f", data.FileTypeFile)
	assert.ErrorIs(t, err, data.ErrIO)

	entry, err := s.Stat(ctx, "f", data.FileTypeFile)
	require.NoError(t, err)
	assert.True(t, entry.Deleted)

	store.SetFault(nil)
	require.NoError(t, s.Delete(ctx, "f", data.FileTypeFile))
	assert.Equal(t, []string{catalog.DefaultKey}, mem.Keys())
}

// TestSession_ConcurrentOpenCreate verifies that concurrent creates on distinct paths neither lose entries nor catalog writes.
func TestSession_ConcurrentOpenCreate(t *testing.T) {
	const files = 32

	ctx := t.Context()
	s, store, _ := newRecordedSession(t)

	handles := make([]*blockfile.File, files)
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		g.Go(func() error {
			f, err := s.OpenCreate(gctx, fmt.Sprintf("sbtest/sbtest%d.ibd", i), data.FileTypeFile, 16384)
			handles[i] = f
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, files)
	assert.Equal(t, files, store.Count(backendtest.OpWriteFull, catalog.DefaultKey))
	assert.Equal(t, files, s.OpenFiles())

	for _, f := range handles {
		require.NoError(t, f.Close())
	}
	assert.Zero(t, s.OpenFiles())
}

func TestSession_ConcurrentOpenCreateSamePath(t *testing.T) {
	const openers = 8

	ctx := t.Context()
	s, _, _ := newRecordedSession(t)

	g, gctx := errgroup.WithContext(ctx)
	for range openers {
		g.Go(func() error {
			_, err := s.OpenCreate(gctx, "shared", data.FileTypeFile, 4096)
			return err
		})
	}
	require.NoError(t, g.Wait())

	entry, err := s.Stat(ctx, "shared", data.FileTypeFile)
	require.NoError(t, err)
	assert.Equal(t, openers, entry.RefCount)
}

func TestSession_FailedWriteReturnsCommittedBytes(t *testing.T) {
	ctx := t.Context()
	s, store, _ := newRecordedSession(t)

	f, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 4096)
	require.NoError(t, err)
	defer f.Close()

	store.SetFault(func(op backendtest.Op, key string, offset int64) error {
		if op == backendtest.OpWrite && key == "f8192" {
			return errors.New("injected")
		}
		return nil
	})
	store.Reset()

	n, err := f.WriteAt(ctx, pattern(4*4096), 0)
	assert.ErrorIs(t, err, data.ErrIO)
	assert.Equal(t, 2*4096, n)

	// No chunk after the failing one is attempted
	assert.Equal(t, 3, store.Count(backendtest.OpWrite, ""))
	assert.Zero(t, store.Count(backendtest.OpWrite, "f12288"))
	assert.Zero(t, store.Count(backendtest.OpWriteFull, ""))
	assert.Zero(t, f.Size())
}

func TestSession_WriteNeverReads(t *testing.T) {
	ctx := t.Context()
	s, store, _ := newRecordedSession(t)

	f, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 4096)
	require.NoError(t, err)
	defer f.Close()

	store.Reset()

	// Unaligned start and a partial last chunk
	n, err := f.WriteAt(ctx, pattern(2*4096-100), 4000)
	require.NoError(t, err)
	assert.Equal(t, 2*4096-100, n)

	assert.Zero(t, store.Count(backendtest.OpRead, ""))
	assert.Zero(t, store.Count(backendtest.OpStat, ""))
	assert.Equal(t, 3, store.Count(backendtest.OpWrite, ""))
	assert.Equal(t, 1, store.Count(backendtest.OpWriteFull, catalog.DefaultKey))

	// A write inside the known size does not rewrite the catalog
	store.Reset()
	_, err = f.WriteAt(ctx, pattern(10), 0)
	require.NoError(t, err)
	assert.Zero(t, store.Count(backendtest.OpWriteFull, ""))

	// Zero-length writes touch nothing
	store.Reset()
	n, err = f.WriteAt(ctx, nil, 1<<20)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.Calls())
	assert.EqualValues(t, 4000+2*4096-100, f.Size())
}

func TestSession_CorruptCatalog(t *testing.T) {
	ctx := t.Context()

	mem := memory.NewMemoryBackend("pool")
	require.NoError(t, mem.WriteFullObject(ctx, catalog.DefaultKey, []byte(`[{"path":"f"}]`)))

	s, err := blockfile.New(ctx, mem, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)

	_, err = s.OpenCreate(ctx, "f", data.FileTypeFile, 4096)
	assert.ErrorIs(t, err, data.ErrCorrupt)
	assert.NotErrorIs(t, err, data.ErrNotExist)

	_, err = s.Open(ctx, "f", data.FileTypeFile)
	assert.ErrorIs(t, err, data.ErrCorrupt)
	assert.NotErrorIs(t, err, data.ErrNotExist)

	_, err = s.Stat(ctx, "g", data.FileTypeFile)
	assert.ErrorIs(t, err, data.ErrCorrupt)

	var corruptErr *data.CorruptError
	require.ErrorAs(t, s.Create(ctx, "g", data.FileTypeFile, 4096), &corruptErr)
	assert.NotEmpty(t, corruptErr.Reason)

	// The catalog object is never overwritten
	buf := make([]byte, 64)
	n, err := mem.ReadObject(ctx, catalog.DefaultKey, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, `[{"path":"f"}]`, string(buf[:n]))
}

func TestSession_Validation(t *testing.T) {
	ctx := t.Context()
	s, _, _ := newRecordedSession(t, blockfile.WithMaxBlockSize(8192))

	tests := []struct {
		name      string
		path      string
		fileType  data.FileType
		blockSize uint32
		err       error
	}{
		{"empty path", "", data.FileTypeFile, 4096, data.ErrInvalid},
		{"unknown type", "f", data.FileTypeUnknown, 4096, data.ErrInvalid},
		{"zero block size", "f", data.FileTypeFile, 0, data.ErrInvalid},
		{"block size above limit", "f", data.FileTypeFile, 16384, data.ErrAllocation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tst *testing.T) {
			assert.ErrorIs(tst, s.Create(ctx, tc.path, tc.fileType, tc.blockSize), tc.err)

			_, err := s.OpenCreate(ctx, tc.path, tc.fileType, tc.blockSize)
			assert.ErrorIs(tst, err, tc.err)
		})
	}

	f, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 8192)
	require.NoError(t, err)
	defer f.Close()

	_, err = s.Open(ctx, "f", data.FileTypeUnknown)
	assert.ErrorIs(t, err, data.ErrNotExist)
	assert.NotErrorIs(t, err, data.ErrInvalid)

	_, err = f.ReadAt(ctx, make([]byte, 1), -1)
	assert.ErrorIs(t, err, data.ErrInvalid)
	_, err = f.WriteAt(ctx, make([]byte, 1), -1)
	assert.ErrorIs(t, err, data.ErrInvalid)

	_, err = blockfile.New(ctx, memory.NewMemoryBackend("pool"), blockfile.WithMaxBlockSize(0))
	assert.ErrorIs(t, err, data.ErrInvalid)
	_, err = blockfile.New(ctx, nil)
	assert.ErrorIs(t, err, data.ErrInvalid)
}

type limitedBackend struct {
	backend.ObjectStorageBackend
	limit int64
}

func (lb *limitedBackend) GetCapabilities() *backend.BackendCapabilities {
	caps := lb.ObjectStorageBackend.GetCapabilities()
	return &backend.BackendCapabilities{
		Capabilities:  caps.Capabilities,
		MaxObjectSize: lb.limit,
	}
}

func TestSession_BlockSizeAboveObjectLimit(t *testing.T) {
	ctx := t.Context()
	store := &limitedBackend{ObjectStorageBackend: memory.NewMemoryBackend("pool"), limit: 4096}

	s, err := blockfile.New(ctx, store, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Create(ctx, "f", data.FileTypeFile, 8192), data.ErrInvalid)
	assert.NoError(t, s.Create(ctx, "f", data.FileTypeFile, 4096))
}

func TestSession_Reconcile(t *testing.T) {
	ctx := t.Context()
	mem := memory.NewMemoryBackend("pool")

	crashed, err := blockfile.New(ctx, mem, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)

	f, err := crashed.OpenCreate(ctx, "f", data.FileTypeFile, 10)
	require.NoError(t, err)
	_, err = f.WriteAt(ctx, pattern(30), 0)
	require.NoError(t, err)
	require.NoError(t, crashed.Create(ctx, "kept", data.FileTypeFile, 10))
	require.NoError(t, crashed.Delete(ctx, "f", data.FileTypeFile))

	// The process dies with the handle still open
	assert.Equal(t, []string{"f0", "f10", "f20", catalog.DefaultKey}, mem.Keys())

	store := backendtest.NewRecorder(mem)
	restarted, err := blockfile.New(ctx, store, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)

	entries, err := restarted.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Path)
	assert.Equal(t, []string{catalog.DefaultKey}, mem.Keys())
	assert.Equal(t, 1, store.Count(backendtest.OpWriteFull, catalog.DefaultKey))

	store = backendtest.NewRecorder(mem)
	again, err := blockfile.New(ctx, store, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)

	_, err = again.List(ctx)
	require.NoError(t, err)
	assert.Zero(t, store.Count(backendtest.OpRemove, ""))
	assert.Zero(t, store.Count(backendtest.OpWriteFull, ""))
}

func TestSession_Destroy(t *testing.T) {
	ctx := t.Context()
	s, store, _ := newRecordedSession(t)

	f, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 10)
	require.NoError(t, err)
	_, err = f.WriteAt(ctx, pattern(10), 0)
	require.NoError(t, err)
	g, err := s.Open(ctx, "f", data.FileTypeFile)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "f", data.FileTypeFile))
	assert.Equal(t, 2, s.OpenFiles())

	store.Reset()
	require.NoError(t, s.Destroy(ctx))
	assert.Zero(t, s.OpenFiles())

	// Releasing the leaked handles purged the deleted file
	assert.Equal(t, 2, store.Count(backendtest.OpRemove, ""))

	_, err = f.ReadAt(ctx, make([]byte, 1), 0)
	assert.ErrorIs(t, err, data.ErrClosed)
	require.NoError(t, g.Close())

	_, err = s.Open(ctx, "f", data.FileTypeFile)
	assert.ErrorIs(t, err, data.ErrClosed)
	assert.ErrorIs(t, s.Flush(ctx), data.ErrClosed)
	require.NoError(t, s.Destroy(ctx))
}

func TestAllSessions_Flush(t *testing.T) {
	for name, factory := range GetTestSessionFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			s, err := factory(tst)
			require.NoError(tst, err)

			f, err := s.OpenCreate(ctx, "f", data.FileTypeFile, 512)
			require.NoError(tst, err)
			defer f.Close()

			_, err = f.WriteAt(ctx, pattern(2000), 0)
			require.NoError(tst, err)
			require.NoError(tst, s.Flush(ctx))
		})
	}
}
