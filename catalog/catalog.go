// Package catalog keeps the set of known block files in memory and mirrors
// it into a single object of the backing store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/blockmap"
	"github.com/mwantia/blockfile/data"
	"github.com/mwantia/blockfile/log"
	"github.com/tidwall/btree"
)

// DefaultKey is the object name the catalog is stored under.
const DefaultKey = "metadata"

type slot struct {
	data.Entry
	// purging is set while the block objects of a deleted entry are removed
	purging bool
}

// Catalog is safe for concurrent use. Every call loads the persisted state
// on first use; mutations of persisted fields are written back before the
// call returns.
type Catalog struct {
	mu sync.Mutex

	store  backend.ObjectStorageBackend
	key    string
	layout blockmap.Layout
	log    *log.Logger

	loaded  bool
	dirty   bool
	corrupt error
	entries *btree.Map[data.EntryKey, *slot]
}

func New(store backend.ObjectStorageBackend, key string, layout blockmap.Layout, logger *log.Logger) *Catalog {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = log.NewDiscard()
	}

	return &Catalog{
		store:   store,
		key:     key,
		layout:  layout,
		log:     logger,
		entries: btree.NewMap[data.EntryKey, *slot](0),
	}
}

// Key returns the object name of the persisted catalog.
func (c *Catalog) Key() string {
	return c.key
}

// Load reads the persisted catalog unless it is already loaded. A missing
// catalog object yields an empty catalog without writing anything.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ensureLoaded(ctx)
}

// Persist writes the full entry set, even if nothing changed.
func (c *Catalog) Persist(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	return c.persist(ctx)
}

// Find looks up an entry. Corruption is reported through the result;
// the error is only set when the catalog could not be read.
func (c *Catalog) Find(ctx context.Context, path string, fileType data.FileType) (data.LookupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		var corruptErr *data.CorruptError
		if errors.As(err, &corruptErr) {
			return data.Corrupt(corruptErr.Reason), nil
		}
		return data.NotFound(), err
	}

	s, exists := c.entries.Get(data.NewEntryKey(path, fileType))
	if !exists {
		return data.NotFound(), nil
	}

	return data.Found(s.Entry), nil
}

// Insert adds a new, unreferenced entry and persists the catalog.
func (c *Catalog) Insert(ctx context.Context, entry data.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	key := entry.Key()
	if _, exists := c.entries.Get(key); exists {
		return fmt.Errorf("%w: %s '%s'", data.ErrExist, entry.Type, entry.Path)
	}

	entry.RefCount = 0
	entry.Deleted = false
	c.entries.Set(key, &slot{Entry: entry})
	c.dirty = true

	c.log.Debug("Inserted %s", entry)
	return c.persist(ctx)
}

// Remove drops an entry and persists the catalog.
func (c *Catalog) Remove(ctx context.Context, path string, fileType data.FileType) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	if _, deleted := c.entries.Delete(data.NewEntryKey(path, fileType)); !deleted {
		return fmt.Errorf("%w: %s '%s'", data.ErrNotExist, fileType, path)
	}
	c.dirty = true

	c.log.Debug("Removed %s '%s'", fileType, path)
	return c.persist(ctx)
}

// Update applies mutate to a copy of the entry and stores the result.
// Identity and block size are immutable. The catalog is only persisted
// when a persisted field changed or an earlier persist failed.
func (c *Catalog) Update(ctx context.Context, path string, fileType data.FileType, mutate func(*data.Entry)) (data.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return data.Entry{}, err
	}

	s, exists := c.entries.Get(data.NewEntryKey(path, fileType))
	if !exists {
		return data.Entry{}, fmt.Errorf("%w: %s '%s'", data.ErrNotExist, fileType, path)
	}

	updated := s.Entry
	mutate(&updated)

	if updated.Path != s.Path || updated.Type != s.Type || updated.BlockSize != s.BlockSize {
		return s.Entry, fmt.Errorf("%w: path, type and block size of '%s' are immutable", data.ErrInvalid, path)
	}

	changed := !updated.SamePersisted(s.Entry)
	s.Entry = updated

	if changed {
		c.dirty = true
	}
	if !c.dirty {
		return s.Entry, nil
	}

	return s.Entry, c.persist(ctx)
}

// Acquire increments the reference count of a live entry.
func (c *Catalog) Acquire(ctx context.Context, path string, fileType data.FileType) (data.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return data.Entry{}, err
	}

	s, exists := c.entries.Get(data.NewEntryKey(path, fileType))
	if !exists || s.Deleted {
		return data.Entry{}, fmt.Errorf("%w: %s '%s'", data.ErrNotExist, fileType, path)
	}

	s.RefCount++
	return s.Entry, nil
}

// Release decrements the reference count. It reports true when this was
// the last reference of a deleted entry; the caller then owns the purge and
// must finish it with Remove or CancelPurge.
func (c *Catalog) Release(ctx context.Context, path string, fileType data.FileType) (bool, data.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return false, data.Entry{}, err
	}

	s, exists := c.entries.Get(data.NewEntryKey(path, fileType))
	if !exists {
		return false, data.Entry{}, fmt.Errorf("%w: %s '%s'", data.ErrNotExist, fileType, path)
	}

	if s.RefCount > 0 {
		s.RefCount--
	}

	return c.claimPurge(s), s.Entry, nil
}

// MarkDeleted flags an entry as deleted and persists the flag. It reports
// true when no handle references the entry; the caller then owns the purge
// and must finish it with Remove or CancelPurge. Marking an entry that is
// already deleted and still referenced does nothing.
func (c *Catalog) MarkDeleted(ctx context.Context, path string, fileType data.FileType) (bool, data.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return false, data.Entry{}, err
	}

	s, exists := c.entries.Get(data.NewEntryKey(path, fileType))
	if !exists {
		return false, data.Entry{}, fmt.Errorf("%w: %s '%s'", data.ErrNotExist, fileType, path)
	}

	if !s.Deleted {
		s.Deleted = true
		c.dirty = true

		if err := c.persist(ctx); err != nil {
			return false, s.Entry, err
		}
	}

	return c.claimPurge(s), s.Entry, nil
}

// CancelPurge gives up a purge claimed through Release or MarkDeleted. The
// entry stays deleted and is purged by a later delete or load.
func (c *Catalog) CancelPurge(path string, fileType data.FileType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, exists := c.entries.Get(data.NewEntryKey(path, fileType)); exists {
		s.purging = false
	}
}

// Entries returns a snapshot ordered by type, then path.
func (c *Catalog) Entries(ctx context.Context) ([]data.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	entries := make([]data.Entry, 0, c.entries.Len())
	c.entries.Scan(func(_ data.EntryKey, s *slot) bool {
		entries = append(entries, s.Entry)
		return true
	})

	return entries, nil
}

// Len returns the number of entries currently held in memory.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}

// Dirty reports whether the in-memory state has not been persisted yet.
func (c *Catalog) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dirty
}

// Unload drops the in-memory state. A corrupt state stays sticky.
func (c *Catalog) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Clear()
	c.loaded = false
	c.dirty = false
}

func (c *Catalog) claimPurge(s *slot) bool {
	if !s.Deleted || s.RefCount > 0 || s.purging {
		return false
	}

	s.purging = true
	return true
}

func (c *Catalog) ensureLoaded(ctx context.Context) error {
	if c.corrupt != nil {
		return c.corrupt
	}
	if c.loaded {
		return nil
	}

	if err := c.load(ctx); err != nil {
		if errors.Is(err, data.ErrCorrupt) {
			c.corrupt = err
			c.log.Error("Catalog '%s' is corrupt: %v", c.key, err)
		}
		return err
	}

	return nil
}

func (c *Catalog) load(ctx context.Context) error {
	stat, err := c.store.StatObject(ctx, c.key)
	if errors.Is(err, data.ErrNotExist) {
		c.log.Info("Catalog '%s' not found, starting empty", c.key)
		c.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat catalog '%s': %w", data.ErrIO, c.key, err)
	}

	raw, err := c.readObject(ctx, stat.Size)
	if err != nil {
		return err
	}

	entries, err := Decode(raw)
	if err != nil {
		return err
	}

	c.entries.Clear()
	for _, entry := range entries {
		c.entries.Set(entry.Key(), &slot{Entry: entry})
	}
	c.loaded = true
	c.dirty = false

	c.log.Info("Loaded catalog '%s' with %d entries", c.key, len(entries))
	c.reconcile(ctx)

	return nil
}

func (c *Catalog) readObject(ctx context.Context, size int64) ([]byte, error) {
	raw := make([]byte, 0, size)
	buf := make([]byte, max(size, 4096))

	for {
		n, err := c.store.ReadObject(ctx, c.key, int64(len(raw)), buf)
		if err != nil {
			return nil, fmt.Errorf("%w: read catalog '%s': %w", data.ErrIO, c.key, err)
		}

		raw = append(raw, buf[:n]...)
		if n < len(buf) {
			return raw, nil
		}
	}
}

func (c *Catalog) persist(ctx context.Context) error {
	entries := make([]data.Entry, 0, c.entries.Len())
	c.entries.Scan(func(_ data.EntryKey, s *slot) bool {
		entries = append(entries, s.Entry)
		return true
	})

	raw, err := Encode(entries)
	if err != nil {
		return fmt.Errorf("%w: encode catalog: %w", data.ErrIO, err)
	}

	if err := c.store.WriteFullObject(ctx, c.key, raw); err != nil {
		c.log.Warn("Failed to persist catalog '%s': %v", c.key, err)
		return fmt.Errorf("%w: persist catalog '%s': %w", data.ErrIO, c.key, err)
	}

	c.dirty = false
	c.log.Debug("Persisted catalog '%s' with %d entries", c.key, len(entries))

	return nil
}
