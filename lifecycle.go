package blockfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mwantia/blockfile/data"
)

// Create adds an empty, unreferenced file to the catalog.
func (s *Session) Create(ctx context.Context, path string, fileType data.FileType, blockSize uint32) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.validate(path, fileType, blockSize); err != nil {
		return err
	}

	if err := s.catalog.Insert(ctx, data.NewEntry(path, fileType, blockSize)); err != nil {
		return err
	}

	s.log.Debug("Created %s '%s' with block size %d", fileType, path, blockSize)
	return nil
}

// Open returns a new handle on an existing file. Files that are deleted
// but still referenced cannot be opened again.
func (s *Session) Open(ctx context.Context, path string, fileType data.FileType) (*File, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	// No entry can exist for an invalid type
	if !fileType.Valid() {
		return nil, fmt.Errorf("%w: %s '%s'", data.ErrNotExist, fileType, path)
	}

	entry, err := s.catalog.Acquire(ctx, path, fileType)
	if err != nil {
		return nil, err
	}

	f := newFile(s, entry)
	if err := s.track(f); err != nil {
		s.release(ctx, entry)
		return nil, err
	}

	s.log.Debug("Opened handle %s on %s '%s'", f.id, fileType, path)
	return f, nil
}

// OpenCreate opens a file, creating it first when it does not exist. A
// file waiting for its deletion is not revived; ErrExist is returned.
func (s *Session) OpenCreate(ctx context.Context, path string, fileType data.FileType, blockSize uint32) (*File, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.validate(path, fileType, blockSize); err != nil {
		return nil, err
	}

	result, err := s.catalog.Find(ctx, path, fileType)
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case data.LookupCorrupt:
		return nil, result.Err()
	case data.LookupFoundButDeleted:
		return nil, fmt.Errorf("%w: %s '%s' is pending deletion", data.ErrExist, fileType, path)
	case data.LookupNotFound:
		err := s.Create(ctx, path, fileType, blockSize)
		if err != nil && !errors.Is(err, data.ErrExist) {
			return nil, err
		}
	}

	return s.Open(ctx, path, fileType)
}

// Delete removes a file with all its block objects. While handles are
// open the file is only marked deleted and purged by the last Close.
func (s *Session) Delete(ctx context.Context, path string, fileType data.FileType) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	purge, entry, err := s.catalog.MarkDeleted(ctx, path, fileType)
	if err != nil {
		return err
	}
	if !purge {
		s.log.Debug("Deferred deletion of %s '%s' with %d open handles", fileType, path, entry.RefCount)
		return nil
	}

	return s.purge(ctx, entry)
}

// Close releases a handle. Closing nil or an already closed handle does
// nothing.
func (s *Session) Close(ctx context.Context, f *File) error {
	if f == nil || f.session != s {
		return nil
	}

	return s.closeFile(ctx, f)
}

func (s *Session) closeFile(ctx context.Context, f *File) error {
	if !f.markClosed() {
		return nil
	}
	s.untrack(f)

	entry := f.Entry()
	s.log.Debug("Closed handle %s on %s '%s'", f.id, entry.Type, entry.Path)
	return s.release(ctx, entry)
}

func (s *Session) release(ctx context.Context, entry data.Entry) error {
	purge, current, err := s.catalog.Release(ctx, entry.Path, entry.Type)
	if err != nil {
		return err
	}
	if !purge {
		return nil
	}

	return s.purge(ctx, current)
}

// purge removes the block objects and the entry of a deleted file. The
// caller must own the purge claimed from the catalog.
func (s *Session) purge(ctx context.Context, entry data.Entry) error {
	removed, err := s.layout.Purge(ctx, s.store, entry.Path, entry.BlockSize)
	if err != nil {
		s.catalog.CancelPurge(entry.Path, entry.Type)
		s.log.Warn("Failed to purge %s '%s' after %d block objects: %v", entry.Type, entry.Path, removed, err)
		return err
	}

	if err := s.catalog.Remove(ctx, entry.Path, entry.Type); err != nil {
		return err
	}

	s.log.Info("Purged %s '%s', removed %d block objects", entry.Type, entry.Path, removed)
	return nil
}

func (s *Session) validate(path string, fileType data.FileType, blockSize uint32) error {
	if path == "" {
		return fmt.Errorf("%w: path must not be empty", data.ErrInvalid)
	}
	if !fileType.Valid() {
		return fmt.Errorf("%w: invalid file type %d", data.ErrInvalid, fileType)
	}
	if blockSize == 0 {
		return fmt.Errorf("%w: block size must be greater than zero", data.ErrInvalid)
	}
	if blockSize > s.options.MaxBlockSize {
		return fmt.Errorf("%w: block size %d exceeds the limit of %d", data.ErrAllocation, blockSize, s.options.MaxBlockSize)
	}
	if !s.store.GetCapabilities().Fits(int64(blockSize)) {
		return fmt.Errorf("%w: block size %d exceeds the object size limit of backend '%s'", data.ErrInvalid, blockSize, s.store.Name())
	}
	return nil
}

func newHandleID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
