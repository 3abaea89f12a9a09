package data

import (
	"errors"
	"sync"
)

// Standard errors returned by the catalog, the block engine and backends.
var (
	// Session setup errors
	ErrConfig     = errors.New("blockfile: invalid configuration")
	ErrConnection = errors.New("blockfile: object store connection failed")

	// Catalog errors
	ErrCorrupt  = errors.New("blockfile: catalog corrupt")
	ErrNotExist = errors.New("blockfile: file does not exist")
	ErrExist    = errors.New("blockfile: file already exists")

	// Argument and resource errors
	ErrInvalid    = errors.New("blockfile: invalid argument")
	ErrAllocation = errors.New("blockfile: allocation failed")

	// I/O errors
	ErrIO     = errors.New("blockfile: object store i/o error")
	ErrClosed = errors.New("blockfile: file already closed")
)

// CorruptError carries the reason a catalog could not be decoded.
// It matches ErrCorrupt with errors.Is.
type CorruptError struct {
	Reason string
}

func (e *CorruptError) Error() string {
	return ErrCorrupt.Error() + ": " + e.Reason
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
