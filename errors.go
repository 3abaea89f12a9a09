package blockfile

import "github.com/mwantia/blockfile/data"

// Errors returned by the session and its files. They alias the sentinels
// of the data package so either can be used with errors.Is.
var (
	ErrConfig     = data.ErrConfig
	ErrConnection = data.ErrConnection
	ErrCorrupt    = data.ErrCorrupt
	ErrNotExist   = data.ErrNotExist
	ErrExist      = data.ErrExist
	ErrInvalid    = data.ErrInvalid
	ErrAllocation = data.ErrAllocation
	ErrIO         = data.ErrIO
	ErrClosed     = data.ErrClosed
)
