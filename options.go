package blockfile

import (
	"fmt"

	"github.com/mwantia/blockfile/catalog"
	"github.com/mwantia/blockfile/data"
	"github.com/mwantia/blockfile/log"
)

// DefaultMaxBlockSize bounds the block size accepted by Create.
const DefaultMaxBlockSize = 64 * 1024 * 1024

type SessionOptions struct {
	LogLevel      log.LogLevel
	LogFile       string
	LogJSON       bool
	NoTerminalLog bool
	Logger        *log.Logger

	CatalogKey     string
	BlockSeparator string
	MaxBlockSize   uint32
}

type SessionOption func(*SessionOptions) error

func newDefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		LogLevel:     log.Info,
		CatalogKey:   catalog.DefaultKey,
		MaxBlockSize: DefaultMaxBlockSize,
	}
}

func WithLogLevel(logLevel log.LogLevel) SessionOption {
	return func(opts *SessionOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithoutTerminalLog() SessionOption {
	return func(opts *SessionOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

func WithLogFile(logFile string) SessionOption {
	return func(opts *SessionOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

func WithJSONLog() SessionOption {
	return func(opts *SessionOptions) error {
		opts.LogJSON = true
		return nil
	}
}

// WithLogger replaces the session logger; level, file and terminal options
// are ignored then.
func WithLogger(logger *log.Logger) SessionOption {
	return func(opts *SessionOptions) error {
		if logger == nil {
			return fmt.Errorf("%w: logger must not be nil", data.ErrInvalid)
		}
		opts.Logger = logger
		return nil
	}
}

// WithCatalogKey changes the object name the catalog is stored under.
func WithCatalogKey(key string) SessionOption {
	return func(opts *SessionOptions) error {
		if key == "" {
			return fmt.Errorf("%w: catalog key must not be empty", data.ErrInvalid)
		}
		opts.CatalogKey = key
		return nil
	}
}

// WithBlockSeparator places separator between path and block offset in
// block object names, e.g. "_" for "file_4096".
func WithBlockSeparator(separator string) SessionOption {
	return func(opts *SessionOptions) error {
		opts.BlockSeparator = separator
		return nil
	}
}

func WithMaxBlockSize(size uint32) SessionOption {
	return func(opts *SessionOptions) error {
		if size == 0 {
			return fmt.Errorf("%w: max block size must be greater than zero", data.ErrInvalid)
		}
		opts.MaxBlockSize = size
		return nil
	}
}

func (opts *SessionOptions) logger() *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}

	logger := log.NewLogger("blockfile", opts.LogLevel, opts.LogFile, opts.NoTerminalLog)
	logger.JSON = opts.LogJSON
	return logger
}
