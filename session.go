// Package blockfile stores named logical files as fixed-size blocks inside
// an object store. A Session owns the store connection, the catalog of
// known files and every handle opened through it.
package blockfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/blockmap"
	"github.com/mwantia/blockfile/catalog"
	"github.com/mwantia/blockfile/config"
	"github.com/mwantia/blockfile/data"
	"github.com/mwantia/blockfile/log"
)

type Session struct {
	mu sync.Mutex

	store   backend.ObjectStorageBackend
	catalog *catalog.Catalog
	layout  blockmap.Layout
	options *SessionOptions
	log     *log.Logger

	files     map[uuid.UUID]*File
	destroyed bool
}

// New opens store and returns a session on top of it. The catalog is
// loaded on first use.
func New(ctx context.Context, store backend.ObjectStorageBackend, opts ...SessionOption) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store must not be nil", data.ErrInvalid)
	}

	options := newDefaultSessionOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.logger()
	if err := store.Open(ctx); err != nil {
		logger.Error("Failed to open backend '%s': %v", store.Name(), err)
		return nil, fmt.Errorf("%w: open backend '%s': %w", data.ErrConnection, store.Name(), err)
	}

	layout := blockmap.Layout{Separator: options.BlockSeparator}
	s := &Session{
		store:   store,
		catalog: catalog.New(store, options.CatalogKey, layout, logger.Named("catalog")),
		layout:  layout,
		options: options,
		log:     logger,
		files:   make(map[uuid.UUID]*File),
	}

	logger.Info("Opened backend '%s' with namespace '%s'", store.Name(), store.Namespace())
	return s, nil
}

// Init loads the configuration at configPath, connects to clusterName as
// userName and opens a session on poolName. Options given here override
// the configured ones.
func Init(ctx context.Context, clusterName, userName, poolName, configPath string, opts ...SessionOption) (*Session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cluster, err := cfg.Cluster(clusterName)
	if err != nil {
		return nil, err
	}
	user, err := cluster.User(userName)
	if err != nil {
		return nil, err
	}
	if poolName == "" {
		return nil, fmt.Errorf("%w: no pool given for cluster '%s'", data.ErrConfig, clusterName)
	}

	configured, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openBackend(ctx, cluster, user, poolName)
	if err != nil {
		return nil, err
	}

	s, err := New(ctx, store, append(configured, opts...)...)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	return s, nil
}

func optionsFromConfig(cfg *config.Config) ([]SessionOption, error) {
	level, err := log.Parse(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrConfig, err)
	}

	opts := []SessionOption{
		WithLogLevel(level),
		WithLogFile(cfg.Logging.File),
		WithCatalogKey(cfg.Catalog.Key),
		WithBlockSeparator(cfg.Catalog.BlockSeparator),
		WithMaxBlockSize(cfg.Catalog.MaxBlockSize),
	}
	if cfg.Logging.JSON {
		opts = append(opts, WithJSONLog())
	}
	if cfg.Logging.NoTerminal {
		opts = append(opts, WithoutTerminalLog())
	}

	return opts, nil
}

// Destroy closes every handle still open, the backend and the log file.
// Calling it again does nothing.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true

	leaked := make([]*File, 0, len(s.files))
	for _, f := range s.files {
		leaked = append(leaked, f)
	}
	s.mu.Unlock()

	errs := data.Errors{}
	for _, f := range leaked {
		entry := f.Entry()
		s.log.Warn("Closing leaked handle %s of %s '%s'", f.id, entry.Type, entry.Path)
		if err := s.closeFile(ctx, f); err != nil {
			errs.Add(err)
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs.Add(fmt.Errorf("close backend '%s': %w", s.store.Name(), err))
	}
	s.catalog.Unload()

	s.log.Info("Destroyed session on backend '%s'", s.store.Name())
	if s.options.Logger == nil {
		if err := s.log.Close(); err != nil {
			errs.Add(err)
		}
	}

	return errs.Errors()
}

// Flush blocks until the backend acknowledged every write. Backends that
// commit synchronously have nothing to flush.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := backend.Flush(ctx, s.store); err != nil {
		return fmt.Errorf("%w: flush backend '%s': %w", data.ErrIO, s.store.Name(), err)
	}
	return nil
}

// Stat returns the catalog entry of a file, including entries waiting for
// their deletion.
func (s *Session) Stat(ctx context.Context, path string, fileType data.FileType) (data.Entry, error) {
	if err := s.checkOpen(); err != nil {
		return data.Entry{}, err
	}

	result, err := s.catalog.Find(ctx, path, fileType)
	if err != nil {
		return data.Entry{}, err
	}
	if !result.Exists() {
		return data.Entry{}, fmt.Errorf("%w: %s '%s'", result.Err(), fileType, path)
	}

	return result.Entry, nil
}

// List returns every catalog entry ordered by type, then path.
func (s *Session) List(ctx context.Context) ([]data.Entry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	return s.catalog.Entries(ctx)
}

// OpenFiles returns the number of handles not closed yet.
func (s *Session) OpenFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.files)
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return fmt.Errorf("%w: session destroyed", data.ErrClosed)
	}
	return nil
}

func (s *Session) track(f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return fmt.Errorf("%w: session destroyed", data.ErrClosed)
	}

	s.files[f.id] = f
	return nil
}

func (s *Session) untrack(f *File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, f.id)
}
