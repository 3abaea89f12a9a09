package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend stores objects as rows of a single table. The namespace is
// part of the primary key, so several pools can share one database file.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	namespace string
}

// NewSQLiteBackend creates a new SQLite-backed object store.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath, namespace string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrConnection, err)
	}

	// A private in-memory database only exists on its own connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", data.ErrConnection, err)
	}

	backend := &SQLiteBackend{
		db:        db,
		namespace: namespace,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", data.ErrConnection, err)
	}

	return backend, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blockfile_objects (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		content BLOB NOT NULL,
		modify_time INTEGER NOT NULL,
		PRIMARY KEY (namespace, key)
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Namespace returns the namespace all keys are scoped to.
func (sb *SQLiteBackend) Namespace() string {
	return sb.namespace
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	if err := sb.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", data.ErrConnection, err)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityRangeRead,
			backend.CapabilityPartialWrite,
		},
		MaxObjectSize: 1000000000, // SQLITE_MAX_LENGTH
	}
}
