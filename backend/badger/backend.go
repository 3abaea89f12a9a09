package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// Stay well below the value log file size badger accepts for a single entry
const maxValueSize = 256 * 1024 * 1024

// BadgerBackend stores objects in an embedded BadgerDB. Writes are only
// durable on disk after Flush unless SyncWrites is enabled.
type BadgerBackend struct {
	mu sync.RWMutex
	db *badger.DB

	namespace string
}

// BadgerBackendConfig contains options decoded from a cluster definition.
type BadgerBackendConfig struct {
	// Path of the database directory; empty runs badger in-memory
	Path string `mapstructure:"path"`
	// SyncWrites fsyncs every transaction commit
	SyncWrites bool `mapstructure:"sync_writes"`
}

func NewBadgerBackend(config *BadgerBackendConfig, namespace string) (*BadgerBackend, error) {
	if config == nil {
		config = &BadgerBackendConfig{}
	}

	var opts badger.Options
	if config.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.Path)
	}
	opts = opts.
		WithSyncWrites(config.SyncWrites).
		WithLoggingLevel(badger.WARNING) // Reduce log noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database: %w", data.ErrConnection, err)
	}

	return &BadgerBackend{
		db:        db,
		namespace: namespace,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*BadgerBackend) Name() string {
	return "badger"
}

// Namespace returns the namespace all keys are scoped to.
func (bb *BadgerBackend) Namespace() string {
	return bb.namespace
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (bb *BadgerBackend) Open(ctx context.Context) error {
	if bb.db.IsClosed() {
		return fmt.Errorf("%w: badger database is closed", data.ErrConnection)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (bb *BadgerBackend) Close(ctx context.Context) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()

	return bb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (bb *BadgerBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityPartialWrite,
			backend.CapabilityFlush,
		},
		MaxObjectSize: maxValueSize,
	}
}

func (bb *BadgerBackend) key(key string) []byte {
	return []byte(backend.NamespacedKey(bb.namespace, key))
}
