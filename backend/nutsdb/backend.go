package nutsdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
	"github.com/nutsdb/nutsdb"
)

// Entries must fit into a single data segment
const maxValueSize = 64 * 1024 * 1024

// NutsDBBackend stores every namespace as its own B-tree bucket of an
// embedded NutsDB database.
type NutsDBBackend struct {
	mu sync.RWMutex
	db *nutsdb.DB

	bucket string
}

// NutsDBBackendConfig contains options decoded from a cluster definition.
type NutsDBBackendConfig struct {
	// Dir is the database directory
	Dir string `mapstructure:"dir"`
	// SyncEnable fsyncs every transaction commit
	SyncEnable bool `mapstructure:"sync_enable"`
}

func NewNutsDBBackend(config *NutsDBBackendConfig, namespace string) (*NutsDBBackend, error) {
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("%w: nutsdb dir is required", data.ErrConfig)
	}

	bucket := namespace
	if bucket == "" {
		bucket = "default"
	}

	opt := nutsdb.DefaultOptions
	opt.Dir = config.Dir
	opt.SyncEnable = config.SyncEnable

	db, err := nutsdb.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open nutsdb: %w", data.ErrConnection, err)
	}

	if err := db.Update(func(tx *nutsdb.Tx) error {
		return tx.NewBucket(nutsdb.DataStructureBTree, bucket)
	}); err != nil && !errors.Is(err, nutsdb.ErrBucketAlreadyExist) {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create bucket '%s': %w", data.ErrConnection, bucket, err)
	}

	return &NutsDBBackend{
		db:     db,
		bucket: bucket,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*NutsDBBackend) Name() string {
	return "nutsdb"
}

// Namespace returns the bucket all keys are scoped to.
func (nb *NutsDBBackend) Namespace() string {
	return nb.bucket
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (nb *NutsDBBackend) Open(ctx context.Context) error {
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (nb *NutsDBBackend) Close(ctx context.Context) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	return nb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (nb *NutsDBBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityPartialWrite,
		},
		MaxObjectSize: maxValueSize,
	}
}
