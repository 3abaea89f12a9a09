package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mwantia/blockfile/backend"
	"github.com/mwantia/blockfile/data"
)

// LocalBackend stores each object as a single file below <path>/<namespace>.
// Keys are path-escaped so that every object lives in one flat directory.
type LocalBackend struct {
	mu sync.RWMutex

	path      string
	namespace string
	// dirty holds keys written through WriteObject since the last Flush
	dirty map[string]struct{}
}

func NewLocalBackend(path, namespace string) *LocalBackend {
	return &LocalBackend{
		path:      filepath.Clean(path),
		namespace: namespace,
		dirty:     make(map[string]struct{}),
	}
}

// Name returns the identifier name defined for this backend
func (*LocalBackend) Name() string {
	return "local"
}

// Namespace returns the namespace all keys are scoped to.
func (lb *LocalBackend) Namespace() string {
	return lb.namespace
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (lb *LocalBackend) Open(ctx context.Context) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Verify the root directory exists
	info, err := os.Stat(lb.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: root '%s' does not exist", data.ErrConnection, lb.path)
		}
		return fmt.Errorf("%w: %w", data.ErrConnection, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: root '%s' is not a directory", data.ErrConnection, lb.path)
	}

	if err := os.MkdirAll(lb.root(), 0755); err != nil {
		return fmt.Errorf("%w: %w", data.ErrConnection, err)
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (lb *LocalBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (lb *LocalBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityRangeRead,
			backend.CapabilityPartialWrite,
			backend.CapabilityFlush,
		},
		MaxObjectSize: 10737418240, // 10 GB
	}
}

func (lb *LocalBackend) root() string {
	if lb.namespace == "" {
		return lb.path
	}
	return filepath.Join(lb.path, escapeName(lb.namespace))
}

// resolvePath maps an object key onto its file below the namespace root.
func (lb *LocalBackend) resolvePath(key string) string {
	return filepath.Join(lb.root(), escapeName(key))
}

// escapeName turns a key into a single file name. A leading dot is escaped
// so that "." and ".." stay inside the directory and keys never collide
// with temporary files.
func escapeName(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}
