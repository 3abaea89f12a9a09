package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/blockfile/backend"
	"github.com/tidwall/btree"
)

type object struct {
	data       []byte
	modifyTime time.Time
}

// MemoryBackend keeps every object of a namespace in an ordered in-memory
// B-tree. Contents are lost on Close.
type MemoryBackend struct {
	mu sync.RWMutex

	namespace string
	objects   *btree.Map[string, *object]
}

func NewMemoryBackend(namespace string) *MemoryBackend {
	return &MemoryBackend{
		namespace: namespace,
		objects:   btree.NewMap[string, *object](0),
	}
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Namespace returns the namespace all keys are scoped to.
func (mb *MemoryBackend) Namespace() string {
	return mb.namespace
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.objects.Clear()
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityNamespace,
			backend.CapabilityRangeRead,
			backend.CapabilityPartialWrite,
		},
	}
}

// Keys returns all object keys of the namespace in order.
func (mb *MemoryBackend) Keys() []string {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	prefix := backend.NamespacedKey(mb.namespace, "")
	keys := make([]string, 0, mb.objects.Len())
	mb.objects.Ascend(prefix, func(key string, _ *object) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key[len(prefix):])
		return true
	})
	return keys
}
