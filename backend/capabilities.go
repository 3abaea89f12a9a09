package backend

import "slices"

// BackendCapability represents a capability that a backend can provide
type BackendCapability string

const (
	// Core capability by backend
	CapabilityObjectStorage BackendCapability = "object_storage"

	// Extension capabilities per 'object-storage' backend
	CapabilityNamespace    BackendCapability = "namespace"
	CapabilityRangeRead    BackendCapability = "range_read"
	CapabilityPartialWrite BackendCapability = "partial_write"
	CapabilityFlush        BackendCapability = "flush"
)

// BackendCapabilities describes what a backend supports
type BackendCapabilities struct {
	Capabilities []BackendCapability `json:"capabilities"`
	// MaxObjectSize limits a single object; zero means unlimited
	MaxObjectSize int64 `json:"max_object_size"`
}

// Contains checks if a capability is supported
func (bc *BackendCapabilities) Contains(cap BackendCapability) bool {
	return slices.Contains(bc.Capabilities, cap)
}

// Fits reports whether an object of the given size can be stored.
func (bc *BackendCapabilities) Fits(size int64) bool {
	return bc.MaxObjectSize <= 0 || size <= bc.MaxObjectSize
}
