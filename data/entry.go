package data

import "fmt"

// Entry is the catalog record for one (path, type) pair.
// The wire format is owned by the catalog codec.
type Entry struct {
	// Path is the logical file path, e.g. "sbtest/sbtest1.ibd".
	Path string
	// Type together with Path forms the identity of the entry.
	Type FileType
	// BlockSize is fixed at creation and never zero.
	BlockSize uint32
	// Size is the logical byte length, extended by writes past the end.
	Size uint64
	// Deleted marks an entry whose deletion waits for its last reference.
	Deleted bool

	// RefCount is the number of open handles. Never persisted.
	RefCount int
}

// NewEntry returns an unreferenced, empty entry.
func NewEntry(path string, fileType FileType, blockSize uint32) Entry {
	return Entry{
		Path:      path,
		Type:      fileType,
		BlockSize: blockSize,
	}
}

// Key returns the ordered identity key of the entry.
func (e Entry) Key() EntryKey {
	return NewEntryKey(e.Path, e.Type)
}

// EntryKey orders entries by type first, then by path.
type EntryKey string

func NewEntryKey(path string, fileType FileType) EntryKey {
	return EntryKey(fmt.Sprintf("%d:%s", int(fileType), path))
}

// SamePersisted reports whether both entries would serialize identically.
func (e Entry) SamePersisted(other Entry) bool {
	return e.Path == other.Path &&
		e.Type == other.Type &&
		e.BlockSize == other.BlockSize &&
		e.Size == other.Size &&
		e.Deleted == other.Deleted
}

func (e Entry) String() string {
	return fmt.Sprintf("%s '%s' (block_size=%d, size=%d, deleted=%t, refs=%d)",
		e.Type, e.Path, e.BlockSize, e.Size, e.Deleted, e.RefCount)
}
