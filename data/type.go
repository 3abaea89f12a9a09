package data

import "fmt"

// FileType identifies the kind of logical file an entry describes.
// The numeric values are part of the persisted catalog format.
type FileType int

const (
	FileTypeUnknown   FileType = iota // Never valid for a stored entry
	FileTypeFile                      // Regular file
	FileTypeDirectory                 // Directory
	FileTypeSymlink                   // Symbolic link
)

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Valid reports whether t may be stored in the catalog.
func (t FileType) Valid() bool {
	return t >= FileTypeFile && t <= FileTypeSymlink
}
