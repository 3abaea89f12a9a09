package data

// LookupStatus tags the outcome of a catalog lookup.
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupFoundButDeleted
	LookupCorrupt
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupFoundButDeleted:
		return "found-but-deleted"
	case LookupCorrupt:
		return "corrupt"
	default:
		return "not-found"
	}
}

// LookupResult is returned by catalog lookups. Entry is a copy and only
// meaningful for Found and FoundButDeleted; Reason only for Corrupt.
type LookupResult struct {
	Status LookupStatus
	Entry  Entry
	Reason string
}

func Found(entry Entry) LookupResult {
	if entry.Deleted {
		return LookupResult{Status: LookupFoundButDeleted, Entry: entry}
	}
	return LookupResult{Status: LookupFound, Entry: entry}
}

func NotFound() LookupResult {
	return LookupResult{Status: LookupNotFound}
}

func Corrupt(reason string) LookupResult {
	return LookupResult{Status: LookupCorrupt, Reason: reason}
}

// Exists reports whether an entry is present, deleted or not.
func (r LookupResult) Exists() bool {
	return r.Status == LookupFound || r.Status == LookupFoundButDeleted
}

// Err converts the result into the error an open call should return.
// Found yields nil.
func (r LookupResult) Err() error {
	switch r.Status {
	case LookupFound:
		return nil
	case LookupCorrupt:
		return &CorruptError{Reason: r.Reason}
	default:
		return ErrNotExist
	}
}
