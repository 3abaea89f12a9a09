package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mwantia/blockfile/data"
)

// record is the persisted form of a single entry. Pointer fields detect
// missing members while decoding.
type record struct {
	Path      *string `json:"path"`
	Type      *int    `json:"type"`
	BlockSize *uint32 `json:"block_size"`
	Size      *uint64 `json:"size"`
	Deleted   *int    `json:"deleted"`
}

// Encode serializes entries as a compact JSON array ordered by type, then path.
func Encode(entries []data.Entry) ([]byte, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b data.Entry) int {
		if a.Type != b.Type {
			return int(a.Type) - int(b.Type)
		}
		return strings.Compare(a.Path, b.Path)
	})

	records := make([]record, 0, len(sorted))
	for _, entry := range sorted {
		fileType := int(entry.Type)
		deleted := 0
		if entry.Deleted {
			deleted = 1
		}

		records = append(records, record{
			Path:      &entry.Path,
			Type:      &fileType,
			BlockSize: &entry.BlockSize,
			Size:      &entry.Size,
			Deleted:   &deleted,
		})
	}

	return json.Marshal(records)
}

// Decode parses a persisted catalog. Any structural problem is reported as
// a *data.CorruptError. Decoded entries have a zero ref count.
func Decode(raw []byte) ([]data.Entry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, corrupt("document is not an array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, corrupt("malformed array: %v", err)
	}

	entries := make([]data.Entry, 0, len(items))
	seen := make(map[data.EntryKey]struct{}, len(items))

	for i, item := range items {
		entry, err := decodeRecord(i, item)
		if err != nil {
			return nil, err
		}

		key := entry.Key()
		if _, exists := seen[key]; exists {
			return nil, corrupt("record %d: duplicate %s '%s'", i, entry.Type, entry.Path)
		}
		seen[key] = struct{}{}

		entries = append(entries, entry)
	}

	return entries, nil
}

func decodeRecord(index int, item json.RawMessage) (data.Entry, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return data.Entry{}, corrupt("record %d is not an object", index)
	}

	var rec record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return data.Entry{}, corrupt("record %d: %v", index, err)
	}

	switch {
	case rec.Path == nil:
		return data.Entry{}, corrupt("record %d: missing 'path'", index)
	case rec.Type == nil:
		return data.Entry{}, corrupt("record %d: missing 'type'", index)
	case rec.BlockSize == nil:
		return data.Entry{}, corrupt("record %d: missing 'block_size'", index)
	case rec.Size == nil:
		return data.Entry{}, corrupt("record %d: missing 'size'", index)
	case rec.Deleted == nil:
		return data.Entry{}, corrupt("record %d: missing 'deleted'", index)
	}

	fileType := data.FileType(*rec.Type)
	switch {
	case *rec.Path == "":
		return data.Entry{}, corrupt("record %d: empty 'path'", index)
	case !fileType.Valid():
		return data.Entry{}, corrupt("record %d: invalid 'type' %d", index, *rec.Type)
	case *rec.BlockSize == 0:
		return data.Entry{}, corrupt("record %d: zero 'block_size'", index)
	case *rec.Deleted != 0 && *rec.Deleted != 1:
		return data.Entry{}, corrupt("record %d: invalid 'deleted' %d", index, *rec.Deleted)
	}

	return data.Entry{
		Path:      *rec.Path,
		Type:      fileType,
		BlockSize: *rec.BlockSize,
		Size:      *rec.Size,
		Deleted:   *rec.Deleted == 1,
	}, nil
}

func corrupt(format string, args ...any) error {
	return &data.CorruptError{Reason: fmt.Sprintf(format, args...)}
}
