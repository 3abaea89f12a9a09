package data

import "time"

// ObjectStat describes a single object held by an object storage backend.
type ObjectStat struct {
	// Key relative to the backend namespace
	Key string `json:"key"`
	// Size in bytes
	Size int64 `json:"size"`

	ModifyTime time.Time `json:"modify_time"`

	ETag string `json:"etag,omitempty"`
}
