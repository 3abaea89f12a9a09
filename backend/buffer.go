package backend

// ReadAt copies value[offset:] into buf and returns the number of bytes
// copied. Offsets at or beyond the end yield zero.
func ReadAt(value []byte, offset int64, buf []byte) int {
	if offset >= int64(len(value)) {
		return 0
	}
	return copy(buf, value[offset:])
}

// WriteAt returns value with buf written at offset, growing and
// zero-filling as needed. The result may alias value.
func WriteAt(value []byte, offset int64, buf []byte) []byte {
	end := offset + int64(len(buf))
	if end > int64(len(value)) {
		grown := make([]byte, end)
		copy(grown, value)
		value = grown
	}
	copy(value[offset:], buf)
	return value
}
