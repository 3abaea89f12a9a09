// Package blockmap translates byte ranges of a logical file into the
// fixed-size block objects that hold them.
package blockmap

import "iter"

// Chunk is the part of a byte range that falls into a single block.
type Chunk struct {
	// BlockStart is the logical offset the block begins at and a
	// multiple of the block size.
	BlockStart int64
	// Offset is the position inside the block.
	Offset int64
	// Length is the number of bytes of this chunk.
	Length int64
}

// End returns the logical offset right after the chunk.
func (c Chunk) End() int64 {
	return c.BlockStart + c.Offset + c.Length
}

// MapRange yields the chunks covering [offset, offset+length) in ascending
// order. Chunks are contiguous and their lengths sum to length. A zero
// length yields nothing.
func MapRange(blockSize uint32, offset, length int64) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if blockSize == 0 || length <= 0 || offset < 0 {
			return
		}

		size := int64(blockSize)
		for length > 0 {
			start := offset - offset%size
			inner := offset - start
			n := min(size-inner, length)

			if !yield(Chunk{BlockStart: start, Offset: inner, Length: n}) {
				return
			}

			offset += n
			length -= n
		}
	}
}

// Chunks collects MapRange into a slice.
func Chunks(blockSize uint32, offset, length int64) []Chunk {
	var chunks []Chunk
	for chunk := range MapRange(blockSize, offset, length) {
		chunks = append(chunks, chunk)
	}
	return chunks
}
