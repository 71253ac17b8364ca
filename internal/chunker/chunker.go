// Package chunker splits document text into overlapping chunks for
// embedding. Splitting is deterministic: the same input always yields the
// same chunks.
package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize indicates a non-positive chunk size.
	ErrInvalidSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap indicates an overlap outside [0, size).
	ErrInvalidOverlap = errors.New("invalid chunk overlap")
)

// separators are tried in priority order when looking for a cut point:
// paragraph break, line break, sentence end, word boundary.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// Splitter produces overlapping chunks of at most size runes, with each
// chunk after the first sharing its leading overlap runes with the tail of
// the previous chunk.
type Splitter struct {
	size    int
	overlap int
}

// New creates a Splitter. size must be positive and overlap must be at most
// size/2 so that every chunk makes forward progress past its overlap.
func New(size, overlap int) (*Splitter, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size/2+1 {
		return nil, fmt.Errorf("%w: %d (size %d)", ErrInvalidOverlap, overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split splits text into chunks. Empty input yields no chunks. Operates on
// runes so multi-byte characters are never split.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end = s.cut(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))
		start = end - s.overlap
	}
	return chunks
}

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// cut finds the rune index to end the current chunk at. It scans the second
// half of the window backward for the highest-priority separator, keeping
// the separator inside the current chunk. Falls back to a hard cut at end.
func (s *Splitter) cut(runes []rune, start, end int) int {
	floor := start + s.size/2
	for _, sep := range separators {
		if p := lastSeparator(runes, floor, end, sep); p >= 0 {
			return p
		}
	}
	return end
}

// lastSeparator returns the index just past the last occurrence of sep that
// fits entirely within [floor, end), or -1 when absent.
func lastSeparator(runes []rune, floor, end int, sep []rune) int {
	for i := end - len(sep); i >= floor; i-- {
		match := true
		for j, r := range sep {
			if runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i + len(sep)
		}
	}
	return -1
}
