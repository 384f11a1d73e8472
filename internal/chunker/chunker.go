// Package chunker splits document text into overlapping word-count windows
// and attributes each window to the PDF page most of its words came from.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrInvalidSize is returned by New when the window size is not positive.
var ErrInvalidSize = errors.New("chunker: chunk size must be positive")

// ErrInvalidOverlap is returned by New when the overlap is negative or not
// strictly smaller than the window size. Such a configuration would never
// advance the window start.
var ErrInvalidOverlap = errors.New("chunker: chunk overlap must be in [0, chunk size)")

// Window is a single contiguous run of words produced by a Chunker.
type Window struct {
	// Index is the zero-based position of the window in the sequence.
	Index int
	// Start is the index of the window's first word in the source text.
	Start int
	// Words is the number of words in the window. The last window may hold
	// fewer than the configured size.
	Words int
	// Text is the window's words joined by single spaces.
	Text string
}

// Chunker produces overlapping word windows of a fixed size.
type Chunker struct {
	// size is the maximum number of words per window.
	size int
	// overlap is the number of words shared by consecutive windows.
	overlap int
}

// New constructs a Chunker. size must be positive and overlap must satisfy
// 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Step returns the distance in words between the starts of consecutive windows.
func (c *Chunker) Step() int { return c.size - c.overlap }

// Windows returns a lazy sequence of windows over text. Words are split on
// any whitespace. Each range over the returned sequence starts from the first
// window again.
func (c *Chunker) Windows(text string) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		words := strings.Fields(text)
		step := c.Step()
		for i, start := 0, 0; start < len(words); i, start = i+1, start+step {
			end := min(start+c.size, len(words))
			w := Window{
				Index: i,
				Start: start,
				Words: end - start,
				Text:  strings.Join(words[start:end], " "),
			}
			if !yield(w) {
				return
			}
		}
	}
}

// Split collects every window of text into a slice.
func (c *Chunker) Split(text string) []Window {
	var out []Window
	for w := range c.Windows(text) {
		out = append(out, w)
	}
	return out
}
