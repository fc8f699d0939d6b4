// Package chunker splits document text into overlapping token windows.
//
// A token is a maximal run of non-whitespace characters. Windows hold at most
// WindowSize tokens and consecutive windows share exactly Overlap tokens.
// Window text is sliced from the original, so whitespace inside a window is
// preserved.
package chunker

import (
	"fmt"
	"iter"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// DefaultWindowSize is the default number of tokens per window.
const DefaultWindowSize = 256

// DefaultOverlap is the default number of tokens shared by neighbouring windows.
const DefaultOverlap = 32

// chunkNamespace scopes name-based chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://webrage.local/chunk"))

// Chunker produces token windows. It is stateless and safe for concurrent use.
type Chunker struct {
	windowSize int
	overlap    int
}

// New validates the window configuration.
// Fails with domain.ErrInvalidWindowConfig unless 0 <= overlap < windowSize.
func New(windowSize, overlap int) (*Chunker, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size %d must be positive: %w", windowSize, domain.ErrInvalidWindowConfig)
	}
	if overlap < 0 || overlap >= windowSize {
		return nil, fmt.Errorf("overlap %d must be in [0, %d): %w", overlap, windowSize, domain.ErrInvalidWindowConfig)
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}, nil
}

// WindowSize returns the maximum tokens per window.
func (c *Chunker) WindowSize() int { return c.windowSize }

// Overlap returns the tokens shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split lazily yields the windows of text in order.
// Identical input always yields identical windows. Text with no tokens yields nothing.
func (c *Chunker) Split(text string) iter.Seq[domain.ChunkWindow] {
	return func(yield func(domain.ChunkWindow) bool) {
		spans := tokenize(text)
		n := len(spans)
		if n == 0 {
			return
		}

		step := c.windowSize - c.overlap
		for seq, start := 0, 0; ; seq, start = seq+1, start+step {
			end := min(start+c.windowSize, n)
			w := domain.ChunkWindow{
				SequenceIndex: seq,
				Text:          text[spans[start].from:spans[end-1].to],
				TokenStart:    start,
				TokenEnd:      end,
			}
			if !yield(w) || end == n {
				return
			}
		}
	}
}

// Split is a convenience wrapper that validates the configuration and splits.
func Split(text string, windowSize, overlap int) (iter.Seq[domain.ChunkWindow], error) {
	c, err := New(windowSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// ChunkID returns the stable identifier of a document's window.
// The same document and position always yield the same ID.
func ChunkID(documentID string, sequenceIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"#"+strconv.Itoa(sequenceIndex))).String()
}

// CountTokens returns the number of tokens in text.
func CountTokens(text string) int {
	return len(tokenize(text))
}

type span struct {
	from, to int
}

// tokenize returns the byte spans of whitespace-separated tokens.
func tokenize(text string) []span {
	var spans []span
	start := -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, span{start, i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
		i += size
	}
	if start >= 0 {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}
