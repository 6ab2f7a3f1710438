package pipeline

import (
	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkTokens bounds a chunk so extraction passes stay fast
	// on very large documents
	DefaultChunkTokens = 2048
	// DefaultChunkOverlap carries trailing tokens into the next chunk
	// so entities straddling a boundary are still seen whole
	DefaultChunkOverlap = 64
)

// Chunker splits document text into token-bounded chunks with a small
// overlap. Callers chunk very large documents before enqueueing them;
// each chunk then runs through extraction as its own document part.
type Chunker struct {
	maxTokens int
	overlap   int
	encode    func(string) []int
	decode    func([]int) string
}

// NewChunker creates a chunker over the cl100k_base encoding
func NewChunker(maxTokens, overlap int) (*Chunker, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, errors.Wrap(err, "get encoding")
	}
	return newChunkerWithCodec(maxTokens, overlap,
		func(s string) []int { return encoding.Encode(s, nil, nil) },
		encoding.Decode), nil
}

func newChunkerWithCodec(maxTokens, overlap int, encode func(string) []int, decode func([]int) string) *Chunker {
	if maxTokens < 1 {
		maxTokens = DefaultChunkTokens
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = 0
	}
	return &Chunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		encode:    encode,
		decode:    decode,
	}
}

// Split breaks content into chunks of at most maxTokens tokens,
// overlapping by the configured amount. Short content comes back as a
// single chunk.
func (c *Chunker) Split(content string) []string {
	if content == "" {
		return nil
	}

	tokens := c.encode(content)
	if len(tokens) <= c.maxTokens {
		return []string{content}
	}

	chunks := make([]string, 0, len(tokens)/c.maxTokens+1)
	var current []int
	for i := 0; i < len(tokens); i++ {
		current = append(current, tokens[i])

		if len(current) >= c.maxTokens {
			chunks = append(chunks, c.decode(current))
			if c.overlap > 0 && len(current) > c.overlap {
				current = append([]int(nil), current[len(current)-c.overlap:]...)
			} else {
				current = nil
			}
		}
	}
	// A tail holding only the carried overlap would duplicate the last
	// chunk's ending, so it must have grown past the overlap to count
	if len(current) > c.overlap {
		chunks = append(chunks, c.decode(current))
	}

	return chunks
}

// CountTokens reports how many tokens the content encodes to
func (c *Chunker) CountTokens(content string) int {
	return len(c.encode(content))
}
