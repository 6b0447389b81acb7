package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the target maximum word count per passage
	DefaultChunkSize = 2000

	// DefaultOverlap is the word overlap between hard-split windows
	DefaultOverlap = 400

	// DefaultMaxDepth bounds the recursive splitting depth. It is a depth
	// budget only; it does not cap the number of passages produced.
	DefaultMaxDepth = 50
)

// Chunker splits normalized document text into passages bounded by a
// target word count.
type Chunker struct {
	size     int
	overlap  int
	maxDepth int
}

// New creates a Chunker with the given target size and overlap.
// Non-positive values fall back to the defaults.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap <= 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{
		size:     size,
		overlap:  overlap,
		maxDepth: DefaultMaxDepth,
	}
}

// Normalize collapses consecutive whitespace to single spaces and strips
// non-printable runes. Empty input returns empty output.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, field := range strings.Fields(text) {
		for _, r := range field {
			if unicode.IsPrint(r) {
				b.WriteRune(r)
			}
		}
		b.WriteByte(' ')
	}
	return strings.TrimSuffix(b.String(), " ")
}

// Chunk normalizes text and splits it into passages of at most the target
// word count. The whole result materializes before returning; empty text
// yields no passages and no error. Cancellation is checked at every
// recursion step and section iteration; on cancellation the error is
// returned and no partial result is produced.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]string, error) {
	text = Normalize(text)
	if text == "" {
		return nil, nil
	}

	chunks, err := c.split(ctx, text, 0)
	if err != nil {
		return nil, err
	}

	// Hard bound: slice any passage still over the target into overlapping
	// fixed-size windows so no passage exceeds the limit.
	final := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chunking cancelled: %w", err)
		}
		words := strings.Fields(chunk)
		if len(words) <= c.size {
			if strings.TrimSpace(chunk) != "" {
				final = append(final, chunk)
			}
			continue
		}
		stride := c.size - c.overlap
		for i := 0; i < len(words); i += stride {
			end := i + c.size
			if end > len(words) {
				end = len(words)
			}
			window := strings.Join(words[i:end], " ")
			if window != "" {
				final = append(final, window)
			}
		}
	}
	return final, nil
}

// split recursively divides text at paragraph boundaries, falling back to
// sentence boundaries, accumulating consecutive sections greedily up to
// the target size.
func (c *Chunker) split(ctx context.Context, text string, depth int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("chunking cancelled: %w", err)
	}
	if text == "" {
		return nil, nil
	}

	words := strings.Fields(text)
	if len(words) <= c.size || depth >= c.maxDepth {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []string{text}, nil
	}

	sep := "\n\n"
	sections := strings.Split(text, sep)
	if len(sections) == 1 {
		sep = ". "
		sections = strings.Split(text, sep)
	}
	if len(sections) == 1 {
		// No split point exists; emit as-is and let the overlap-window
		// pass enforce the hard bound.
		return []string{text}, nil
	}

	var chunks []string
	var group []string
	groupSize := 0

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		candidate := strings.Join(group, sep)
		group = nil
		groupSize = 0
		if len(strings.Fields(candidate)) > c.size {
			sub, err := c.split(ctx, candidate, depth+1)
			if err != nil {
				return err
			}
			chunks = append(chunks, sub...)
			return nil
		}
		chunks = append(chunks, candidate)
		return nil
	}

	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("chunking cancelled: %w", err)
		}
		sectionWords := len(strings.Fields(section))
		if groupSize+sectionWords <= c.size {
			group = append(group, section)
			groupSize += sectionWords
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		group = append(group, section)
		groupSize = sectionWords
	}
	if err := flush(); err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			out = append(out, chunk)
		}
	}
	return out, nil
}
