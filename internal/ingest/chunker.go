// Package ingest turns source files into embedded chunks in the store.
//
// The pipeline per file is: read, split into paragraph-aligned chunks, embed
// the chunks in batches, then atomically replace every chunk of that source.
// Re-ingesting a file is therefore idempotent.
package ingest

import "strings"

const (
	// MaxChunkSize is the soft upper bound on chunk length in bytes.
	// Paragraphs are packed greedily up to this size; a single paragraph
	// longer than this becomes its own oversized chunk rather than being
	// split mid-sentence.
	MaxChunkSize = 1500

	// MinChunkSize drops fragments too short to carry retrievable meaning,
	// such as lone headings or stray separators.
	MinChunkSize = 100
)

// SplitText splits text into chunks along paragraph boundaries. Paragraphs
// (blank-line separated) are packed into chunks of at most MaxChunkSize
// bytes and rejoined with a blank line; chunks shorter than MinChunkSize are
// discarded. Returns nil when the text yields no usable chunk.
func SplitText(text string) []string {
	var chunks []string
	var current string

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current != "" && len(current)+len(para) > MaxChunkSize {
			if len(current) >= MinChunkSize {
				chunks = append(chunks, current)
			}
			current = ""
		}

		if current == "" {
			current = para
		} else {
			current += "\n\n" + para
		}
	}

	if len(current) >= MinChunkSize {
		chunks = append(chunks, current)
	}
	return chunks
}
