// Package chunk splits documents into sentence-aligned chunks suitable
// for keyword and vector indexing.
package chunk

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jacc-ai/jacc-core/internal/store"
)

// SentenceChunker accumulates whole sentences into chunks up to a byte
// limit. Sentences are never split across two chunks unless a single
// sentence alone exceeds the limit, in which case it is hard-wrapped.
type SentenceChunker struct {
	maxChars int
	splitter *regexp.Regexp
}

// NewSentenceChunker creates a chunker with the given chunk size limit.
func NewSentenceChunker(maxChars int) *SentenceChunker {
	if maxChars <= 0 {
		maxChars = store.MaxChunkContent
	}
	return &SentenceChunker{
		maxChars: maxChars,
		splitter: regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n]+|[^.!?\n]+$)`),
	}
}

// Document is the chunker input: one loaded file.
type Document struct {
	ID           string
	Name         string
	OriginalName string
	MimeType     string
	Content      string
}

// Chunk splits the document. Chunk indexes are strictly increasing from
// zero and StartChar/EndChar point back into the original content.
func (c *SentenceChunker) Chunk(doc Document) []store.DocumentChunk {
	spans := c.splitter.FindAllStringIndex(doc.Content, -1)
	now := time.Now().UTC()

	var chunks []store.DocumentChunk
	appendChunk := func(start, end int) {
		content := strings.TrimSpace(doc.Content[start:end])
		if content == "" {
			return
		}
		chunks = append(chunks, store.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Content:    content,
			ChunkIndex: len(chunks),
			Metadata: store.ChunkMetadata{
				DocumentName: doc.Name,
				OriginalName: doc.OriginalName,
				MimeType:     doc.MimeType,
				StartChar:    start,
				EndChar:      end,
			},
			CreatedAt: now,
		})
	}

	curStart := -1
	curEnd := 0
	flush := func() {
		if curStart >= 0 {
			appendChunk(curStart, curEnd)
			curStart = -1
		}
	}

	for _, span := range spans {
		start, end := span[0], span[1]
		if strings.TrimSpace(doc.Content[start:end]) == "" {
			continue
		}

		// An oversized sentence gets its own hard-wrapped chunks. Wrap
		// points back off to a rune boundary so multi-byte characters
		// are never split across chunks.
		if end-start > c.maxChars {
			flush()
			for s := start; s < end; {
				e := min(s+c.maxChars, end)
				for e > s && e < end && !utf8.RuneStart(doc.Content[e]) {
					e--
				}
				if e == s {
					_, n := utf8.DecodeRuneInString(doc.Content[s:end])
					e = s + n
				}
				appendChunk(s, e)
				s = e
			}
			continue
		}

		if curStart >= 0 && end-curStart > c.maxChars {
			flush()
		}
		if curStart < 0 {
			curStart = start
		}
		curEnd = end
	}
	flush()

	return chunks
}
