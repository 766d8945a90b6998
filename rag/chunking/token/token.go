package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sweetpotato0/docqa/rag/document"
)

// Chunker splits documents by token windows using a tiktoken encoding, so
// chunk sizes line up with what embedding and chat models actually count.
type Chunker struct {
	enc           *tiktoken.Tiktoken
	maxTokens     int
	overlapTokens int
}

// Option customises the token chunker.
type Option func(*Chunker)

// WithMaxTokens sets the maximum allowed tokens per chunk (default 256).
func WithMaxTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens > 0 {
			c.maxTokens = tokens
		}
	}
}

// WithOverlapTokens sets how many tokens are shared between consecutive chunks.
func WithOverlapTokens(tokens int) Option {
	return func(c *Chunker) {
		if tokens >= 0 {
			c.overlapTokens = tokens
		}
	}
}

// New creates a token-aware chunker. The encoding name may be a model name
// (e.g. "gpt-4o-mini") or an encoding name (e.g. "cl100k_base").
func New(encoding string, opts ...Option) (*Chunker, error) {
	enc, err := tiktoken.EncodingForModel(encoding)
	if err != nil {
		enc, err = tiktoken.GetEncoding(encoding)
		if err != nil {
			return nil, fmt.Errorf("resolve encoding %q: %w", encoding, err)
		}
	}
	ch := &Chunker{
		enc:           enc,
		maxTokens:     256,
		overlapTokens: 32,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.overlapTokens >= ch.maxTokens {
		ch.overlapTokens = ch.maxTokens / 4
	}
	return ch, nil
}

// Chunk implements chunking.Chunker.
func (c *Chunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	ids := c.enc.Encode(doc.Content, nil, nil)
	if len(ids) == 0 {
		return []document.Chunk{{
			ID:         document.NextChunkID(doc.ID),
			DocumentID: doc.ID,
			Content:    doc.Content,
			SourceID:   doc.SourceID,
			Ordinal:    1,
		}}, nil
	}

	var chunks []document.Chunk
	start := 0
	ordinal := 0
	for start < len(ids) {
		end := start + c.maxTokens
		if end > len(ids) {
			end = len(ids)
		}
		ordinal++
		chunks = append(chunks, document.Chunk{
			ID:         document.NextChunkID(doc.ID),
			DocumentID: doc.ID,
			Content:    strings.TrimSpace(c.enc.Decode(ids[start:end])),
			SourceID:   doc.SourceID,
			Ordinal:    ordinal,
		})
		if end == len(ids) {
			break
		}
		start = end - c.overlapTokens
	}

	return chunks, nil
}

// CountTokens returns the token count of the given text under this encoding.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
