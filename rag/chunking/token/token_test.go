package token

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetpotato0/docqa/rag/document"
)

func TestChunkWindowsWithOverlap(t *testing.T) {
	c, err := New("cl100k_base", WithMaxTokens(16), WithOverlapTokens(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc := document.Document{
		Content:  strings.Repeat("token chunking keeps windows under the model limit. ", 10),
		SourceID: "long.txt",
	}
	chunks, err := c.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := c.CountTokens(ch.Content); n > 16 {
			t.Fatalf("chunk %d has %d tokens, limit is 16", i, n)
		}
		if ch.Ordinal != i+1 || ch.SourceID != "long.txt" || ch.DocumentID == "" {
			t.Fatalf("chunk %d metadata wrong: %+v", i, ch)
		}
	}
}

func TestChunkShortDocument(t *testing.T) {
	c, err := New("cl100k_base")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chunks, err := c.Chunk(context.Background(), document.Document{Content: "tiny"})
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "tiny" {
		t.Fatalf("expected a single pass-through chunk, got %v", chunks)
	}
}

func TestNewUnknownEncoding(t *testing.T) {
	if _, err := New("no-such-encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestModelNameResolves(t *testing.T) {
	if _, err := New("gpt-4o-mini"); err != nil {
		t.Fatalf("model name should resolve to an encoding: %v", err)
	}
}
