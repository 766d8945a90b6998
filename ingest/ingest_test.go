package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweetpotato0/docqa/contrib/docstore"
	inmemvec "github.com/sweetpotato0/docqa/contrib/vector/inmemory"
	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/rag/chunking"
	"github.com/sweetpotato0/docqa/rag/document"
	"github.com/sweetpotato0/docqa/rag/retrieval"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 2 }

func newPipeline(t *testing.T) (*Pipeline, *retrieval.LexicalCorpus, *docstore.InMemoryStore) {
	t.Helper()
	corpus := retrieval.NewLexicalCorpus()
	chunks := docstore.NewInMemoryStore()
	vectors := inmemvec.New()
	chunker := chunking.NewSimpleChunker(chunking.WithChunkSize(40), chunking.WithOverlap(0))
	return New(chunker, &stubEmbedder{}, vectors, corpus, chunks), corpus, chunks
}

func TestIngestDocumentFeedsAllIndexes(t *testing.T) {
	p, corpus, chunks := newPipeline(t)

	doc := document.Document{
		Content:  strings.Repeat("retrieval systems need test corpora. ", 4),
		SourceID: "corpus.txt",
	}
	n, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}
	if corpus.Len() != n {
		t.Fatalf("lexical corpus has %d docs, want %d", corpus.Len(), n)
	}
	stored, err := chunks.ChunksBySource(context.Background(), "corpus.txt")
	if err != nil || len(stored) != n {
		t.Fatalf("chunk store has %d chunks (%v), want %d", len(stored), err, n)
	}
}

func TestIngestFile(t *testing.T) {
	p, corpus, _ := newPipeline(t)

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("a short document about gophers and retrieval"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	n, err := p.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n == 0 || corpus.Len() != n {
		t.Fatalf("expected indexed chunks, got n=%d corpus=%d", n, corpus.Len())
	}
}

func TestIngestFileMissing(t *testing.T) {
	p, _, _ := newPipeline(t)
	if _, err := p.IngestFile(context.Background(), "/does/not/exist.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.IngestDocument(context.Background(), document.Document{})
	if !errors.Is(err, docqaerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestEmbedderFailureLeavesCorpusUntouched(t *testing.T) {
	corpus := retrieval.NewLexicalCorpus()
	vectors := inmemvec.New()
	chunker := chunking.NewSimpleChunker()
	p := New(chunker, &stubEmbedder{err: errors.New("embedding api down")}, vectors, corpus, nil)

	_, err := p.IngestDocument(context.Background(), document.Document{Content: "some content"})
	if err == nil {
		t.Fatal("expected embedder error to propagate")
	}
	if corpus.Len() != 0 {
		t.Fatal("failed ingestion must not leave partial lexical entries")
	}
}
