// Package ingest loads documents, splits them into chunks, and feeds every
// index the retrieval layer reads from: vector store, lexical corpus, and
// the chunk store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sweetpotato0/docqa/contrib/docstore"
	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/rag/chunking"
	"github.com/sweetpotato0/docqa/rag/document"
	"github.com/sweetpotato0/docqa/rag/retrieval"
	"github.com/sweetpotato0/docqa/vector"
)

// Pipeline writes one document into all three indexes. Ingestion is assumed
// to be externally serialized; readers see each chunk only after it is in
// every index.
type Pipeline struct {
	chunker  chunking.Chunker
	embedder vector.Embedder
	vectors  vector.Store
	corpus   *retrieval.LexicalCorpus
	chunks   docstore.Store
	logger   *slog.Logger
}

// New wires an ingestion pipeline. The chunk store is optional; pass nil to
// skip persistence.
func New(chunker chunking.Chunker, embedder vector.Embedder, vectors vector.Store, corpus *retrieval.LexicalCorpus, chunks docstore.Store) *Pipeline {
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		corpus:   corpus,
		chunks:   chunks,
		logger:   logging.WithComponent("ingest"),
	}
}

// IngestFile reads a text file from disk and indexes it. The file path
// becomes the chunks' source ID.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	doc := document.Document{
		Title:    filepath.Base(path),
		Content:  string(data),
		SourceID: path,
	}
	return p.IngestDocument(ctx, doc)
}

// IngestDocument chunks, embeds, and indexes one document, returning the
// number of chunks written.
func (p *Pipeline) IngestDocument(ctx context.Context, doc document.Document) (int, error) {
	if doc.Content == "" {
		return 0, fmt.Errorf("%w: document has no content", docqaerrors.ErrInvalidInput)
	}
	document.EnsureDocumentID(&doc)

	chunks, err := p.chunker.Chunk(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks of %s: %w", doc.ID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", docqaerrors.ErrUpstream, len(vectors), len(chunks))
	}

	for i, c := range chunks {
		emb := &vector.Embedding{ID: c.ID, Vector: vectors[i], Text: c.Content}
		if err := p.vectors.AddEmbedding(ctx, emb); err != nil {
			return 0, fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		p.corpus.Append(c.Content)
	}

	if p.chunks != nil {
		if err := p.chunks.AddChunks(ctx, chunks); err != nil {
			return 0, fmt.Errorf("persist chunks of %s: %w", doc.ID, err)
		}
	}

	p.logger.Info("document ingested", "document", doc.ID, "source", doc.SourceID, "chunks", len(chunks))
	return len(chunks), nil
}
