// Command docqa serves question answering over a private document corpus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	openaisdk "github.com/openai/openai-go/v3"

	"github.com/sweetpotato0/docqa/config"
	"github.com/sweetpotato0/docqa/contrib/docstore"
	mongostore "github.com/sweetpotato0/docqa/contrib/docstore/mongo"
	openaiembed "github.com/sweetpotato0/docqa/contrib/embedder/openai"
	claudeprovider "github.com/sweetpotato0/docqa/contrib/provider/claude"
	geminiprovider "github.com/sweetpotato0/docqa/contrib/provider/gemini"
	openaiprovider "github.com/sweetpotato0/docqa/contrib/provider/openai"
	"github.com/sweetpotato0/docqa/contrib/vector/inmemory"
	"github.com/sweetpotato0/docqa/contrib/vector/pg"
	"github.com/sweetpotato0/docqa/guardrail"
	"github.com/sweetpotato0/docqa/ingest"
	"github.com/sweetpotato0/docqa/llm"
	"github.com/sweetpotato0/docqa/orchestrate"
	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/pkg/telemetry"
	"github.com/sweetpotato0/docqa/rag/chunking"
	tokenchunk "github.com/sweetpotato0/docqa/rag/chunking/token"
	"github.com/sweetpotato0/docqa/rag/reranker"
	"github.com/sweetpotato0/docqa/rag/retrieval"
	"github.com/sweetpotato0/docqa/server"
	"github.com/sweetpotato0/docqa/session"
	redisstore "github.com/sweetpotato0/docqa/session/store"
	"github.com/sweetpotato0/docqa/vector"
	"github.com/sweetpotato0/docqa/websearch"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger := logging.Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "docqa"})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(flushCtx)
	}()

	client, err := buildProvider(ctx, cfg.Provider)
	if err != nil {
		return err
	}
	client = llm.WithRetry(client, llm.RetryConfig{})

	vectors, err := buildVectorStore(cfg)
	if err != nil {
		return err
	}

	embedKey := envFallback(cfg.Embedding.APIKey, "OPENAI_API_KEY")
	embedder := openaiembed.New(embedKey, "", openaisdk.EmbeddingModel(cfg.Embedding.Model), cfg.Embedding.Dimension)

	corpus := retrieval.NewLexicalCorpus()
	chunks, err := buildDocStore(cfg)
	if err != nil {
		return err
	}

	chunker, err := buildChunker(cfg.Ingest)
	if err != nil {
		return err
	}
	pipeline := ingest.New(chunker, embedder, vectors, corpus, chunks)

	for _, path := range cfg.Ingest.Paths {
		n, err := pipeline.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("bootstrap ingest %s: %w", path, err)
		}
		logger.Info("bootstrap ingested", "path", path, "chunks", n)
	}

	rerank := reranker.NewCohere(envFallback(cfg.Rerank.APIKey, "COHERE_API_KEY"))
	expander := retrieval.NewExpander(client, 2)
	semantic := retrieval.NewSemanticSource(embedder, vectors)
	retriever, err := retrieval.NewHybridRetriever(expander, semantic, corpus, rerank,
		retrieval.WithSearchTopK(cfg.Retrieval.SearchTopK),
		retrieval.WithKeepTopN(cfg.Retrieval.KeepTopN),
	)
	if err != nil {
		return err
	}

	guard := guardrail.NewChain(client)
	web := newWebSearcher(cfg.WebSearch)
	steps := orchestrate.NewSteps(client, retriever, guard, web)
	executor := orchestrate.NewExecutor(
		orchestrate.NewPlanner(client),
		steps,
		orchestrate.NewCombiner(client),
	)

	sessions, err := buildSessionStore(cfg.Session)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server.Addr, executor, pipeline, sessions)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("pipeline ready", "addr", cfg.Server.Addr, "provider", cfg.Provider.Name)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(drainCtx)
}

func buildProvider(ctx context.Context, cfg config.ProviderConfig) (llm.Client, error) {
	switch cfg.Name {
	case "openai":
		pc := openaiprovider.DefaultConfig().WithAPIKey(envFallback(cfg.APIKey, "OPENAI_API_KEY"))
		if cfg.Model != "" {
			pc.WithModel(cfg.Model)
		}
		return openaiprovider.New(pc), nil
	case "claude":
		pc := claudeprovider.DefaultConfig(envFallback(cfg.APIKey, "ANTHROPIC_API_KEY"), "")
		if cfg.Model != "" {
			pc.Model = cfg.Model
		}
		return claudeprovider.New(pc), nil
	case "gemini":
		pc := geminiprovider.DefaultConfig(envFallback(cfg.APIKey, "GEMINI_API_KEY"))
		if cfg.Model != "" {
			pc.Model = cfg.Model
		}
		return geminiprovider.New(ctx, pc)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Name)
}

func buildVectorStore(cfg *config.Config) (vector.Store, error) {
	switch cfg.Vector.Backend {
	case "pgvector":
		p := cfg.Vector.Postgres
		return pg.New(&pg.Config{
			Host:      p.Host,
			Port:      p.Port,
			User:      p.User,
			Password:  p.Password,
			DBName:    p.DBName,
			SSLMode:   p.SSLMode,
			Dimension: cfg.Embedding.Dimension,
			TableName: p.Table,
		})
	default:
		return inmemory.New(), nil
	}
}

func buildDocStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.DocStore.Backend {
	case "mongo":
		m := cfg.DocStore.Mongo
		return mongostore.New(&mongostore.Config{
			URI:        m.URI,
			Database:   m.Database,
			Collection: m.Collection,
		})
	default:
		return docstore.NewInMemoryStore(), nil
	}
}

func buildSessionStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "redis":
		return redisstore.NewRedisStore(&redisstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}), nil
	default:
		return session.NewInMemoryStore(), nil
	}
}

func buildChunker(cfg config.IngestConfig) (chunking.Chunker, error) {
	switch cfg.Chunker {
	case "token":
		return tokenchunk.New("cl100k_base",
			tokenchunk.WithMaxTokens(cfg.ChunkSize),
			tokenchunk.WithOverlapTokens(cfg.Overlap),
		)
	default:
		return chunking.NewSimpleChunker(
			chunking.WithChunkSize(cfg.ChunkSize),
			chunking.WithOverlap(cfg.Overlap),
		), nil
	}
}

func newWebSearcher(cfg config.WebSearchConfig) orchestrate.WebSearcher {
	return websearch.NewTavily(envFallback(cfg.APIKey, "TAVILY_API_KEY"))
}

func envFallback(value, envVar string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envVar)
}
