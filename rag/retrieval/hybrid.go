package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/pkg/telemetry"
	"github.com/sweetpotato0/docqa/rag/reranker"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one hybrid retrieval call. Exactly one of the two
// shapes holds: a non-empty Context, or Reroute set because nothing usable
// survived reranking.
type Result struct {
	Context string
	Reroute bool
}

// Config controls hybrid retrieval behaviour.
type Config struct {
	SearchTopK int // Per-source top-K for each query variant (default 3)
	KeepTopN   int // How many candidates survive reranking (default 5)
}

// HybridRetriever fans expanded query variants out to a semantic and a
// lexical source concurrently, merges and dedups the hits, and lets a
// cross-encoder reranker pick the final context.
type HybridRetriever struct {
	expander *Expander
	semantic CandidateSource
	lexical  CandidateSource
	reranker reranker.Reranker
	cfg      Config
	logger   *slog.Logger
}

// Option customises the retriever.
type Option func(*Config)

// WithSearchTopK sets the per-source top-K for each variant.
func WithSearchTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.SearchTopK = k
		}
	}
}

// WithKeepTopN caps how many reranked candidates form the context.
func WithKeepTopN(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.KeepTopN = n
		}
	}
}

// NewHybridRetriever wires the retrieval pipeline together.
func NewHybridRetriever(expander *Expander, semantic, lexical CandidateSource, rer reranker.Reranker, opts ...Option) (*HybridRetriever, error) {
	if expander == nil || semantic == nil || lexical == nil || rer == nil {
		return nil, fmt.Errorf("expander, sources, and reranker are required")
	}
	cfg := Config{
		SearchTopK: 3,
		KeepTopN:   5,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HybridRetriever{
		expander: expander,
		semantic: semantic,
		lexical:  lexical,
		reranker: rer,
		cfg:      cfg,
		logger:   logging.WithComponent("hybrid_retriever"),
	}, nil
}

// Retrieve runs the full expand/search/dedup/rerank pipeline for a question.
// It never returns an empty context string: either Context is non-empty or
// Reroute is set.
func (h *HybridRetriever) Retrieve(ctx context.Context, question string) (*Result, error) {
	ctx, span := telemetry.Tracer("retrieval").Start(ctx, "hybrid_retrieve")
	var rerr error
	defer func() { telemetry.End(span, rerr) }()

	variants, err := h.expander.Expand(ctx, question)
	if err != nil {
		rerr = err
		return nil, err
	}
	h.logger.Debug("query variants generated", "count", len(variants))

	merged, err := h.searchAll(ctx, variants)
	if err != nil {
		rerr = err
		return nil, err
	}

	deduped := Deduplicate(merged)
	h.logger.Debug("candidates gathered", "merged", len(merged), "deduped", len(deduped))

	top, err := h.rerank(ctx, question, deduped)
	if err != nil {
		rerr = err
		return nil, err
	}

	if len(top) == 0 {
		h.logger.Info("no candidates survived reranking, rerouting", "question_len", len(question))
		return &Result{Reroute: true}, nil
	}

	contents := make([]string, len(top))
	for i, cand := range top {
		contents[i] = strings.TrimSpace(cand.Content)
	}
	return &Result{Context: strings.Join(contents, "\n\n")}, nil
}

// searchAll issues a semantic and a lexical search per variant, all
// concurrently, and joins the hits in deterministic variant order (semantic
// hits before lexical ones within a variant) so dedup's first-wins rule is
// stable.
func (h *HybridRetriever) searchAll(ctx context.Context, variants []string) ([]Candidate, error) {
	type slot struct {
		semantic []Candidate
		lexical  []Candidate
	}
	slots := make([]slot, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			hits, err := h.semantic.Search(gctx, variant, h.cfg.SearchTopK)
			if err != nil {
				return fmt.Errorf("semantic search for variant %d: %w", i, err)
			}
			slots[i].semantic = hits
			return nil
		})
		g.Go(func() error {
			hits, err := h.lexical.Search(gctx, variant, h.cfg.SearchTopK)
			if err != nil {
				return fmt.Errorf("lexical search for variant %d: %w", i, err)
			}
			slots[i].lexical = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Candidate
	for _, s := range slots {
		merged = append(merged, s.semantic...)
		merged = append(merged, s.lexical...)
	}
	return merged, nil
}

// rerank scores the deduplicated candidates against the original question
// and keeps the top-N by score, descending, with merge order breaking ties.
func (h *HybridRetriever) rerank(ctx context.Context, question string, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = cand.Content
	}

	results, err := h.reranker.Rerank(ctx, question, docs)
	if err != nil {
		return nil, fmt.Errorf("rerank failed: %w", err)
	}

	scores := make(map[int]float32, len(results))
	scored := make([]int, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		if _, ok := scores[res.Index]; ok {
			continue
		}
		scores[res.Index] = res.Score
		scored = append(scored, res.Index)
	}

	// Keep merge order as the base so equal scores preserve it.
	sort.Slice(scored, func(i, j int) bool { return scored[i] < scored[j] })
	sort.SliceStable(scored, func(i, j int) bool {
		return scores[scored[i]] > scores[scored[j]]
	})

	limit := h.cfg.KeepTopN
	if limit > len(scored) {
		limit = len(scored)
	}
	top := make([]Candidate, 0, limit)
	for _, idx := range scored[:limit] {
		cand := candidates[idx]
		cand.Score = scores[idx]
		top = append(top, cand)
	}
	return top, nil
}

// Deduplicate removes candidates whose trimmed content already appeared;
// the first occurrence keeps its origin and score. Running it on its own
// output is a no-op.
func Deduplicate(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		key := strings.TrimSpace(cand.Content)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	return out
}
