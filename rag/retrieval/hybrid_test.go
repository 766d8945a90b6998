package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sweetpotato0/docqa/message"
	"github.com/sweetpotato0/docqa/rag/reranker"
)

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Invoke(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return message.NewMessage(message.RoleAssistant, s.response), nil
}

func (s *stubLLM) SetTemperature(float64) {}
func (s *stubLLM) SetMaxTokens(int64)     {}
func (s *stubLLM) SetModel(string)        {}

type stubSource struct {
	candidates []Candidate
	err        error
}

func (s *stubSource) Search(ctx context.Context, query string, k int) ([]Candidate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

type stubReranker struct {
	results []reranker.Result
	err     error
	// score all documents descending by input order when results is nil
	scoreAll bool
}

func (s *stubReranker) Rerank(ctx context.Context, query string, documents []string) ([]reranker.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.scoreAll {
		out := make([]reranker.Result, len(documents))
		for i := range documents {
			out[i] = reranker.Result{Index: i, Score: float32(len(documents) - i)}
		}
		return out, nil
	}
	return s.results, nil
}

func newTestRetriever(t *testing.T, semantic, lexical CandidateSource, rer reranker.Reranker) *HybridRetriever {
	t.Helper()
	expander := NewExpander(&stubLLM{response: "variant one\nvariant two"}, 2)
	h, err := NewHybridRetriever(expander, semantic, lexical, rer)
	if err != nil {
		t.Fatalf("NewHybridRetriever: %v", err)
	}
	return h
}

func TestRetrieveBuildsContextFromRerankedCandidates(t *testing.T) {
	semantic := &stubSource{candidates: []Candidate{
		{Content: "shipping takes five days", Score: 0.8, Origin: OriginVector},
	}}
	lexical := &stubSource{candidates: []Candidate{
		{Content: "returns within thirty days", Score: 4.2, Origin: OriginLexical},
	}}
	h := newTestRetriever(t, semantic, lexical, &stubReranker{scoreAll: true})

	res, err := h.Retrieve(context.Background(), "how long does shipping take?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Reroute {
		t.Fatalf("unexpected reroute")
	}
	if res.Context == "" {
		t.Fatalf("expected non-empty context")
	}
	if !strings.Contains(res.Context, "shipping takes five days") {
		t.Fatalf("context missing candidate content: %q", res.Context)
	}
	if !strings.Contains(res.Context, "\n\n") {
		t.Fatalf("expected blank-line separator between candidates")
	}
}

func TestRetrieveReroutesWhenNothingSurvives(t *testing.T) {
	h := newTestRetriever(t, &stubSource{}, &stubSource{}, &stubReranker{})

	res, err := h.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.Reroute {
		t.Fatalf("expected reroute for empty candidate set")
	}
	if res.Context != "" {
		t.Fatalf("reroute result must not carry context")
	}
}

func TestRetrievePropagatesRerankerFailure(t *testing.T) {
	semantic := &stubSource{candidates: []Candidate{{Content: "doc", Origin: OriginVector}}}
	h := newTestRetriever(t, semantic, &stubSource{}, &stubReranker{err: errors.New("rerank service down")})

	if _, err := h.Retrieve(context.Background(), "q"); err == nil {
		t.Fatalf("expected reranker failure to propagate")
	}
}

func TestRetrievePropagatesSearchFailure(t *testing.T) {
	h := newTestRetriever(t, &stubSource{err: errors.New("index offline")}, &stubSource{}, &stubReranker{scoreAll: true})

	if _, err := h.Retrieve(context.Background(), "q"); err == nil {
		t.Fatalf("expected search failure to propagate")
	}
}

func TestRetrieveKeepsAtMostTopN(t *testing.T) {
	many := make([]Candidate, 8)
	for i := range many {
		many[i] = Candidate{Content: strings.Repeat("x", i+1), Origin: OriginVector}
	}
	h := newTestRetriever(t, &stubSource{candidates: many}, &stubSource{}, &stubReranker{scoreAll: true})

	res, err := h.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if parts := strings.Split(res.Context, "\n\n"); len(parts) > 5 {
		t.Fatalf("expected at most 5 context sections, got %d", len(parts))
	}
}

func TestRerankOrdersByScoreWithStableTies(t *testing.T) {
	candidates := []Candidate{
		{Content: "a"}, {Content: "b"}, {Content: "c"},
	}
	h := newTestRetriever(t, &stubSource{}, &stubSource{}, &stubReranker{results: []reranker.Result{
		{Index: 0, Score: 0.5},
		{Index: 1, Score: 0.9},
		{Index: 2, Score: 0.5},
	}})

	top, err := h.rerank(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 results, got %d", len(top))
	}
	if top[0].Content != "b" {
		t.Fatalf("expected highest score first, got %q", top[0].Content)
	}
	// ties keep merge order: a before c
	if top[1].Content != "a" || top[2].Content != "c" {
		t.Fatalf("tie order not stable: %q, %q", top[1].Content, top[2].Content)
	}
}

func TestDeduplicateFirstWinsAndIdempotent(t *testing.T) {
	in := []Candidate{
		{Content: " same text ", Score: 1, Origin: OriginVector},
		{Content: "same text", Score: 9, Origin: OriginLexical},
		{Content: "other", Score: 2, Origin: OriginLexical},
	}

	out := Deduplicate(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	if out[0].Origin != OriginVector || out[0].Score != 1 {
		t.Fatalf("first occurrence should win, got %+v", out[0])
	}

	again := Deduplicate(out)
	if len(again) != len(out) {
		t.Fatalf("dedup not idempotent: %d vs %d", len(again), len(out))
	}
	for i := range again {
		if again[i] != out[i] {
			t.Fatalf("dedup not idempotent at %d", i)
		}
	}
}

func TestExpanderKeepsOriginalFirst(t *testing.T) {
	exp := NewExpander(&stubLLM{response: "1. first rewrite\n- second rewrite\n\n"}, 2)

	variants, err := exp.Expand(context.Background(), "original question")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if variants[0] != "original question" {
		t.Fatalf("original question must come first, got %q", variants[0])
	}
	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d: %v", len(variants), variants)
	}
	if variants[1] != "first rewrite" || variants[2] != "second rewrite" {
		t.Fatalf("rewrites not cleaned: %v", variants[1:])
	}
}

func TestExpanderPropagatesModelFailure(t *testing.T) {
	exp := NewExpander(&stubLLM{err: errors.New("model offline")}, 2)
	if _, err := exp.Expand(context.Background(), "q"); err == nil {
		t.Fatalf("expected model failure to propagate")
	}
}
