package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Hit is a single lexical search result. Index refers into the caller-owned
// document slice the index was built from.
type Hit struct {
	Index int
	Score float32
}

var tokenRegex = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*|\p{N}+`)

// BM25Index is an in-memory BM25 term index over an append-only sequence of
// document texts. Safe for concurrent readers; Add must be externally
// serialized against reads (ingestion is an out-of-band operation).
type BM25Index struct {
	mu        sync.RWMutex
	docFreq   map[string]int
	postings  map[string]map[int]int
	docLength []int
	totalLen  int
	k1        float64
	b         float64
}

// NewBM25 creates an empty BM25 index with standard parameters.
func NewBM25() *BM25Index {
	return &BM25Index{
		docFreq:  make(map[string]int),
		postings: make(map[string]map[int]int),
		k1:       1.6,
		b:        0.75,
	}
}

// Add indexes the next document text and returns its index.
func (b *BM25Index) Add(content string) int {
	terms := tokenize(content)

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := len(b.docLength)
	b.docLength = append(b.docLength, len(terms))
	b.totalLen += len(terms)

	seen := make(map[string]struct{})
	for _, term := range terms {
		if _, ok := b.postings[term]; !ok {
			b.postings[term] = make(map[int]int)
		}
		b.postings[term][idx]++
		if _, exists := seen[term]; !exists {
			b.docFreq[term]++
			seen[term] = struct{}{}
		}
	}
	return idx
}

// Search scores every indexed document against the query terms and returns
// the top limit hits, best first.
func (b *BM25Index) Search(query string, limit int) []Hit {
	terms := unique(tokenize(query))
	if len(terms) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	docCount := len(b.docLength)
	if docCount == 0 {
		return nil
	}
	avgLen := float64(b.totalLen) / float64(docCount)

	scores := make(map[int]float64)
	for _, term := range terms {
		postings := b.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := b.docFreq[term]
		idf := math.Log((float64(docCount)-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for idx, tf := range postings {
			docLen := float64(b.docLength[idx])
			numerator := float64(tf) * (b.k1 + 1)
			denominator := float64(tf) + b.k1*(1-b.b+b.b*(docLen/avgLen))
			scores[idx] += idf * (numerator / denominator)
		}
	}

	hits := make([]Hit, 0, len(scores))
	for idx, score := range scores {
		hits = append(hits, Hit{Index: idx, Score: float32(score)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Index < hits[j].Index
		}
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Len returns the number of indexed documents.
func (b *BM25Index) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docLength)
}

func tokenize(content string) []string {
	lower := strings.ToLower(content)
	return tokenRegex.FindAllString(lower, -1)
}

func unique(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
