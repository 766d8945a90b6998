package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
)

const defaultEndpoint = "https://api.cohere.com/v2/rerank"

// CohereClient implements Reranker using Cohere's ReRank API.
type CohereClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	endpoint   string
}

// CohereOption customises the Cohere reranker client.
type CohereOption func(*CohereClient)

// WithModel overrides the default Cohere model (rerank-english-v3.0).
func WithModel(model string) CohereOption {
	return func(c *CohereClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient swaps the HTTP client (useful for timeouts or proxies).
func WithHTTPClient(client *http.Client) CohereOption {
	return func(c *CohereClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the Cohere API endpoint.
func WithEndpoint(endpoint string) CohereOption {
	return func(c *CohereClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// NewCohere creates a Cohere-based reranker.
func NewCohere(apiKey string, opts ...CohereOption) *CohereClient {
	client := &CohereClient{
		apiKey:     apiKey,
		model:      "rerank-english-v3.0",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float32 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements Reranker.
func (c *CohereClient) Rerank(ctx context.Context, query string, documents []string) ([]Result, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("cohere rerank: API key missing: %w", docqaerrors.ErrUpstream)
	}

	payload := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cohere rerank status %d: %w", resp.StatusCode, docqaerrors.ErrUpstream)
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("cohere rerank decode: %w", err)
	}

	results := make([]Result, 0, len(rr.Results))
	for _, res := range rr.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			continue
		}
		results = append(results, Result{
			Index: res.Index,
			Score: res.RelevanceScore,
		})
	}
	return results, nil
}
