package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
)

const defaultEndpoint = "https://api.tavily.com/search"

// Result is one web hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher answers a question from the open web.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Tavily calls the Tavily search API. When the API returns a synthesized
// answer it is used directly; otherwise the result snippets are joined.
type Tavily struct {
	apiKey     string
	endpoint   string
	client     *http.Client
	maxResults int
	// includeAnswer asks Tavily to synthesize an answer server-side.
	includeAnswer bool
}

// TavilyOption configures a Tavily client.
type TavilyOption func(*Tavily)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) { t.client = c }
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) TavilyOption {
	return func(t *Tavily) { t.endpoint = url }
}

// WithMaxResults caps the number of snippets joined into the answer.
func WithMaxResults(n int) TavilyOption {
	return func(t *Tavily) {
		if n > 0 {
			t.maxResults = n
		}
	}
}

// NewTavily constructs a Tavily searcher. The key falls back to the
// TAVILY_API_KEY environment variable.
func NewTavily(apiKey string, opts ...TavilyOption) *Tavily {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	t := &Tavily{
		apiKey:        apiKey,
		endpoint:      defaultEndpoint,
		client:        &http.Client{Timeout: 15 * time.Second},
		maxResults:    3,
		includeAnswer: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts the query to Tavily and returns a single answer string.
func (t *Tavily) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return "", fmt.Errorf("tavily: %w: API key is missing", docqaerrors.ErrInvalidInput)
	}

	body := map[string]any{
		"query":          query,
		"api_key":        t.apiKey,
		"max_results":    t.maxResults,
		"include_answer": t.includeAnswer,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	resp, err := t.post(ctx, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tavily: %w: http %d", docqaerrors.ErrUpstream, resp.StatusCode)
	}

	var response tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("tavily: decode response: %w", err)
	}

	if answer := strings.TrimSpace(response.Answer); answer != "" {
		return answer, nil
	}

	snippets := make([]string, 0, len(response.Results))
	for _, r := range response.Results {
		snippet := CleanSnippet(r.Content)
		if snippet == "" {
			continue
		}
		snippets = append(snippets, snippet)
		if len(snippets) >= t.maxResults {
			break
		}
	}
	if len(snippets) == 0 {
		return "", fmt.Errorf("tavily: %w: no results for query", docqaerrors.ErrNotFound)
	}
	return strings.Join(snippets, "\n\n"), nil
}

// post sends the request, backing off and retrying on 429 with the delay
// doubling up to 30 s.
func (t *Tavily) post(ctx context.Context, payload []byte) (*http.Response, error) {
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tavily: %w: %w", docqaerrors.ErrUpstream, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}
