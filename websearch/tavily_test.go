package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
)

func TestSearchPrefersAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["query"] != "who won?" {
			t.Fatalf("unexpected query %v", body["query"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"answer": "The home team won.",
			"results": []map[string]string{
				{"title": "Recap", "url": "http://a", "content": "irrelevant snippet"},
			},
		})
	}))
	defer srv.Close()

	tv := NewTavily("key", WithEndpoint(srv.URL))
	got, err := tv.Search(context.Background(), "who won?")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "The home team won." {
		t.Fatalf("expected synthesized answer, got %q", got)
	}
}

func TestSearchJoinsSnippetsWhenNoAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"answer": "",
			"results": []map[string]string{
				{"title": "A", "url": "http://a", "content": "<p>first   fact</p>"},
				{"title": "B", "url": "http://b", "content": "second fact"},
				{"title": "C", "url": "http://c", "content": "third fact"},
				{"title": "D", "url": "http://d", "content": "dropped by cap"},
			},
		})
	}))
	defer srv.Close()

	tv := NewTavily("key", WithEndpoint(srv.URL), WithMaxResults(3))
	got, err := tv.Search(context.Background(), "facts")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := "first fact\n\nsecond fact\n\nthird fact"
	if got != want {
		t.Fatalf("joined snippets = %q, want %q", got, want)
	}
}

func TestSearchRetriesOn429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"answer": "eventually"})
	}))
	defer srv.Close()

	tv := NewTavily("key", WithEndpoint(srv.URL))
	got, err := tv.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "eventually" || calls != 2 {
		t.Fatalf("expected retry then success, got %q after %d calls", got, calls)
	}
}

func TestSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tv := NewTavily("key", WithEndpoint(srv.URL))
	_, err := tv.Search(context.Background(), "q")
	if !errors.Is(err, docqaerrors.ErrUpstream) {
		t.Fatalf("expected ErrUpstream on 500, got %v", err)
	}

	empty := NewTavily("  ", WithEndpoint(srv.URL))
	empty.apiKey = " "
	if _, err := empty.Search(context.Background(), "q"); !errors.Is(err, docqaerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing key, got %v", err)
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"answer": "", "results": []any{}})
	}))
	defer srv.Close()

	tv := NewTavily("key", WithEndpoint(srv.URL))
	_, err := tv.Search(context.Background(), "q")
	if !errors.Is(err, docqaerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty results, got %v", err)
	}
}

func TestCleanSnippet(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain  text\n here", "plain text here"},
		{"<div><script>x()</script><p>kept <b>bold</b></p></div>", "kept bold"},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := CleanSnippet(c.in); got != c.want {
			t.Fatalf("CleanSnippet(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := CleanSnippet("<style>a{}</style>visible"); !strings.Contains(got, "visible") {
		t.Fatalf("expected visible text, got %q", got)
	}
}
