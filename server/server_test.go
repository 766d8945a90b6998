package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/docqa/session"
)

type stubAsker struct {
	output string
	err    error
	asked  string
}

func (s *stubAsker) Run(_ context.Context, question string) (string, error) {
	s.asked = question
	return s.output, s.err
}

type stubIngestor struct {
	chunks int
	err    error
	path   string
}

func (s *stubIngestor) IngestFile(_ context.Context, path string) (int, error) {
	s.path = path
	return s.chunks, s.err
}

func newTestServer(asker Asker, ingestor Ingestor, sessions session.Store) *httptest.Server {
	return httptest.NewServer(New(":0", asker, ingestor, sessions).Handler())
}

func TestAsk(t *testing.T) {
	asker := &stubAsker{output: "Paris."}
	sessions := session.NewInMemoryStore()
	srv := newTestServer(asker, &stubIngestor{}, sessions)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/json",
		strings.NewReader(`{"session_id": "s1", "question": "capital of France?"}`))
	if err != nil {
		t.Fatalf("POST /ask: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Output != "Paris." || body.SessionID != "s1" {
		t.Fatalf("unexpected response %+v", body)
	}
	if asker.asked != "capital of France?" {
		t.Fatalf("asker saw %q", asker.asked)
	}

	history, _ := sessions.History(context.Background(), "s1")
	if len(history) != 1 || history[0].Answer != "Paris." {
		t.Fatalf("transcript not recorded: %v", history)
	}
}

func TestAskValidation(t *testing.T) {
	srv := newTestServer(&stubAsker{}, &stubIngestor{}, nil)
	defer srv.Close()

	resp, _ := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing question: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`not json`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/ask")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET: status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAskFailureYieldsGenericError(t *testing.T) {
	srv := newTestServer(&stubAsker{err: errors.New("reranker exploded: secret details")}, &stubIngestor{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"question": "q"}`))
	if err != nil {
		t.Fatalf("POST /ask: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body ErrorResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if strings.Contains(body.Error, "secret details") {
		t.Fatal("internal error details must not leak to clients")
	}
}

func TestIngest(t *testing.T) {
	ing := &stubIngestor{chunks: 12}
	srv := newTestServer(&stubAsker{}, ing, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ingest", "application/json", strings.NewReader(`{"path": "./sample.txt"}`))
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body IngestResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if !body.Success || body.Chunks != 12 {
		t.Fatalf("unexpected response %+v", body)
	}
	if ing.path != "./sample.txt" {
		t.Fatalf("ingestor saw %q", ing.path)
	}
}

func TestIngestValidation(t *testing.T) {
	srv := newTestServer(&stubAsker{}, &stubIngestor{}, nil)
	defer srv.Close()

	resp, _ := http.Post(srv.URL+"/ingest", "application/json", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing path: status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubAsker{}, &stubIngestor{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	var body HealthResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "ok" {
		t.Fatalf("unexpected health %+v", body)
	}
}
