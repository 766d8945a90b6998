// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sweetpotato0/docqa/pkg/logging"
	"github.com/sweetpotato0/docqa/session"
)

// Asker answers one question end to end.
type Asker interface {
	Run(ctx context.Context, question string) (string, error)
}

// Ingestor indexes one document file.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// Request/response models.
type (
	AskRequest struct {
		SessionID string `json:"session_id,omitempty"`
		Question  string `json:"question"`
	}

	AskResponse struct {
		SessionID string `json:"session_id"`
		Output    string `json:"output"`
	}

	IngestRequest struct {
		Path string `json:"path"`
	}

	IngestResponse struct {
		Success bool `json:"success"`
		Chunks  int  `json:"chunks"`
	}

	HealthResponse struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// Server is the HTTP front of the pipeline.
type Server struct {
	asker    Asker
	ingestor Ingestor
	sessions session.Store
	http     *http.Server
	logger   *slog.Logger
}

// New builds the server and its routes.
func New(addr string, asker Asker, ingestor Ingestor, sessions session.Store) *Server {
	s := &Server{
		asker:    asker,
		ingestor: ingestor,
		sessions: sessions,
		logger:   logging.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a full agent run can take a while
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing 'question' field")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	output, err := s.asker.Run(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("ask failed", "session", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to answer the question")
		return
	}

	if s.sessions != nil {
		turn := session.Turn{Question: req.Question, Answer: output}
		if err := s.sessions.Append(r.Context(), req.SessionID, turn); err != nil {
			// The answer is already computed; losing the transcript entry
			// should not fail the request.
			s.logger.Warn("transcript append failed", "session", req.SessionID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, AskResponse{SessionID: req.SessionID, Output: output})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing 'path' field")
		return
	}

	n, err := s.ingestor.IngestFile(r.Context(), req.Path)
	if err != nil {
		s.logger.Error("ingest failed", "path", req.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to ingest document")
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{Success: true, Chunks: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
