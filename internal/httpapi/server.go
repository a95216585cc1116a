// Package httpapi exposes the audit lifecycle over HTTP: submission, status
// polling, and token-gated report download.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sitescore/internal/audit"
	"sitescore/internal/orchestrate"
	"sitescore/internal/score"
)

// genericFailure is the only error detail exposed for failed audits.
const genericFailure = "we couldn't complete this audit — try again"

// Server wires the orchestrator to the public routes.
type Server struct {
	orch   *orchestrate.Orchestrator
	secret []byte
	logger *slog.Logger
}

// Option configures the Server during construction.
type Option func(*Server) error

// New creates the HTTP adapter. The secret signs download tokens.
func New(orch *orchestrate.Orchestrator, secret []byte, opts ...Option) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("httpapi: orchestrator is required")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("httpapi: signing secret is required")
	}
	s := &Server{
		orch:   orch,
		secret: secret,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = l
		return nil
	}
}

// Routes returns the chi router for the public API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/audit/submit", s.handleSubmit)
	r.Get("/audit/status/{id}", s.handleStatus)
	r.Get("/audit/download/{id}", s.handleDownload)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	URL       string `json:"url"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Tier      string `json:"tier"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.orch.Submit(r.Context(), orchestrate.SubmitParams{
		URL:       req.URL,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Tier:      audit.Tier(req.Tier),
	})
	if err != nil {
		var ve *audit.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		s.logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "submission failed, try again later")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":         id,
		"status_url": "/audit/status/" + id,
	})
}

// decodeSubmit accepts JSON or form-encoded bodies.
func decodeSubmit(r *http.Request) (*submitRequest, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return &submitRequest{
			URL:       r.PostFormValue("url"),
			Email:     r.PostFormValue("email"),
			FirstName: r.PostFormValue("first_name"),
			LastName:  r.PostFormValue("last_name"),
			Tier:      r.PostFormValue("tier"),
		}, nil
	}
	var req submitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

type statusResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Score       *int   `json:"score,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Error       string `json:"error,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orch.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "audit not found")
			return
		}
		s.logger.Error("status lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed, try again later")
		return
	}

	resp := statusResponse{
		ID:        rec.ID,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.CompletedAt != nil {
		resp.CompletedAt = rec.CompletedAt.UTC().Format(time.RFC3339)
	}
	switch rec.Status {
	case audit.StatusComplete:
		resp.Score = rec.Score
		if rec.Score != nil {
			resp.Grade = score.GradeFor(*rec.Score)
		}
		if rec.ReportReady {
			token, err := mintToken(s.secret, rec.ID, rec.ExpiresAt)
			if err != nil {
				s.logger.Error("token minting failed", "id", id, "error", err)
			} else {
				resp.DownloadURL = "/audit/download/" + rec.ID + "?token=" + token
			}
		}
	case audit.StatusFailed:
		resp.Error = genericFailure
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	subject, err := parseToken(s.secret, token)
	if err != nil || subject != id {
		writeError(w, http.StatusUnauthorized, "invalid or expired download link")
		return
	}

	rec, err := s.orch.GetStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "audit not found")
		return
	}
	if rec.Status != audit.StatusComplete || !rec.ReportReady || rec.ReportPath == "" {
		writeError(w, http.StatusNotFound, "report not available")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, rec.ReportPath)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
