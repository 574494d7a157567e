// Package api exposes the query engine over HTTP and MCP. Both layers
// are thin shims: plans come from the planner, results from the engine.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/metaseek/metaseek/internal/planner"
	"github.com/metaseek/metaseek/internal/searcher"
	"github.com/metaseek/metaseek/internal/storage"
	"github.com/metaseek/metaseek/internal/vector"
	"github.com/metaseek/metaseek/pkg/types"
)

// Server holds the HTTP handlers' dependencies.
type Server struct {
	planner planner.Planner
	engine  *searcher.Engine
	meta    storage.MetadataStore
	vectors *vector.Store
	logger  *slog.Logger
}

// NewServer wires the HTTP layer over the query components.
func NewServer(p planner.Planner, engine *searcher.Engine, meta storage.MetadataStore, vectors *vector.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		planner: p,
		engine:  engine,
		meta:    meta,
		vectors: vectors,
		logger:  logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Post("/search", s.handleSearch)
	r.Get("/recent", s.handleRecent)
	r.Get("/popular", s.handlePopular)
	r.Get("/status", s.handleStatus)

	return r
}

// requestLogger tags every request with a generated id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		s.logger.Info("request", "id", id, "method", r.Method, "path", r.URL.Path)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type searchRequest struct {
	Query string `json:"query"`
	// Filter, when set, bypasses the planner: the query runs as a pure
	// metadata search over this predicate.
	Filter string `json:"filter,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no query provided"})
		return
	}

	var (
		plan types.SearchPlan
		err  error
	)
	if req.Filter != "" {
		plan, err = planner.NewStatic(types.SearchPlan{Filter: req.Filter}).Plan(r.Context(), req.Query)
	} else {
		plan, err = s.planner.Plan(r.Context(), req.Query)
	}
	if err != nil {
		s.logger.Error("planning failed", "query", req.Query, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "query planning failed"})
		return
	}

	results, err := s.engine.Search(r.Context(), plan, req.Query)
	if err != nil {
		if errors.Is(err, storage.ErrBadFilter) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "planner produced an invalid filter"})
			return
		}
		s.logger.Error("search failed", "query", req.Query, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, searcher.ResultCap)

	records, err := s.meta.GetRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("recent query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toResults(records))
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, searcher.ResultCap)

	records, err := s.meta.GetPopular(r.Context(), limit)
	if err != nil {
		s.logger.Error("popular query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toResults(records))
}

type statusResponse struct {
	Files     int `json:"files"`
	Vectors   int `json:"vectors"`
	Dimension int `json:"dimension"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.meta.CountActive(r.Context())
	if err != nil {
		s.logger.Error("status query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Files:     count,
		Vectors:   s.vectors.Len(),
		Dimension: s.vectors.Dimension(),
	})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	return limit
}

func toResults(records []*storage.FileRecord) []*types.SearchResult {
	results := make([]*types.SearchResult, 0, len(records))
	for i, rec := range records {
		results = append(results, &types.SearchResult{
			Path:        rec.Path,
			Name:        rec.Name,
			Rank:        i + 1,
			Size:        rec.Size,
			ModifiedAt:  rec.ModifiedAt,
			AccessCount: rec.AccessCount,
		})
	}
	return results
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
