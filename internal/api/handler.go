package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/rankd/internal/engine"
	"github.com/kalambet/rankd/internal/stats"
	"github.com/kalambet/rankd/internal/store"
)

const maxRequestBodySize = 10 << 20 // 10MB

// AppDeps holds dependencies for the HTTP API.
type AppDeps struct {
	Engine *engine.Engine
	// Token enables bearer authentication. Empty leaves the API open,
	// the expected mode for localhost deployments.
	Token string
}

// NewHandler builds the HTTP API router.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	if deps.Token != "" {
		r.Use(BearerAuth(deps.Token))
	}

	r.Get("/health", handleHealth)
	r.Get("/workspaces", handleListWorkspaces(deps))
	r.Delete("/workspaces/{workspace}", handleDeleteWorkspace(deps))
	r.Post("/workspaces/{workspace}/items", handleIndex(deps))
	r.Post("/workspaces/{workspace}/items/batch", handleIndexBatch(deps))
	r.Post("/workspaces/{workspace}/search", handleSearch(deps))
	r.Post("/workspaces/{workspace}/feedback", handleFeedback(deps))
	r.Get("/workspaces/{workspace}/stats", handleStats(deps))
	r.Get("/stats/compare", handleCompare(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func handleListWorkspaces(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := deps.Engine.Store().ListWorkspaces()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list workspaces: %v", err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, map[string]any{"workspaces": names})
	}
}

func handleDeleteWorkspace(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := chi.URLParam(r, "workspace")
		err := deps.Engine.Store().DeleteWorkspace(ws)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "workspace not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete workspace: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

// IndexItemRequest is the POST items body.
type IndexItemRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Concept string `json:"concept,omitempty"`
}

func handleIndex(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req IndexItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		item, err := deps.Engine.Index(r.Context(), chi.URLParam(r, "workspace"), engine.IndexRequest{
			Path:    req.Path,
			Content: req.Content,
			Concept: req.Concept,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, item)
	}
}

// BatchIndexRequest is the POST items/batch body.
type BatchIndexRequest struct {
	Items []IndexItemRequest `json:"items"`
}

func handleIndexBatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req BatchIndexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		reqs := make([]engine.IndexRequest, len(req.Items))
		for i, it := range req.Items {
			reqs[i] = engine.IndexRequest{Path: it.Path, Content: it.Content, Concept: it.Concept}
		}

		items, err := deps.Engine.IndexBatch(r.Context(), chi.URLParam(r, "workspace"), reqs)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, map[string]any{"items": items})
	}
}

// SearchBody is the POST search body.
type SearchBody struct {
	Query      string             `json:"query"`
	Embedding  []float32          `json:"embedding,omitempty"`
	Candidates []engine.Candidate `json:"candidates"`
	K          int                `json:"k,omitempty"`
	Concept    string             `json:"concept,omitempty"`
	Explain    bool               `json:"explain,omitempty"`
	Baseline   bool               `json:"baseline,omitempty"`
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body SearchBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		resp, err := deps.Engine.Search(r.Context(), engine.SearchRequest{
			Workspace:  chi.URLParam(r, "workspace"),
			Query:      body.Query,
			Embedding:  body.Embedding,
			Candidates: body.Candidates,
			K:          body.K,
			Concept:    body.Concept,
			Explain:    body.Explain,
			Baseline:   body.Baseline,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if resp.Results == nil {
			resp.Results = []engine.Result{}
		}
		writeJSON(w, resp)
	}
}

// FeedbackBody is the POST feedback body.
type FeedbackBody struct {
	QueryID   string `json:"query_id,omitempty"`
	Query     string `json:"query,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Useful    int    `json:"useful"`
	DwellMS   int64  `json:"dwell_ms,omitempty"`
	ClickRank int    `json:"click_rank,omitempty"`
}

func handleFeedback(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body FeedbackBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id, err := deps.Engine.Feedback(r.Context(), engine.FeedbackRequest{
			Workspace: chi.URLParam(r, "workspace"),
			QueryID:   body.QueryID,
			Query:     body.Query,
			ItemID:    body.ItemID,
			Path:      body.Path,
			Useful:    body.Useful,
			DwellMS:   body.DwellMS,
			ClickRank: body.ClickRank,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, map[string]string{"interaction_id": id, "status": "recorded"})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := stats.Summarize(deps.Engine.Store(), chi.URLParam(r, "workspace"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, s)
	}
}

func handleCompare(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := stats.Compare(deps.Engine.Store(), r.URL.Query()["workspace"])
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compare workspaces: %v", err)
			return
		}
		writeJSON(w, report)
	}
}

// writeEngineError maps the engine's sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, store.ErrBadReference):
		httpError(w, http.StatusUnprocessableEntity, "bad_reference", "%v", err)
	case errors.Is(err, store.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
