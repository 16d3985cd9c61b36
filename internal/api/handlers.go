// Package api exposes the scrape service over HTTP: submitting runs, polling
// their status and fetching results.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pricelab/catalog-scraper/internal/database"
	"github.com/pricelab/catalog-scraper/internal/jobs"
	"github.com/pricelab/catalog-scraper/internal/profile"
)

type Handlers struct {
	manager *jobs.Manager
	logger  *slog.Logger
}

func NewHandlers(manager *jobs.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		logger:  logger.With("component", "api"),
	}
}

// Routes mounts the v1 API onto r.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", h.CreateRun)
		r.Get("/runs/{runID}", h.GetRun)
		r.Get("/runs/{runID}/products", h.GetRunProducts)
		r.Get("/profiles", h.ListProfiles)
	})
}

// CreateRunRequest submits a retailer's catalog URLs for scraping.
type CreateRunRequest struct {
	Retailer string   `json:"retailer"`
	Category string   `json:"category"`
	URLs     []string `json:"urls"`
}

type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Retailer == "" {
		h.respondError(w, http.StatusBadRequest, "retailer is required")
		return
	}
	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls are required")
		return
	}

	run, err := h.manager.Submit(r.Context(), req.Retailer, req.Category, req.URLs)
	if err != nil {
		if errors.Is(err, profile.ErrUnknownRetailer) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to submit run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateRunResponse{
		RunID:  run.ID,
		Status: string(run.Status),
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, err := h.manager.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			h.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) GetRunProducts(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	products, err := h.manager.GetRunProducts(r.Context(), runID)
	if err != nil {
		if errors.Is(err, database.ErrRunNotFound) {
			h.respondError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("failed to get run products", "run_id", runID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

// ProfileSummary is the externally visible part of a retailer profile.
// Selectors and challenge markers stay internal.
type ProfileSummary struct {
	Retailer string `json:"retailer"`
	ListFile string `json:"list_file,omitempty"`
	Mode     string `json:"mode"`
}

func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.manager.Profiles()
	summaries := make([]ProfileSummary, len(profiles))
	for i, p := range profiles {
		summaries[i] = ProfileSummary{
			Retailer: p.Retailer,
			ListFile: p.ListFile,
			Mode:     string(p.Mode),
		}
	}

	h.respondJSON(w, http.StatusOK, summaries)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
