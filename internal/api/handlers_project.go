package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/storage"
	"github.com/wallet-insights/internal/types"
)

const defaultTimeSeriesDays = 30

// respondView writes a cached payload as-is so repeated reads within the TTL
// return identical bytes
func respondView(w http.ResponseWriter, contentType string, view *storage.ViewResult) {
	cacheStatus := "MISS"
	if view.FromCache {
		cacheStatus = "HIT"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("X-Computed-At", view.ComputedAt.UTC().Format(time.RFC3339))
	w.WriteHeader(http.StatusOK)
	w.Write(view.Payload)
}

// requireProjectOwner admits only the project owner to project views. Exports
// carry per-wallet rows, including those of monetizable wallets.
func (s *Server) requireProjectOwner(w http.ResponseWriter, r *http.Request, projectID string) bool {
	requesterID, ok := requireRequester(w, r)
	if !ok {
		return false
	}
	if err := s.privacyService.RequireProjectOwner(r.Context(), projectID, requesterID); err != nil {
		respondServiceError(w, r, err)
		return false
	}
	return true
}

// handleGetDashboard handles GET /api/projects/{id}/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	if !s.requireProjectOwner(w, r, projectID) {
		return
	}

	view, err := s.aggregationService.GetDashboard(r.Context(), projectID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondView(w, "application/json", view)
}

// handleGetTimeSeries handles GET /api/projects/{id}/timeseries?metric=&days=
func (s *Server) handleGetTimeSeries(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	if !s.requireProjectOwner(w, r, projectID) {
		return
	}
	query := r.URL.Query()

	days := defaultTimeSeriesDays
	if v := query.Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondServiceError(w, r, apperrors.NewValidationError("days", "must be an integer"))
			return
		}
		days = parsed
	}

	metric := query.Get("metric")
	if metric == "" {
		metric = string(types.MetricTransactions)
	}

	view, err := s.aggregationService.GetTimeSeries(r.Context(), projectID, metric, days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondView(w, "application/json", view)
}

// handleExport handles GET /api/projects/{id}/export?format=json|csv
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	if !s.requireProjectOwner(w, r, projectID) {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(types.ExportJSON)
	}

	view, err := s.aggregationService.ExportReport(r.Context(), projectID, format)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	contentType := "application/json"
	if format == string(types.ExportCSV) {
		contentType = "text/csv"
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", projectID+"-report.csv"))
	}
	respondView(w, contentType, view)
}

// handleInvalidateCache handles DELETE /api/projects/{id}/cache
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	if !s.requireProjectOwner(w, r, projectID) {
		return
	}

	removed, err := s.aggregationService.Invalidate(r.Context(), projectID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"projectId": projectID,
		"removed":   removed,
	})
}

// handleRecompute handles POST /api/projects/{id}/recompute - Bulk recompute of every wallet.
// A partial failure answers 207 with the per-wallet outcomes.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	if !s.requireProjectOwner(w, r, projectID) {
		return
	}

	result, err := s.scoringService.RecomputeProject(r.Context(), projectID)
	if err != nil {
		if apperrors.IsPartialBatchFailure(err) && result != nil {
			respondJSON(w, http.StatusMultiStatus, result)
			return
		}
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleGetEarnings handles GET /api/users/{id}/earnings
func (s *Server) handleGetEarnings(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["id"]

	requesterID, ok := requireRequester(w, r)
	if !ok {
		return
	}

	earnings, err := s.privacyService.GetEarnings(r.Context(), ownerID, requesterID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, earnings)
}
