package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/flow"
	"github.com/wallet-insights/internal/service"
	"github.com/wallet-insights/internal/types"
)

// requireRequester reads the requester id header, answering 401 when it is missing
func requireRequester(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return "", false
	}
	return userID, true
}

// requireOwner resolves access and only lets the wallet owner through.
// Other requesters read wallets through the privacy-gated view.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request, walletID string) bool {
	requesterID, ok := requireRequester(w, r)
	if !ok {
		return false
	}
	decision, _, err := s.privacyService.RequireAccess(r.Context(), walletID, requesterID)
	if err != nil {
		respondServiceError(w, r, err)
		return false
	}
	if decision.Reason != types.ReasonOwner {
		respondServiceError(w, r, apperrors.NewUnauthorizedError("raw wallet data is visible to the owner only, use the wallet view"))
		return false
	}
	return true
}

// parseWindow reads the optional RFC3339 from/to query parameters
func parseWindow(r *http.Request) (flow.Window, error) {
	var window flow.Window
	query := r.URL.Query()
	if v := query.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return window, apperrors.NewValidationError("from", "must be an RFC3339 timestamp")
		}
		window.From = t
	}
	if v := query.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return window, apperrors.NewValidationError("to", "must be an RFC3339 timestamp")
		}
		window.To = t
	}
	return window, nil
}

// handleGetFlows handles GET /api/wallets/{id}/flows - Flow analysis for a window
func (s *Server) handleGetFlows(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]

	window, err := parseWindow(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !s.requireOwner(w, r, walletID) {
		return
	}

	analysis, err := s.flowService.GetFlowAnalysis(r.Context(), walletID, window)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if analysis == nil {
		// no transactions in the window
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, analysis)
}

// handleGetProductivity handles GET /api/wallets/{id}/productivity
func (s *Server) handleGetProductivity(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]
	if !s.requireOwner(w, r, walletID) {
		return
	}

	score, err := s.scoringService.GetOrComputeProductivity(r.Context(), walletID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, score)
}

// handleAdvanceStages handles POST /api/wallets/{id}/stages/advance
func (s *Server) handleAdvanceStages(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]
	if !s.requireOwner(w, r, walletID) {
		return
	}

	updated, err := s.scoringService.AdvanceAdoptionStages(r.Context(), walletID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"walletId": walletID,
		"updated":  updated,
	})
}

// handleInitializeWallet handles POST /api/wallets/{id}/initialize
func (s *Server) handleInitializeWallet(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]
	if !s.requireOwner(w, r, walletID) {
		return
	}

	stages, err := s.scoringService.InitializeWallet(r.Context(), walletID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"walletId": walletID,
		"stages":   stages,
	})
}

// handleCheckAccess handles GET /api/wallets/{id}/access?paid=
func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]

	paid := false
	if v := r.URL.Query().Get("paid"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondServiceError(w, r, apperrors.NewValidationError("paid", "must be a boolean"))
			return
		}
		paid = parsed
	}

	decision, err := s.privacyService.CheckAccess(r.Context(), walletID, r.Header.Get(headerUserID), paid)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, decision)
}

// handleGetWalletView handles GET /api/wallets/{id}/view - Privacy-gated wallet view
func (s *Server) handleGetWalletView(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]

	view, err := s.privacyService.GetWalletView(r.Context(), walletID, r.Header.Get(headerUserID))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleSetPrivacyMode handles PUT /api/wallets/{id}/privacy
func (s *Server) handleSetPrivacyMode(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]

	var req struct {
		Mode string `json:"mode"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	actorID, ok := requireRequester(w, r)
	if !ok {
		return
	}

	entry, err := s.privacyService.SetPrivacyMode(r.Context(), walletID, actorID, req.Mode)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// handlePurchaseAccess handles POST /api/wallets/{id}/access-grants
func (s *Server) handlePurchaseAccess(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]

	var req struct {
		PaymentRef string `json:"paymentRef"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	requesterID, ok := requireRequester(w, r)
	if !ok {
		return
	}

	result, err := s.privacyService.PurchaseAccess(r.Context(), service.PurchaseAccessInput{
		WalletID:    walletID,
		RequesterID: requesterID,
		PaymentRef:  req.PaymentRef,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}
