package handlers

import (
	"encoding/json"
	"net/http"
)

// CreateCheckout handles POST /billing/checkout
func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)

	var req struct {
		BusinessID int64 `json:"business_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BusinessID <= 0 {
		writeError(w, http.StatusBadRequest, "business_id is required", "INVALID_INPUT")
		return
	}

	session, err := h.billingService.CreateCheckout(r.Context(), claims.Sub, claims.Email, req.BusinessID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// ActivatePlan handles POST /billing/activate
func (h *Handlers) ActivatePlan(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)

	var req struct {
		BusinessID     int64  `json:"business_id"`
		SubscriptionID string `json:"subscription_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BusinessID <= 0 || req.SubscriptionID == "" {
		writeError(w, http.StatusBadRequest, "business_id and subscription_id are required", "INVALID_INPUT")
		return
	}

	if err := h.billingService.ActivatePlan(r.Context(), claims.Sub, req.BusinessID, req.SubscriptionID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Plan activated",
	})
}
