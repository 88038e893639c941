package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/luminara-labs/bizhub/internal/domain"
)

// CreateInvitation handles POST /businesses/{businessID}/invitations
func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	businessID, err := strconv.ParseInt(chi.URLParam(r, "businessID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business ID", "INVALID_INPUT")
		return
	}

	var req domain.CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	inv, err := h.invitationService.Create(r.Context(), claims.Sub, businessID, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

// ListInvitations handles GET /businesses/{businessID}/invitations
func (h *Handlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	businessID, err := strconv.ParseInt(chi.URLParam(r, "businessID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business ID", "INVALID_INPUT")
		return
	}

	var status *domain.InvitationStatus
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, ok := domain.ParseInvitationStatus(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status filter", "INVALID_INPUT")
			return
		}
		status = &parsed
	}

	limit, offset := parsePagination(r)

	items, err := h.invitationService.List(r.Context(), claims.Sub, businessID, status, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invitations": items,
		"limit":       limit,
		"offset":      offset,
	})
}

// UpdateInvitation handles PUT /invitations with an action payload
func (h *Handlers) UpdateInvitation(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)

	var req domain.UpdateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}
	if req.InvitationID == 0 {
		writeError(w, http.StatusBadRequest, "invitation_id is required", "INVALID_INPUT")
		return
	}

	inv, err := h.invitationService.UpdateStatus(r.Context(), claims.Sub, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// DeleteInvitation handles DELETE /invitations?id=
func (h *Handlers) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid invitation ID", "INVALID_INPUT")
		return
	}

	if err := h.invitationService.Delete(r.Context(), claims.Sub, id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Invitation deleted",
	})
}

// PreviewInvitation handles GET /join?code= without consuming the invitation
func (h *Handlers) PreviewInvitation(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing invitation code", "INVALID_INPUT")
		return
	}

	preview, err := h.invitationService.Preview(r.Context(), code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// Join handles POST /join, redeeming an invitation for the authenticated user
func (h *Handlers) Join(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHORIZED")
		return
	}

	var req domain.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	// Terms must be accepted before any lookup happens.
	if !req.AcceptTerms {
		writeError(w, http.StatusBadRequest, "You must accept the terms of service", "TERMS_NOT_ACCEPTED")
		return
	}

	membership, err := h.invitationService.Accept(r.Context(), claims.Sub, req.InvitationCode, getClientIP(r), r.UserAgent())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Invitation accepted. Your membership is pending admin approval.",
		"membership": membership,
	})
}

// ApproveMembership handles POST /businesses/{businessID}/members/{id}/approve
func (h *Handlers) ApproveMembership(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	businessID, err := strconv.ParseInt(chi.URLParam(r, "businessID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid business ID", "INVALID_INPUT")
		return
	}
	membershipID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid membership ID", "INVALID_INPUT")
		return
	}

	membership, err := h.invitationService.ApproveMembership(r.Context(), claims.Sub, businessID, membershipID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, membership)
}
