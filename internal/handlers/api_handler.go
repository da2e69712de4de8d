package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"energybalance/internal/models"
	"energybalance/internal/service"
)

// APIHandler serves the JSON surface the dashboard front-end polls.
type APIHandler struct {
	families *service.FamilyService
	email    *service.EmailService
	baseURL  string
}

func NewAPIHandler(families *service.FamilyService, email *service.EmailService, baseURL string) *APIHandler {
	return &APIHandler{families: families, email: email, baseURL: baseURL}
}

// Dashboard returns both members' energy plus the household classification.
func (h *APIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondWithError(w, http.StatusBadRequest, "email is required", "", nil)
		return
	}

	view, err := h.families.Dashboard(r.Context(), email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "dashboard unavailable", "dashboard request failed", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Setup lets the owner record the partner's email and pick their own role
// before the partner has authenticated.
func (h *APIHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MyEmail      string `json:"my_email"`
		PartnerEmail string `json:"partner_email"`
		MyRole       string `json:"my_role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", "", nil)
		return
	}
	if req.MyEmail == "" || req.PartnerEmail == "" || req.MyRole == "" {
		respondWithError(w, http.StatusBadRequest, "my_email, partner_email and my_role are required", "", nil)
		return
	}
	if req.MyEmail == req.PartnerEmail {
		respondWithError(w, http.StatusBadRequest, "partner email must differ from your own", "", nil)
		return
	}

	err := h.families.Setup(r.Context(), req.MyEmail, req.PartnerEmail, models.Role(req.MyRole))
	switch {
	case errors.Is(err, service.ErrFamilyNotFound):
		respondWithError(w, http.StatusNotFound, "family not found", "", nil)
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrAlreadyPaired):
		respondWithError(w, http.StatusForbidden, err.Error(), "", nil)
	case errors.Is(err, service.ErrInvalidRole):
		respondWithError(w, http.StatusBadRequest, "my_role must be mom or dad", "", nil)
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, "setup failed", "setup request failed", err)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}

// Invite issues a short-lived code plus the join URL to share.
func (h *APIHandler) Invite(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondWithError(w, http.StatusBadRequest, "email is required", "", nil)
		return
	}

	code, err := h.families.CreateInvite(r.Context(), email)
	if errors.Is(err, service.ErrFamilyNotFound) {
		respondWithError(w, http.StatusNotFound, "family not found", "", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "could not create invite", "invite request failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"code": code,
		"url":  h.joinURL(code),
	})
}

// SendInvite issues a code and emails the join link to the partner.
func (h *APIHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string `json:"email"`
		PartnerEmail string `json:"partner_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", "", nil)
		return
	}
	if req.Email == "" || req.PartnerEmail == "" {
		respondWithError(w, http.StatusBadRequest, "email and partner_email are required", "", nil)
		return
	}

	code, err := h.families.CreateInvite(r.Context(), req.Email)
	if errors.Is(err, service.ErrFamilyNotFound) {
		respondWithError(w, http.StatusNotFound, "family not found", "", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "could not create invite", "invite request failed", err)
		return
	}

	if !h.email.IsEnabled() {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "email delivery is not configured",
			"url":     h.joinURL(code),
		})
		return
	}
	if err := h.email.SendInviteEmail(r.Context(), req.PartnerEmail, h.joinURL(code)); err != nil {
		respondWithError(w, http.StatusInternalServerError, "could not send invite email", "invite email failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// UpdateEnergy stores a manual override for the caller's role.
func (h *APIHandler) UpdateEnergy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Energy *int   `json:"energy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", "", nil)
		return
	}
	if req.Email == "" || req.Energy == nil {
		respondWithError(w, http.StatusBadRequest, "email and energy are required", "", nil)
		return
	}

	role, energy, err := h.families.SetManualEnergy(r.Context(), req.Email, *req.Energy)
	if errors.Is(err, service.ErrFamilyNotFound) {
		respondWithError(w, http.StatusNotFound, "family not found", "", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "could not update energy", "update-energy request failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"energy":  energy,
		"role":    role,
	})
}

// ResetEnergy clears every manual override for the caller's family. The
// front-end invokes this once per local day; repeat calls are no-ops.
func (h *APIHandler) ResetEnergy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", "", nil)
		return
	}
	if req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "email is required", "", nil)
		return
	}

	err := h.families.ResetDailyEnergy(r.Context(), req.Email)
	if errors.Is(err, service.ErrFamilyNotFound) {
		respondWithError(w, http.StatusNotFound, "family not found", "", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "could not reset energy", "reset-daily-energy request failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "daily energy reset",
	})
}

// Ping is the liveness probe.
func (h *APIHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("pong"))
}

func (h *APIHandler) joinURL(code string) string {
	return h.baseURL + "/join?code=" + url.QueryEscape(code)
}
