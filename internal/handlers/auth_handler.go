package handlers

import (
	"log"
	"net/http"
	"net/url"

	"energybalance/internal/service"
)

// AuthHandler drives the Google OAuth flow: consent redirect, callback
// dispatch and the short join link printed on invites.
type AuthHandler struct {
	families    *service.FamilyService
	frontendURL string
}

// NewAuthHandler creates an auth handler. frontendURL is the base the
// browser is sent back to after authentication; empty means same origin.
func NewAuthHandler(families *service.FamilyService, frontendURL string) *AuthHandler {
	return &AuthHandler{families: families, frontendURL: frontendURL}
}

// Login redirects to Google's consent screen. An optional invite code
// rides along in the OAuth state.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL := h.families.LoginURL(r.URL.Query().Get("invite"))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Join is the short link a partner receives; it forwards into the consent
// flow with the invite code attached.
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, h.frontendURL+"/", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/auth/login?invite="+url.QueryEscape(code), http.StatusFound)
}

// Callback handles Google's redirect back. Success lands the browser on the
// front-end root with the email and a setup/joined marker; auth failures
// land there with a generic error flag.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" || q.Get("code") == "" {
		log.Printf("oauth callback rejected by provider: %q", errParam)
		h.redirectAuthFailed(w, r)
		return
	}

	result, err := h.families.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		log.Printf("oauth callback failed: %v", err)
		h.redirectAuthFailed(w, r)
		return
	}
	if result.InviteFailed {
		log.Printf("invite code could not be honored for %s; continued as normal login", result.Email)
	}

	params := url.Values{"email": {result.Email}}
	switch {
	case result.SetupNeeded:
		params.Set("setup", "needed")
	case result.Joined:
		params.Set("joined", "true")
	}
	http.Redirect(w, r, h.frontendURL+"/?"+params.Encode(), http.StatusFound)
}

func (h *AuthHandler) redirectAuthFailed(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/?error=auth_failed", http.StatusFound)
}
