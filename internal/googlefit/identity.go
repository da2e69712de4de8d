// Package googlefit talks to Google's OAuth and Fitness APIs. Both adapters
// are stateless request/response clients; all family state lives upstream
// of this package.
package googlefit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"energybalance/internal/models"
)

var (
	// ErrAuthRejected means Google refused a code exchange or token
	// refresh. Terminal for that flow; never retried within a request.
	ErrAuthRejected = errors.New("google rejected the credential exchange")
	// ErrNoIdentity means the token resolved to no usable email address.
	ErrNoIdentity = errors.New("google returned no email for the token")
)

const userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Identity handles the consent flow and resolves tokens back to an email.
type Identity struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewIdentity(clientID, clientSecret, redirectURL string) *Identity {
	return &Identity{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/fitness.activity.read",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		userInfoURL: userInfoURL,
	}
}

// AuthCodeURL builds the consent-screen URL. The state string is
// round-tripped verbatim by Google and carries the login-vs-invite marker.
// offline access with a forced consent prompt is required to receive a
// refresh token on every signup.
func (g *Identity) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps an authorization code for tokens. One-shot: an expired or
// reused code surfaces as ErrAuthRejected.
func (g *Identity) Exchange(ctx context.Context, code string) (*models.TokenRecord, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return tokenRecord(tok, nil), nil
}

// Refresh mints a new access token from the stored refresh token. A missing
// refresh token or an upstream refusal (revoked grant) means the member is
// effectively disconnected; the caller skips aggregation for them.
func (g *Identity) Refresh(ctx context.Context, tok *models.TokenRecord) (*models.TokenRecord, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", ErrAuthRejected)
	}
	src := g.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	return tokenRecord(fresh, tok), nil
}

// Email resolves the human identity behind an access token. Families are
// keyed by email, so a failure here aborts the whole callback flow.
func (g *Identity) Email(ctx context.Context, accessToken string) (string, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	resp, err := client.Get(g.userInfoURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch user info: status %d", resp.StatusCode)
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse user info: %w", err)
	}
	if payload.Email == "" {
		return "", ErrNoIdentity
	}
	return payload.Email, nil
}

func tokenRecord(tok *oauth2.Token, prev *models.TokenRecord) *models.TokenRecord {
	rec := &models.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	// Google omits the refresh token from refresh responses; keep the one
	// we already hold.
	if rec.RefreshToken == "" && prev != nil {
		rec.RefreshToken = prev.RefreshToken
	}
	return rec
}
