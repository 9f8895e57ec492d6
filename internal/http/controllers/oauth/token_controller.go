// Package oauth - controllers for the OAuth2 endpoints (token, jwks,
// introspect, revoke).
package oauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"

	svc "github.com/dropDatabas3/littlejohn/internal/http/services/oauth"
)

// TokenController handles POST /oauth2/token.
type TokenController struct {
	service svc.TokenService
}

// NewTokenController creates the controller.
func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// Token handles POST /oauth2/token
// Implements: Client Credentials, Resource Owner Password, Refresh Token grants.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	// Method check
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		c.writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "Only POST method is allowed")
		return
	}

	// Limit body size (64KB for OAuth forms)
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	// Parse form
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		c.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
		return
	}

	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	log = log.With(logger.GrantType(grantType))

	clientID, clientSecret, ok := clientCredentials(r)
	if !ok {
		c.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Duplicate client authentication")
		return
	}

	var resp *svc.TokenResponse
	var err error

	switch grantType {
	case "client_credentials":
		resp, err = c.handleClientCredentials(ctx, r, clientID, clientSecret)

	case "password":
		resp, err = c.handlePassword(ctx, r, clientID, clientSecret)

	case "refresh_token":
		resp, err = c.handleRefreshToken(ctx, r, clientID, clientSecret)

	case "":
		c.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "grant_type is required")
		return

	default:
		c.writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Grant type not supported")
		return
	}

	if err != nil {
		c.handleServiceError(w, err, ctx)
		return
	}

	c.writeTokenResponse(w, resp)
}

func (c *TokenController) handleClientCredentials(ctx context.Context, r *http.Request, clientID, clientSecret string) (*svc.TokenResponse, error) {
	req := svc.ClientCredentialsRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
	}
	return c.service.ExchangeClientCredentials(ctx, req)
}

func (c *TokenController) handlePassword(ctx context.Context, r *http.Request, clientID, clientSecret string) (*svc.TokenResponse, error) {
	req := svc.PasswordRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     strings.TrimSpace(r.PostForm.Get("username")),
		Password:     r.PostForm.Get("password"),
		Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
	}
	return c.service.ExchangePassword(ctx, req)
}

func (c *TokenController) handleRefreshToken(ctx context.Context, r *http.Request, clientID, clientSecret string) (*svc.TokenResponse, error) {
	req := svc.RefreshTokenRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: strings.TrimSpace(r.PostForm.Get("refresh_token")),
		Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
	}
	return c.service.ExchangeRefreshToken(ctx, req)
}

func (c *TokenController) handleServiceError(w http.ResponseWriter, err error, ctx context.Context) {
	log := logger.From(ctx)
	switch err {
	case svc.ErrTokenInvalidRequest:
		c.writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing or invalid parameters")
	case svc.ErrTokenInvalidClient:
		w.Header().Set("WWW-Authenticate", `Basic realm="littlejohn", charset="UTF-8"`)
		c.writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "Client authentication failed")
	case svc.ErrTokenInvalidGrant:
		c.writeOAuthError(w, http.StatusUnauthorized, "invalid_grant", "Invalid or expired grant")
	case svc.ErrTokenUnauthorizedClient:
		c.writeOAuthError(w, http.StatusBadRequest, "unauthorized_client", "Client not authorized for this grant type")
	case svc.ErrTokenUnsupportedGrantType:
		c.writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Grant type not supported")
	case svc.ErrTokenInvalidScope:
		c.writeOAuthError(w, http.StatusBadRequest, "invalid_scope", "Requested scope is invalid or not allowed")
	default:
		log.Error("token endpoint error", logger.Err(err))
		c.writeOAuthError(w, http.StatusInternalServerError, "server_error", "An unexpected error occurred")
	}
}

func (c *TokenController) writeOAuthError(w http.ResponseWriter, status int, errorCode, description string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errorCode + `","error_description":"` + description + `"}`))
}

func (c *TokenController) writeTokenResponse(w http.ResponseWriter, resp *svc.TokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	// Build JSON manually for control over optional fields
	out := `{"access_token":"` + resp.AccessToken + `","token_type":"` + resp.TokenType + `","expires_in":` + itoa(resp.ExpiresIn)
	if resp.RefreshToken != "" {
		out += `,"refresh_token":"` + resp.RefreshToken + `"`
	}
	if resp.Scope != "" {
		out += `,"scope":"` + resp.Scope + `"`
	}
	out += `}`
	_, _ = w.Write([]byte(out))
}

// clientCredentials resolves client auth from Basic header or form body.
// Sending credentials through both channels at once is rejected (RFC 6749 §2.3).
func clientCredentials(r *http.Request) (id, secret string, ok bool) {
	basicID, basicSecret, hasBasic := r.BasicAuth()
	formID := strings.TrimSpace(r.PostForm.Get("client_id"))
	formSecret := r.PostForm.Get("client_secret")

	if hasBasic {
		if formSecret != "" {
			return "", "", false
		}
		return basicID, basicSecret, true
	}
	return formID, formSecret, true
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte(n%10) + '0'
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
