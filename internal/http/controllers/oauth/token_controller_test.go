package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	svc "github.com/dropDatabas3/littlejohn/internal/http/services/oauth"
)

// stubTokenService devuelve respuestas fijas por grant type.
type stubTokenService struct {
	resp *svc.TokenResponse
	err  error

	lastClientID string
	lastSecret   string
}

func (s *stubTokenService) ExchangeClientCredentials(ctx context.Context, req svc.ClientCredentialsRequest) (*svc.TokenResponse, error) {
	s.lastClientID, s.lastSecret = req.ClientID, req.ClientSecret
	return s.resp, s.err
}

func (s *stubTokenService) ExchangePassword(ctx context.Context, req svc.PasswordRequest) (*svc.TokenResponse, error) {
	s.lastClientID, s.lastSecret = req.ClientID, req.ClientSecret
	return s.resp, s.err
}

func (s *stubTokenService) ExchangeRefreshToken(ctx context.Context, req svc.RefreshTokenRequest) (*svc.TokenResponse, error) {
	s.lastClientID, s.lastSecret = req.ClientID, req.ClientSecret
	return s.resp, s.err
}

func (s *stubTokenService) AuthenticateClient(ctx context.Context, clientID, secret string) (*repository.Client, error) {
	return nil, svc.ErrTokenInvalidClient
}

func postForm(t *testing.T, c *TokenController, form url.Values, basic [2]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic[0] != "" {
		req.SetBasicAuth(basic[0], basic[1])
	}
	rec := httptest.NewRecorder()
	c.Token(rec, req)
	return rec
}

func TestToken_Success(t *testing.T) {
	stub := &stubTokenService{resp: &svc.TokenResponse{
		AccessToken:  "jwt-token",
		TokenType:    "Bearer",
		ExpiresIn:    900,
		RefreshToken: "opaque-refresh",
		Scope:        "product.read",
	}}
	c := NewTokenController(stub)

	rec := postForm(t, c, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"ahmet"},
		"client_secret": {"12345"},
		"scope":         {"product.read"},
	}, [2]string{})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body=%s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("Cache-Control: %q", cc)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["access_token"] != "jwt-token" || body["token_type"] != "Bearer" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["expires_in"].(float64) != 900 {
		t.Fatalf("expires_in: %v", body["expires_in"])
	}
	if body["refresh_token"] != "opaque-refresh" || body["scope"] != "product.read" {
		t.Fatalf("unexpected optional fields: %v", body)
	}
}

func TestToken_OmitsEmptyOptionalFields(t *testing.T) {
	stub := &stubTokenService{resp: &svc.TokenResponse{
		AccessToken: "jwt-token",
		TokenType:   "Bearer",
		ExpiresIn:   900,
	}}
	c := NewTokenController(stub)

	rec := postForm(t, c, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"mehmet"},
		"client_secret": {"12345"},
	}, [2]string{})

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := body["refresh_token"]; ok {
		t.Fatalf("refresh_token must be omitted when empty")
	}
	if _, ok := body["scope"]; ok {
		t.Fatalf("scope must be omitted when empty")
	}
}

func TestToken_BasicAuthCredentials(t *testing.T) {
	stub := &stubTokenService{resp: &svc.TokenResponse{AccessToken: "x", TokenType: "Bearer", ExpiresIn: 1}}
	c := NewTokenController(stub)

	rec := postForm(t, c, url.Values{
		"grant_type": {"client_credentials"},
	}, [2]string{"ahmet", "12345"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body=%s", rec.Code, rec.Body.String())
	}
	if stub.lastClientID != "ahmet" || stub.lastSecret != "12345" {
		t.Fatalf("basic credentials not forwarded: %q %q", stub.lastClientID, stub.lastSecret)
	}
}

func TestToken_DuplicateClientAuthRejected(t *testing.T) {
	stub := &stubTokenService{}
	c := NewTokenController(stub)

	rec := postForm(t, c, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"ahmet"},
		"client_secret": {"12345"},
	}, [2]string{"ahmet", "12345"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", rec.Code)
	}
	assertOAuthError(t, rec, "invalid_request")
}

func TestToken_InvalidClient401WithChallenge(t *testing.T) {
	stub := &stubTokenService{err: svc.ErrTokenInvalidClient}
	c := NewTokenController(stub)

	rec := postForm(t, c, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"ahmet"},
		"client_secret": {"wrong"},
	}, [2]string{})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want 401", rec.Code)
	}
	if wa := rec.Header().Get("WWW-Authenticate"); !strings.HasPrefix(wa, "Basic ") {
		t.Fatalf("WWW-Authenticate challenge missing, got %q", wa)
	}
	assertOAuthError(t, rec, "invalid_client")
}

func TestToken_InvalidGrant401NoChallenge(t *testing.T) {
	stub := &stubTokenService{err: svc.ErrTokenInvalidGrant}
	c := NewTokenController(stub)

	rec := postForm(t, c, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {"my-client"},
		"client_secret": {"my-secret"},
		"refresh_token": {"stale"},
	}, [2]string{})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want 401", rec.Code)
	}
	if wa := rec.Header().Get("WWW-Authenticate"); wa != "" {
		t.Fatalf("invalid_grant must not carry a challenge, got %q", wa)
	}
	assertOAuthError(t, rec, "invalid_grant")
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	c := NewTokenController(&stubTokenService{})

	rec := postForm(t, c, url.Values{
		"grant_type": {"authorization_code"},
	}, [2]string{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", rec.Code)
	}
	assertOAuthError(t, rec, "unsupported_grant_type")
}

func TestToken_MissingGrantType(t *testing.T) {
	c := NewTokenController(&stubTokenService{})

	rec := postForm(t, c, url.Values{}, [2]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want 400", rec.Code)
	}
	assertOAuthError(t, rec, "invalid_request")
}

func TestToken_MethodNotAllowed(t *testing.T) {
	c := NewTokenController(&stubTokenService{})

	req := httptest.NewRequest(http.MethodGet, "/oauth2/token", nil)
	rec := httptest.NewRecorder()
	c.Token(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "POST" {
		t.Fatalf("Allow header: %q", allow)
	}
}

func assertOAuthError(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	if body["error"] != code {
		t.Fatalf("error code: got %v want %s", body["error"], code)
	}
	if _, ok := body["error_description"]; !ok {
		t.Fatalf("error_description missing")
	}
}
