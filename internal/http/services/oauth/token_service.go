// Package oauth implements the token endpoint services: grant exchanges,
// introspection and revocation. Controllers stay thin; every OAuth2 decision
// (authentication, negotiation, persistence) lives here.
package oauth

import (
	"context"
	"errors"
)

// Sentinel errors, one per OAuth2 error code. Controllers map these to the
// wire response; services never build HTTP payloads.
var (
	ErrTokenInvalidRequest       = errors.New("invalid_request")
	ErrTokenInvalidClient        = errors.New("invalid_client")
	ErrTokenInvalidGrant         = errors.New("invalid_grant")
	ErrTokenUnauthorizedClient   = errors.New("unauthorized_client")
	ErrTokenUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrTokenInvalidScope         = errors.New("invalid_scope")
	ErrTokenServerError          = errors.New("server_error")
)

// ClientCredentialsRequest carries the parameters of a client_credentials
// exchange. ClientID/ClientSecret come from Basic auth or the form body.
type ClientCredentialsRequest struct {
	ClientID     string
	ClientSecret string
	Scope        string // space-delimited, may be empty
}

// PasswordRequest carries the parameters of a resource-owner password exchange.
type PasswordRequest struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scope        string
}

// RefreshTokenRequest carries the parameters of a refresh_token exchange.
// Scope, when present, may only narrow the originally granted set.
type RefreshTokenRequest struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
}

// TokenResponse is the successful token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenService exchanges credentials for tokens. One method per grant type;
// the controller dispatches on grant_type and never inspects credentials.
// It doubles as the ClientAuthenticator for the revocation and introspection
// endpoints so they share the client cache and timing behavior.
type TokenService interface {
	ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error)
	ExchangePassword(ctx context.Context, req PasswordRequest) (*TokenResponse, error)
	ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)

	ClientAuthenticator
}
