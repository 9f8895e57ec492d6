package oauth

import (
	"context"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/jwt"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/scope"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

// Introspection is the RFC 7662 response payload. Everything except Active
// is omitted for inactive tokens.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Nbf       int64  `json:"nbf,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Aud       string `json:"aud,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`
}

// IntrospectService resolves a token (JWT access token or opaque refresh
// token) to its current state. Unknown or dead tokens are reported as
// inactive, never as errors.
type IntrospectService interface {
	Introspect(ctx context.Context, token, tokenTypeHint string) (*Introspection, error)
}

type introspectService struct {
	auths  repository.AuthorizationRepository
	issuer *jwt.Issuer
	now    func() time.Time
}

func NewIntrospectService(auths repository.AuthorizationRepository, issuer *jwt.Issuer) IntrospectService {
	return &introspectService{
		auths:  auths,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *introspectService) Introspect(ctx context.Context, token, tokenTypeHint string) (*Introspection, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.introspect"))
	if token == "" {
		return &Introspection{Active: false}, nil
	}

	// El hint solo ordena los intentos, nunca descarta (RFC 7662 §2.1).
	if tokenTypeHint == "refresh_token" {
		if in := s.introspectRefresh(ctx, token); in != nil {
			return in, nil
		}
		if in := s.introspectAccess(ctx, token); in != nil {
			return in, nil
		}
	} else {
		if in := s.introspectAccess(ctx, token); in != nil {
			return in, nil
		}
		if in := s.introspectRefresh(ctx, token); in != nil {
			return in, nil
		}
	}

	log.Debug("introspection miss")
	return &Introspection{Active: false}, nil
}

// introspectAccess intenta el token como JWT firmado por este servidor.
// Retorna nil si no parsea como tal (para probar la otra forma).
func (s *introspectService) introspectAccess(ctx context.Context, token string) *Introspection {
	parsed, err := jwtv5.Parse(token, s.issuer.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(s.issuer.Iss),
	)
	if err != nil || !parsed.Valid {
		return nil
	}
	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil
	}

	// Firma válida pero puede estar revocado: el estado manda.
	auth, err := s.auths.GetByAccessTokenHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil || !auth.Live(s.now()) {
		return &Introspection{Active: false}
	}

	in := &Introspection{
		Active:    true,
		Scope:     strClaim(claims, "scope"),
		ClientID:  auth.ClientID,
		TokenType: "Bearer",
		Sub:       strClaim(claims, "sub"),
		Aud:       strClaim(claims, "aud"),
		Iss:       strClaim(claims, "iss"),
		Jti:       strClaim(claims, "jti"),
		Exp:       auth.ExpiresAt.Unix(),
		Iat:       auth.IssuedAt.Unix(),
		Nbf:       auth.IssuedAt.Unix(),
	}
	if auth.PrincipalName != auth.ClientID {
		in.Username = auth.PrincipalName
	}
	return in
}

// introspectRefresh intenta el token como refresh opaco.
func (s *introspectService) introspectRefresh(ctx context.Context, token string) *Introspection {
	auth, err := s.auths.GetByRefreshTokenHash(ctx, tokens.SHA256Base64URL(token))
	if err != nil {
		return nil
	}
	now := s.now()
	active := auth.RevokedAt == nil &&
		auth.RefreshRedeemedAt == nil &&
		now.Before(auth.RefreshExpiresAt)
	if !active {
		return &Introspection{Active: false}
	}
	in := &Introspection{
		Active:    true,
		Scope:     scope.Join(auth.Scopes),
		ClientID:  auth.ClientID,
		TokenType: "refresh_token",
		Sub:       auth.PrincipalName,
		Exp:       auth.RefreshExpiresAt.Unix(),
		Iat:       auth.RefreshIssuedAt.Unix(),
	}
	if auth.PrincipalName != auth.ClientID {
		in.Username = auth.PrincipalName
	}
	return in
}

func strClaim(claims jwtv5.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
