package oauth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/littlejohn/internal/cache"
	"github.com/dropDatabas3/littlejohn/internal/config"
	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/jwt"
	"github.com/dropDatabas3/littlejohn/internal/metrics"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/scope"
	"github.com/dropDatabas3/littlejohn/internal/security/password"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

const (
	clientCacheTTL    = 60 * time.Second
	refreshTokenBytes = 48
)

// dummyPHC is a well-formed argon2id hash that matches nothing. Verifying
// against it keeps the cost of a lookup miss equal to the cost of a real
// secret check, so response timing does not reveal whether a client exists.
const dummyPHC = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Deps agrupa las dependencias del token service.
type Deps struct {
	Clients repository.ClientRepository
	Users   repository.UserRepository
	Auths   repository.AuthorizationRepository
	Issuer  *jwt.Issuer
	Cache   cache.Cache // opcional; nil desactiva el cache de clients

	RefreshTTL         time.Duration
	RequireScope       bool
	ReuseRefreshTokens bool
	ScopeStrategy      string

	// Now permite inyectar el reloj en tests. nil = time.Now UTC.
	Now func() time.Time
}

type tokenService struct {
	d Deps
}

// NewTokenService builds the token service. Panics on missing mandatory deps
// so miswiring fails at startup, not on the first request.
func NewTokenService(d Deps) TokenService {
	if d.Clients == nil || d.Auths == nil || d.Issuer == nil {
		panic("oauth: token service requires Clients, Auths and Issuer")
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = 720 * time.Hour
	}
	if d.ScopeStrategy == "" {
		d.ScopeStrategy = config.ScopeStrategyIntersectWhenPresent
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &tokenService{d: d}
}

func (s *tokenService) ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.client_credentials"))
	start := s.d.Now()

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantClientCredentials)
	}
	if !client.AllowsGrant(repository.GrantClientCredentials) {
		return nil, s.fail(log, ErrTokenUnauthorizedClient, req.ClientID, repository.GrantClientCredentials)
	}

	requested, err := s.parseRequestedScopes(req.Scope)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantClientCredentials)
	}
	granted := scope.Negotiate(requested, client.Scopes, nil)
	if s.d.RequireScope && len(granted) == 0 {
		return nil, s.fail(log, ErrTokenInvalidScope, req.ClientID, repository.GrantClientCredentials)
	}

	// M2M: el subject es el propio client y no hay refresh token.
	resp, err := s.issueAndPersist(ctx, client, client.ClientID, repository.GrantClientCredentials, granted, false)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantClientCredentials)
	}

	s.observe(log, start, client.ClientID, client.ClientID, repository.GrantClientCredentials, resp.Scope)
	return resp, nil
}

func (s *tokenService) ExchangePassword(ctx context.Context, req PasswordRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.password"))
	start := s.d.Now()

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantPassword)
	}
	if !client.AllowsGrant(repository.GrantPassword) {
		return nil, s.fail(log, ErrTokenUnauthorizedClient, req.ClientID, repository.GrantPassword)
	}

	user, err := s.verifyUser(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantPassword)
	}

	requested, err := s.parseRequestedScopes(req.Scope)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantPassword)
	}

	userScopes := user.ScopeAuthorities()
	var granted []string
	if len(userScopes) == 0 && s.d.ScopeStrategy == config.ScopeStrategyAlwaysIntersect {
		granted = nil
	} else {
		granted = scope.Negotiate(requested, client.Scopes, userScopes)
	}
	if s.d.RequireScope && len(granted) == 0 {
		return nil, s.fail(log, ErrTokenInvalidScope, req.ClientID, repository.GrantPassword)
	}

	withRefresh := client.AllowsGrant(repository.GrantRefreshToken)
	resp, err := s.issueAndPersist(ctx, client, user.Username, repository.GrantPassword, granted, withRefresh)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantPassword)
	}

	s.observe(log, start, client.ClientID, user.Username, repository.GrantPassword, resp.Scope)
	return resp, nil
}

func (s *tokenService) ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))
	start := s.d.Now()

	if req.RefreshToken == "" {
		return nil, s.fail(log, ErrTokenInvalidRequest, req.ClientID, repository.GrantRefreshToken)
	}

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantRefreshToken)
	}
	if !client.AllowsGrant(repository.GrantRefreshToken) {
		return nil, s.fail(log, ErrTokenUnauthorizedClient, req.ClientID, repository.GrantRefreshToken)
	}

	hash := tokens.SHA256Base64URL(req.RefreshToken)

	var prev *repository.Authorization
	if s.d.ReuseRefreshTokens {
		prev, err = s.d.Auths.GetByRefreshTokenHash(ctx, hash)
	} else {
		// Redención CAS: exactamente un caller concurrente gana el token.
		prev, err = s.d.Auths.Redeem(ctx, hash)
	}
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, s.fail(log, ErrTokenInvalidGrant, req.ClientID, repository.GrantRefreshToken)
		}
		log.Error("refresh lookup failed", logger.Err(err))
		return nil, s.fail(log, ErrTokenServerError, req.ClientID, repository.GrantRefreshToken)
	}

	now := s.d.Now()
	switch {
	case prev.ClientID != client.ClientID:
		return nil, s.fail(log, ErrTokenInvalidGrant, req.ClientID, repository.GrantRefreshToken)
	case prev.RevokedAt != nil:
		return nil, s.fail(log, ErrTokenInvalidGrant, req.ClientID, repository.GrantRefreshToken)
	case s.d.ReuseRefreshTokens && prev.RefreshRedeemedAt != nil:
		return nil, s.fail(log, ErrTokenInvalidGrant, req.ClientID, repository.GrantRefreshToken)
	case !now.Before(prev.RefreshExpiresAt):
		return nil, s.fail(log, ErrTokenInvalidGrant, req.ClientID, repository.GrantRefreshToken)
	}

	requested, err := s.parseRequestedScopes(req.Scope)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantRefreshToken)
	}
	// Los scopes solo pueden acotarse respecto a la emisión original.
	granted := prev.Scopes
	if len(requested) > 0 {
		if !scope.Subset(requested, prev.Scopes) {
			return nil, s.fail(log, ErrTokenInvalidGrant, req.ClientID, repository.GrantRefreshToken)
		}
		granted = scope.Negotiate(requested, prev.Scopes, nil)
	}

	resp, next, err := s.buildIssuance(client, prev.PrincipalName, repository.GrantRefreshToken, granted, !s.d.ReuseRefreshTokens)
	if err != nil {
		return nil, s.fail(log, err, req.ClientID, repository.GrantRefreshToken)
	}
	if s.d.ReuseRefreshTokens {
		// El refresh token original sobrevive; solo cambia el access token.
		next.RefreshTokenHash = prev.RefreshTokenHash
		next.RefreshIssuedAt = prev.RefreshIssuedAt
		next.RefreshExpiresAt = prev.RefreshExpiresAt
		resp.RefreshToken = req.RefreshToken
	}
	if err := s.d.Auths.Replace(ctx, prev.ID, next); err != nil {
		log.Error("refresh rotation persist failed", logger.Err(err))
		return nil, s.fail(log, ErrTokenServerError, req.ClientID, repository.GrantRefreshToken)
	}

	s.observe(log, start, client.ClientID, prev.PrincipalName, repository.GrantRefreshToken, resp.Scope)
	return resp, nil
}

// authenticateClient resuelve y autentica el client. Cualquier fallo colapsa
// en invalid_client; un miss de lookup paga el mismo costo de verificación
// que un hit para no filtrar existencia por timing.
func (s *tokenService) authenticateClient(ctx context.Context, clientID, secret string) (*repository.Client, error) {
	if clientID == "" || secret == "" {
		return nil, ErrTokenInvalidClient
	}
	client, err := s.lookupClient(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			password.Verify(secret, dummyPHC)
			return nil, ErrTokenInvalidClient
		}
		return nil, ErrTokenServerError
	}
	if !password.Verify(secret, client.SecretHash) {
		return nil, ErrTokenInvalidClient
	}
	return client, nil
}

// lookupClient lee el client del cache (JSON) con fallback al repositorio.
func (s *tokenService) lookupClient(ctx context.Context, clientID string) (*repository.Client, error) {
	key := "client:" + clientID
	if s.d.Cache != nil {
		if b, ok := s.d.Cache.Get(key); ok {
			var c repository.Client
			if err := json.Unmarshal(b, &c); err == nil {
				return &c, nil
			}
			s.d.Cache.Delete(key)
		}
	}
	client, err := s.d.Clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if s.d.Cache != nil {
		if b, err := json.Marshal(client); err == nil {
			s.d.Cache.Set(key, b, clientCacheTTL)
		}
	}
	return client, nil
}

// verifyUser valida las credenciales del resource owner. Usuario ausente,
// deshabilitado o password incorrecto colapsan en invalid_grant.
func (s *tokenService) verifyUser(ctx context.Context, username, plain string) (*repository.User, error) {
	if username == "" || plain == "" {
		return nil, ErrTokenInvalidRequest
	}
	if s.d.Users == nil {
		return nil, ErrTokenUnsupportedGrantType
	}
	user, err := s.d.Users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			password.Verify(plain, dummyPHC)
			return nil, ErrTokenInvalidGrant
		}
		return nil, ErrTokenServerError
	}
	if !user.Enabled || !password.Verify(plain, user.PasswordHash) {
		return nil, ErrTokenInvalidGrant
	}
	return user, nil
}

// parseRequestedScopes parsea el parámetro scope y valida la sintaxis de
// cada nombre. Nombres malformados son invalid_scope; nombres desconocidos
// se resuelven después, en la negociación.
func (s *tokenService) parseRequestedScopes(param string) ([]string, error) {
	requested := scope.Parse(param)
	for _, name := range requested {
		if !scope.ValidName(name) {
			return nil, ErrTokenInvalidScope
		}
	}
	return requested, nil
}

// buildIssuance firma el access token y arma la authorization sin persistir.
func (s *tokenService) buildIssuance(client *repository.Client, subject, grantType string, granted []string, withRefresh bool) (*TokenResponse, *repository.Authorization, error) {
	now := s.d.Now()
	access, exp, err := s.d.Issuer.IssueAccess(jwt.TokenContext{
		Client:    client,
		Subject:   subject,
		GrantType: grantType,
		Scopes:    granted,
		IssuedAt:  now,
	})
	if err != nil {
		return nil, nil, ErrTokenServerError
	}

	auth := &repository.Authorization{
		ID:              uuid.NewString(),
		ClientID:        client.ClientID,
		PrincipalName:   subject,
		GrantType:       grantType,
		Scopes:          granted,
		AccessTokenHash: tokens.SHA256Base64URL(access),
		IssuedAt:        now,
		ExpiresAt:       exp,
	}

	resp := &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(exp.Sub(now).Seconds()),
		Scope:       scope.Join(granted),
	}

	if withRefresh {
		refresh, err := tokens.GenerateOpaqueToken(refreshTokenBytes)
		if err != nil {
			return nil, nil, ErrTokenServerError
		}
		ttl := s.d.RefreshTTL
		if client.RefreshTokenTTL > 0 {
			ttl = client.RefreshTokenTTL
		}
		auth.RefreshTokenHash = tokens.SHA256Base64URL(refresh)
		auth.RefreshIssuedAt = now
		auth.RefreshExpiresAt = now.Add(ttl)
		resp.RefreshToken = refresh
	}

	return resp, auth, nil
}

// issueAndPersist es el punto único de commit: si Save falla no se entrega
// ningún token al caller.
func (s *tokenService) issueAndPersist(ctx context.Context, client *repository.Client, subject, grantType string, granted []string, withRefresh bool) (*TokenResponse, error) {
	resp, auth, err := s.buildIssuance(client, subject, grantType, granted, withRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.d.Auths.Save(ctx, auth); err != nil {
		logger.L().Error("authorization persist failed", logger.Err(err), logger.Layer("service"))
		return nil, ErrTokenServerError
	}
	return resp, nil
}

func (s *tokenService) fail(log *zap.Logger, err error, clientID, grantType string) error {
	metrics.TokenErrors.WithLabelValues(err.Error()).Inc()
	log.Warn("token exchange rejected",
		logger.ClientID(clientID),
		logger.GrantType(grantType),
		logger.Err(err),
	)
	return err
}

func (s *tokenService) observe(log *zap.Logger, start time.Time, clientID, subject, grantType, grantedScope string) {
	metrics.TokensIssued.WithLabelValues(grantType).Inc()
	metrics.IssueLatency.Observe(float64(s.d.Now().Sub(start).Milliseconds()))
	log.Info("token issued",
		logger.ClientID(clientID),
		logger.Subject(subject),
		logger.GrantType(grantType),
		logger.Scope(grantedScope),
	)
}
