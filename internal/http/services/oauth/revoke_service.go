package oauth

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/littlejohn/internal/security/token"
)

// RevokeService invalidates a previously issued token (RFC 7009). The caller
// must be the authenticated client that owns the authorization; revoking a
// token the server does not recognize still succeeds.
type RevokeService interface {
	Revoke(ctx context.Context, client *repository.Client, token, tokenTypeHint string) error
}

type revokeService struct {
	auths repository.AuthorizationRepository
}

func NewRevokeService(auths repository.AuthorizationRepository) RevokeService {
	return &revokeService{auths: auths}
}

func (s *revokeService) Revoke(ctx context.Context, client *repository.Client, token, tokenTypeHint string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"))
	if token == "" {
		return nil
	}

	hash := tokens.SHA256Base64URL(token)

	auth, err := s.lookup(ctx, hash, tokenTypeHint)
	if err != nil {
		if repository.IsNotFound(err) {
			// Token desconocido o ya rotado: idempotente, no es error.
			return nil
		}
		log.Error("revocation lookup failed", logger.Err(err))
		return ErrTokenServerError
	}

	// Un client solo puede revocar sus propias authorizations.
	if auth.ClientID != client.ClientID {
		return ErrTokenInvalidGrant
	}
	if auth.RevokedAt != nil {
		return nil
	}

	if err := s.auths.Revoke(ctx, auth.ID); err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		log.Error("revocation persist failed", logger.Err(err))
		return ErrTokenServerError
	}

	log.Info("authorization revoked", logger.ClientID(client.ClientID))
	return nil
}

func (s *revokeService) lookup(ctx context.Context, hash, hint string) (*repository.Authorization, error) {
	if hint == "access_token" {
		if auth, err := s.auths.GetByAccessTokenHash(ctx, hash); err == nil {
			return auth, nil
		}
		return s.auths.GetByRefreshTokenHash(ctx, hash)
	}
	if auth, err := s.auths.GetByRefreshTokenHash(ctx, hash); err == nil {
		return auth, nil
	}
	return s.auths.GetByAccessTokenHash(ctx, hash)
}
