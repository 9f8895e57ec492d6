package oauth

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// ClientAuthenticator autentica un client por client_id + secret. Lo
// implementa el token service (comparte cache y timing-hardening) y lo
// consumen los endpoints de revocación e introspección.
type ClientAuthenticator interface {
	AuthenticateClient(ctx context.Context, clientID, secret string) (*repository.Client, error)
}

func (s *tokenService) AuthenticateClient(ctx context.Context, clientID, secret string) (*repository.Client, error) {
	return s.authenticateClient(ctx, clientID, secret)
}
