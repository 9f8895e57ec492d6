// Package bootstrap carga los datos de desarrollo: clients y usuarios de
// prueba. Solo se usa desde el comando seed, nunca en el arranque normal.
package bootstrap

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/security/password"
)

// Seed inserta (upsert) los clients y usuarios de desarrollo.
func Seed(ctx context.Context, clients repository.ClientRepository, users repository.UserRepository) error {
	log := logger.L().With(logger.Layer("bootstrap"), logger.Op("seed"))

	seedClients := []*repository.Client{
		{
			ID:         uuid.NewString(),
			ClientID:   "ahmet",
			Name:       "Ahmet M2M",
			SecretHash: password.MustHash("12345"),
			GrantTypes: []string{repository.GrantClientCredentials},
			Scopes:     []string{"product.read", "product.write"},
		},
		{
			ID:         uuid.NewString(),
			ClientID:   "mehmet",
			Name:       "Mehmet M2M",
			SecretHash: password.MustHash("12345"),
			GrantTypes: []string{repository.GrantClientCredentials},
			Scopes:     nil,
		},
		{
			ID:         uuid.NewString(),
			ClientID:   "my-client",
			Name:       "First-party app",
			SecretHash: password.MustHash("my-secret"),
			GrantTypes: []string{repository.GrantPassword, repository.GrantRefreshToken},
			Scopes:     nil,
		},
	}
	for _, c := range seedClients {
		if err := clients.Save(ctx, c); err != nil {
			return err
		}
		log.Info("client seeded", logger.ClientID(c.ClientID))
	}

	seedUsers := []*repository.User{
		{
			ID:           uuid.NewString(),
			Username:     "ahmet",
			PasswordHash: password.MustHash("12345"),
			Enabled:      true,
			Authorities:  []string{"ROLE_USER", "SCOPE_product.read", "SCOPE_product.write"},
		},
		{
			ID:           uuid.NewString(),
			Username:     "mehmet",
			PasswordHash: password.MustHash("12345"),
			Enabled:      true,
			Authorities:  []string{"ROLE_USER"},
		},
	}
	for _, u := range seedUsers {
		if err := users.Save(ctx, u); err != nil {
			return err
		}
		log.Info("user seeded", logger.String("username", u.Username))
	}

	return nil
}
