// Package store agrega los repositorios del dominio detrás de una sola
// interfaz. Adapters: memory (dev/tests) y pg (pgxpool).
package store

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// Store expone los repositorios concretos de un backend.
type Store interface {
	Clients() repository.ClientRepository
	Users() repository.UserRepository
	Authorizations() repository.AuthorizationRepository

	// Ping verifica conectividad del backend.
	Ping(ctx context.Context) error

	// Close libera recursos (pools, conexiones).
	Close()
}
