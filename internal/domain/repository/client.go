package repository

import (
	"context"
	"strings"
	"time"
)

// Grant types soportados por el servidor.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// Client representa un cliente OAuth2 registrado.
type Client struct {
	ID              string
	ClientID        string // identificador público, único
	Name            string
	SecretHash      string // PHC argon2id
	GrantTypes      []string
	Scopes          []string
	AccessTokenTTL  time.Duration // 0 = default del servidor
	RefreshTokenTTL time.Duration // 0 = default del servidor
	RequireConsent  bool
	CreatedAt       time.Time
}

// AllowsGrant verifica si el grant type está habilitado para el client.
func (c *Client) AllowsGrant(grantType string) bool {
	for _, g := range c.GrantTypes {
		if strings.EqualFold(g, grantType) {
			return true
		}
	}
	return false
}

// HasScope verifica si el scope está dentro de los permitidos del client.
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ClientRepository define operaciones sobre clients registrados.
// Get es read-only y seguro para llamadas concurrentes; Save es upsert
// por client_id y se usa solo en bootstrap/admin, nunca en el hot path.
type ClientRepository interface {
	// Get obtiene un client por su client_id público.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID string) (*Client, error)

	// Save inserta o actualiza un client (upsert por client_id).
	Save(ctx context.Context, client *Client) error
}
