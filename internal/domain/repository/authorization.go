package repository

import (
	"context"
	"time"
)

// Authorization es el registro auditable de una emisión de tokens.
// Se crea exactamente una vez por emisión exitosa e inmutable después,
// salvo los marcadores de revocación/redención.
type Authorization struct {
	ID            string
	ClientID      string
	PrincipalName string // sub del access token
	GrantType     string
	Scopes        []string

	// Access token (JWT). Se guarda solo el hash SHA-256 del valor.
	AccessTokenHash string
	IssuedAt        time.Time
	ExpiresAt       time.Time

	// Refresh token opaco (opcional). Hash del valor, nunca el valor plano.
	RefreshTokenHash  string
	RefreshIssuedAt   time.Time
	RefreshExpiresAt  time.Time
	RefreshRedeemedAt *time.Time // set una sola vez al rotar (single-use)

	RevokedAt *time.Time
}

// HasRefreshToken indica si la authorization lleva refresh token.
func (a *Authorization) HasRefreshToken() bool {
	return a.RefreshTokenHash != ""
}

// Live indica si la authorization sigue vigente (no revocada) a un instante dado.
func (a *Authorization) Live(now time.Time) bool {
	return a.RevokedAt == nil && now.Before(a.ExpiresAt)
}

// AuthorizationRepository define la persistencia de authorizations emitidas.
//
// Save es append-only desde la perspectiva del core. La rotación de refresh
// tokens pasa por Redeem (CAS: marca el token como redimido exactamente una
// vez) seguido de Replace (reemplazo por id, nunca merge). El adapter
// garantiza unicidad de hashes y atomicidad de Redeem bajo concurrencia.
type AuthorizationRepository interface {
	// Save persiste una authorization nueva.
	// Retorna ErrConflict si algún hash de token ya existe.
	Save(ctx context.Context, auth *Authorization) error

	// GetByAccessTokenHash busca por hash del access token.
	// Retorna ErrNotFound si no existe.
	GetByAccessTokenHash(ctx context.Context, hash string) (*Authorization, error)

	// GetByRefreshTokenHash busca por hash del refresh token.
	// Retorna ErrNotFound si no existe.
	GetByRefreshTokenHash(ctx context.Context, hash string) (*Authorization, error)

	// Redeem marca el refresh token como redimido y retorna la authorization,
	// de forma atómica. Solo un caller concurrente puede redimir un hash;
	// los demás reciben ErrNotFound (token ausente, ya redimido o revocado).
	Redeem(ctx context.Context, refreshTokenHash string) (*Authorization, error)

	// Replace reemplaza la authorization previa por una nueva (rotación).
	// El registro anterior deja de ser localizable por sus hashes.
	Replace(ctx context.Context, previousID string, next *Authorization) error

	// Revoke marca la authorization como revocada.
	Revoke(ctx context.Context, id string) error
}
