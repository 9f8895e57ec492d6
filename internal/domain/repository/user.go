package repository

import (
	"context"
	"strings"
	"time"
)

// ScopeAuthorityPrefix marca las authorities que representan scopes
// (convención SCOPE_<nombre>, heredada del resource server).
const ScopeAuthorityPrefix = "SCOPE_"

// User representa una cuenta de resource owner. El ciclo de vida es del
// identity store externo; este core solo la lee.
type User struct {
	ID           string
	Username     string // único
	PasswordHash string // PHC argon2id
	Enabled      bool
	Authorities  []string // ROLE_* y SCOPE_* markers
	CreatedAt    time.Time
}

// ScopeAuthorities devuelve los scopes del usuario (authorities SCOPE_xxx
// sin el prefijo). Slice vacío si no tiene ninguna.
func (u *User) ScopeAuthorities() []string {
	var out []string
	for _, a := range u.Authorities {
		if strings.HasPrefix(a, ScopeAuthorityPrefix) {
			out = append(out, strings.TrimPrefix(a, ScopeAuthorityPrefix))
		}
	}
	return out
}

// UserRepository define operaciones de lectura sobre usuarios.
type UserRepository interface {
	// GetByUsername busca un usuario por username.
	// Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Save inserta o actualiza un usuario (upsert por username, solo seed).
	Save(ctx context.Context, user *User) error
}
