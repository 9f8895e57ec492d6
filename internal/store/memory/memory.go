// Package memory implementa store.Store sobre maps con RWMutex.
// Es el backend por defecto en dev y el fixture de los tests. Redeem es
// atómico bajo el mismo lock que protege los índices por hash.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/store"
)

type Store struct {
	clients        *clientRepo
	users          *userRepo
	authorizations *authRepo
}

func New() *Store {
	return &Store{
		clients:        &clientRepo{byClientID: make(map[string]repository.Client)},
		users:          &userRepo{byUsername: make(map[string]repository.User)},
		authorizations: newAuthRepo(),
	}
}

func (s *Store) Clients() repository.ClientRepository { return s.clients }
func (s *Store) Users() repository.UserRepository     { return s.users }
func (s *Store) Authorizations() repository.AuthorizationRepository {
	return s.authorizations
}
func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

// ─── ClientRepository ───

type clientRepo struct {
	mu         sync.RWMutex
	byClientID map[string]repository.Client
}

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byClientID[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := c // copia defensiva
	return &out, nil
}

func (r *clientRepo) Save(ctx context.Context, client *repository.Client) error {
	if client == nil || client.ClientID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	r.byClientID[client.ClientID] = *client
	return nil
}

// ─── UserRepository ───

type userRepo struct {
	mu         sync.RWMutex
	byUsername map[string]repository.User
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := u
	return &out, nil
}

func (r *userRepo) Save(ctx context.Context, user *repository.User) error {
	if user == nil || user.Username == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.byUsername[user.Username] = *user
	return nil
}

// ─── AuthorizationRepository ───

type authRepo struct {
	mu        sync.Mutex
	byID      map[string]*repository.Authorization
	byAccess  map[string]string // access token hash -> id
	byRefresh map[string]string // refresh token hash -> id
}

func newAuthRepo() *authRepo {
	return &authRepo{
		byID:      make(map[string]*repository.Authorization),
		byAccess:  make(map[string]string),
		byRefresh: make(map[string]string),
	}
}

func (r *authRepo) Save(ctx context.Context, auth *repository.Authorization) error {
	if auth == nil || auth.ID == "" || auth.AccessTokenHash == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(auth)
}

func (r *authRepo) saveLocked(auth *repository.Authorization) error {
	if _, dup := r.byID[auth.ID]; dup {
		return repository.ErrConflict
	}
	if _, dup := r.byAccess[auth.AccessTokenHash]; dup {
		return repository.ErrConflict
	}
	if auth.RefreshTokenHash != "" {
		if _, dup := r.byRefresh[auth.RefreshTokenHash]; dup {
			return repository.ErrConflict
		}
	}
	cp := *auth
	r.byID[auth.ID] = &cp
	r.byAccess[auth.AccessTokenHash] = auth.ID
	if auth.RefreshTokenHash != "" {
		r.byRefresh[auth.RefreshTokenHash] = auth.ID
	}
	return nil
}

func (r *authRepo) GetByAccessTokenHash(ctx context.Context, hash string) (*repository.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byAccess[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *authRepo) GetByRefreshTokenHash(ctx context.Context, hash string) (*repository.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRefresh[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

// Redeem marca el refresh token como redimido, una sola vez. El segundo
// caller concurrente con el mismo hash recibe ErrNotFound.
func (r *authRepo) Redeem(ctx context.Context, refreshTokenHash string) (*repository.Authorization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRefresh[refreshTokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	auth := r.byID[id]
	if auth.RefreshRedeemedAt != nil || auth.RevokedAt != nil {
		return nil, repository.ErrNotFound
	}
	now := time.Now().UTC()
	auth.RefreshRedeemedAt = &now
	out := *auth
	return &out, nil
}

func (r *authRepo) Replace(ctx context.Context, previousID string, next *repository.Authorization) error {
	if next == nil || next.ID == "" {
		return repository.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[previousID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byAccess, prev.AccessTokenHash)
	if prev.RefreshTokenHash != "" {
		delete(r.byRefresh, prev.RefreshTokenHash)
	}
	delete(r.byID, previousID)
	if err := r.saveLocked(next); err != nil {
		// restaurar el registro anterior; Replace es todo-o-nada
		r.byID[previousID] = prev
		r.byAccess[prev.AccessTokenHash] = previousID
		if prev.RefreshTokenHash != "" {
			r.byRefresh[prev.RefreshTokenHash] = previousID
		}
		return err
	}
	return nil
}

func (r *authRepo) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	auth, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if auth.RevokedAt == nil {
		now := time.Now().UTC()
		auth.RevokedAt = &now
	}
	return nil
}

var _ store.Store = (*Store)(nil)
