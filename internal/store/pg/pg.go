// Package pg implementa store.Store sobre pgxpool. La redención de refresh
// tokens usa UPDATE condicional (WHERE refresh_redeemed_at IS NULL) para
// garantizar single-use bajo concurrencia sin locks explícitos.
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/store"
	migrations "github.com/dropDatabas3/littlejohn/migrations/postgres"
)

type Store struct {
	pool           *pgxpool.Pool
	clients        *clientRepo
	users          *userRepo
	authorizations *authRepo
}

// New crea un Store sobre un DSN postgres.
func New(ctx context.Context, dsn string, maxConns, minConns int, connMaxLifetime time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		cfg.MinConns = int32(minConns)
	}
	if connMaxLifetime > 0 {
		cfg.MaxConnLifetime = connMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:           pool,
		clients:        &clientRepo{pool: pool},
		users:          &userRepo{pool: pool},
		authorizations: &authRepo{pool: pool},
	}, nil
}

func (s *Store) Clients() repository.ClientRepository { return s.clients }
func (s *Store) Users() repository.UserRepository     { return s.users }
func (s *Store) Authorizations() repository.AuthorizationRepository {
	return s.authorizations
}
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Store) Close()                         { s.pool.Close() }

// Migrate aplica las migraciones embebidas en orden lexicográfico.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		sql, err := migrations.FS.ReadFile(e.Name())
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation detecta el SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ─── ClientRepository ───

type clientRepo struct{ pool *pgxpool.Pool }

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	const query = `
		SELECT id, client_id, name, secret_hash, grant_types, scopes,
		       access_token_ttl_seconds, refresh_token_ttl_seconds, require_consent, created_at
		FROM oauth_client WHERE client_id = $1
	`
	var c repository.Client
	var accessTTL, refreshTTL int64
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&c.ID, &c.ClientID, &c.Name, &c.SecretHash, &c.GrantTypes, &c.Scopes,
		&accessTTL, &refreshTTL, &c.RequireConsent, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.AccessTokenTTL = time.Duration(accessTTL) * time.Second
	c.RefreshTokenTTL = time.Duration(refreshTTL) * time.Second
	return &c, nil
}

func (r *clientRepo) Save(ctx context.Context, client *repository.Client) error {
	if client == nil || client.ClientID == "" {
		return repository.ErrInvalidInput
	}
	const query = `
		INSERT INTO oauth_client
			(id, client_id, name, secret_hash, grant_types, scopes,
			 access_token_ttl_seconds, refresh_token_ttl_seconds, require_consent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (client_id) DO UPDATE SET
			name = $3, secret_hash = $4, grant_types = $5, scopes = $6,
			access_token_ttl_seconds = $7, refresh_token_ttl_seconds = $8, require_consent = $9
	`
	_, err := r.pool.Exec(ctx, query,
		client.ID, client.ClientID, client.Name, client.SecretHash,
		client.GrantTypes, client.Scopes,
		int64(client.AccessTokenTTL/time.Second), int64(client.RefreshTokenTTL/time.Second),
		client.RequireConsent,
	)
	return err
}

// ─── UserRepository ───

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	const query = `
		SELECT id, username, password_hash, enabled, authorities, created_at
		FROM user_account WHERE username = $1
	`
	var u repository.User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Enabled, &u.Authorities, &u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Save(ctx context.Context, user *repository.User) error {
	if user == nil || user.Username == "" {
		return repository.ErrInvalidInput
	}
	const query = `
		INSERT INTO user_account (id, username, password_hash, enabled, authorities, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (username) DO UPDATE SET
			password_hash = $3, enabled = $4, authorities = $5
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Enabled, user.Authorities,
	)
	return err
}

// ─── AuthorizationRepository ───

type authRepo struct{ pool *pgxpool.Pool }

const authColumns = `
	id, client_id, principal_name, grant_type, scopes,
	access_token_hash, issued_at, expires_at,
	refresh_token_hash, refresh_issued_at, refresh_expires_at,
	refresh_redeemed_at, revoked_at
`

func scanAuth(row pgx.Row) (*repository.Authorization, error) {
	var a repository.Authorization
	var refreshHash *string
	var refreshIssued, refreshExpires *time.Time
	err := row.Scan(
		&a.ID, &a.ClientID, &a.PrincipalName, &a.GrantType, &a.Scopes,
		&a.AccessTokenHash, &a.IssuedAt, &a.ExpiresAt,
		&refreshHash, &refreshIssued, &refreshExpires,
		&a.RefreshRedeemedAt, &a.RevokedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if refreshHash != nil {
		a.RefreshTokenHash = *refreshHash
	}
	if refreshIssued != nil {
		a.RefreshIssuedAt = *refreshIssued
	}
	if refreshExpires != nil {
		a.RefreshExpiresAt = *refreshExpires
	}
	return &a, nil
}

func (r *authRepo) Save(ctx context.Context, auth *repository.Authorization) error {
	return r.insert(ctx, r.pool, auth)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *authRepo) insert(ctx context.Context, db execer, auth *repository.Authorization) error {
	if auth == nil || auth.ID == "" || auth.AccessTokenHash == "" {
		return repository.ErrInvalidInput
	}
	const query = `
		INSERT INTO issued_authorization
			(id, client_id, principal_name, grant_type, scopes,
			 access_token_hash, issued_at, expires_at,
			 refresh_token_hash, refresh_issued_at, refresh_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var refreshHash *string
	var refreshIssued, refreshExpires *time.Time
	if auth.RefreshTokenHash != "" {
		refreshHash = &auth.RefreshTokenHash
		refreshIssued = &auth.RefreshIssuedAt
		refreshExpires = &auth.RefreshExpiresAt
	}
	_, err := db.Exec(ctx, query,
		auth.ID, auth.ClientID, auth.PrincipalName, auth.GrantType, auth.Scopes,
		auth.AccessTokenHash, auth.IssuedAt, auth.ExpiresAt,
		refreshHash, refreshIssued, refreshExpires,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *authRepo) GetByAccessTokenHash(ctx context.Context, hash string) (*repository.Authorization, error) {
	query := `SELECT ` + authColumns + ` FROM issued_authorization WHERE access_token_hash = $1`
	return scanAuth(r.pool.QueryRow(ctx, query, hash))
}

func (r *authRepo) GetByRefreshTokenHash(ctx context.Context, hash string) (*repository.Authorization, error) {
	query := `SELECT ` + authColumns + ` FROM issued_authorization WHERE refresh_token_hash = $1`
	return scanAuth(r.pool.QueryRow(ctx, query, hash))
}

func (r *authRepo) Redeem(ctx context.Context, refreshTokenHash string) (*repository.Authorization, error) {
	query := `
		UPDATE issued_authorization SET refresh_redeemed_at = NOW()
		WHERE refresh_token_hash = $1 AND refresh_redeemed_at IS NULL AND revoked_at IS NULL
		RETURNING ` + authColumns
	return scanAuth(r.pool.QueryRow(ctx, query, refreshTokenHash))
}

func (r *authRepo) Replace(ctx context.Context, previousID string, next *repository.Authorization) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM issued_authorization WHERE id = $1`, previousID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	if err := r.insert(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *authRepo) Revoke(ctx context.Context, id string) error {
	const query = `
		UPDATE issued_authorization SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// idempotente si ya estaba revocada; error solo si no existe
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM issued_authorization WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
	}
	return nil
}

var _ store.Store = (*Store)(nil)
