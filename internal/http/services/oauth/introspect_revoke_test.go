package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospect_AccessAndRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	grant := issuePasswordGrant(t, f)

	isvc := NewIntrospectService(f.store.Authorizations(), f.issuer)

	access, err := isvc.Introspect(ctx, grant.AccessToken, "")
	require.NoError(t, err)
	assert.True(t, access.Active)
	assert.Equal(t, "my-client", access.ClientID)
	assert.Equal(t, "ahmet", access.Sub)
	assert.Equal(t, "ahmet", access.Username)
	assert.Equal(t, "Bearer", access.TokenType)
	assert.Equal(t, "product.read product.write", access.Scope)
	assert.NotZero(t, access.Exp)

	refresh, err := isvc.Introspect(ctx, grant.RefreshToken, "refresh_token")
	require.NoError(t, err)
	assert.True(t, refresh.Active)
	assert.Equal(t, "refresh_token", refresh.TokenType)

	// el hint equivocado no descarta: el refresh igual resuelve
	refreshNoHint, err := isvc.Introspect(ctx, grant.RefreshToken, "access_token")
	require.NoError(t, err)
	assert.True(t, refreshNoHint.Active)
}

func TestIntrospect_UnknownTokenInactive(t *testing.T) {
	f := newFixture(t, nil)
	isvc := NewIntrospectService(f.store.Authorizations(), f.issuer)

	res, err := isvc.Introspect(context.Background(), "garbage-token", "")
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Empty(t, res.ClientID, "inactive responses carry no metadata")
}

func TestIntrospect_RedeemedRefreshInactive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	grant := issuePasswordGrant(t, f)

	_, err := f.svc.ExchangeRefreshToken(ctx, RefreshTokenRequest{
		ClientID: "my-client", ClientSecret: "my-secret", RefreshToken: grant.RefreshToken,
	})
	require.NoError(t, err)

	isvc := NewIntrospectService(f.store.Authorizations(), f.issuer)
	res, err := isvc.Introspect(ctx, grant.RefreshToken, "refresh_token")
	require.NoError(t, err)
	assert.False(t, res.Active, "a rotated-away refresh token is inactive")
}

func TestRevoke_ByRefreshTokenKillsGrant(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	grant := issuePasswordGrant(t, f)

	owner, err := f.svc.AuthenticateClient(ctx, "my-client", "my-secret")
	require.NoError(t, err)

	rsvc := NewRevokeService(f.store.Authorizations())
	require.NoError(t, rsvc.Revoke(ctx, owner, grant.RefreshToken, "refresh_token"))

	// el refresh revocado ya no se puede canjear
	_, err = f.svc.ExchangeRefreshToken(ctx, RefreshTokenRequest{
		ClientID: "my-client", ClientSecret: "my-secret", RefreshToken: grant.RefreshToken,
	})
	assert.ErrorIs(t, err, ErrTokenInvalidGrant)

	// y el access token asociado introspecta inactivo
	isvc := NewIntrospectService(f.store.Authorizations(), f.issuer)
	res, err := isvc.Introspect(ctx, grant.AccessToken, "")
	require.NoError(t, err)
	assert.False(t, res.Active)
}

func TestRevoke_UnknownTokenIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	owner, err := f.svc.AuthenticateClient(ctx, "my-client", "my-secret")
	require.NoError(t, err)

	rsvc := NewRevokeService(f.store.Authorizations())
	assert.NoError(t, rsvc.Revoke(ctx, owner, "never-issued", ""))
}

func TestRevoke_ForeignClientCannotRevoke(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	grant := issuePasswordGrant(t, f)

	other, err := f.svc.AuthenticateClient(ctx, "other-app", "other-secret")
	require.NoError(t, err)

	rsvc := NewRevokeService(f.store.Authorizations())
	err = rsvc.Revoke(ctx, other, grant.RefreshToken, "refresh_token")
	assert.ErrorIs(t, err, ErrTokenInvalidGrant)

	// el token del dueño sigue vivo
	second, err := f.svc.ExchangeRefreshToken(ctx, RefreshTokenRequest{
		ClientID: "my-client", ClientSecret: "my-secret", RefreshToken: grant.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, second.AccessToken)
}
