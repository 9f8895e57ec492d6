package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

func newAuth(id, access, refresh string) *repository.Authorization {
	now := time.Now().UTC()
	return &repository.Authorization{
		ID:              id,
		ClientID:        "my-client",
		PrincipalName:   "ahmet",
		GrantType:       repository.GrantPassword,
		AccessTokenHash: access,
		IssuedAt:        now,
		ExpiresAt:       now.Add(15 * time.Minute),

		RefreshTokenHash: refresh,
		RefreshIssuedAt:  now,
		RefreshExpiresAt: now.Add(720 * time.Hour),
	}
}

func TestClientRepo_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Clients().Get(ctx, "ghost"); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c := &repository.Client{ID: "id-1", ClientID: "ahmet", Scopes: []string{"product.read"}}
	if err := s.Clients().Save(ctx, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Clients().Get(ctx, "ahmet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ClientID != "ahmet" || len(got.Scopes) != 1 {
		t.Fatalf("unexpected client: %+v", got)
	}
}

func TestAuthRepo_SaveAndLookups(t *testing.T) {
	ctx := context.Background()
	r := New().Authorizations()

	a := newAuth("a1", "hash-access", "hash-refresh")
	if err := r.Save(ctx, a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := r.Save(ctx, newAuth("a2", "hash-access", "other")); !repository.IsConflict(err) {
		t.Fatalf("duplicate access hash must conflict, got %v", err)
	}

	byAccess, err := r.GetByAccessTokenHash(ctx, "hash-access")
	if err != nil || byAccess.ID != "a1" {
		t.Fatalf("GetByAccessTokenHash: %v %+v", err, byAccess)
	}
	byRefresh, err := r.GetByRefreshTokenHash(ctx, "hash-refresh")
	if err != nil || byRefresh.ID != "a1" {
		t.Fatalf("GetByRefreshTokenHash: %v %+v", err, byRefresh)
	}
}

func TestAuthRepo_RedeemIsSingleUse(t *testing.T) {
	ctx := context.Background()
	r := New().Authorizations()

	if err := r.Save(ctx, newAuth("a1", "acc", "ref")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	first, err := r.Redeem(ctx, "ref")
	if err != nil {
		t.Fatalf("first Redeem: %v", err)
	}
	if first.RefreshRedeemedAt == nil {
		t.Fatalf("redeemed authorization must carry the marker")
	}

	if _, err := r.Redeem(ctx, "ref"); !repository.IsNotFound(err) {
		t.Fatalf("second Redeem must fail with ErrNotFound, got %v", err)
	}
}

func TestAuthRepo_ConcurrentRedeem_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	r := New().Authorizations()
	if err := r.Save(ctx, newAuth("a1", "acc", "ref")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Redeem(ctx, "ref"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("exactly one concurrent redeem must win, got %d", count)
	}
}

func TestAuthRepo_Replace(t *testing.T) {
	ctx := context.Background()
	r := New().Authorizations()

	prev := newAuth("a1", "acc-1", "ref-1")
	if err := r.Save(ctx, prev); err != nil {
		t.Fatalf("Save: %v", err)
	}
	next := newAuth("a2", "acc-2", "ref-2")
	if err := r.Replace(ctx, "a1", next); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// los hashes viejos dejan de resolver
	if _, err := r.GetByRefreshTokenHash(ctx, "ref-1"); !repository.IsNotFound(err) {
		t.Fatalf("old refresh hash must be gone, got %v", err)
	}
	if _, err := r.GetByAccessTokenHash(ctx, "acc-1"); !repository.IsNotFound(err) {
		t.Fatalf("old access hash must be gone, got %v", err)
	}
	got, err := r.GetByRefreshTokenHash(ctx, "ref-2")
	if err != nil || got.ID != "a2" {
		t.Fatalf("new refresh hash must resolve: %v %+v", err, got)
	}
}

func TestAuthRepo_Replace_RestoresOnConflict(t *testing.T) {
	ctx := context.Background()
	r := New().Authorizations()

	if err := r.Save(ctx, newAuth("a1", "acc-1", "ref-1")); err != nil {
		t.Fatalf("Save a1: %v", err)
	}
	if err := r.Save(ctx, newAuth("a2", "acc-2", "ref-2")); err != nil {
		t.Fatalf("Save a2: %v", err)
	}

	// next choca con los hashes de a2: Replace debe fallar y restaurar a1
	conflicting := newAuth("a3", "acc-2", "ref-3")
	if err := r.Replace(ctx, "a1", conflicting); !repository.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, err := r.GetByRefreshTokenHash(ctx, "ref-1")
	if err != nil || got.ID != "a1" {
		t.Fatalf("a1 must be restored after failed replace: %v %+v", err, got)
	}
}

func TestAuthRepo_Revoke(t *testing.T) {
	ctx := context.Background()
	r := New().Authorizations()
	if err := r.Save(ctx, newAuth("a1", "acc", "ref")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := r.Revoke(ctx, "a1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	got, _ := r.GetByAccessTokenHash(ctx, "acc")
	if got.RevokedAt == nil {
		t.Fatalf("revoked marker must be set")
	}
	// redimir un refresh revocado falla
	if _, err := r.Redeem(ctx, "ref"); !repository.IsNotFound(err) {
		t.Fatalf("redeem after revoke must fail, got %v", err)
	}
}
