package jwt

import (
	"encoding/json"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

func testClient() *repository.Client {
	return &repository.Client{
		ID:       "internal-id",
		ClientID: "ahmet",
		Scopes:   []string{"product.read", "product.write"},
	}
}

func TestIssueAccess_ClaimsAndVerify(t *testing.T) {
	ks, err := NewKeystore()
	if err != nil {
		t.Fatalf("keystore: %v", err)
	}
	iss := NewIssuer("http://localhost:9000", ks)
	iss.AccessTTL = 15 * time.Minute

	now := time.Now().UTC().Truncate(time.Second)
	token, exp, err := iss.IssueAccess(TokenContext{
		Client:    testClient(),
		Subject:   "ahmet",
		GrantType: repository.GrantClientCredentials,
		Scopes:    []string{"product.read"},
		IssuedAt:  now,
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if want := now.Add(15 * time.Minute); !exp.Equal(want) {
		t.Fatalf("exp: got %v want %v", exp, want)
	}

	parsed, err := jwtv5.Parse(token, iss.Keyfunc(), jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v valid=%v", err, parsed != nil && parsed.Valid)
	}
	claims := parsed.Claims.(jwtv5.MapClaims)

	if claims["iss"] != "http://localhost:9000" {
		t.Fatalf("iss claim: %v", claims["iss"])
	}
	if claims["sub"] != "ahmet" {
		t.Fatalf("sub claim: %v", claims["sub"])
	}
	if claims["aud"] != "ahmet" {
		t.Fatalf("aud claim: %v", claims["aud"])
	}
	if claims["scope"] != "product.read" {
		t.Fatalf("scope claim: %v", claims["scope"])
	}
	if claims["jti"] == nil || claims["jti"] == "" {
		t.Fatalf("jti must be set")
	}
	if int64(claims["exp"].(float64)) != exp.Unix() {
		t.Fatalf("exp claim mismatch")
	}
	if kid, _ := parsed.Header["kid"].(string); kid == "" {
		t.Fatalf("kid header must be set")
	}
}

func TestIssueAccess_NoScopesOmitsClaim(t *testing.T) {
	ks, _ := NewKeystore()
	iss := NewIssuer("http://localhost:9000", ks)

	token, _, err := iss.IssueAccess(TokenContext{
		Client:    testClient(),
		Subject:   "mehmet",
		GrantType: repository.GrantPassword,
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	parsed, err := jwtv5.Parse(token, iss.Keyfunc(), jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	claims := parsed.Claims.(jwtv5.MapClaims)
	if _, ok := claims["scope"]; ok {
		t.Fatalf("scope claim must be absent without granted scopes")
	}
	if _, ok := claims["scp"]; ok {
		t.Fatalf("scp claim must be absent without granted scopes")
	}
}

func TestIssueAccess_ClientTTLOverride(t *testing.T) {
	ks, _ := NewKeystore()
	iss := NewIssuer("http://localhost:9000", ks)
	iss.AccessTTL = 15 * time.Minute

	c := testClient()
	c.AccessTokenTTL = 5 * time.Minute

	now := time.Now().UTC()
	_, exp, err := iss.IssueAccess(TokenContext{Client: c, Subject: "ahmet", IssuedAt: now})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if want := now.Add(5 * time.Minute); !exp.Equal(want) {
		t.Fatalf("client TTL must win: got %v want %v", exp, want)
	}
}

func TestRotation_OldTokensStillVerify(t *testing.T) {
	ks, _ := NewKeystore()
	iss := NewIssuer("http://localhost:9000", ks)

	oldToken, _, err := iss.IssueAccess(TokenContext{Client: testClient(), Subject: "ahmet"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	oldKID, _, _, _ := ks.Active()

	newKID, err := ks.Rotate()
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newKID == oldKID {
		t.Fatalf("rotation must change the active kid")
	}

	// el token firmado con la clave retirada sigue verificando
	parsed, err := jwtv5.Parse(oldToken, iss.Keyfunc(), jwtv5.WithValidMethods([]string{"EdDSA"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("old token must verify after rotation: %v", err)
	}

	// y el JWKS publica ambas claves
	var jwks struct {
		Keys []struct {
			KID string `json:"kid"`
			Kty string `json:"kty"`
			Crv string `json:"crv"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(iss.JWKSJSON(), &jwks); err != nil {
		t.Fatalf("jwks: %v", err)
	}
	if len(jwks.Keys) != 2 {
		t.Fatalf("jwks must contain active + retired, got %d keys", len(jwks.Keys))
	}
	kids := map[string]bool{}
	for _, k := range jwks.Keys {
		kids[k.KID] = true
		if k.Kty != "OKP" || k.Crv != "Ed25519" {
			t.Fatalf("unexpected key type: %+v", k)
		}
	}
	if !kids[oldKID] || !kids[newKID] {
		t.Fatalf("jwks missing kids: %v", kids)
	}
}
