package jwt

import (
	"crypto/ed25519"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/scope"
)

// TokenContext es el contexto de emisión que ven los customizers.
type TokenContext struct {
	Client    *repository.Client
	Subject   string // principal name (user o client_id en M2M)
	GrantType string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ClaimsCustomizer muta los claims justo antes de firmar. Se componen en
// lista (no herencia): cada hook ve el resultado del anterior.
type ClaimsCustomizer func(tc *TokenContext, claims jwtv5.MapClaims)

// Issuer firma access tokens con la clave activa del keystore.
type Issuer struct {
	Iss         string        // "iss"
	Keys        *Keystore
	AccessTTL   time.Duration // TTL default cuando el client no define uno
	customizers []ClaimsCustomizer
}

func NewIssuer(iss string, ks *Keystore) *Issuer {
	i := &Issuer{
		Iss:       iss,
		Keys:      ks,
		AccessTTL: 15 * time.Minute,
	}
	i.Customize(ScopeClaims)
	return i
}

// Customize agrega un hook al final de la lista.
func (i *Issuer) Customize(c ClaimsCustomizer) {
	i.customizers = append(i.customizers, c)
}

// ScopeClaims replica el scope negociado como claim space-joined ("scope")
// y en forma de array ("scp") para consumers estructurados. Sin scopes no
// escribe ningún claim.
func ScopeClaims(tc *TokenContext, claims jwtv5.MapClaims) {
	if len(tc.Scopes) == 0 {
		return
	}
	claims["scope"] = scope.Join(tc.Scopes)
	claims["scp"] = tc.Scopes
}

// IssueAccess emite un access token firmado para el contexto dado.
// exp = iat + TTL del client (o AccessTTL default). Si la firma falla no
// se retorna nada: el caller no debe persistir estado parcial.
func (i *Issuer) IssueAccess(tc TokenContext) (string, time.Time, error) {
	now := tc.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ttl := i.AccessTTL
	if tc.Client != nil && tc.Client.AccessTokenTTL > 0 {
		ttl = tc.Client.AccessTokenTTL
	}
	exp := now.Add(ttl)
	tc.IssuedAt = now
	tc.ExpiresAt = exp

	kid, priv, _, err := i.Keys.Active()
	if err != nil {
		return "", time.Time{}, err
	}

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": tc.Subject,
		"aud": tc.Client.ClientID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"jti": uuid.NewString(),
	}
	for _, c := range i.customizers {
		c(&tc, claims)
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Keyfunc devuelve un jwt.Keyfunc que elige la pubkey por 'kid' del token
// (active o retired). Sin kid cae en la activa.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			return i.Keys.PublicKeyByKID(kid)
		}
		_, _, pub, err := i.Keys.Active()
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(pub), nil
	}
}

// JWKSJSON expone el JWKS actual (active + retired).
func (i *Issuer) JWKSJSON() []byte {
	return i.Keys.JWKSJSON()
}
