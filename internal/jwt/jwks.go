package jwt

import (
	"encoding/base64"
	"encoding/json"
)

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo públicas, active + retired) en JSON.
func (ks *Keystore) JWKSJSON() []byte {
	keys := ks.snapshot()
	j := jwks{Keys: make([]jwk, 0, len(keys))}
	for _, k := range keys {
		j.Keys = append(j.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Pub),
		})
	}
	b, _ := json.Marshal(j)
	return b
}
