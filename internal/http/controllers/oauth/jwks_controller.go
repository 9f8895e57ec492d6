package oauth

import (
	"net/http"

	"github.com/dropDatabas3/littlejohn/internal/jwt"
)

// JWKSController handles GET /oauth2/jwks.
type JWKSController struct {
	issuer *jwt.Issuer
}

func NewJWKSController(issuer *jwt.Issuer) *JWKSController {
	return &JWKSController{issuer: issuer}
}

// JWKS serves the public key set (active + retired keys) so resource
// servers can verify tokens across rotations.
func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.issuer.JWKSJSON())
}
