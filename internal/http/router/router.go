// Package router arma el árbol de rutas HTTP del servidor.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthctrl "github.com/dropDatabas3/littlejohn/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/littlejohn/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/littlejohn/internal/http/middlewares"
	"github.com/dropDatabas3/littlejohn/internal/rate"
)

// Deps contiene controllers y middlewares opcionales del router.
type Deps struct {
	Token      *oauthctrl.TokenController
	JWKS       *oauthctrl.JWKSController
	Introspect *oauthctrl.IntrospectController
	Revoke     *oauthctrl.RevokeController
	Health     *healthctrl.HealthController

	// RateLimiter aplica solo a los endpoints OAuth. nil = sin límite.
	RateLimiter rate.Limiter
}

// New construye el router con el middleware chain estándar:
// request id -> logging -> (rate limit en rutas oauth).
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())

	r.Route("/oauth2", func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(mw.WithRateLimit(d.RateLimiter))
		}
		r.Post("/token", d.Token.Token)
		r.Get("/jwks", d.JWKS.JWKS)
		r.Post("/introspect", d.Introspect.Introspect)
		r.Post("/revoke", d.Revoke.Revoke)
	})

	r.Get("/healthz", d.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
