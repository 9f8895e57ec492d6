// Package health contiene el controller de health check.
package health

import (
	"context"
	"net/http"
	"time"
)

// Pinger abstrae el chequeo de la dependencia de persistencia.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController handles GET /healthz.
type HealthController struct {
	store Pinger
}

func NewHealthController(store Pinger) *HealthController {
	return &HealthController{store: store}
}

// Health reporta el estado del servidor y su storage.
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded","storage":"down"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
