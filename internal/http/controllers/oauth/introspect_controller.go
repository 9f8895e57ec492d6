package oauth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"go.uber.org/zap"

	svc "github.com/dropDatabas3/littlejohn/internal/http/services/oauth"
)

// IntrospectController handles POST /oauth2/introspect (RFC 7662).
// Callers authenticate with Basic auth: either the configured resource
// server credentials or any registered client's credentials.
type IntrospectController struct {
	service    svc.IntrospectService
	clientAuth svc.ClientAuthenticator
	basicUser  string
	basicPass  string
}

func NewIntrospectController(service svc.IntrospectService, clientAuth svc.ClientAuthenticator, basicUser, basicPass string) *IntrospectController {
	return &IntrospectController{
		service:    service,
		clientAuth: clientAuth,
		basicUser:  basicUser,
		basicPass:  basicPass,
	}
}

// Introspect resolves a token to its current state. Always 200 with
// active=true/false for authenticated callers.
func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.introspect"))

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !c.authorize(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="littlejohn", charset="UTF-8"`)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 32<<10)
	if err := r.ParseForm(); err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	hint := strings.TrimSpace(r.PostForm.Get("token_type_hint"))

	result, err := c.service.Introspect(ctx, token, hint)
	if err != nil {
		// Nunca filtrar detalle: cualquier error responde inactive.
		log.Debug("introspect error suppressed", logger.Err(err))
		result = &svc.Introspection{Active: false}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)

	log.Debug("introspection completed", zap.Bool("active", result.Active))
}

func (c *IntrospectController) authorize(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	if c.basicUser != "" {
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.basicUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(c.basicPass)) == 1
		if userOK && passOK {
			return true
		}
	}
	if c.clientAuth != nil {
		if _, err := c.clientAuth.AuthenticateClient(r.Context(), user, pass); err == nil {
			return true
		}
	}
	return false
}
