package oauth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/littlejohn/internal/observability/logger"

	svc "github.com/dropDatabas3/littlejohn/internal/http/services/oauth"
)

const maxRevokeBodySize = 32 * 1024 // 32KB

// RevokeController handles POST /oauth2/revoke (RFC 7009).
type RevokeController struct {
	service    svc.RevokeService
	clientAuth svc.ClientAuthenticator
}

func NewRevokeController(service svc.RevokeService, clientAuth svc.ClientAuthenticator) *RevokeController {
	return &RevokeController{service: service, clientAuth: clientAuth}
}

// Revoke invalidates the presented token. Requires client authentication;
// a token the server does not recognize still yields 200 OK (idempotent).
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.revoke"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRevokeBodySize)
	if err := r.ParseForm(); err != nil {
		writeRevokeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	clientID, clientSecret, ok := clientCredentials(r)
	if !ok {
		writeRevokeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	client, err := c.clientAuth.AuthenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="littlejohn", charset="UTF-8"`)
		writeRevokeError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	hint := strings.TrimSpace(r.PostForm.Get("token_type_hint"))

	if err := c.service.Revoke(ctx, client, token, hint); err != nil {
		// RFC 7009: errores de pertenencia no se filtran, responde 200.
		log.Debug("revoke error suppressed", logger.Err(err))
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
}

func writeRevokeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}
