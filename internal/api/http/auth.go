package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"github.com/hb-chen/mkbi/pkg/grpc/gateway"
)

// BearerAuth rejects requests whose Authorization header does not carry
// token as a bearer credential. An empty token disables the check.
func BearerAuth(token string) gateway.MiddlewareFunc {
	return func(next gwruntime.HandlerFunc) gwruntime.HandlerFunc {
		if token == "" {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			if !validBearer(r.Header.Get("Authorization"), token) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "Invalid or missing bearer token.")
				return
			}
			next(w, r, params)
		}
	}
}

func validBearer(header, token string) bool {
	scheme, credentials, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return false
	}
	credentials = strings.TrimSpace(credentials)
	return subtle.ConstantTimeCompare([]byte(credentials), []byte(token)) == 1
}
