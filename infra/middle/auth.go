package middle

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mstgnz/multipay/infra/response"
)

// APIKeyHeader is accepted as an alternative to a bearer Authorization header
const APIKeyHeader = "X-API-Key"

// AuthMiddleware accepts a request when it presents any of keys, either as
// "Authorization: Bearer <key>" or in the X-API-Key header. Several keys
// allow rotating them without downtime.
func AuthMiddleware(keys ...string) func(http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(accepted) == 0 {
				response.Error(w, http.StatusInternalServerError, "API key not configured", nil)
				return
			}

			presented, msg := presentedKey(r)
			if msg != "" {
				response.Error(w, http.StatusUnauthorized, msg, nil)
				return
			}

			if !matchesAny(presented, accepted) {
				response.Error(w, http.StatusUnauthorized, "Invalid API key", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey returns the key from the request, or a message explaining why
// none could be read
func presentedKey(r *http.Request) (string, string) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key, ""
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Authorization header or " + APIKeyHeader + " required"
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "Invalid authorization format. Use: Bearer <api_key>"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "API key required"
	}
	return token, ""
}

// matchesAny compares against every key so timing does not reveal which
// one matched
func matchesAny(presented string, accepted [][]byte) bool {
	p := []byte(presented)
	found := 0
	for _, k := range accepted {
		found |= subtle.ConstantTimeCompare(p, k)
	}
	return found == 1
}
