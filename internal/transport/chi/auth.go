package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeys authorizes privileged callers by bearer token.
// With no keys configured every caller is privileged.
type APIKeys struct {
	keys [][]byte
}

// NewAPIKeys builds the key set, ignoring empty keys
func NewAPIKeys(keys []string) *APIKeys {
	a := &APIKeys{}
	for _, k := range keys {
		if k != "" {
			a.keys = append(a.keys, []byte(k))
		}
	}
	return a
}

// Enabled reports whether any key is configured
func (a *APIKeys) Enabled() bool {
	return len(a.keys) > 0
}

// Authorized reports whether the request carries a valid bearer token
func (a *APIKeys) Authorized(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}

	const bearerPrefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return false
	}
	token := []byte(auth[len(bearerPrefix):])
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(token, k) == 1 {
			return true
		}
	}
	return false
}

// Require rejects requests without a valid bearer token
func (a *APIKeys) Require(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
			return
		}
		if !a.Authorized(r) {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
