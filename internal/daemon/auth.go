package daemon

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"vinscan/internal/api"
)

const bearerScheme = "Bearer"

// authMiddleware guards every API route with the configured bearer token.
// An empty token disables the check.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	want := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		got, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", bearerScheme+` realm="vinscan"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer" header.
// The scheme match is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	scheme, credential, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	credential = strings.TrimSpace(credential)
	return credential, credential != ""
}
