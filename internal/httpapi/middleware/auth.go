package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

type Keys struct {
	Read  []string
	Admin []string
}

func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireAny allows requests that present either a read or admin key.
// With no keys configured every request passes (local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	enabled := len(keys.Read) > 0 || len(keys.Admin) > 0
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			if hasKey(key, keys.Read) || hasKey(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireAdmin only permits admin keys. With no admin keys configured every
// request passes.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	enabled := len(keys.Admin) > 0
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			switch {
			case hasKey(key, keys.Admin):
				next.ServeHTTP(w, r)
			case key == "":
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			default:
				writeJSONError(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
