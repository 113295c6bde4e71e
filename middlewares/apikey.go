package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/llmify/llmstxt-service/common/utils"
)

// ApiKey guards a route group with a static backend API key carried in the
// X-API-KEY header. An empty configured key disables the check, which is
// the local-development mode.
func ApiKey(apiKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-KEY")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				utils.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
