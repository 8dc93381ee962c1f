// internal/auth/middleware.go
package auth

import "net/http"

// CookieName is where the upstream gateway places the caller's token.
const CookieName = "token"

// Middleware authenticates the token cookie and stashes the caller identity
// on the request context. Requests without a valid credential get 401.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				http.Error(w, "unauthorized access", http.StatusUnauthorized)
				return
			}

			email, err := v.VerifyCaller(cookie.Value)
			if err != nil {
				http.Error(w, "unauthorized access", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), email)))
		})
	}
}
