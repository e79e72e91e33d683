// internal/membership/middleware.go
package membership

import (
	"net/http"
	"strings"
)

// RequireLibrarian rejects requests that do not carry a valid bearer token
// with the LIBRARIAN role. The lending engine itself performs no access
// control; this is the boundary that does.
func RequireLibrarian(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != RoleLibrarian {
				http.Error(w, "librarian role required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
