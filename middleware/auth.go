package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const (
	staffClaimsContextKey contextKey = "staff_claims"
	matchContextKey       contextKey = "match"
)

const jwtClaimRole = "role"

// Staff roles accepted on guarded routes. The tokens themselves are issued by
// the external accounts service; this core only verifies signature and role.
var staffRoles = map[string]bool{
	"admin":     true,
	"organizer": true,
}

// StaffOnly verifies a Bearer JWT signed with the shared secret and requires
// a staff role claim.
func StaffOnly(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			role, _ := claims[jwtClaimRole].(string)
			if !staffRoles[role] {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), staffClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetStaffRoleFromContext returns the verified staff role, if any.
func GetStaffRoleFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(staffClaimsContextKey).(jwt.MapClaims)
	if !ok {
		return "", false
	}
	role, ok := claims[jwtClaimRole].(string)
	return role, ok
}
