package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"postbase/internal/policy"
	"postbase/pkg/logger"
)

type contextKey string

const RoleKey contextKey = "role"

// WithRole builds middleware that resolves the caller's role from a JWT
// issued by the external identity provider and stores it in the request
// context. A missing token is not an error: reads are open to anonymous
// callers, and the policy layer denies anonymous mutations. An invalid or
// forged token is rejected outright rather than silently downgraded.
func WithRole(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket clients pass the token in the query string because
			// the browser API doesn't support custom headers.
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				authHeader := r.Header.Get("Authorization")
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}

			role := policy.RoleAnonymous
			if tokenString != "" {
				token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					if jwtSecret == "" {
						logger.Sugar.Error("JWT secret not configured")
						return nil, fmt.Errorf("server is not configured to validate JWTs")
					}
					return []byte(jwtSecret), nil
				})
				if err != nil || !token.Valid {
					logger.Sugar.Infof("Invalid token: %v", err)
					http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
					return
				}
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					if claimed, ok := claims["role"].(string); ok {
						role = policy.ParseRole(claimed)
					}
				}
			}

			ctx := context.WithValue(r.Context(), RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleFromContext returns the caller's resolved role, anonymous if the
// middleware never ran.
func RoleFromContext(ctx context.Context) policy.Role {
	if role, ok := ctx.Value(RoleKey).(policy.Role); ok {
		return role
	}
	return policy.RoleAnonymous
}
