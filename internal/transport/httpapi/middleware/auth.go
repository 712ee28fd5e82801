package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kislikjeka/walletcore/internal/shared/apierror"
	"github.com/kislikjeka/walletcore/pkg/logger"
)

// ContextKey is the type for context keys
type ContextKey string

// CallerKey is the context key carrying the authenticated caller's subject.
const CallerKey ContextKey = "caller"

// serviceTokenTTL bounds how long an issued service token stays valid.
const serviceTokenTTL = 24 * time.Hour

// ServiceClaims represents the claims of an admin service token.
type ServiceClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 service tokens for the admin
// surface. There are no user accounts; tokens identify calling services.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a token service around a shared secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// GenerateToken issues a token for the named calling service.
func (s *TokenService) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := &ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "walletcore",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a service token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Reject any non-HMAC method to prevent algorithm confusion
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// AdminAuth creates a middleware that admits only requests bearing a valid
// service token.
func AdminAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondUnauthorized(w, r, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondUnauthorized(w, r, "invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				respondUnauthorized(w, r, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, claims.Subject)
			ctx = context.WithValue(ctx, logger.CallerIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerFromContext extracts the authenticated caller subject.
func GetCallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerKey).(string)
	return caller, ok
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	env := apierror.Unauthorized(message, r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	_ = json.NewEncoder(w).Encode(env)
}
