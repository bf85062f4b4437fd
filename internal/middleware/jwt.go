// internal/middleware/jwt.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// Token expiration time - 24 hours
	tokenExpiration = 24 * time.Hour

	tokenIssuer = "tipster-engine"

	// RoleModerator may verify tips.
	RoleModerator = "moderator"
)

// Claims represents the JWT claims for our application
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsModerator reports whether the token carries the moderator role.
func (c *Claims) IsModerator() bool {
	return c != nil && c.Role == RoleModerator
}

// Auth signs and validates tokens with one HMAC secret.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// GenerateToken creates a new JWT token for the given user ID and role
func (a *Auth) GenerateToken(userID, role string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates the provided JWT token
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// OptionalAuth attaches the bearer token's claims to the request context when
// a token is present. Requests without one continue anonymously; a present
// but invalid token is rejected.
func (a *Auth) OptionalAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			handler(w, r)
			return
		}

		// Check for Bearer token format
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		claims, err := a.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			utils.Log.WithError(err).Debug("Rejected bearer token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		handler(w, r.WithContext(SetClaimsInContext(r.Context(), claims)))
	}
}

// Define a custom context key type to avoid collisions
type contextKey string

// ClaimsKey is the key used to store the token claims in the context
const ClaimsKey contextKey = "claims"

// SetClaimsInContext saves the token claims in the request context
func SetClaimsInContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaimsFromContext retrieves the token claims from the context
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext returns the authenticated user, or "" for anonymous requests
func GetUserIDFromContext(ctx context.Context) string {
	if claims, ok := GetClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}
