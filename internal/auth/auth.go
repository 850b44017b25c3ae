package auth

import (
	"codegen-app/internal/config"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/db"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller, passed explicitly into every pipeline operation
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// IsAdmin reports whether the caller holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == db.RoleAdmin
}

// Owns reports whether the caller owns the given application
func (i Identity) Owns(app *db.Application) bool {
	return app != nil && i.UserID != "" && app.UserID == i.UserID
}

// Claims are the JWT claims issued at login
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ErrorResponse is the JSON body of every error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendError sends a standardized JSON error response
func SendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// TokenIssuer signs and validates bearer tokens
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a token issuer from auth configuration
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{secret: cfg.JWTSecret, expiration: cfg.TokenExpiration, now: time.Now}
}

// GenerateToken issues a token for a user
func (t *TokenIssuer) GenerateToken(user *db.User) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken parses and verifies a token
func (t *TokenIssuer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.UserID == "" {
			return nil, errors.New("token has no user id")
		}
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// WithIdentity stores an identity in the context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity stored by AuthMiddleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// AuthMiddleware validates the bearer token and stores the caller's Identity in the request context
func (t *TokenIssuer) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			SendError(w, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			SendError(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := t.ValidateToken(bearerToken[1])
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"path": r.URL.Path}).WithError(err).Warn("Rejected bearer token")
			SendError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
