package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrNoUserInContext  = errors.New("no authenticated user in context")
)

// Claims are the registered claims; the subject is the acting user's ID.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds HS256 signing configuration
type JWTConfig struct {
	SecretKey string
	Issuer    string
	TTL       time.Duration
}

// JWTValidator verifies bearer tokens
type JWTValidator struct {
	secretKey []byte
	issuer    string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key required for HS256")
	}
	return &JWTValidator{secretKey: []byte(config.SecretKey), issuer: config.Issuer}, nil
}

// ValidateToken validates a JWT token and returns the claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	return claims, nil
}

// JWTGenerator issues tokens for a user ID
type JWTGenerator struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTGenerator creates a new JWT generator
func NewJWTGenerator(config JWTConfig) (*JWTGenerator, error) {
	if config.SecretKey == "" {
		return nil, errors.New("secret key required for HS256")
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTGenerator{secretKey: []byte(config.SecretKey), issuer: config.Issuer, ttl: ttl, now: time.Now}, nil
}

// GenerateToken signs a token whose subject is userID
func (g *JWTGenerator) GenerateToken(userID, username string) (string, error) {
	now := g.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secretKey)
}

// UserContext is the authenticated caller
type UserContext struct {
	UserID   string
	Username string
}

type contextKey struct{}

// SetUserInContext stores the caller on ctx
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// GetUserFromContext returns the caller stored by the auth middleware
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(contextKey{}).(*UserContext)
	if !ok || user == nil || user.UserID == "" {
		return nil, ErrNoUserInContext
	}
	return user, nil
}
