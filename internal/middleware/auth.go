// Package middleware provides HTTP middleware and request-scoped helpers shared by the API.
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWT issuer and audience stamped on every access token.
const (
	TokenIssuer   = "homehive-api"
	TokenAudience = "homehive-client"
)

var (
	ErrMissingToken   = errors.New("authorization token required")
	ErrInvalidHeader  = errors.New("invalid authorization header format")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrInvalidSubject = errors.New("invalid user ID in token")
)

// TokenClaims is the subset of access token claims the API relies on.
type TokenClaims struct {
	UserID uint
	JTI    string
	Claims jwt.MapClaims
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidHeader
	}
	return parts[1], nil
}

// ParseUserToken validates an HMAC-signed access token and returns its subject.
func ParseUserToken(secret, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithAudience(TokenAudience))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// Subject claim per RFC 7519
	subStr, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidSubject
	}
	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userIDVal == 0 {
		return nil, ErrInvalidSubject
	}

	jti, _ := claims["jti"].(string)
	return &TokenClaims{UserID: uint(userIDVal), JTI: jti, Claims: claims}, nil
}

// OptionalAuth sets c.Locals("userID") when a valid bearer token is present
// and lets anonymous requests through untouched.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := BearerToken(c)
		if err != nil {
			return c.Next()
		}
		claims, err := ParseUserToken(secret, tokenString)
		if err != nil {
			return c.Next()
		}
		c.Locals("userID", claims.UserID)
		return c.Next()
	}
}

// UserID returns the authenticated user id stored in locals, or zero.
func UserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}
