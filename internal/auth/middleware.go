package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/modmail-router/pkg/util"
)

// Middleware guards the admin API with bearer JWTs. Capability checks on
// individual ticket actions happen on the chat-platform side; this only
// authenticates the calling collaborator.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware builds the middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle validates the Authorization header.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return util.NewUnauthorized("missing bearer token")
	}
	claims, err := m.tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}
	c.Locals("subject", claims.Subject)
	return c.Next()
}

// VerifyAdminKey compares a presented admin key against the configured
// bcrypt hash.
func VerifyAdminKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
