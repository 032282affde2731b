package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-router/internal/api/dto"
	"github.com/spec-kit/modmail-router/internal/auth"
	"github.com/spec-kit/modmail-router/internal/config"
	"github.com/spec-kit/modmail-router/pkg/util"
)

// AuthHandler exchanges the configured admin key for a bearer token.
type AuthHandler struct {
	cfg    config.AuthConfig
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{cfg: cfg, tokens: tokens}
}

// Token POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if !auth.VerifyAdminKey(h.cfg.AdminKeyHash, req.AdminKey) {
		return util.NewUnauthorized("invalid admin key")
	}
	token, expiresAt, err := h.tokens.GenerateToken("admin")
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{Token: token, ExpiresAt: expiresAt}})
}
