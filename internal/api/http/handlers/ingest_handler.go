package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-router/internal/api/dto"
	"github.com/spec-kit/modmail-router/internal/routing"
	"github.com/spec-kit/modmail-router/internal/transport"
	"github.com/spec-kit/modmail-router/pkg/util"
)

// IngestHandler receives inbound message events from the gateway.
type IngestHandler struct {
	engine *routing.Engine
}

// NewIngestHandler constructs handler.
func NewIngestHandler(engine *routing.Engine) *IngestHandler {
	return &IngestHandler{engine: engine}
}

// UserMessage POST /ingest/user-message handles a private message from a user.
func (h *IngestHandler) UserMessage(c *fiber.Ctx) error {
	in, err := parseInbound(c, false)
	if err != nil {
		return err
	}
	if err := h.engine.HandleUserMessage(c.UserContext(), in); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "routed"}})
}

// ChannelMessage POST /ingest/channel-message handles a staff-side message
// from a ticket channel.
func (h *IngestHandler) ChannelMessage(c *fiber.Ctx) error {
	in, err := parseInbound(c, true)
	if err != nil {
		return err
	}
	if err := h.engine.HandleChannelMessage(c.UserContext(), in); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"status": "routed"}})
}

func parseInbound(c *fiber.Ctx, requireChannel bool) (transport.Inbound, error) {
	var req dto.IngestMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return transport.Inbound{}, util.NewValidationError("invalid payload", nil)
	}
	if req.AuthorID == "" {
		return transport.Inbound{}, util.NewValidationError("author_id required", nil)
	}
	if requireChannel && req.ChannelID == "" {
		return transport.Inbound{}, util.NewValidationError("channel_id required", nil)
	}
	return transport.Inbound{
		MessageID:   req.MessageID,
		ChannelID:   req.ChannelID,
		AuthorID:    req.AuthorID,
		Content:     req.Content,
		ReplyTo:     req.ReplyTo,
		Attachments: req.Attachments,
	}, nil
}
