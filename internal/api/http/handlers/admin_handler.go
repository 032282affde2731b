package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-router/internal/api/dto"
	"github.com/spec-kit/modmail-router/internal/service"
	"github.com/spec-kit/modmail-router/pkg/util"
)

// AdminHandler exposes staff ticket operations.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// CloseTicket POST /admin/tickets/close.
func (h *AdminHandler) CloseTicket(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	result, err := h.admin.Close(c.UserContext(), service.CloseInput{
		TargetUserID: req.UserID,
		ChannelID:    req.ChannelID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CloseTicketResponse{
		TicketID:      result.TicketID,
		CreatorUserID: result.CreatorUserID,
		Notified:      result.Notified,
	}})
}

// ListTickets GET /admin/tickets.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.admin.ListActiveTickets(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.TicketSummary{
			ID:            t.ID,
			CreatorUserID: t.CreatorUserID,
			ChannelID:     t.ChannelID,
			CreatedAt:     t.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddParticipant POST /admin/tickets/participants.
func (h *AdminHandler) AddParticipant(c *fiber.Ctx) error {
	req, err := parseParticipant(c)
	if err != nil {
		return err
	}
	result, err := h.admin.AddParticipant(c.UserContext(), req.ChannelID, req.UserID)
	if err != nil {
		return err
	}
	if !result.Added {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"data": dto.ParticipantResponse{TicketID: result.TicketID, Added: false},
			"note": "already a participant",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": dto.ParticipantResponse{TicketID: result.TicketID, Added: true},
	})
}

// RemoveParticipant DELETE /admin/tickets/participants.
func (h *AdminHandler) RemoveParticipant(c *fiber.Ctx) error {
	req, err := parseParticipant(c)
	if err != nil {
		return err
	}
	result, err := h.admin.RemoveParticipant(c.UserContext(), req.ChannelID, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ParticipantResponse{TicketID: result.TicketID}})
}

// TicketInfo GET /admin/tickets/info?channel_id=...
func (h *AdminHandler) TicketInfo(c *fiber.Ctx) error {
	channelID := c.Query("channel_id")
	info, err := h.admin.Info(c.UserContext(), channelID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketInfoResponse{
		ID:            info.TicketID,
		CreatorUserID: info.CreatorUserID,
		ChannelID:     info.ChannelID,
		CreatedAt:     info.CreatedAt,
		Participants:  info.Participants,
	}})
}

func parseParticipant(c *fiber.Ctx) (dto.ParticipantRequest, error) {
	var req dto.ParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return req, util.NewValidationError("invalid payload", nil)
	}
	if req.ChannelID == "" || req.UserID == "" {
		return req, util.NewValidationError("channel_id and user_id required", nil)
	}
	return req, nil
}
