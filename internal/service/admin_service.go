package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-router/internal/domain"
	"github.com/spec-kit/modmail-router/internal/events"
	"github.com/spec-kit/modmail-router/internal/repository"
	"github.com/spec-kit/modmail-router/internal/routing"
	"github.com/spec-kit/modmail-router/internal/transport"
	"github.com/spec-kit/modmail-router/pkg/util"
)

const (
	noticeTicketClosed = "Your support ticket has been closed by staff."
	noticeAddedBody    = "You have been added to a support ticket. You will now receive all messages from staff."
	noticeRemovedBody  = "You have been removed from the support ticket and will no longer receive messages from staff."
)

// AdminService implements the staff-facing ticket operations: close,
// enumeration, participant management and inspection. Thin layer over the
// Ticket Store and the Routing Engine's notification path.
type AdminService struct {
	store  repository.TicketStore
	engine *routing.Engine
	logger *zap.Logger
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	Store  repository.TicketStore
	Engine *routing.Engine
	Logger *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	return &AdminService{store: deps.Store, engine: deps.Engine, logger: deps.Logger}
}

// CloseInput targets a ticket either by creator user id or by the channel
// the command was issued from.
type CloseInput struct {
	TargetUserID string
	ChannelID    string
}

// CloseResult reports the closed ticket and how many participants were
// notified.
type CloseResult struct {
	TicketID      int64
	CreatorUserID string
	Notified      int
}

// Close deactivates the targeted ticket and notifies every participant.
// Notification failures are per-participant and non-fatal.
func (s *AdminService) Close(ctx context.Context, input CloseInput) (*CloseResult, error) {
	var ticket *domain.Ticket
	var err error
	switch {
	case input.TargetUserID != "":
		ticket, err = s.store.GetActiveTicket(ctx, input.TargetUserID)
	case input.ChannelID != "":
		ticket, err = s.store.GetTicketByChannel(ctx, input.ChannelID)
	default:
		return nil, util.NewValidationError("target user id or channel id required", nil)
	}
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, util.NewNotFound("active ticket", nil)
	}

	participants, err := s.store.ListParticipants(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CloseTicket(ctx, ticket.CreatorUserID); err != nil {
		return nil, err
	}

	notice := transport.Outbound{Title: "Support Ticket Closed", Body: noticeTicketClosed}
	for _, userID := range participants {
		s.engine.NotifyParticipant(ctx, userID, notice)
	}

	s.engine.Publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		Payload: events.TicketClosedPayload{
			CreatorUserID: ticket.CreatorUserID,
			Participants:  len(participants),
		},
	})
	s.logger.Info("ticket closed",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("creator_user_id", ticket.CreatorUserID))

	return &CloseResult{
		TicketID:      ticket.ID,
		CreatorUserID: ticket.CreatorUserID,
		Notified:      len(participants),
	}, nil
}

// ListActiveTickets enumerates open tickets, most recent first.
func (s *AdminService) ListActiveTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.store.ListActiveTickets(ctx)
}

// ParticipantResult reports the outcome of an add operation.
type ParticipantResult struct {
	TicketID int64
	Added    bool
}

// AddParticipant adds a user to the ticket bound to the channel. Adding an
// existing participant is reported as Added=false, not an error.
func (s *AdminService) AddParticipant(ctx context.Context, channelID, userID string) (*ParticipantResult, error) {
	ticket, err := s.channelTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}

	added, err := s.store.AddParticipant(ctx, ticket.ID, userID)
	if err != nil {
		return nil, err
	}
	if added {
		s.engine.NotifyParticipant(ctx, userID, transport.Outbound{
			Title: "Added to Support Ticket",
			Body:  noticeAddedBody,
		})
		s.engine.Publish(ctx, events.Event{
			Type:     events.EventParticipantAdded,
			TicketID: ticket.ID,
			Payload:  events.ParticipantChangedPayload{UserID: userID},
		})
	}
	return &ParticipantResult{TicketID: ticket.ID, Added: added}, nil
}

// RemoveParticipant removes a user from the ticket bound to the channel. The
// ticket's creator is protected and cannot be removed.
func (s *AdminService) RemoveParticipant(ctx context.Context, channelID, userID string) (*ParticipantResult, error) {
	ticket, err := s.channelTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if userID == ticket.CreatorUserID {
		return nil, util.NewConflict("cannot remove the ticket creator", map[string]any{
			"user_id": userID,
		})
	}

	if err := s.store.RemoveParticipant(ctx, ticket.ID, userID); err != nil {
		return nil, err
	}
	s.engine.NotifyParticipant(ctx, userID, transport.Outbound{
		Title: "Removed from Support Ticket",
		Body:  noticeRemovedBody,
	})
	s.engine.Publish(ctx, events.Event{
		Type:     events.EventParticipantRemoved,
		TicketID: ticket.ID,
		Payload:  events.ParticipantChangedPayload{UserID: userID},
	})
	return &ParticipantResult{TicketID: ticket.ID}, nil
}

// TicketInfo describes a ticket for staff inspection.
type TicketInfo struct {
	TicketID      int64
	CreatorUserID string
	ChannelID     string
	CreatedAt     time.Time
	Participants  []string
}

// Info returns creator and participant details for the ticket bound to the
// channel.
func (s *AdminService) Info(ctx context.Context, channelID string) (*TicketInfo, error) {
	ticket, err := s.channelTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketInfo{
		TicketID:      ticket.ID,
		CreatorUserID: ticket.CreatorUserID,
		ChannelID:     ticket.ChannelID,
		CreatedAt:     ticket.CreatedAt,
		Participants:  participants,
	}, nil
}

func (s *AdminService) channelTicket(ctx context.Context, channelID string) (*domain.Ticket, error) {
	if channelID == "" {
		return nil, util.NewValidationError("channel id required", nil)
	}
	ticket, err := s.store.GetTicketByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, util.NewNotFound("active ticket in this channel", nil)
	}
	return ticket, nil
}
