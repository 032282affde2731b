package events

import (
	"time"

	"github.com/spec-kit/modmail-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened       EventType = "ticket_opened"
	EventTicketRebound      EventType = "ticket_rebound"
	EventTicketClosed       EventType = "ticket_closed"
	EventParticipantAdded   EventType = "participant_added"
	EventParticipantRemoved EventType = "participant_removed"
	EventMessageRouted      EventType = "message_routed"
)

// Event represents a domain event emitted by the routing engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	CreatorUserID string `json:"creator_user_id"`
	ChannelID     string `json:"channel_id"`
}

// TicketReboundPayload payload.
type TicketReboundPayload struct {
	OldChannelID string `json:"old_channel_id"`
	NewChannelID string `json:"new_channel_id"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	CreatorUserID string `json:"creator_user_id"`
	Participants  int    `json:"participants"`
}

// ParticipantChangedPayload payload for add/remove.
type ParticipantChangedPayload struct {
	UserID string `json:"user_id"`
}

// MessageRoutedPayload payload.
type MessageRoutedPayload struct {
	Direction  domain.MessageDirection `json:"direction"`
	Recipients int                     `json:"recipients"`
	Failed     int                     `json:"failed"`
}
