package dto

import (
	"time"

	"github.com/spec-kit/modmail-router/internal/transport"
)

// IngestMessageRequest is one inbound message event posted by the gateway.
type IngestMessageRequest struct {
	MessageID   string                 `json:"message_id"`
	ChannelID   string                 `json:"channel_id"`
	AuthorID    string                 `json:"author_id"`
	Content     string                 `json:"content"`
	ReplyTo     *transport.MessageRef  `json:"reply_to,omitempty"`
	Attachments []transport.Attachment `json:"attachments,omitempty"`
}

// CloseTicketRequest targets a ticket by user or by channel.
type CloseTicketRequest struct {
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// ParticipantRequest adds or removes a participant on a channel's ticket.
type ParticipantRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

// TicketSummary describes one active ticket.
type TicketSummary struct {
	ID            int64     `json:"id"`
	CreatorUserID string    `json:"creator_user_id"`
	ChannelID     string    `json:"channel_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// TicketInfoResponse describes a ticket with its participants.
type TicketInfoResponse struct {
	ID            int64     `json:"id"`
	CreatorUserID string    `json:"creator_user_id"`
	ChannelID     string    `json:"channel_id"`
	CreatedAt     time.Time `json:"created_at"`
	Participants  []string  `json:"participants"`
}

// CloseTicketResponse reports a close outcome.
type CloseTicketResponse struct {
	TicketID      int64  `json:"ticket_id"`
	CreatorUserID string `json:"creator_user_id"`
	Notified      int    `json:"notified"`
}

// ParticipantResponse reports an add/remove outcome.
type ParticipantResponse struct {
	TicketID int64 `json:"ticket_id"`
	Added    bool  `json:"added,omitempty"`
}

// TokenRequest exchanges the admin key for a bearer token.
type TokenRequest struct {
	AdminKey string `json:"admin_key"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
