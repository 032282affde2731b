package domain

import "time"

// MessageDirection indicates which side of a conversation authored a message.
type MessageDirection string

const (
	DirectionUserToStaff MessageDirection = "USER_TO_STAFF"
	DirectionStaffToUser MessageDirection = "STAFF_TO_USER"
)

// Ticket is one support conversation between a creator and the staff team,
// bound to exactly one active channel at a time. Tickets are never deleted;
// closing flips IsActive off.
type Ticket struct {
	ID            int64
	CreatorUserID string
	ChannelID     string
	CreatedAt     time.Time
	IsActive      bool
}

// Participant is a user authorized to receive staff replies for a ticket.
type Participant struct {
	TicketID int64
	UserID   string
	AddedAt  time.Time
}

// Message is one row of the append-only conversation audit log. For staff
// fan-out there is exactly one row per logical message, attributed to the
// first participant in insertion order.
type Message struct {
	ID                int64
	TicketID          int64
	ExternalMessageID string
	AuthorUserID      string
	Content           string
	Direction         MessageDirection
	CreatedAt         time.Time
}
