// Package transport defines the contracts the routing core consumes from the
// chat platform. The concrete gateway lives outside this service and feeds
// inbound events through the HTTP ingest surface.
package transport

import "context"

// ChannelKind classifies what an identifier resolves to on the platform. The
// identifier space is shared between leaf channels and their parent
// containers, so a stored channel id can turn out to be a container.
type ChannelKind string

const (
	ChannelKindNone      ChannelKind = "NONE"
	ChannelKindText      ChannelKind = "TEXT"
	ChannelKindContainer ChannelKind = "CONTAINER"
)

// Attachment describes a file riding along a message. Transfer mechanics are
// the gateway's problem; the core only relays descriptors.
type Attachment struct {
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// MessageRef points at an earlier delivered message.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Inbound is one message event delivered by the gateway.
type Inbound struct {
	MessageID   string       `json:"message_id"`
	ChannelID   string       `json:"channel_id"`
	AuthorID    string       `json:"author_id"`
	Content     string       `json:"content"`
	ReplyTo     *MessageRef  `json:"reply_to,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Outbound is a message the core asks the gateway to deliver.
type Outbound struct {
	Title       string       `json:"title,omitempty"`
	Body        string       `json:"body"`
	Footer      string       `json:"footer,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Delivered is the gateway's view of an already delivered message, fetched
// for reply correlation.
type Delivered struct {
	MessageID string
	ChannelID string
	Footer    string
}

// Sender delivers outbound messages. Both sends return the platform-assigned
// identifier of the delivered message.
type Sender interface {
	SendToChannel(ctx context.Context, channelID string, msg Outbound) (string, error)
	SendDirect(ctx context.Context, userID string, msg Outbound) (string, error)
}

// MessageFetcher retrieves a delivered message's metadata.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (*Delivered, error)
}

// ChannelDirectory creates and resolves channels.
type ChannelDirectory interface {
	CreateChannel(ctx context.Context, parentID, name, topic string) (string, error)
	Resolve(ctx context.Context, channelID string) (ChannelKind, error)
}
