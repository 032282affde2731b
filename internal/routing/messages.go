package routing

import (
	"fmt"
	"strings"

	"github.com/spec-kit/modmail-router/internal/correlate"
	"github.com/spec-kit/modmail-router/internal/transport"
)

const (
	confirmCreated     = "Your support ticket has been created! A staff member will respond soon."
	confirmRecreated   = "Your support ticket has been recreated! A staff member will respond soon."
	noticeRecreating   = "Your previous ticket channel is no longer available. Creating a new ticket..."
	noticeConfigError  = "Error: support parent container not found or invalid."
	replyPromptFooter  = "Reply to this message to continue the conversation"
	noTextPlaceholder  = "*No text content*"
	titleNewTicket     = "New Support Ticket"
	titleRecreated     = "New Support Ticket (Recreated)"
	titleUserMessage   = "Message from User"
	titleStaffResponse = "Staff Response"
)

// bodyOrPlaceholder keeps attachment-only messages readable on the far side.
func bodyOrPlaceholder(content string) string {
	if strings.TrimSpace(content) == "" {
		return noTextPlaceholder
	}
	return content
}

// summarizeAttachments renders one line per attachment, distinguishing
// images from other files.
func summarizeAttachments(attachments []transport.Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, att := range attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			fmt.Fprintf(&b, "\nImage: %s", att.FileName)
		} else {
			fmt.Fprintf(&b, "\nFile: %s", att.FileName)
		}
	}
	return b.String()
}

// ticketChannelMessage renders an inbound user message for delivery into the
// ticket channel. The footer tag is what the correlator later parses out of
// staff replies.
func ticketChannelMessage(title string, in transport.Inbound, ticketID int64) transport.Outbound {
	body := bodyOrPlaceholder(in.Content) + summarizeAttachments(in.Attachments)
	return transport.Outbound{
		Title:       title,
		Body:        fmt.Sprintf("User: %s\n%s", in.AuthorID, body),
		Footer:      correlate.FormatTicketTag(ticketID),
		Attachments: in.Attachments,
	}
}

// staffResponseMessage renders a staff-side message for fan-out to a
// participant's private channel.
func staffResponseMessage(in transport.Inbound) transport.Outbound {
	return transport.Outbound{
		Title:       titleStaffResponse,
		Body:        bodyOrPlaceholder(in.Content) + summarizeAttachments(in.Attachments),
		Footer:      replyPromptFooter,
		Attachments: in.Attachments,
	}
}

func plainNotice(title, body string) transport.Outbound {
	return transport.Outbound{Title: title, Body: body}
}
