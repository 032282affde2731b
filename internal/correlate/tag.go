package correlate

import (
	"fmt"
	"strconv"
	"strings"
)

// ticketTagPrefix is embedded into the footer of every ticket-bound message
// so later staff replies can be correlated back to the right ticket, even
// after the ticket's channel has been rebound.
const ticketTagPrefix = "Ticket ID:"

// FormatTicketTag renders the footer tag for a ticket.
func FormatTicketTag(ticketID int64) string {
	return fmt.Sprintf("%s %d", ticketTagPrefix, ticketID)
}

// ParseTicketTag extracts a ticket id from a footer. Returns false for
// footers without a tag or with a malformed one; callers fall back to
// channel-binding resolution.
func ParseTicketTag(footer string) (int64, bool) {
	idx := strings.Index(footer, ticketTagPrefix)
	if idx < 0 {
		return 0, false
	}
	raw := strings.TrimSpace(footer[idx+len(ticketTagPrefix):])
	if raw == "" {
		return 0, false
	}
	// Tolerate trailing text after the id.
	if sp := strings.IndexAny(raw, " \t\n"); sp >= 0 {
		raw = raw[:sp]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
