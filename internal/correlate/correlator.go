// Package correlate resolves which ticket a staff-side message belongs to.
package correlate

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-router/internal/domain"
	"github.com/spec-kit/modmail-router/internal/repository"
	"github.com/spec-kit/modmail-router/internal/transport"
)

// Correlator maps an inbound staff-side message to its ticket.
type Correlator struct {
	store   repository.TicketStore
	fetcher transport.MessageFetcher
	logger  *zap.Logger
}

// NewCorrelator constructs a Correlator.
func NewCorrelator(store repository.TicketStore, fetcher transport.MessageFetcher, logger *zap.Logger) *Correlator {
	return &Correlator{store: store, fetcher: fetcher, logger: logger}
}

// Resolve returns the ticket an inbound staff-side message belongs to, or
// nil when the message should be dropped (not a ticket channel).
//
// A reply carrying an embedded ticket tag overrides the arrival channel's
// binding: staff may reply to content from an older channel that has since
// been superseded by a rebind. Fetch or parse failures degrade to the
// channel binding.
func (c *Correlator) Resolve(ctx context.Context, in transport.Inbound) (*domain.Ticket, error) {
	bound, err := c.store.GetTicketByChannel(ctx, in.ChannelID)
	if err != nil {
		return nil, err
	}
	if bound == nil {
		return nil, nil
	}

	if in.ReplyTo == nil {
		return bound, nil
	}

	referenced, err := c.fetcher.FetchMessage(ctx, in.ReplyTo.ChannelID, in.ReplyTo.MessageID)
	if err != nil || referenced == nil {
		c.logger.Warn("referenced message unavailable, using channel binding",
			zap.String("channel_id", in.ReplyTo.ChannelID),
			zap.String("message_id", in.ReplyTo.MessageID),
			zap.Error(err))
		return bound, nil
	}

	tagged, ok := ParseTicketTag(referenced.Footer)
	if !ok {
		return bound, nil
	}
	if tagged == bound.ID {
		return bound, nil
	}

	override, err := c.store.GetTicket(ctx, tagged)
	if err != nil {
		return nil, err
	}
	if override == nil {
		c.logger.Warn("reply tag names unknown ticket, using channel binding",
			zap.Int64("tagged_ticket_id", tagged),
			zap.Int64("bound_ticket_id", bound.ID))
		return bound, nil
	}
	return override, nil
}
