// Package routing implements the ticket routing engine: the state machines
// for inbound user and staff-side messages, participant fan-out, and channel
// recovery.
package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/modmail-router/internal/channel"
	"github.com/spec-kit/modmail-router/internal/config"
	"github.com/spec-kit/modmail-router/internal/correlate"
	"github.com/spec-kit/modmail-router/internal/domain"
	"github.com/spec-kit/modmail-router/internal/events"
	"github.com/spec-kit/modmail-router/internal/observability"
	"github.com/spec-kit/modmail-router/internal/repository"
	"github.com/spec-kit/modmail-router/internal/transport"
	"github.com/spec-kit/modmail-router/pkg/util"
)

// Engine orchestrates ticket routing.
type Engine struct {
	store      repository.TicketStore
	channels   *channel.Manager
	sender     transport.Sender
	correlator *correlate.Correlator
	dispatcher events.Dispatcher
	dedupe     *Deduper
	metrics    *observability.Metrics
	cfg        config.RoutingConfig
	logger     *zap.Logger
	locks      *userLocks
}

// Dependencies bundles collaborators for the engine.
type Dependencies struct {
	Store      repository.TicketStore
	Channels   *channel.Manager
	Sender     transport.Sender
	Correlator *correlate.Correlator
	Dispatcher events.Dispatcher
	Dedupe     *Deduper
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewEngine constructs the routing engine.
func NewEngine(cfg config.RoutingConfig, deps Dependencies) *Engine {
	return &Engine{
		store:      deps.Store,
		channels:   deps.Channels,
		sender:     deps.Sender,
		correlator: deps.Correlator,
		dispatcher: deps.Dispatcher,
		dedupe:     deps.Dedupe,
		metrics:    deps.Metrics,
		cfg:        cfg,
		logger:     deps.Logger,
		locks:      newUserLocks(),
	}
}

// HandleUserMessage routes an inbound private message from a user: opens a
// ticket when none is active, forwards into the bound channel when it is
// usable, and recreates the channel (same ticket, new binding) when it is
// not.
//
// The whole sequence runs under the user's lock so two near-simultaneous
// first messages cannot race into two active tickets.
func (e *Engine) HandleUserMessage(ctx context.Context, in transport.Inbound) error {
	if e.dedupe.Seen(ctx, in.MessageID) {
		e.metrics.RecordDropped("duplicate")
		return nil
	}

	unlock := e.locks.Lock(in.AuthorID)
	defer unlock()

	ticket, err := e.store.GetActiveTicket(ctx, in.AuthorID)
	if err != nil {
		return err
	}

	switch {
	case ticket == nil:
		return e.openTicket(ctx, in)
	case e.channels.IsUsable(ctx, ticket.ChannelID):
		return e.forwardUserMessage(ctx, in, ticket)
	default:
		return e.recreateTicketChannel(ctx, in, ticket)
	}
}

func (e *Engine) openTicket(ctx context.Context, in transport.Inbound) error {
	channelID, err := e.channels.CreateTicketChannel(ctx, in.AuthorID)
	if err != nil {
		e.notifyUser(ctx, in.AuthorID, plainNotice("", noticeConfigError))
		return err
	}

	ticketID, err := e.store.CreateTicket(ctx, in.AuthorID, channelID)
	if err != nil {
		return err
	}
	if _, err := e.store.AddParticipant(ctx, ticketID, in.AuthorID); err != nil {
		return err
	}

	if err := e.deliverUserMessage(ctx, in, ticketID, channelID, titleNewTicket); err != nil {
		return err
	}

	e.notifyUser(ctx, in.AuthorID, plainNotice("", confirmCreated))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketOpened,
		TicketID: ticketID,
		Payload: events.TicketOpenedPayload{
			CreatorUserID: in.AuthorID,
			ChannelID:     channelID,
		},
	})
	e.logger.Info("ticket opened",
		zap.Int64("ticket_id", ticketID),
		zap.String("user_id", in.AuthorID),
		zap.String("channel_id", channelID))
	return nil
}

func (e *Engine) forwardUserMessage(ctx context.Context, in transport.Inbound, ticket *domain.Ticket) error {
	return e.deliverUserMessage(ctx, in, ticket.ID, ticket.ChannelID, titleUserMessage)
}

func (e *Engine) recreateTicketChannel(ctx context.Context, in transport.Inbound, ticket *domain.Ticket) error {
	e.notifyUser(ctx, in.AuthorID, plainNotice("", noticeRecreating))

	channelID, err := e.channels.CreateTicketChannel(ctx, in.AuthorID)
	if err != nil {
		e.notifyUser(ctx, in.AuthorID, plainNotice("", noticeConfigError))
		return err
	}

	// Rebind before appending so the audit row is never observed attributed
	// to a ticket whose rebinding is not yet visible.
	oldChannelID := ticket.ChannelID
	if err := e.store.RebindChannel(ctx, ticket.ID, channelID); err != nil {
		return err
	}

	if err := e.deliverUserMessage(ctx, in, ticket.ID, channelID, titleRecreated); err != nil {
		return err
	}

	e.notifyUser(ctx, in.AuthorID, plainNotice("", confirmRecreated))
	e.publish(ctx, events.Event{
		Type:     events.EventTicketRebound,
		TicketID: ticket.ID,
		Payload: events.TicketReboundPayload{
			OldChannelID: oldChannelID,
			NewChannelID: channelID,
		},
	})
	e.logger.Info("ticket channel recreated",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("old_channel_id", oldChannelID),
		zap.String("new_channel_id", channelID))
	return nil
}

// deliverUserMessage sends the user's message into the ticket channel and
// appends the audit row.
func (e *Engine) deliverUserMessage(ctx context.Context, in transport.Inbound, ticketID int64, channelID, title string) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout())
	defer cancel()

	externalID, err := e.sender.SendToChannel(sendCtx, channelID, ticketChannelMessage(title, in, ticketID))
	if err != nil {
		return err
	}
	if err := e.store.AppendMessage(ctx, &domain.Message{
		TicketID:          ticketID,
		ExternalMessageID: externalID,
		AuthorUserID:      in.AuthorID,
		Content:           in.Content,
		Direction:         domain.DirectionUserToStaff,
	}); err != nil {
		return err
	}
	e.metrics.RecordRouted(string(domain.DirectionUserToStaff))
	return nil
}

// HandleChannelMessage routes an inbound staff-side message: resolves the
// effective ticket, fans the message out to every participant, and appends
// exactly one audit row attributed to the first participant. Individual
// delivery failures are logged and tolerated.
func (e *Engine) HandleChannelMessage(ctx context.Context, in transport.Inbound) error {
	if e.dedupe.Seen(ctx, in.MessageID) {
		e.metrics.RecordDropped("duplicate")
		return nil
	}

	ticket, err := e.correlator.Resolve(ctx, in)
	if err != nil {
		return err
	}
	if ticket == nil {
		e.metrics.RecordDropped("unbound_channel")
		return nil
	}

	participants, err := e.store.ListParticipants(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if len(participants) == 0 {
		e.logger.Warn("ticket has no participants", zap.Int64("ticket_id", ticket.ID))
		return nil
	}

	failed := 0
	outbound := staffResponseMessage(in)
	for _, userID := range participants {
		if err := e.sendDirect(ctx, userID, outbound); err != nil {
			failed++
			e.metrics.RecordDeliveryFailure()
			e.logger.Warn("participant delivery failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(util.NewDeliveryError(userID, err)))
		}
	}

	// One audit row per logical staff message, regardless of delivery
	// outcomes, attributed to the first participant in insertion order.
	if err := e.store.AppendMessage(ctx, &domain.Message{
		TicketID:          ticket.ID,
		ExternalMessageID: in.MessageID,
		AuthorUserID:      participants[0],
		Content:           in.Content,
		Direction:         domain.DirectionStaffToUser,
	}); err != nil {
		return err
	}

	e.metrics.RecordRouted(string(domain.DirectionStaffToUser))
	e.publish(ctx, events.Event{
		Type:     events.EventMessageRouted,
		TicketID: ticket.ID,
		Payload: events.MessageRoutedPayload{
			Direction:  domain.DirectionStaffToUser,
			Recipients: len(participants),
			Failed:     failed,
		},
	})
	return nil
}

// NotifyParticipant sends a best-effort direct notice. Failures are logged,
// never propagated.
func (e *Engine) NotifyParticipant(ctx context.Context, userID string, msg transport.Outbound) {
	e.notifyUser(ctx, userID, msg)
}

func (e *Engine) notifyUser(ctx context.Context, userID string, msg transport.Outbound) {
	if err := e.sendDirect(ctx, userID, msg); err != nil {
		e.metrics.RecordDeliveryFailure()
		e.logger.Warn("user notification failed",
			zap.Error(util.NewDeliveryError(userID, err)))
	}
}

func (e *Engine) sendDirect(ctx context.Context, userID string, msg transport.Outbound) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout())
	defer cancel()
	_, err := e.sender.SendDirect(sendCtx, userID, msg)
	return err
}

// Publish emits a routing event with id and timestamp filled in.
func (e *Engine) Publish(ctx context.Context, event events.Event) {
	e.publish(ctx, event)
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = e.dispatcher.Publish(ctx, event)
}
