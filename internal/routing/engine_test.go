package routing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newTestEngine(t *testing.T) (*Engine, repository.TicketStore, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	store := repository.NewMemoryTicketStore()
	logger := zap.NewNop()
	cfg := config.RoutingConfig{
		ParentChannelID:   "parent-1",
		ChannelNamePrefix: "ticket",
	}
	eng := NewEngine(cfg, Dependencies{
		Store:      store,
		Channels:   channel.NewManager(gw, cfg, logger),
		Sender:     gw,
		Correlator: correlate.NewCorrelator(store, gw, logger),
		Dispatcher: events.NewInMemoryDispatcher(),
		Dedupe:     NewDeduper(nil, time.Minute, logger),
		Metrics:    observability.NewMetrics(),
		Logger:     logger,
	})
	return eng, store, gw
}

func userMessage(id, user, content string) transport.Inbound {
	return transport.Inbound{MessageID: id, AuthorID: user, Content: content}
}

func TestHandleUserMessage_OpensTicket(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "help")))

	ticket, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "chan-1", ticket.ChannelID)

	participants, err := store.ListParticipants(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a"}, participants)

	channelSends := gw.channelSendsTo("chan-1")
	require.Len(t, channelSends, 1)
	assert.Equal(t, correlate.FormatTicketTag(ticket.ID), channelSends[0].message.Footer)
	assert.Contains(t, channelSends[0].message.Body, "help")

	msgs := repository.Messages(store)
	require.Len(t, msgs, 1)
	assert.Equal(t, ticket.ID, msgs[0].TicketID)
	assert.Equal(t, "user-a", msgs[0].AuthorUserID)
	assert.Equal(t, domain.DirectionUserToStaff, msgs[0].Direction)
	assert.Equal(t, "msg-1", msgs[0].ExternalMessageID)

	confirmations := gw.directSendsTo("user-a")
	require.Len(t, confirmations, 1)
	assert.Equal(t, confirmCreated, confirmations[0].message.Body)
}

func TestHandleUserMessage_ForwardsToExistingTicket(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "help")))
	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-2", "user-a", "still broken")))

	tickets, err := store.ListActiveTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	assert.Len(t, gw.channelSendsTo("chan-1"), 2)
	assert.Len(t, gw.directSendsTo("user-a"), 1, "no extra confirmation on forward")
	assert.Len(t, repository.Messages(store), 2)
}

func TestHandleUserMessage_RecreatesBrokenChannel(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "help")))
	before, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	require.NotNil(t, before)

	gw.breakChannel("chan-1")
	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-2", "user-a", "anyone there?")))

	after, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID, "rebinding preserves the ticket id")
	assert.Equal(t, "chan-2", after.ChannelID)

	msgs := repository.Messages(store)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, before.ID, msg.TicketID, "history stays attributed to the original ticket")
	}

	var bodies []string
	for _, s := range gw.directSendsTo("user-a") {
		bodies = append(bodies, s.message.Body)
	}
	assert.Contains(t, bodies, noticeRecreating)
	assert.Contains(t, bodies, confirmRecreated)
}

func TestHandleUserMessage_ParentMisconfigured(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	gw.breakChannel("parent-1")
	err := eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "help"))
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CONFIGURATION_ERROR"))

	ticket, lookupErr := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, lookupErr)
	assert.Nil(t, ticket)

	notices := gw.directSendsTo("user-a")
	require.Len(t, notices, 1)
	assert.Equal(t, noticeConfigError, notices[0].message.Body)
}

func TestHandleUserMessage_ConcurrentFirstContact(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	const inflight = 20
	var wg sync.WaitGroup
	errs := make(chan error, inflight)
	for i := 0; i < inflight; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- eng.HandleUserMessage(ctx, userMessage(fmt.Sprintf("in-%d", i), "user-a", "first!"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tickets, err := store.ListActiveTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, tickets, 1, "concurrent first messages must not race into two tickets")
	assert.Len(t, repository.Messages(store), inflight)
}

func TestHandleChannelMessage_FanOutSingleAuditRow(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "help")))
	ticket, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	for _, user := range []string{"user-b", "user-c"} {
		_, err := store.AddParticipant(ctx, ticket.ID, user)
		require.NoError(t, err)
	}

	staffMsg := transport.Inbound{
		MessageID: "staff-1",
		ChannelID: "chan-1",
		AuthorID:  "staff-x",
		Content:   "got it",
	}
	require.NoError(t, eng.HandleChannelMessage(ctx, staffMsg))

	for _, user := range []string{"user-b", "user-c"} {
		sends := gw.directSendsTo(user)
		require.Len(t, sends, 1)
		assert.Equal(t, "got it", sends[0].message.Body)
		assert.Equal(t, replyPromptFooter, sends[0].message.Footer)
	}

	var staffRows []domain.Message
	for _, msg := range repository.Messages(store) {
		if msg.Direction == domain.DirectionStaffToUser {
			staffRows = append(staffRows, msg)
		}
	}
	require.Len(t, staffRows, 1, "exactly one audit row per logical staff message")
	assert.Equal(t, "user-a", staffRows[0].AuthorUserID, "attributed to the first participant")
	assert.Equal(t, "staff-1", staffRows[0].ExternalMessageID)
}

func TestHandleChannelMessage_DeliveryFailureTolerated(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "help")))
	ticket, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	for _, user := range []string{"user-b", "user-c"} {
		_, err := store.AddParticipant(ctx, ticket.ID, user)
		require.NoError(t, err)
	}
	gw.failDirect["user-b"] = true

	require.NoError(t, eng.HandleChannelMessage(ctx, transport.Inbound{
		MessageID: "staff-1",
		ChannelID: "chan-1",
		Content:   "still with us?",
	}))

	assert.Len(t, gw.directSendsTo("user-c"), 1, "failure for one participant does not abort the rest")

	var staffRows int
	for _, msg := range repository.Messages(store) {
		if msg.Direction == domain.DirectionStaffToUser {
			staffRows++
		}
	}
	assert.Equal(t, 1, staffRows)
}

func TestHandleChannelMessage_UnboundChannelIgnored(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleChannelMessage(ctx, transport.Inbound{
		MessageID: "staff-1",
		ChannelID: "random-chan",
		Content:   "hello?",
	}))

	assert.Empty(t, repository.Messages(store))
	assert.Empty(t, gw.sends)
}

// A staff reply to a message from a superseded ticket's history is routed to
// that original ticket even though the channel is now bound to a newer one.
func TestHandleChannelMessage_ReplyTagPrecedence(t *testing.T) {
	eng, store, gw := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-1", "user-a", "first issue")))
	oldTicket, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	oldDelivery := gw.channelSendsTo("chan-1")
	require.Len(t, oldDelivery, 1)

	require.NoError(t, store.CloseTicket(ctx, "user-a"))
	require.NoError(t, eng.HandleUserMessage(ctx, userMessage("in-2", "user-a", "second issue")))
	newTicket, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	require.NotEqual(t, oldTicket.ID, newTicket.ID)
	require.Equal(t, "chan-2", newTicket.ChannelID)

	// Staff replies on the new channel to the first ticket's message.
	require.NoError(t, eng.HandleChannelMessage(ctx, transport.Inbound{
		MessageID: "staff-1",
		ChannelID: "chan-2",
		Content:   "closing the loop on the first issue",
		ReplyTo:   &transport.MessageRef{ChannelID: "chan-1", MessageID: "msg-1"},
	}))

	var staffRows []domain.Message
	for _, msg := range repository.Messages(store) {
		if msg.Direction == domain.DirectionStaffToUser {
			staffRows = append(staffRows, msg)
		}
	}
	require.Len(t, staffRows, 1)
	assert.Equal(t, oldTicket.ID, staffRows[0].TicketID)
}
