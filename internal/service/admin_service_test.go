package service

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
	"github.com/spec-kit/modmail-router/internal/events"
	"github.com/spec-kit/modmail-router/internal/observability"
	"github.com/spec-kit/modmail-router/internal/repository"
	"github.com/spec-kit/modmail-router/internal/routing"
	"github.com/spec-kit/modmail-router/internal/transport"
	"github.com/spec-kit/modmail-router/pkg/util"
)

// stubGateway satisfies the transport interfaces with just enough behavior
// for admin flows: direct sends are recorded, channels always resolve.
type stubGateway struct {
	mu      sync.Mutex
	nextMsg int
	directs map[string]int
}

func newStubGateway() *stubGateway {
	return &stubGateway{directs: make(map[string]int)}
}

func (g *stubGateway) SendToChannel(ctx context.Context, channelID string, msg transport.Outbound) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMsg++
	return fmt.Sprintf("msg-%d", g.nextMsg), nil
}

func (g *stubGateway) SendDirect(ctx context.Context, userID string, msg transport.Outbound) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMsg++
	g.directs[userID]++
	return fmt.Sprintf("msg-%d", g.nextMsg), nil
}

func (g *stubGateway) FetchMessage(ctx context.Context, channelID, messageID string) (*transport.Delivered, error) {
	return nil, nil
}

func (g *stubGateway) CreateChannel(ctx context.Context, parentID, name, topic string) (string, error) {
	return "chan-new", nil
}

func (g *stubGateway) Resolve(ctx context.Context, channelID string) (transport.ChannelKind, error) {
	if channelID == "parent-1" {
		return transport.ChannelKindContainer, nil
	}
	return transport.ChannelKindText, nil
}

func (g *stubGateway) directCount(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.directs[userID]
}

func newTestService(t *testing.T) (*AdminService, repository.TicketStore, *stubGateway) {
	t.Helper()
	gw := newStubGateway()
	store := repository.NewMemoryTicketStore()
	logger := zap.NewNop()
	cfg := config.RoutingConfig{ParentChannelID: "parent-1", ChannelNamePrefix: "ticket"}
	engine := routing.NewEngine(cfg, routing.Dependencies{
		Store:      store,
		Channels:   channel.NewManager(gw, cfg, logger),
		Sender:     gw,
		Correlator: correlate.NewCorrelator(store, gw, logger),
		Dispatcher: events.NewInMemoryDispatcher(),
		Dedupe:     routing.NewDeduper(nil, time.Minute, logger),
		Metrics:    observability.NewMetrics(),
		Logger:     logger,
	})
	svc := NewAdminService(AdminDependencies{Store: store, Engine: engine, Logger: logger})
	return svc, store, gw
}

func seedTicket(t *testing.T, store repository.TicketStore, creator, channelID string, extra ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateTicket(ctx, creator, channelID)
	require.NoError(t, err)
	for _, user := range append([]string{creator}, extra...) {
		_, err := store.AddParticipant(ctx, id, user)
		require.NoError(t, err)
	}
	return id
}

func TestClose_ByUser(t *testing.T) {
	svc, store, gw := newTestService(t)
	ctx := context.Background()
	id := seedTicket(t, store, "user-a", "chan-1", "user-b")

	result, err := svc.Close(ctx, CloseInput{TargetUserID: "user-a"})
	require.NoError(t, err)
	assert.Equal(t, id, result.TicketID)
	assert.Equal(t, "user-a", result.CreatorUserID)
	assert.Equal(t, 2, result.Notified)

	active, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.Equal(t, 1, gw.directCount("user-a"))
	assert.Equal(t, 1, gw.directCount("user-b"))
}

func TestClose_ByChannel(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	id := seedTicket(t, store, "user-a", "chan-1")

	result, err := svc.Close(ctx, CloseInput{ChannelID: "chan-1"})
	require.NoError(t, err)
	assert.Equal(t, id, result.TicketID)

	active, err := store.GetActiveTicket(ctx, "user-a")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestClose_NoActiveTicket(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Close(context.Background(), CloseInput{TargetUserID: "user-x"})
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "NOT_FOUND"))
}

func TestClose_NoTarget(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Close(context.Background(), CloseInput{})
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "VALIDATION_FAILED"))
}

func TestAddParticipant(t *testing.T) {
	svc, store, gw := newTestService(t)
	ctx := context.Background()
	id := seedTicket(t, store, "user-a", "chan-1")

	result, err := svc.AddParticipant(ctx, "chan-1", "user-b")
	require.NoError(t, err)
	assert.Equal(t, id, result.TicketID)
	assert.True(t, result.Added)
	assert.Equal(t, 1, gw.directCount("user-b"))

	// A second add reports Added=false and does not re-notify.
	result, err = svc.AddParticipant(ctx, "chan-1", "user-b")
	require.NoError(t, err)
	assert.False(t, result.Added)
	assert.Equal(t, 1, gw.directCount("user-b"))
}

func TestAddParticipant_UnboundChannel(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddParticipant(context.Background(), "chan-9", "user-b")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "NOT_FOUND"))
}

func TestRemoveParticipant(t *testing.T) {
	svc, store, gw := newTestService(t)
	ctx := context.Background()
	id := seedTicket(t, store, "user-a", "chan-1", "user-b")

	result, err := svc.RemoveParticipant(ctx, "chan-1", "user-b")
	require.NoError(t, err)
	assert.Equal(t, id, result.TicketID)
	assert.Equal(t, 1, gw.directCount("user-b"))

	users, err := store.ListParticipants(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a"}, users)
}

func TestRemoveParticipant_CreatorProtected(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	id := seedTicket(t, store, "user-a", "chan-1", "user-b")

	_, err := svc.RemoveParticipant(ctx, "chan-1", "user-a")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CONFLICT"))

	users, listErr := store.ListParticipants(ctx, id)
	require.NoError(t, listErr)
	assert.Contains(t, users, "user-a")
}

func TestInfo(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	id := seedTicket(t, store, "user-a", "chan-1", "user-b", "user-c")

	info, err := svc.Info(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, id, info.TicketID)
	assert.Equal(t, "user-a", info.CreatorUserID)
	assert.Equal(t, "chan-1", info.ChannelID)
	assert.Equal(t, []string{"user-a", "user-b", "user-c"}, info.Participants)
	assert.False(t, info.CreatedAt.IsZero())
}

func TestListActiveTickets(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	seedTicket(t, store, "user-a", "chan-1")
	time.Sleep(2 * time.Millisecond)
	second := seedTicket(t, store, "user-b", "chan-2")

	tickets, err := svc.ListActiveTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, second, tickets[0].ID)
}
