package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spec-kit/modmail-router/internal/transport"
)

// fakeGateway implements Sender, MessageFetcher and ChannelDirectory against
// in-memory state. Channel sends record their footer so reply correlation
// can be exercised end to end.
type fakeGateway struct {
	mu         sync.Mutex
	kinds      map[string]transport.ChannelKind
	nextChan   int
	nextMsg    int
	delivered  map[string]transport.Delivered
	sends      []recordedSend
	failDirect map[string]bool
	failSend   bool
}

type recordedSend struct {
	target  string
	direct  bool
	message transport.Outbound
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		kinds: map[string]transport.ChannelKind{
			"parent-1": transport.ChannelKindContainer,
		},
		delivered:  make(map[string]transport.Delivered),
		failDirect: make(map[string]bool),
	}
}

func (g *fakeGateway) SendToChannel(ctx context.Context, channelID string, msg transport.Outbound) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSend {
		return "", errors.New("channel send failed")
	}
	g.nextMsg++
	id := fmt.Sprintf("msg-%d", g.nextMsg)
	g.delivered[channelID+"|"+id] = transport.Delivered{
		MessageID: id,
		ChannelID: channelID,
		Footer:    msg.Footer,
	}
	g.sends = append(g.sends, recordedSend{target: channelID, message: msg})
	return id, nil
}

func (g *fakeGateway) SendDirect(ctx context.Context, userID string, msg transport.Outbound) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDirect[userID] {
		return "", errors.New("user blocked delivery")
	}
	g.nextMsg++
	g.sends = append(g.sends, recordedSend{target: userID, direct: true, message: msg})
	return fmt.Sprintf("msg-%d", g.nextMsg), nil
}

func (g *fakeGateway) FetchMessage(ctx context.Context, channelID, messageID string) (*transport.Delivered, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.delivered[channelID+"|"+messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return &d, nil
}

func (g *fakeGateway) CreateChannel(ctx context.Context, parentID, name, topic string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextChan++
	id := fmt.Sprintf("chan-%d", g.nextChan)
	g.kinds[id] = transport.ChannelKindText
	return id, nil
}

func (g *fakeGateway) Resolve(ctx context.Context, channelID string) (transport.ChannelKind, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kind, ok := g.kinds[channelID]
	if !ok {
		return transport.ChannelKindNone, nil
	}
	return kind, nil
}

// breakChannel makes a previously created channel unresolvable, simulating
// deletion on the platform side.
func (g *fakeGateway) breakChannel(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.kinds, channelID)
}

func (g *fakeGateway) directSendsTo(userID string) []recordedSend {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []recordedSend
	for _, s := range g.sends {
		if s.direct && s.target == userID {
			out = append(out, s)
		}
	}
	return out
}

func (g *fakeGateway) channelSendsTo(channelID string) []recordedSend {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []recordedSend
	for _, s := range g.sends {
		if !s.direct && s.target == channelID {
			out = append(out, s)
		}
	}
	return out
}
