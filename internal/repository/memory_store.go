package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/modmail-router/internal/domain"
)

// ErrActiveTicketExists mirrors the partial unique index on active tickets:
// creating a second active ticket for the same creator or channel fails.
var ErrActiveTicketExists = errors.New("active ticket exists")

// ErrTicketNotFound is returned by mutations against an unknown ticket id.
var ErrTicketNotFound = errors.New("ticket not found")

// memoryTicketStore is a mutex-guarded TicketStore used by tests and by
// DSN-less development runs.
type memoryTicketStore struct {
	mu           sync.Mutex
	nextTicketID int64
	nextMsgID    int64
	tickets      map[int64]*domain.Ticket
	participants map[int64][]domain.Participant
	messages     []domain.Message
}

// NewMemoryTicketStore builds an empty in-memory TicketStore.
func NewMemoryTicketStore() TicketStore {
	return &memoryTicketStore{
		tickets:      make(map[int64]*domain.Ticket),
		participants: make(map[int64][]domain.Participant),
	}
}

func (s *memoryTicketStore) CreateTicket(ctx context.Context, userID, channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.IsActive && (t.CreatorUserID == userID || t.ChannelID == channelID) {
			return 0, ErrActiveTicketExists
		}
	}

	s.nextTicketID++
	ticket := &domain.Ticket{
		ID:            s.nextTicketID,
		CreatorUserID: userID,
		ChannelID:     channelID,
		CreatedAt:     time.Now(),
		IsActive:      true,
	}
	s.tickets[ticket.ID] = ticket
	return ticket.ID, nil
}

func (s *memoryTicketStore) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, nil
	}
	copied := *ticket
	return &copied, nil
}

func (s *memoryTicketStore) GetActiveTicket(ctx context.Context, userID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(func(t *domain.Ticket) bool { return t.CreatorUserID == userID }), nil
}

func (s *memoryTicketStore) GetTicketByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findActive(func(t *domain.Ticket) bool { return t.ChannelID == channelID }), nil
}

// findActive returns a copy of the most recently created active ticket
// matching the predicate. Callers must hold the lock.
func (s *memoryTicketStore) findActive(match func(*domain.Ticket) bool) *domain.Ticket {
	var best *domain.Ticket
	for _, t := range s.tickets {
		if !t.IsActive || !match(t) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) || (t.CreatedAt.Equal(best.CreatedAt) && t.ID > best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	copied := *best
	return &copied
}

func (s *memoryTicketStore) CloseTicket(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.IsActive && t.CreatorUserID == userID {
			t.IsActive = false
		}
	}
	return nil
}

func (s *memoryTicketStore) RebindChannel(ctx context.Context, ticketID int64, newChannelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return ErrTicketNotFound
	}
	ticket.ChannelID = newChannelID
	return nil
}

func (s *memoryTicketStore) AddParticipant(ctx context.Context, ticketID int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return false, ErrTicketNotFound
	}
	for _, p := range s.participants[ticketID] {
		if p.UserID == userID {
			return false, nil
		}
	}
	s.participants[ticketID] = append(s.participants[ticketID], domain.Participant{
		TicketID: ticketID,
		UserID:   userID,
		AddedAt:  time.Now(),
	})
	return true, nil
}

func (s *memoryTicketStore) RemoveParticipant(ctx context.Context, ticketID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.participants[ticketID]
	for i, p := range list {
		if p.UserID == userID {
			s.participants[ticketID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memoryTicketStore) ListParticipants(ctx context.Context, ticketID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []string
	for _, p := range s.participants[ticketID] {
		users = append(users, p.UserID)
	}
	return users, nil
}

func (s *memoryTicketStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[msg.TicketID]; !ok {
		return ErrTicketNotFound
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memoryTicketStore) ListActiveTickets(ctx context.Context) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Ticket
	for _, t := range s.tickets {
		if t.IsActive {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *memoryTicketStore) DeactivateByChannel(ctx context.Context, channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept int64
	for _, t := range s.tickets {
		if t.IsActive && t.ChannelID == channelID {
			t.IsActive = false
			swept++
		}
	}
	return swept, nil
}

// Messages returns a snapshot of the audit log. Test support.
func Messages(store TicketStore) []domain.Message {
	mem, ok := store.(*memoryTicketStore)
	if !ok {
		return nil
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	out := make([]domain.Message, len(mem.messages))
	copy(out, mem.messages)
	return out
}
