package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/modmail-router/internal/domain"
)

// TicketStore encapsulates ticket, participant and message persistence. Every
// method is atomic with respect to a single logical mutation; lookups that
// find nothing return (nil, nil) rather than an error.
type TicketStore interface {
	CreateTicket(ctx context.Context, userID, channelID string) (int64, error)
	GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	GetActiveTicket(ctx context.Context, userID string) (*domain.Ticket, error)
	GetTicketByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	CloseTicket(ctx context.Context, userID string) error
	RebindChannel(ctx context.Context, ticketID int64, newChannelID string) error
	AddParticipant(ctx context.Context, ticketID int64, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, ticketID int64, userID string) error
	ListParticipants(ctx context.Context, ticketID int64) ([]string, error)
	AppendMessage(ctx context.Context, msg *domain.Message) error
	ListActiveTickets(ctx context.Context) ([]domain.Ticket, error)
	DeactivateByChannel(ctx context.Context, channelID string) (int64, error)
}

type pgTicketStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketStore builds a TicketStore backed by a pgx pool.
func NewPostgresTicketStore(pool *pgxpool.Pool) TicketStore {
	return &pgTicketStore{pool: pool}
}

func (s *pgTicketStore) CreateTicket(ctx context.Context, userID, channelID string) (int64, error) {
	const query = `
        INSERT INTO tickets (creator_user_id, channel_id)
        VALUES ($1,$2)
        RETURNING id`
	var id int64
	if err := s.pool.QueryRow(ctx, query, userID, channelID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *pgTicketStore) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	const query = `
        SELECT id, creator_user_id, channel_id, created_at, is_active
        FROM tickets WHERE id=$1`
	return s.fetchSingle(ctx, query, ticketID)
}

func (s *pgTicketStore) GetActiveTicket(ctx context.Context, userID string) (*domain.Ticket, error) {
	const query = `
        SELECT id, creator_user_id, channel_id, created_at, is_active
        FROM tickets WHERE creator_user_id=$1 AND is_active
        ORDER BY created_at DESC LIMIT 1`
	return s.fetchSingle(ctx, query, userID)
}

func (s *pgTicketStore) GetTicketByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	const query = `
        SELECT id, creator_user_id, channel_id, created_at, is_active
        FROM tickets WHERE channel_id=$1 AND is_active
        ORDER BY created_at DESC LIMIT 1`
	return s.fetchSingle(ctx, query, channelID)
}

func (s *pgTicketStore) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.CreatorUserID,
		&ticket.ChannelID,
		&ticket.CreatedAt,
		&ticket.IsActive,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CloseTicket deactivates every active ticket for the user. Idempotent; a
// user with no active ticket is a no-op.
func (s *pgTicketStore) CloseTicket(ctx context.Context, userID string) error {
	const query = `UPDATE tickets SET is_active=FALSE WHERE creator_user_id=$1 AND is_active`
	_, err := s.pool.Exec(ctx, query, userID)
	return err
}

func (s *pgTicketStore) RebindChannel(ctx context.Context, ticketID int64, newChannelID string) error {
	const query = `UPDATE tickets SET channel_id=$1 WHERE id=$2`
	cmd, err := s.pool.Exec(ctx, query, newChannelID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AddParticipant returns false without error when the user is already a
// participant of the ticket.
func (s *pgTicketStore) AddParticipant(ctx context.Context, ticketID int64, userID string) (bool, error) {
	const query = `
        INSERT INTO ticket_participants (ticket_id, user_id)
        VALUES ($1,$2)
        ON CONFLICT (ticket_id, user_id) DO NOTHING`
	cmd, err := s.pool.Exec(ctx, query, ticketID, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *pgTicketStore) RemoveParticipant(ctx context.Context, ticketID int64, userID string) error {
	const query = `DELETE FROM ticket_participants WHERE ticket_id=$1 AND user_id=$2`
	_, err := s.pool.Exec(ctx, query, ticketID, userID)
	return err
}

// ListParticipants returns participant user ids in insertion order.
func (s *pgTicketStore) ListParticipants(ctx context.Context, ticketID int64) ([]string, error) {
	const query = `
        SELECT user_id FROM ticket_participants
        WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func (s *pgTicketStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, external_message_id, author_user_id, content, direction)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return s.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.ExternalMessageID,
		msg.AuthorUserID,
		msg.Content,
		msg.Direction,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (s *pgTicketStore) ListActiveTickets(ctx context.Context) ([]domain.Ticket, error) {
	const query = `
        SELECT id, creator_user_id, channel_id, created_at, is_active
        FROM tickets WHERE is_active
        ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.CreatorUserID,
			&ticket.ChannelID,
			&ticket.CreatedAt,
			&ticket.IsActive,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

// DeactivateByChannel closes every active ticket bound to the given channel
// id. Used by the startup sweep against tickets corrupted with the parent
// container id.
func (s *pgTicketStore) DeactivateByChannel(ctx context.Context, channelID string) (int64, error) {
	const query = `UPDATE tickets SET is_active=FALSE WHERE channel_id=$1 AND is_active`
	cmd, err := s.pool.Exec(ctx, query, channelID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
