package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherly/event-chat/internal/core/domain"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// MessageRepository is the secondary adapter for durable message persistence.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// Ensure MessageRepository implements the ports.MessageStore interface.
var _ ports.MessageStore = (*MessageRepository)(nil)

// NewMessageRepository creates a new message repository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append persists a message. Appending the same message ID twice is a no-op,
// so redelivery after a broadcast retry cannot duplicate rows.
func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	const query = `
		INSERT INTO messages (id, room_id, author_id, author_name, author_avatar, author_role, body, is_announcement, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.Author.ID,
		msg.Author.DisplayName,
		msg.Author.AvatarURL,
		string(msg.Author.Role),
		msg.Text,
		msg.IsAnnouncement,
		msg.CreatedAt,
	)
	return err
}

// History returns the most recent messages for a room in ascending
// (created_at, id) order. The inner query picks the newest rows, the outer
// one flips them back into reading order.
func (r *MessageRepository) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	const query = `
		SELECT id, room_id, author_id, author_name, author_avatar, author_role, body, is_announcement, created_at
		FROM (
			SELECT id, room_id, author_id, author_name, author_avatar, author_role, body, is_announcement, created_at
			FROM messages
			WHERE room_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.Message, 0, limit)
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.Author.ID,
			&msg.Author.DisplayName,
			&msg.Author.AvatarURL,
			&role,
			&msg.Text,
			&msg.IsAnnouncement,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.Author.Role = domain.Role(role)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Ping checks database connectivity for health probes.
func (r *MessageRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
