package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// MessageStore persists the durable, ordered message log for each room.
type MessageStore interface {
	// Append stores an accepted message. Appending a message whose ID is
	// already stored is a no-op, so redelivery cannot duplicate history.
	Append(ctx context.Context, msg *domain.Message) error

	// History returns the most recent messages for a room in ascending
	// (createdAt, id) order, capped at limit.
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
}

// PresenceStore tracks which participants are currently online in each room.
type PresenceStore interface {
	// Add marks a participant online. Returns true if the participant was
	// not already online.
	Add(ctx context.Context, roomID string, participantID uuid.UUID) (bool, error)

	// Remove marks a participant offline. Returns true if the participant
	// was online before the call.
	Remove(ctx context.Context, roomID string, participantID uuid.UUID) (bool, error)

	// Online lists the participants currently online in the room.
	Online(ctx context.Context, roomID string) ([]uuid.UUID, error)
}

// Firehose publishes every accepted message to downstream consumers
// (analytics, archival). Publishing failures must not block the send path.
type Firehose interface {
	Publish(ctx context.Context, msg domain.Message) error
	Close() error
}
