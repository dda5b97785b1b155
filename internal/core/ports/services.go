package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// EventBroadcaster pushes real-time events to connected clients.
// The websocket hub is the production implementation.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// EntitlementChecker answers whether a participant may enter a room. The
// event/ticketing system is the production implementation; the chat core only
// consumes the verdict.
type EntitlementChecker interface {
	CanJoin(ctx context.Context, roomID string, participant domain.Participant) (bool, error)
}

// JoinParams carries a join request into the room service.
type JoinParams struct {
	RoomID      string
	Participant domain.Participant
}

// JoinResult is what a freshly joined client needs to seed its local state.
type JoinResult struct {
	History     []domain.Message
	Online      []uuid.UUID
	NewlyOnline bool
}

// SendParams carries a send request into the room service. Announcement is
// the client's request; the service confirms it against the author's role.
type SendParams struct {
	RoomID       string
	Author       domain.Participant
	Text         string
	Announcement bool
}

// RoomService implements the authority side of the room protocol: it admits
// participants, turns sends into durable ordered messages, and maintains the
// room presence set.
type RoomService interface {
	Join(ctx context.Context, params JoinParams) (*JoinResult, error)
	Send(ctx context.Context, params SendParams) (*domain.Message, error)
	Leave(ctx context.Context, roomID string, participantID uuid.UUID) error
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	Online(ctx context.Context, roomID string) ([]uuid.UUID, error)
}
