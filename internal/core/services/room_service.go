package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
	apperrors "github.com/gatherly/event-chat/internal/core/errors"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// RoomService implements the authority side of the room protocol.
type RoomService struct {
	messages     ports.MessageStore
	presence     ports.PresenceStore
	entitlements ports.EntitlementChecker
	firehose     ports.Firehose
	broadcaster  ports.EventBroadcaster
	historyLimit int
	logger       *slog.Logger
}

// Ensure implementation matches the interface.
var _ ports.RoomService = (*RoomService)(nil)

// NewRoomService creates a new service for room logic.
func NewRoomService(
	messages ports.MessageStore,
	presence ports.PresenceStore,
	entitlements ports.EntitlementChecker,
	firehose ports.Firehose,
	broadcaster ports.EventBroadcaster,
	historyLimit int,
	logger *slog.Logger,
) *RoomService {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &RoomService{
		messages:     messages,
		presence:     presence,
		entitlements: entitlements,
		firehose:     firehose,
		broadcaster:  broadcaster,
		historyLimit: historyLimit,
		logger:       logger.With("component", "room_service"),
	}
}

// Join admits a participant to a room. On success it returns the message
// history and the current online set, marks the participant online, and
// broadcasts the presence change if they were not online already.
func (s *RoomService) Join(ctx context.Context, params ports.JoinParams) (*ports.JoinResult, error) {
	if params.RoomID == "" {
		return nil, apperrors.ErrRoomIDRequired
	}
	if params.Participant.IsZero() {
		return nil, apperrors.ErrIdentityRequired
	}

	allowed, err := s.entitlements.CanJoin(ctx, params.RoomID, params.Participant)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: no entitlement for room %s", apperrors.ErrJoinRejected, params.RoomID)
	}

	newlyOnline, err := s.presence.Add(ctx, params.RoomID, params.Participant.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.History(ctx, params.RoomID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	online, err := s.presence.Online(ctx, params.RoomID)
	if err != nil {
		return nil, err
	}

	if newlyOnline {
		s.broadcastEvent(domain.Event{
			Type:    domain.EventPresenceChange,
			Payload: domain.PresenceChangePayload{ParticipantID: params.Participant.ID, IsOnline: true},
			RoomID:  params.RoomID,
		})
	}

	s.logger.Info("participant joined room",
		"room_id", params.RoomID,
		"participant_id", params.Participant.ID,
		"history_count", len(history),
	)

	return &ports.JoinResult{History: history, Online: online, NewlyOnline: newlyOnline}, nil
}

// Send turns a send request into a durable, ordered message. The server
// assigns the ID and timestamp; the announcement flag is granted only when
// the verified author role permits it, regardless of what the client asked.
func (s *RoomService) Send(ctx context.Context, params ports.SendParams) (*domain.Message, error) {
	if params.RoomID == "" {
		return nil, apperrors.ErrRoomIDRequired
	}
	if params.Author.IsZero() {
		return nil, apperrors.ErrIdentityRequired
	}
	if err := domain.ValidateText(params.Text); err != nil {
		return nil, err
	}

	announcement := params.Announcement && params.Author.IsOrganizer()
	if params.Announcement && !announcement {
		s.logger.Warn("announcement request denied, delivering as regular message",
			"room_id", params.RoomID,
			"participant_id", params.Author.ID,
		)
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		RoomID:         params.RoomID,
		Text:           params.Text,
		Author:         params.Author,
		IsAnnouncement: announcement,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	// The firehose is best-effort: a broken downstream must not block chat.
	if err := s.firehose.Publish(ctx, *msg); err != nil {
		s.logger.Warn("firehose publish failed", "message_id", msg.ID, "error", err)
	}

	s.broadcastEvent(domain.Event{
		Type:    domain.EventMessage,
		Payload: *msg,
		RoomID:  msg.RoomID,
	})

	return msg, nil
}

// Leave marks a participant offline and broadcasts the change if they were
// online. Idempotent: leaving twice is harmless.
func (s *RoomService) Leave(ctx context.Context, roomID string, participantID uuid.UUID) error {
	removed, err := s.presence.Remove(ctx, roomID, participantID)
	if err != nil {
		return err
	}
	if removed {
		s.broadcastEvent(domain.Event{
			Type:    domain.EventPresenceChange,
			Payload: domain.PresenceChangePayload{ParticipantID: participantID, IsOnline: false},
			RoomID:  roomID,
		})
		s.logger.Info("participant left room", "room_id", roomID, "participant_id", participantID)
	}
	return nil
}

// History returns the most recent messages for a room.
func (s *RoomService) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if roomID == "" {
		return nil, apperrors.ErrRoomIDRequired
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.messages.History(ctx, roomID, limit)
}

// Online returns the participants currently online in a room.
func (s *RoomService) Online(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	if roomID == "" {
		return nil, apperrors.ErrRoomIDRequired
	}
	return s.presence.Online(ctx, roomID)
}

func (s *RoomService) broadcastEvent(event domain.Event) {
	if err := s.broadcaster.Broadcast(event); err != nil {
		s.logger.Warn("broadcast failed", "event_type", event.Type, "room_id", event.RoomID, "error", err)
	}
}
