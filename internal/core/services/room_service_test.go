package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/event-chat/internal/core/domain"
	apperrors "github.com/gatherly/event-chat/internal/core/errors"
	"github.com/gatherly/event-chat/internal/core/mocks"
	"github.com/gatherly/event-chat/internal/core/ports"
)

type serviceMocks struct {
	messages     *mocks.MockMessageStore
	presence     *mocks.MockPresenceStore
	entitlements *mocks.MockEntitlementChecker
	firehose     *mocks.MockFirehose
	broadcaster  *mocks.MockEventBroadcaster
}

func newTestService(t *testing.T) (*RoomService, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		messages:     mocks.NewMockMessageStore(),
		presence:     mocks.NewMockPresenceStore(),
		entitlements: mocks.NewMockEntitlementChecker(),
		firehose:     mocks.NewMockFirehose(),
		broadcaster:  mocks.NewMockEventBroadcaster(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewRoomService(m.messages, m.presence, m.entitlements, m.firehose, m.broadcaster, 100, logger)
	return svc, m
}

func organizer() domain.Participant {
	return domain.Participant{
		ID:          uuid.New(),
		DisplayName: "Dana Organizer",
		Role:        domain.RoleOrganizer,
	}
}

func attendee() domain.Participant {
	return domain.Participant{
		ID:          uuid.New(),
		DisplayName: "Alex Attendee",
		Role:        domain.RoleParticipant,
	}
}

func TestRoomService_Join(t *testing.T) {
	t.Run("admits entitled participant and broadcasts presence", func(t *testing.T) {
		svc, m := newTestService(t)
		p := attendee()
		history := []domain.Message{
			{ID: uuid.New(), RoomID: "event-42", Text: "welcome", Author: organizer(), CreatedAt: time.Now().UTC()},
		}
		online := []uuid.UUID{p.ID}

		m.entitlements.On("CanJoin", mock.Anything, "event-42", p).Return(true, nil)
		m.presence.On("Add", mock.Anything, "event-42", p.ID).Return(true, nil)
		m.messages.On("History", mock.Anything, "event-42", 100).Return(history, nil)
		m.presence.On("Online", mock.Anything, "event-42").Return(online, nil)
		m.broadcaster.On("Broadcast", mock.MatchedBy(func(e domain.Event) bool {
			payload, ok := e.Payload.(domain.PresenceChangePayload)
			return e.Type == domain.EventPresenceChange && e.RoomID == "event-42" &&
				ok && payload.ParticipantID == p.ID && payload.IsOnline
		})).Return(nil)

		result, err := svc.Join(context.Background(), ports.JoinParams{RoomID: "event-42", Participant: p})

		require.NoError(t, err)
		assert.Equal(t, history, result.History)
		assert.Equal(t, online, result.Online)
		assert.True(t, result.NewlyOnline)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("does not broadcast when participant was already online", func(t *testing.T) {
		svc, m := newTestService(t)
		p := attendee()

		m.entitlements.On("CanJoin", mock.Anything, "event-42", p).Return(true, nil)
		m.presence.On("Add", mock.Anything, "event-42", p.ID).Return(false, nil)
		m.messages.On("History", mock.Anything, "event-42", 100).Return([]domain.Message{}, nil)
		m.presence.On("Online", mock.Anything, "event-42").Return([]uuid.UUID{p.ID}, nil)

		result, err := svc.Join(context.Background(), ports.JoinParams{RoomID: "event-42", Participant: p})

		require.NoError(t, err)
		assert.False(t, result.NewlyOnline)
		m.broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})

	t.Run("rejects participant without entitlement", func(t *testing.T) {
		svc, m := newTestService(t)
		p := attendee()

		m.entitlements.On("CanJoin", mock.Anything, "event-42", p).Return(false, nil)

		result, err := svc.Join(context.Background(), ports.JoinParams{RoomID: "event-42", Participant: p})

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrJoinRejected)
		assert.Nil(t, result)
		m.presence.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("propagates entitlement check failure", func(t *testing.T) {
		svc, m := newTestService(t)
		p := attendee()
		checkErr := errors.New("entitlement service unavailable")

		m.entitlements.On("CanJoin", mock.Anything, "event-42", p).Return(false, checkErr)

		_, err := svc.Join(context.Background(), ports.JoinParams{RoomID: "event-42", Participant: p})

		assert.ErrorIs(t, err, checkErr)
	})

	t.Run("requires a room ID", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Join(context.Background(), ports.JoinParams{Participant: attendee()})

		assert.ErrorIs(t, err, apperrors.ErrRoomIDRequired)
	})

	t.Run("requires an identity", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Join(context.Background(), ports.JoinParams{RoomID: "event-42"})

		assert.ErrorIs(t, err, apperrors.ErrIdentityRequired)
	})
}

func TestRoomService_Send(t *testing.T) {
	t.Run("assigns id and timestamp, persists and broadcasts", func(t *testing.T) {
		svc, m := newTestService(t)
		author := attendee()

		m.messages.On("Append", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
		m.firehose.On("Publish", mock.Anything, mock.AnythingOfType("domain.Message")).Return(nil)
		m.broadcaster.On("Broadcast", mock.MatchedBy(func(e domain.Event) bool {
			return e.Type == domain.EventMessage && e.RoomID == "event-42"
		})).Return(nil)

		before := time.Now().UTC()
		msg, err := svc.Send(context.Background(), ports.SendParams{
			RoomID: "event-42",
			Author: author,
			Text:   "hello everyone",
		})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, msg.ID)
		assert.Equal(t, "event-42", msg.RoomID)
		assert.Equal(t, "hello everyone", msg.Text)
		assert.Equal(t, author, msg.Author)
		assert.False(t, msg.IsAnnouncement)
		assert.False(t, msg.CreatedAt.Before(before))
		m.messages.AssertExpectations(t)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("grants announcement flag to organizer", func(t *testing.T) {
		svc, m := newTestService(t)

		m.messages.On("Append", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
		m.firehose.On("Publish", mock.Anything, mock.AnythingOfType("domain.Message")).Return(nil)
		m.broadcaster.On("Broadcast", mock.Anything).Return(nil)

		msg, err := svc.Send(context.Background(), ports.SendParams{
			RoomID:       "event-42",
			Author:       organizer(),
			Text:         "doors open at 7",
			Announcement: true,
		})

		require.NoError(t, err)
		assert.True(t, msg.IsAnnouncement)
	})

	t.Run("downgrades announcement request from non-organizer", func(t *testing.T) {
		svc, m := newTestService(t)

		m.messages.On("Append", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
		m.firehose.On("Publish", mock.Anything, mock.AnythingOfType("domain.Message")).Return(nil)
		m.broadcaster.On("Broadcast", mock.Anything).Return(nil)

		msg, err := svc.Send(context.Background(), ports.SendParams{
			RoomID:       "event-42",
			Author:       attendee(),
			Text:         "fake announcement",
			Announcement: true,
		})

		require.NoError(t, err)
		assert.False(t, msg.IsAnnouncement, "announcement flag must not survive without organizer role")
	})

	t.Run("rejects empty text without touching the store", func(t *testing.T) {
		svc, m := newTestService(t)

		_, err := svc.Send(context.Background(), ports.SendParams{
			RoomID: "event-42",
			Author: attendee(),
			Text:   "   ",
		})

		assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)
		m.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("rejects oversized text", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Send(context.Background(), ports.SendParams{
			RoomID: "event-42",
			Author: attendee(),
			Text:   strings.Repeat("a", domain.MaxMessageLength+1),
		})

		assert.ErrorIs(t, err, apperrors.ErrMessageTooLong)
	})

	t.Run("tolerates firehose failure", func(t *testing.T) {
		svc, m := newTestService(t)

		m.messages.On("Append", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
		m.firehose.On("Publish", mock.Anything, mock.AnythingOfType("domain.Message")).Return(errors.New("broker down"))
		m.broadcaster.On("Broadcast", mock.Anything).Return(nil)

		msg, err := svc.Send(context.Background(), ports.SendParams{
			RoomID: "event-42",
			Author: attendee(),
			Text:   "still delivered",
		})

		require.NoError(t, err)
		assert.NotNil(t, msg)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("fails when append fails", func(t *testing.T) {
		svc, m := newTestService(t)
		storeErr := errors.New("connection reset")

		m.messages.On("Append", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(storeErr)

		_, err := svc.Send(context.Background(), ports.SendParams{
			RoomID: "event-42",
			Author: attendee(),
			Text:   "hello",
		})

		assert.ErrorIs(t, err, storeErr)
		m.broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})
}

func TestRoomService_Leave(t *testing.T) {
	t.Run("broadcasts offline change when participant was online", func(t *testing.T) {
		svc, m := newTestService(t)
		id := uuid.New()

		m.presence.On("Remove", mock.Anything, "event-42", id).Return(true, nil)
		m.broadcaster.On("Broadcast", mock.MatchedBy(func(e domain.Event) bool {
			payload, ok := e.Payload.(domain.PresenceChangePayload)
			return e.Type == domain.EventPresenceChange && ok &&
				payload.ParticipantID == id && !payload.IsOnline
		})).Return(nil)

		err := svc.Leave(context.Background(), "event-42", id)

		require.NoError(t, err)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("is a no-op for a participant who was not online", func(t *testing.T) {
		svc, m := newTestService(t)
		id := uuid.New()

		m.presence.On("Remove", mock.Anything, "event-42", id).Return(false, nil)

		err := svc.Leave(context.Background(), "event-42", id)

		require.NoError(t, err)
		m.broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything)
	})
}

func TestRoomService_History(t *testing.T) {
	t.Run("clamps limit to the configured maximum", func(t *testing.T) {
		svc, m := newTestService(t)

		m.messages.On("History", mock.Anything, "event-42", 100).Return([]domain.Message{}, nil)

		_, err := svc.History(context.Background(), "event-42", 5000)

		require.NoError(t, err)
		m.messages.AssertExpectations(t)
	})

	t.Run("passes through a sane limit", func(t *testing.T) {
		svc, m := newTestService(t)

		m.messages.On("History", mock.Anything, "event-42", 25).Return([]domain.Message{}, nil)

		_, err := svc.History(context.Background(), "event-42", 25)

		require.NoError(t, err)
		m.messages.AssertExpectations(t)
	})

	t.Run("requires a room ID", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.History(context.Background(), "", 10)

		assert.ErrorIs(t, err, apperrors.ErrRoomIDRequired)
	})
}

func TestRoomService_Online(t *testing.T) {
	t.Run("returns the presence set", func(t *testing.T) {
		svc, m := newTestService(t)
		ids := []uuid.UUID{uuid.New(), uuid.New()}

		m.presence.On("Online", mock.Anything, "event-42").Return(ids, nil)

		online, err := svc.Online(context.Background(), "event-42")

		require.NoError(t, err)
		assert.Equal(t, ids, online)
	})

	t.Run("requires a room ID", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Online(context.Background(), "")

		assert.ErrorIs(t, err, apperrors.ErrRoomIDRequired)
	})
}
