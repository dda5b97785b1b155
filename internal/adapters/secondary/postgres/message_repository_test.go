package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// Helper to build a message with a unique room so tests do not interfere.
func newTestMessage(roomID string, offset time.Duration) *domain.Message {
	return &domain.Message{
		ID:     uuid.New(),
		RoomID: roomID,
		Text:   "hello from " + roomID,
		Author: domain.Participant{
			ID:          uuid.New(),
			DisplayName: "Test Author",
			Role:        domain.RoleParticipant,
		},
		CreatedAt: time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC).Add(offset),
	}
}

func TestMessageRepository_AppendHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testPool)
	roomID := "room-" + uuid.NewString()

	m1 := newTestMessage(roomID, 0)
	m2 := newTestMessage(roomID, time.Minute)
	m2.IsAnnouncement = true
	m2.Author.Role = domain.RoleOrganizer
	m2.Author.AvatarURL = "https://example.com/avatar.png"

	// Append out of order; History must come back in timestamp order.
	require.NoError(t, repo.Append(ctx, m2))
	require.NoError(t, repo.Append(ctx, m1))

	history, err := repo.History(ctx, roomID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, m1.ID, history[0].ID)
	assert.Equal(t, m2.ID, history[1].ID)
	assert.Equal(t, m2.Author.DisplayName, history[1].Author.DisplayName)
	assert.Equal(t, m2.Author.AvatarURL, history[1].Author.AvatarURL)
	assert.Equal(t, domain.RoleOrganizer, history[1].Author.Role)
	assert.True(t, history[1].IsAnnouncement)
	assert.True(t, history[1].CreatedAt.Equal(m2.CreatedAt))
}

func TestMessageRepository_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testPool)
	roomID := "room-" + uuid.NewString()

	msg := newTestMessage(roomID, 0)
	require.NoError(t, repo.Append(ctx, msg))
	require.NoError(t, repo.Append(ctx, msg))

	history, err := repo.History(ctx, roomID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMessageRepository_HistoryKeepsNewestWhenOverLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testPool)
	roomID := "room-" + uuid.NewString()

	var newest *domain.Message
	for i := 0; i < 5; i++ {
		msg := newTestMessage(roomID, time.Duration(i)*time.Minute)
		require.NoError(t, repo.Append(ctx, msg))
		newest = msg
	}

	history, err := repo.History(ctx, roomID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// The oldest two are dropped; the newest survives at the tail.
	assert.Equal(t, newest.ID, history[2].ID)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].CreatedAt.Before(history[i].CreatedAt))
	}
}

func TestMessageRepository_HistoryScopedToRoom(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testPool)
	roomA := "room-" + uuid.NewString()
	roomB := "room-" + uuid.NewString()

	require.NoError(t, repo.Append(ctx, newTestMessage(roomA, 0)))
	require.NoError(t, repo.Append(ctx, newTestMessage(roomB, 0)))

	history, err := repo.History(ctx, roomA, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, roomA, history[0].RoomID)
}

func TestMessageRepository_HistoryEmptyRoom(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository(testPool)

	history, err := repo.History(ctx, "room-"+uuid.NewString(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
