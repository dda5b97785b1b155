package chat_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/event-chat/internal/chat"
	"github.com/gatherly/event-chat/internal/core/domain"
)

func announcement(offset time.Duration) domain.Message {
	m := testMessage(uuid.New(), offset)
	m.Author.Role = domain.RoleOrganizer
	m.IsAnnouncement = true
	return m
}

func TestAnnouncementIndex_Empty(t *testing.T) {
	l := chat.NewLedger()
	l.Seed([]domain.Message{testMessage(uuid.New(), 0)})

	index := chat.BuildAnnouncementIndex(l.Ordered())

	_, ok := index.Latest()
	assert.False(t, ok)
	assert.Empty(t, index.All())
}

func TestAnnouncementIndex_LatestIsMostRecent(t *testing.T) {
	a1 := announcement(0)
	a2 := announcement(2 * time.Hour)
	plain := testMessage(uuid.New(), time.Hour)

	l := chat.NewLedger()
	l.Seed([]domain.Message{a2, plain, a1})

	index := chat.BuildAnnouncementIndex(l.Ordered())

	latest, ok := index.Latest()
	require.True(t, ok)
	assert.Equal(t, a2.ID, latest.ID)

	all := index.All()
	require.Len(t, all, 2)
	assert.Equal(t, a1.ID, all[0].ID)
	assert.Equal(t, a2.ID, all[1].ID)
}

func TestAnnouncementIndex_TracksLedgerChanges(t *testing.T) {
	a1 := announcement(0)

	l := chat.NewLedger()
	l.Seed([]domain.Message{a1})

	index := chat.BuildAnnouncementIndex(l.Ordered())
	latest, ok := index.Latest()
	require.True(t, ok)
	assert.Equal(t, a1.ID, latest.ID)

	a2 := announcement(time.Minute)
	l.IngestLive(a2)

	index = chat.BuildAnnouncementIndex(l.Ordered())
	latest, ok = index.Latest()
	require.True(t, ok)
	assert.Equal(t, a2.ID, latest.ID)
}
