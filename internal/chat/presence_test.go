package chat_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gatherly/event-chat/internal/chat"
)

func TestPresenceTracker_MarkOnlineIsIdempotent(t *testing.T) {
	x := uuid.New()

	p := chat.NewPresenceTracker()
	p.MarkOnline(x)
	p.MarkOnline(x)

	assert.True(t, p.Has(x))
	assert.Equal(t, 1, p.Len())
}

func TestPresenceTracker_OnlineThenOffline(t *testing.T) {
	x := uuid.New()

	p := chat.NewPresenceTracker()
	p.MarkOnline(x)
	p.MarkOffline(x)

	assert.False(t, p.Has(x))
	assert.Empty(t, p.IDs())
}

func TestPresenceTracker_MarkOfflineUnknownIsNoop(t *testing.T) {
	p := chat.NewPresenceTracker()
	p.MarkOffline(uuid.New())

	assert.Equal(t, 0, p.Len())
}

func TestPresenceTracker_Reset(t *testing.T) {
	p := chat.NewPresenceTracker()
	p.MarkOnline(uuid.New())
	p.MarkOnline(uuid.New())

	p.Reset()

	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.IDs())
}

func TestPresenceTracker_IDsAreStable(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	p := chat.NewPresenceTracker()
	p.MarkOnline(a)
	p.MarkOnline(b)

	assert.Equal(t, p.IDs(), p.IDs())
	assert.Len(t, p.IDs(), 2)
}
