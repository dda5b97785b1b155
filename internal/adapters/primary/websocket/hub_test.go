package websocket

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/event-chat/internal/core/domain"
	apperrors "github.com/gatherly/event-chat/internal/core/errors"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// stubRoomService records calls and returns canned results. The hub only
// needs the service's verdicts, not its persistence.
type stubRoomService struct {
	joinResult *ports.JoinResult
	joinErr    error
	sendErr    error

	joins  []ports.JoinParams
	sends  []ports.SendParams
	leaves []string
}

func (s *stubRoomService) Join(_ context.Context, params ports.JoinParams) (*ports.JoinResult, error) {
	s.joins = append(s.joins, params)
	if s.joinErr != nil {
		return nil, s.joinErr
	}
	return s.joinResult, nil
}

func (s *stubRoomService) Send(_ context.Context, params ports.SendParams) (*domain.Message, error) {
	s.sends = append(s.sends, params)
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &domain.Message{ID: uuid.New(), RoomID: params.RoomID, Text: params.Text}, nil
}

func (s *stubRoomService) Leave(_ context.Context, roomID string, _ uuid.UUID) error {
	s.leaves = append(s.leaves, roomID)
	return nil
}

func (s *stubRoomService) History(context.Context, string, int) ([]domain.Message, error) {
	return nil, nil
}

func (s *stubRoomService) Online(context.Context, string) ([]uuid.UUID, error) {
	return nil, nil
}

type allowAllThrottle struct{}

func (allowAllThrottle) Allow(string) bool { return true }

type denyAllThrottle struct{}

func (denyAllThrottle) Allow(string) bool { return false }

func newTestHub(svc ports.RoomService, throttle SendThrottle) *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(svc, throttle, logger)
}

func newHubClient(hub *Hub) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := domain.Participant{ID: uuid.New(), DisplayName: "Hub Tester", Role: domain.RoleParticipant}
	return NewClient(hub, nil, p, logger)
}

// drain collects every event currently queued for a client.
func drain(c *Client) []domain.Event {
	var events []domain.Event
	for {
		select {
		case event := <-c.Send:
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestHub_JoinRoomDeliversHistoryAndSnapshot(t *testing.T) {
	online := []uuid.UUID{uuid.New(), uuid.New()}
	svc := &stubRoomService{joinResult: &ports.JoinResult{
		History: []domain.Message{{ID: uuid.New(), RoomID: "event-42", Text: "hi"}},
		Online:  online,
	}}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID})

	assert.Equal(t, "event-42", client.Room())
	assert.Equal(t, 1, hub.GetClientsInRoom("event-42"))

	events := drain(client)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventHistory, events[0].Type)
	assert.Equal(t, domain.EventPresenceSnapshot, events[1].Type)
	assert.Equal(t, online[0], events[1].Payload.(domain.PresenceSnapshotPayload).ParticipantID)
	assert.Equal(t, domain.EventPresenceSnapshot, events[2].Type)
}

func TestHub_JoinRoomRejectedSendsJoinError(t *testing.T) {
	svc := &stubRoomService{joinErr: apperrors.ErrJoinRejected}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID})

	assert.Empty(t, client.Room())
	assert.Equal(t, 0, hub.GetClientsInRoom("event-42"))

	events := drain(client)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventJoinError, events[0].Type)
	assert.Equal(t, "forbidden", events[0].Payload.(domain.JoinErrorPayload).Code)
}

func TestHub_JoinRoomIdentityMismatch(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: uuid.New()})

	assert.Empty(t, svc.joins, "the service must not be consulted")
	events := drain(client)
	require.Len(t, events, 1)
	assert.Equal(t, "identity-mismatch", events[0].Payload.(domain.JoinErrorPayload).Code)
}

func TestHub_SendMessageForwardsToService(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID})
	hub.sendMessage(client, domain.SendMessagePayload{
		RoomID:         "event-42",
		Text:           "hello",
		IsAnnouncement: true,
		AuthorID:       client.Participant.ID,
	})

	require.Len(t, svc.sends, 1)
	assert.Equal(t, "hello", svc.sends[0].Text)
	assert.True(t, svc.sends[0].Announcement)
	assert.Equal(t, client.Participant, svc.sends[0].Author)
}

func TestHub_SendMessageDropsUnjoinedAndMismatched(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)

	// Not joined yet.
	hub.sendMessage(client, domain.SendMessagePayload{RoomID: "event-42", Text: "x", AuthorID: client.Participant.ID})
	assert.Empty(t, svc.sends)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID})

	// Wrong room.
	hub.sendMessage(client, domain.SendMessagePayload{RoomID: "other", Text: "x", AuthorID: client.Participant.ID})
	assert.Empty(t, svc.sends)

	// Spoofed author.
	hub.sendMessage(client, domain.SendMessagePayload{RoomID: "event-42", Text: "x", AuthorID: uuid.New()})
	assert.Empty(t, svc.sends)
}

func TestHub_SendMessageThrottled(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, denyAllThrottle{})
	client := newHubClient(hub)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID})
	hub.sendMessage(client, domain.SendMessagePayload{RoomID: "event-42", Text: "x", AuthorID: client.Participant.ID})

	assert.Empty(t, svc.sends, "throttled sends must not reach the service")
}

func TestHub_BroadcastRoutesByRoom(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})

	inRoom := newHubClient(hub)
	elsewhere := newHubClient(hub)

	hub.joinRoom(inRoom, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: inRoom.Participant.ID})
	hub.joinRoom(elsewhere, domain.JoinRoomPayload{RoomID: "event-7", ParticipantID: elsewhere.Participant.ID})
	drain(inRoom)
	drain(elsewhere)

	hub.broadcastEvent(domain.Event{Type: domain.EventMessage, RoomID: "event-42"})

	assert.Len(t, drain(inRoom), 1)
	assert.Empty(t, drain(elsewhere))
}

func TestHub_BroadcastFullBufferUnregistersSlowClient(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})

	slow := newHubClient(hub)
	healthy := newHubClient(hub)
	hub.registerClient(slow)
	hub.registerClient(healthy)
	hub.joinRoom(slow, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: slow.Participant.ID})
	hub.joinRoom(healthy, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: healthy.Participant.ID})
	drain(healthy)

	// Fill the slow client's buffer so the next broadcast cannot be queued.
	for i := len(slow.Send); i < cap(slow.Send); i++ {
		slow.Send <- domain.Event{Type: domain.EventMessage}
	}

	// Runs on the hub goroutine in production: it must remove the slow
	// client inline and return, never wait on its own Unregister channel.
	hub.broadcastEvent(domain.Event{Type: domain.EventMessage, RoomID: "event-42"})

	assert.Equal(t, 1, hub.GetClientsInRoom("event-42"))
	assert.Len(t, drain(healthy), 1)
	require.Len(t, svc.leaves, 1)
	assert.Equal(t, "event-42", svc.leaves[0])

	// The hub keeps serving after evicting the slow client.
	hub.broadcastEvent(domain.Event{Type: domain.EventMessage, RoomID: "event-42"})
	assert.Len(t, drain(healthy), 1)
}

func TestHub_JoinRoomRedeliveryDoesNotInflatePresence(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)
	hub.registerClient(client)

	payload := domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID}
	hub.joinRoom(client, payload)
	drain(client)
	hub.joinRoom(client, payload)

	// The redelivered join still answers with history.
	events := drain(client)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventHistory, events[0].Type)
	assert.Equal(t, 1, hub.GetClientsInRoom("event-42"))

	// One connection, one join on record once it drops.
	hub.unregisterClient(client)
	require.Len(t, svc.leaves, 1)
	assert.Equal(t, "event-42", svc.leaves[0])
}

func TestHub_JoinRoomSwitchLeavesOldRoom(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})
	client := newHubClient(hub)
	hub.registerClient(client)

	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: client.Participant.ID})
	hub.joinRoom(client, domain.JoinRoomPayload{RoomID: "event-7", ParticipantID: client.Participant.ID})

	assert.Equal(t, "event-7", client.Room())
	assert.Equal(t, 0, hub.GetClientsInRoom("event-42"))
	assert.Equal(t, 1, hub.GetClientsInRoom("event-7"))
	require.Len(t, svc.leaves, 1)
	assert.Equal(t, "event-42", svc.leaves[0])

	hub.unregisterClient(client)
	require.Len(t, svc.leaves, 2)
	assert.Equal(t, "event-7", svc.leaves[1])
}

func TestHub_UnregisterLastConnectionLeavesRoom(t *testing.T) {
	svc := &stubRoomService{joinResult: &ports.JoinResult{}}
	hub := newTestHub(svc, allowAllThrottle{})

	first := newHubClient(hub)
	second := NewClient(hub, nil, first.Participant, slog.New(slog.NewTextHandler(io.Discard, nil)))

	hub.registerClient(first)
	hub.registerClient(second)
	hub.joinRoom(first, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: first.Participant.ID})
	hub.joinRoom(second, domain.JoinRoomPayload{RoomID: "event-42", ParticipantID: second.Participant.ID})

	// Two tabs open: closing one must not mark the participant offline.
	hub.unregisterClient(first)
	assert.Empty(t, svc.leaves)

	hub.unregisterClient(second)
	require.Len(t, svc.leaves, 1)
	assert.Equal(t, "event-42", svc.leaves[0])
}
