package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
	apperrors "github.com/gatherly/event-chat/internal/core/errors"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// serviceCallTimeout bounds room service calls made from connection goroutines.
const serviceCallTimeout = 5 * time.Second

// SendThrottle limits how fast a single participant may emit messages.
type SendThrottle interface {
	Allow(key string) bool
}

// Hub maintains the set of active Clients and routes room events to them.
type Hub struct {
	// Clients maps participant IDs to their active connections.
	// A single participant can have multiple connections (multiple tabs/devices).
	clients map[uuid.UUID]map[*Client]bool

	// Rooms maps room IDs to joined clients.
	rooms map[string]map[*Client]bool

	// memberConns counts connections per participant per room, so a
	// participant only goes offline when their last connection drops.
	memberConns map[string]map[uuid.UUID]int

	// Broadcast channel for events
	broadcast chan domain.Event

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// mu protects the clients, rooms and memberConns maps
	mu sync.RWMutex

	service  ports.RoomService
	throttle SendThrottle

	logger *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(service ports.RoomService, throttle SendThrottle, logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		memberConns: make(map[string]map[uuid.UUID]int),
		broadcast:   make(chan domain.Event, 256),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		service:     service,
		throttle:    throttle,
		logger:      logger.With("component", "websocket_hub"),
	}
}

// SetService wires in the room service after construction. The hub and the
// service reference each other (the service broadcasts through the hub), so
// one side has to be connected late. Must be called before Run.
func (h *Hub) SetService(service ports.RoomService) {
	h.service = service
}

// Broadcast sends an event to the hub's internal broadcast channel.
// This method implements the ports.EventBroadcaster interface.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.broadcast <- event:
		return nil
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"event_type", event.Type,
			"room_id", event.RoomID,
		)
		return nil
	}
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Participant.ID] == nil {
		h.clients[client.Participant.ID] = make(map[*Client]bool)
	}
	h.clients[client.Participant.ID][client] = true

	h.logger.Info("client registered",
		"participant_id", client.Participant.ID,
		"total_connections", len(h.clients[client.Participant.ID]),
	)
}

// unregisterClient removes a client from the hub and its room. If this was the
// participant's last connection in the room, they are marked offline.
// Idempotent: a client can be unregistered from both the broadcast path and
// its pump teardown without double-decrementing the connection count.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	participantID := client.Participant.ID

	if participantClients, ok := h.clients[participantID]; ok {
		if _, exists := participantClients[client]; exists {
			delete(participantClients, client)
			if len(participantClients) == 0 {
				delete(h.clients, participantID)
			}
		}
	}

	h.mu.Unlock()

	roomID := client.Room()
	lastInRoom := false
	if roomID != "" {
		lastInRoom = h.detachFromRoom(client, roomID)
	}

	client.CloseSend()

	if lastInRoom {
		h.notifyLeave(roomID, participantID)
	}

	h.logger.Info("client unregistered",
		"participant_id", participantID,
		"room_id", roomID,
	)
}

// detachFromRoom removes a client from a room's maps and returns true when it
// was the participant's last connection in the room. A client that is not in
// the room's member set is a no-op, so repeated detachment cannot drive the
// connection count negative.
func (h *Hub) detachFromRoom(client *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := room[client]; !member {
		return false
	}

	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}

	lastInRoom := false
	if conns, ok := h.memberConns[roomID]; ok {
		conns[client.Participant.ID]--
		if conns[client.Participant.ID] <= 0 {
			delete(conns, client.Participant.ID)
			lastInRoom = true
		}
		if len(conns) == 0 {
			delete(h.memberConns, roomID)
		}
	}
	return lastInRoom
}

// notifyLeave marks a participant offline through the room service.
func (h *Hub) notifyLeave(roomID string, participantID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), serviceCallTimeout)
	defer cancel()
	if err := h.service.Leave(ctx, roomID, participantID); err != nil {
		h.logger.Error("failed to mark participant offline",
			"room_id", roomID,
			"participant_id", participantID,
			"error", err,
		)
	}
}

// broadcastEvent sends an event to all clients joined to the event's room
func (h *Hub) broadcastEvent(event domain.Event) {
	h.mu.RLock()
	room, ok := h.rooms[event.RoomID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// Copy the client list to avoid holding the lock while sending
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("broadcasting event",
		"event_type", event.Type,
		"room_id", event.RoomID,
		"client_count", len(clients),
	)

	for _, client := range clients {
		select {
		case client.Send <- event:
			// Successfully queued
		default:
			// Client's send buffer is full. This runs on the hub's own
			// goroutine, so the removal must happen inline: sending on
			// h.Unregister here would block on ourselves forever.
			h.logger.Warn("client send buffer full, unregistering",
				"participant_id", client.Participant.ID,
			)
			h.unregisterClient(client)
		}
	}
}

// joinRoom admits a client into a room. On success the client receives the
// message history followed by a presence snapshot burst; on failure it
// receives a join-error frame and stays out of the room.
func (h *Hub) joinRoom(client *Client, payload domain.JoinRoomPayload) {
	if payload.ParticipantID != client.Participant.ID {
		client.queue(joinErrorEvent(payload.RoomID, "identity-mismatch", "participant ID does not match the authenticated identity"))
		return
	}

	// Join frames can be redelivered. Rejoining the current room must not
	// inflate the connection count; joining a different room detaches from
	// the old one first.
	current := client.Room()
	rejoin := current == payload.RoomID
	if current != "" && !rejoin {
		if h.detachFromRoom(client, current) {
			h.notifyLeave(current, client.Participant.ID)
		}
		client.setRoom("")
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceCallTimeout)
	defer cancel()

	result, err := h.service.Join(ctx, ports.JoinParams{
		RoomID:      payload.RoomID,
		Participant: client.Participant,
	})
	if err != nil {
		client.queue(joinErrorEvent(payload.RoomID, joinErrorCode(err), err.Error()))
		h.logger.Warn("join refused",
			"room_id", payload.RoomID,
			"participant_id", client.Participant.ID,
			"error", err,
		)
		return
	}

	if !rejoin {
		h.mu.Lock()
		if h.rooms[payload.RoomID] == nil {
			h.rooms[payload.RoomID] = make(map[*Client]bool)
		}
		h.rooms[payload.RoomID][client] = true
		if h.memberConns[payload.RoomID] == nil {
			h.memberConns[payload.RoomID] = make(map[uuid.UUID]int)
		}
		h.memberConns[payload.RoomID][client.Participant.ID]++
		h.mu.Unlock()

		client.setRoom(payload.RoomID)
	}

	// History first, then the presence snapshot, one participant per frame.
	client.queue(domain.Event{
		Type:    domain.EventHistory,
		Payload: result.History,
		RoomID:  payload.RoomID,
	})
	for _, id := range result.Online {
		client.queue(domain.Event{
			Type:    domain.EventPresenceSnapshot,
			Payload: domain.PresenceSnapshotPayload{ParticipantID: id},
			RoomID:  payload.RoomID,
		})
	}
}

// sendMessage forwards a send-message frame to the room service. The service
// broadcasts the resulting message, so nothing is written back here directly.
func (h *Hub) sendMessage(client *Client, payload domain.SendMessagePayload) {
	roomID := client.Room()
	if roomID == "" || payload.RoomID != roomID {
		h.logger.Warn("dropping send frame",
			"participant_id", client.Participant.ID,
			"room_id", payload.RoomID,
			"error", apperrors.ErrRoomMismatch,
		)
		return
	}
	if payload.AuthorID != client.Participant.ID {
		h.logger.Warn("dropping send frame",
			"participant_id", client.Participant.ID,
			"author_id", payload.AuthorID,
			"error", apperrors.ErrParticipantMismatch,
		)
		return
	}
	if h.throttle != nil && !h.throttle.Allow(client.Participant.ID.String()) {
		h.logger.Warn("dropping send, participant over rate limit",
			"participant_id", client.Participant.ID,
			"room_id", roomID,
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceCallTimeout)
	defer cancel()

	if _, err := h.service.Send(ctx, ports.SendParams{
		RoomID:       roomID,
		Author:       client.Participant,
		Text:         payload.Text,
		Announcement: payload.IsAnnouncement,
	}); err != nil {
		h.logger.Warn("send rejected",
			"participant_id", client.Participant.ID,
			"room_id", roomID,
			"error", err,
		)
	}
}

// GetClientCount returns the total number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, participantClients := range h.clients {
		count += len(participantClients)
	}
	return count
}

// GetRoomCount returns the number of active rooms
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetClientsInRoom returns the number of clients joined to a room
func (h *Hub) GetClientsInRoom(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[roomID]; ok {
		return len(room)
	}
	return 0
}

func joinErrorEvent(roomID, code, reason string) domain.Event {
	return domain.Event{
		Type: domain.EventJoinError,
		Payload: domain.JoinErrorPayload{
			RoomID: roomID,
			Code:   code,
			Reason: reason,
		},
		RoomID: roomID,
	}
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrJoinRejected):
		return "forbidden"
	case errors.Is(err, apperrors.ErrRoomIDRequired), errors.Is(err, apperrors.ErrIdentityRequired):
		return "bad-request"
	default:
		return "internal"
	}
}
