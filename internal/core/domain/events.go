package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType defines the type of real-time event on the wire.
type EventType string

const (
	// Client -> server
	EventJoinRoom    EventType = "join-room"
	EventSendMessage EventType = "send-message"

	// Server -> client
	EventHistory          EventType = "history"
	EventMessage          EventType = "message"
	EventPresenceSnapshot EventType = "presence-snapshot"
	EventPresenceChange   EventType = "presence-change"
	EventJoinError        EventType = "join-error"

	// Application-level keep-alive, answered in place rather than routed
	// through a room.
	EventPing EventType = "PING"
	EventPong EventType = "PONG"
)

// Event is an outbound frame. RoomID is used for routing to room subscribers
// and is not part of the serialized payload.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	RoomID  string      `json:"-"`
}

// Frame is an inbound frame whose payload is decoded per event type.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinRoomPayload carries a room-join command. Issued on every (re)connect,
// since room membership does not survive a transport-level reconnect.
type JoinRoomPayload struct {
	RoomID        string    `json:"roomId"`
	ParticipantID uuid.UUID `json:"participantId"`
}

// SendMessagePayload carries an outgoing message. The server is the sole
// authority that assigns the message ID and timestamp, and the announcement
// flag is only a request: the server confirms it against the author's role.
type SendMessagePayload struct {
	RoomID         string    `json:"roomId"`
	Text           string    `json:"text"`
	IsAnnouncement bool      `json:"isAnnouncement,omitempty"`
	AuthorID       uuid.UUID `json:"authorId"`
}

// PresenceSnapshotPayload announces one already-online participant to a
// freshly joined client. The full snapshot is delivered as a burst of these.
type PresenceSnapshotPayload struct {
	ParticipantID uuid.UUID `json:"participantId"`
}

// PresenceChangePayload announces a participant going online or offline.
type PresenceChangePayload struct {
	ParticipantID uuid.UUID `json:"participantId"`
	IsOnline      bool      `json:"isOnline"`
}

// JoinErrorPayload tells a client its join was refused. Fatal for the session.
type JoinErrorPayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
