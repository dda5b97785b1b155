package chat

import (
	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// Transport is one session against the real-time authority. Implementations
// own connection establishment and their reconnection policy; the session
// only reacts to the events they deliver.
//
// Events must be delivered on a single channel in the order the transport
// receives them, and the channel must be closed once the transport is closed.
type Transport interface {
	// Events delivers transport lifecycle and protocol events.
	Events() <-chan TransportEvent

	// JoinRoom issues the room-join command. Fire-and-forget: rejection
	// arrives later as a JoinErrorEvent.
	JoinRoom(roomID string, participantID uuid.UUID) error

	// SendMessage issues a send-message command. The authority assigns the
	// message ID and timestamp and rebroadcasts it as a MessageEvent.
	SendMessage(payload domain.SendMessagePayload) error

	// Close tears the transport down and closes the event channel.
	Close() error
}

// TransportEvent is a message from the transport to the session event loop.
type TransportEvent interface {
	transportEvent()
}

// ConnectedEvent signals that the underlying connection is established. The
// session reacts by (re-)issuing the room join.
type ConnectedEvent struct{}

// DisconnectedEvent signals connection loss. The transport keeps retrying on
// its own; the session only flips its state.
type DisconnectedEvent struct {
	Err error
}

// HistoryEvent carries the authoritative room history received after a join.
type HistoryEvent struct {
	Messages []domain.Message
}

// MessageEvent carries one live message.
type MessageEvent struct {
	Message domain.Message
}

// PresenceSnapshotEvent marks one participant as online during the
// post-join presence burst.
type PresenceSnapshotEvent struct {
	ParticipantID uuid.UUID
}

// PresenceChangeEvent carries an online/offline transition.
type PresenceChangeEvent struct {
	ParticipantID uuid.UUID
	IsOnline      bool
}

// JoinErrorEvent signals that the authority refused room membership.
type JoinErrorEvent struct {
	Code   string
	Reason string
}

// ProtocolErrorEvent signals a malformed frame. The session records and logs
// it rather than silently absorbing it.
type ProtocolErrorEvent struct {
	Err error
}

func (ConnectedEvent) transportEvent()        {}
func (DisconnectedEvent) transportEvent()     {}
func (HistoryEvent) transportEvent()          {}
func (MessageEvent) transportEvent()          {}
func (PresenceSnapshotEvent) transportEvent() {}
func (PresenceChangeEvent) transportEvent()   {}
func (JoinErrorEvent) transportEvent()        {}
func (ProtocolErrorEvent) transportEvent()    {}
