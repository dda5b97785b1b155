package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gatherly/event-chat/internal/chat"
	"github.com/gatherly/event-chat/internal/core/domain"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultMinBackoff  = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
	writeTimeout       = 10 * time.Second
)

// ErrTransportClosed is returned by commands issued after Close.
var ErrTransportClosed = errors.New("transport is closed")

// errNotConnected is returned by commands issued while between connections.
var errNotConnected = errors.New("not connected")

// Config configures a websocket transport.
type Config struct {
	// URL is the full websocket endpoint, including the token query
	// parameter, e.g. ws://localhost:8080/ws?token=...
	URL string

	Logger *slog.Logger

	DialTimeout time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// Transport is the production chat.Transport: a gorilla websocket connection
// with automatic reconnection. Connection loss is reported to the session,
// then the dial loop retries with exponential backoff until Close.
type Transport struct {
	cfg    Config
	events chan chat.TransportEvent

	// mu protects conn; writeMu serializes frame writes.
	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

var _ chat.Transport = (*Transport)(nil)

// New creates a transport. Call Start to begin dialing.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("websocket URL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	return &Transport{
		cfg:    cfg,
		events: make(chan chat.TransportEvent, 64),
		closed: make(chan struct{}),
		logger: cfg.Logger.With("component", "ws_transport"),
	}, nil
}

// Events delivers transport lifecycle and protocol events.
func (t *Transport) Events() <-chan chat.TransportEvent {
	return t.events
}

// Start launches the dial loop. The context cancels the loop the same way
// Close does.
func (t *Transport) Start(ctx context.Context) {
	go t.run(ctx)
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.events)

	backoff := t.cfg.MinBackoff

	for {
		if t.isClosed() || ctx.Err() != nil {
			return
		}

		conn, err := t.dial(ctx)
		if err != nil {
			t.logger.Warn("dial failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-t.closed:
				return
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, t.cfg.MaxBackoff)
			continue
		}

		backoff = t.cfg.MinBackoff
		t.setConn(conn)
		t.emit(chat.ConnectedEvent{})

		readErr := t.readLoop(conn)
		t.setConn(nil)
		_ = conn.Close()

		if t.isClosed() || ctx.Err() != nil {
			return
		}
		t.emit(chat.DisconnectedEvent{Err: readErr})
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readLoop decodes incoming frames until the connection breaks.
func (t *Transport) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		event, err := decodeFrame(data)
		if err != nil {
			t.emit(chat.ProtocolErrorEvent{Err: err})
			continue
		}
		if event != nil {
			t.emit(event)
		}
	}
}

// decodeFrame turns a wire frame into a transport event. Unknown frame types
// are ignored so the protocol can grow without breaking old clients.
func decodeFrame(data []byte) (chat.TransportEvent, error) {
	var frame domain.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch frame.Type {
	case domain.EventHistory:
		var messages []domain.Message
		if err := json.Unmarshal(frame.Payload, &messages); err != nil {
			return nil, fmt.Errorf("malformed history payload: %w", err)
		}
		return chat.HistoryEvent{Messages: messages}, nil

	case domain.EventMessage:
		var msg domain.Message
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			return nil, fmt.Errorf("malformed message payload: %w", err)
		}
		return chat.MessageEvent{Message: msg}, nil

	case domain.EventPresenceSnapshot:
		var p domain.PresenceSnapshotPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed presence-snapshot payload: %w", err)
		}
		return chat.PresenceSnapshotEvent{ParticipantID: p.ParticipantID}, nil

	case domain.EventPresenceChange:
		var p domain.PresenceChangePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed presence-change payload: %w", err)
		}
		return chat.PresenceChangeEvent{ParticipantID: p.ParticipantID, IsOnline: p.IsOnline}, nil

	case domain.EventJoinError:
		var p domain.JoinErrorPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed join-error payload: %w", err)
		}
		return chat.JoinErrorEvent{Code: p.Code, Reason: p.Reason}, nil

	default:
		return nil, nil
	}
}

// JoinRoom issues the room-join command.
func (t *Transport) JoinRoom(roomID string, participantID uuid.UUID) error {
	return t.writeFrame(domain.Event{
		Type: domain.EventJoinRoom,
		Payload: domain.JoinRoomPayload{
			RoomID:        roomID,
			ParticipantID: participantID,
		},
	})
}

// SendMessage issues a send-message command.
func (t *Transport) SendMessage(payload domain.SendMessagePayload) error {
	return t.writeFrame(domain.Event{
		Type:    domain.EventSendMessage,
		Payload: payload,
	})
}

func (t *Transport) writeFrame(event domain.Event) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// Close tears the transport down. The dial loop exits and the event channel
// is closed from there.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.RLock()
		conn := t.conn
		t.mu.RUnlock()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}
	})
	return nil
}

func (t *Transport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Transport) emit(event chat.TransportEvent) {
	select {
	case t.events <- event:
	case <-t.closed:
	}
}
