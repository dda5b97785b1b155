package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
	apperrors "github.com/gatherly/event-chat/internal/core/errors"
)

// State is the connectivity state of a Session.
type State int

const (
	// StateIdle is the initial state before Start.
	StateIdle State = iota

	// StateConnecting means the transport is establishing a connection,
	// either initially or after a drop.
	StateConnecting

	// StateJoined means the connection is up and the room-join command has
	// been issued. History arrival is a separate event, not a state.
	StateJoined

	// StateDisconnected means the connection dropped; the transport retries
	// on its own and sends are rejected locally in the meantime.
	StateDisconnected

	// StateJoinRejected means the authority refused room membership.
	// Terminal: no retry, the caller should re-authenticate or re-check
	// entitlement.
	StateJoinRejected

	// StateClosed is the terminal state after deliberate teardown.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	case StateJoinRejected:
		return "join_rejected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// terminal reports whether no further connectivity transitions can happen.
func (s State) terminal() bool {
	return s == StateJoinRejected || s == StateClosed
}

// Snapshot is the presentation-ready view of a session at one point in time.
type Snapshot struct {
	State     State
	Connected bool

	// Feed is the projected message list, including date separators and
	// per-message self/online flags.
	Feed []FeedItem

	// PinnedAnnouncement is the latest announcement, or nil if none.
	PinnedAnnouncement *domain.Message

	// Announcements is the full ordered announcement list.
	Announcements []domain.Message

	// OnlineParticipantIDs lists who is currently online in the room.
	OnlineParticipantIDs []uuid.UUID
}

// SessionConfig configures a Session. RoomID, Identity and Transport are
// required: a room's entire lifecycle is one owned value, with no ambient
// lookups.
type SessionConfig struct {
	RoomID    string
	Identity  domain.Participant
	Transport Transport

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Location is the viewer's time zone for date separators. Defaults to
	// time.Local.
	Location *time.Location
}

// Session owns one room-scoped transport session and derives the local view
// of the room from the events it delivers. All state transitions happen on a
// single event-loop goroutine, so the components it owns need no locking of
// their own; the session's mutex only makes snapshots safe to take from
// other goroutines.
type Session struct {
	roomID    string
	identity  domain.Participant
	transport Transport
	logger    *slog.Logger
	loc       *time.Location

	mu       sync.RWMutex
	state    State
	err      error
	ledger   *Ledger
	presence *PresenceTracker

	updates   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession validates the configuration and builds a session in StateIdle.
// No connection is attempted without both a room and a local identity:
// unauthenticated chat is disallowed.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.RoomID == "" {
		return nil, apperrors.ErrRoomIDRequired
	}
	if cfg.Identity.IsZero() {
		return nil, apperrors.ErrIdentityRequired
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Session{
		roomID:    cfg.RoomID,
		identity:  cfg.Identity,
		transport: cfg.Transport,
		logger:    logger.With("component", "chat_session", "room_id", cfg.RoomID),
		loc:       loc,
		state:     StateIdle,
		ledger:    NewLedger(),
		presence:  NewPresenceTracker(),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins consuming transport events. Safe to call once; further calls
// are no-ops.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.state = StateConnecting
		s.mu.Unlock()
		s.notify()
		go s.run()
	})
}

// run is the single consumer of transport events. It exits when the
// transport closes its event channel.
func (s *Session) run() {
	defer close(s.done)
	for ev := range s.transport.Events() {
		s.handle(ev)
	}
}

func (s *Session) handle(ev TransportEvent) {
	switch e := ev.(type) {
	case ConnectedEvent:
		s.handleConnected()

	case DisconnectedEvent:
		s.mu.Lock()
		if s.state.terminal() {
			s.mu.Unlock()
			return
		}
		s.state = StateDisconnected
		s.mu.Unlock()
		if e.Err != nil {
			s.logger.Warn("transport disconnected", "error", e.Err)
		} else {
			s.logger.Info("transport disconnected")
		}
		s.notify()

	case HistoryEvent:
		s.mu.Lock()
		s.ledger.Seed(e.Messages)
		s.mu.Unlock()
		s.logger.Debug("history seeded", "count", len(e.Messages))
		s.notify()

	case MessageEvent:
		s.mu.Lock()
		inserted := s.ledger.IngestLive(e.Message)
		s.mu.Unlock()
		if inserted {
			s.notify()
		} else {
			s.logger.Debug("duplicate message ignored", "message_id", e.Message.ID)
		}

	case PresenceSnapshotEvent:
		s.mu.Lock()
		s.presence.MarkOnline(e.ParticipantID)
		s.mu.Unlock()
		s.notify()

	case PresenceChangeEvent:
		s.mu.Lock()
		if e.IsOnline {
			s.presence.MarkOnline(e.ParticipantID)
		} else {
			s.presence.MarkOffline(e.ParticipantID)
		}
		s.mu.Unlock()
		s.notify()

	case JoinErrorEvent:
		s.mu.Lock()
		s.state = StateJoinRejected
		s.err = fmt.Errorf("%w: %s", apperrors.ErrJoinRejected, e.Reason)
		s.mu.Unlock()
		s.logger.Error("room join rejected", "code", e.Code, "reason", e.Reason)
		// Fatal for the session: stop the transport instead of retrying.
		if err := s.transport.Close(); err != nil {
			s.logger.Warn("transport close after join rejection", "error", err)
		}
		s.notify()

	case ProtocolErrorEvent:
		s.logger.Warn("malformed frame from transport", "error", e.Err)
		s.notify()
	}
}

// handleConnected re-issues the room join on every successful (re)connect:
// room membership does not survive a transport-level reconnect. The presence
// view is rebuilt from scratch, so the snapshot burst that follows the join
// fully replaces any stale state.
func (s *Session) handleConnected() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.presence.Reset()
	s.mu.Unlock()

	if err := s.transport.JoinRoom(s.roomID, s.identity.ID); err != nil {
		s.logger.Warn("join command failed", "error", err)
		s.notify()
		return
	}

	s.mu.Lock()
	if !s.state.terminal() {
		s.state = StateJoined
	}
	s.mu.Unlock()
	s.logger.Info("joined room", "participant_id", s.identity.ID)
	s.notify()
}

// Send issues a send-message command. Blank text and sends while not joined
// are rejected synchronously here and never reach the transport; nothing is
// queued for later.
func (s *Session) Send(text string, announcement bool) error {
	if err := domain.ValidateText(text); err != nil {
		return err
	}
	if announcement && !s.identity.IsOrganizer() {
		return apperrors.ErrAnnouncementForbidden
	}

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state != StateJoined {
		s.logger.Warn("send rejected", "state", state.String())
		return fmt.Errorf("%w: connection state is %s", apperrors.ErrNotJoined, state)
	}

	return s.transport.SendMessage(domain.SendMessagePayload{
		RoomID:         s.roomID,
		Text:           text,
		IsAnnouncement: announcement,
		AuthorID:       s.identity.ID,
	})
}

// Snapshot derives the presentation view from the current ledger and
// presence state. It is a pure projection: calling it never mutates state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := s.ledger.Ordered()
	index := BuildAnnouncementIndex(ordered)

	snap := Snapshot{
		State:                s.state,
		Connected:            s.state == StateJoined,
		Feed:                 ProjectFeed(ordered, s.presence, s.identity.ID, time.Now(), s.loc),
		Announcements:        index.All(),
		OnlineParticipantIDs: s.presence.IDs(),
	}
	if latest, ok := index.Latest(); ok {
		m := latest
		snap.PinnedAnnouncement = &m
	}
	return snap
}

// State returns the current connectivity state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the fatal session error, if any (join rejection).
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Updates signals after every state change. The channel is coalescing:
// consumers re-read Snapshot rather than counting signals.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Done is closed once the event loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RoomID returns the room this session is bound to.
func (s *Session) RoomID() string {
	return s.roomID
}

// Identity returns the local identity this session was built with.
func (s *Session) Identity() domain.Participant {
	return s.identity
}

// Close tears the session down deterministically: state goes terminal, the
// presence view is cleared, and the transport session is released. Safe to
// call from any goroutine and idempotent, so every exit path can call it.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.state != StateJoinRejected {
			s.state = StateClosed
		}
		s.presence.Reset()
		s.mu.Unlock()
		err = s.transport.Close()
		s.notify()
	})
	return err
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
