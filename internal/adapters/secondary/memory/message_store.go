package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// MessageStore keeps messages in process memory. It backs local development
// and tests; nothing survives a restart.
type MessageStore struct {
	mu    sync.RWMutex
	rooms map[string][]domain.Message
	seen  map[uuid.UUID]struct{}
}

var _ ports.MessageStore = (*MessageStore)(nil)

// NewMessageStore creates an empty in-memory message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		rooms: make(map[string][]domain.Message),
		seen:  make(map[uuid.UUID]struct{}),
	}
}

// Append stores a message, ignoring IDs it has already seen.
func (s *MessageStore) Append(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[msg.ID]; ok {
		return nil
	}
	s.seen[msg.ID] = struct{}{}

	room := append(s.rooms[msg.RoomID], *msg)
	sort.Slice(room, func(i, j int) bool { return room[i].Less(room[j]) })
	s.rooms[msg.RoomID] = room
	return nil
}

// History returns up to limit of the newest messages, oldest first.
func (s *MessageStore) History(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.rooms[roomID]
	start := 0
	if limit > 0 && len(room) > limit {
		start = len(room) - limit
	}

	out := make([]domain.Message, len(room)-start)
	copy(out, room[start:])
	return out, nil
}

// PresenceStore tracks the online set per room in process memory.
type PresenceStore struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]struct{}
}

var _ ports.PresenceStore = (*PresenceStore)(nil)

// NewPresenceStore creates an empty in-memory presence store.
func NewPresenceStore() *PresenceStore {
	return &PresenceStore{rooms: make(map[string]map[uuid.UUID]struct{})}
}

// Add marks a participant online. Returns true if they were not online before.
func (s *PresenceStore) Add(_ context.Context, roomID string, participantID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[roomID]
	if room == nil {
		room = make(map[uuid.UUID]struct{})
		s.rooms[roomID] = room
	}
	if _, ok := room[participantID]; ok {
		return false, nil
	}
	room[participantID] = struct{}{}
	return true, nil
}

// Remove marks a participant offline. Returns true if they were online.
func (s *PresenceStore) Remove(_ context.Context, roomID string, participantID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return false, nil
	}
	if _, online := room[participantID]; !online {
		return false, nil
	}
	delete(room, participantID)
	if len(room) == 0 {
		delete(s.rooms, roomID)
	}
	return true, nil
}

// Online returns the participants currently online in a room, in a stable order.
func (s *PresenceStore) Online(_ context.Context, roomID string) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.rooms[roomID]
	ids := make([]uuid.UUID, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids, nil
}
