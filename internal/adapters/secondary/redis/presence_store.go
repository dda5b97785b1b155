package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gatherly/event-chat/internal/core/ports"
)

// PresenceStore tracks which participants are online per room, backed by a
// Redis set per room. Set semantics give idempotent add/remove for free, and
// the return counts tell us whether a presence change actually happened.
type PresenceStore struct {
	client *redis.Client
}

// Ensure PresenceStore implements the ports.PresenceStore interface.
var _ ports.PresenceStore = (*PresenceStore)(nil)

// NewPresenceStore creates a presence store on an existing Redis client.
func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func roomKey(roomID string) string {
	return fmt.Sprintf("room:%s:online", roomID)
}

// Add marks a participant online. Returns true if they were not online before.
func (s *PresenceStore) Add(ctx context.Context, roomID string, participantID uuid.UUID) (bool, error) {
	added, err := s.client.SAdd(ctx, roomKey(roomID), participantID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("presence add: %w", err)
	}
	return added > 0, nil
}

// Remove marks a participant offline. Returns true if they were online.
func (s *PresenceStore) Remove(ctx context.Context, roomID string, participantID uuid.UUID) (bool, error) {
	removed, err := s.client.SRem(ctx, roomKey(roomID), participantID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("presence remove: %w", err)
	}
	return removed > 0, nil
}

// Online returns the participants currently online in a room, in a stable
// order. Entries that fail to parse as UUIDs are skipped.
func (s *PresenceStore) Online(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence members: %w", err)
	}

	sort.Strings(members)

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Ping checks Redis connectivity for health probes.
func (s *PresenceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
