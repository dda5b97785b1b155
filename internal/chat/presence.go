package chat

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// PresenceTracker maintains the set of currently-online participants for a
// room. Entries are added and removed only by explicit status events, never
// inferred from message activity.
//
// PresenceTracker is not safe for concurrent use; the owning Session
// serializes access through its event loop.
type PresenceTracker struct {
	online map[uuid.UUID]struct{}
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{online: make(map[uuid.UUID]struct{})}
}

// MarkOnline records a participant as online. Idempotent.
func (p *PresenceTracker) MarkOnline(id uuid.UUID) {
	p.online[id] = struct{}{}
}

// MarkOffline records a participant as offline. Idempotent.
func (p *PresenceTracker) MarkOffline(id uuid.UUID) {
	delete(p.online, id)
}

// Reset clears all entries. Called on close and on every (re)join, so the
// snapshot that follows a join fully replaces any stale view.
func (p *PresenceTracker) Reset() {
	p.online = make(map[uuid.UUID]struct{})
}

// Has reports whether the participant is currently online.
func (p *PresenceTracker) Has(id uuid.UUID) bool {
	_, ok := p.online[id]
	return ok
}

// IDs returns the online participant IDs in a stable order.
func (p *PresenceTracker) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// Len returns the number of online participants.
func (p *PresenceTracker) Len() int {
	return len(p.online)
}
