package chat

import (
	"sort"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// Ledger is the append-only, deduplicated, time-ordered message collection
// for a room. It is the source of truth for the feed: history seeding and
// live ingestion converge on the same visible state regardless of delivery
// order or redelivery.
//
// Ledger is not safe for concurrent use; the owning Session serializes
// access through its event loop.
type Ledger struct {
	byID map[uuid.UUID]struct{}
	msgs []domain.Message // kept sorted by (createdAt, id)
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{byID: make(map[uuid.UUID]struct{})}
}

// Seed replaces the ledger's contents with the given history. The remote
// history is authoritative, so a second seed after a re-join replaces rather
// than merges. Duplicate IDs within the history itself are collapsed.
func (l *Ledger) Seed(history []domain.Message) {
	l.byID = make(map[uuid.UUID]struct{}, len(history))
	l.msgs = l.msgs[:0]
	for _, m := range history {
		if _, ok := l.byID[m.ID]; ok {
			continue
		}
		l.byID[m.ID] = struct{}{}
		l.msgs = append(l.msgs, m)
	}
	sort.Slice(l.msgs, func(i, j int) bool { return l.msgs[i].Less(l.msgs[j]) })
}

// IngestLive inserts a single message unless its ID is already present.
// Returns true if the message was inserted. Idempotence here is what makes
// at-least-once delivery safe.
func (l *Ledger) IngestLive(m domain.Message) bool {
	if _, ok := l.byID[m.ID]; ok {
		return false
	}
	l.byID[m.ID] = struct{}{}

	i := sort.Search(len(l.msgs), func(i int) bool { return m.Less(l.msgs[i]) })
	l.msgs = append(l.msgs, domain.Message{})
	copy(l.msgs[i+1:], l.msgs[i:])
	l.msgs[i] = m
	return true
}

// Ordered returns a copy of the full sequence ordered by createdAt ascending,
// ties broken by ID.
func (l *Ledger) Ordered() []domain.Message {
	out := make([]domain.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of distinct messages held.
func (l *Ledger) Len() int {
	return len(l.msgs)
}
