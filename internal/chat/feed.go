package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// FeedItem is one presentation-ready entry of the projected feed.
type FeedItem struct {
	Message domain.Message

	// IsSelf is true when the message was authored by the local identity.
	IsSelf bool

	// AuthorOnline reflects the presence set at projection time. It is
	// never inferred from message activity: authors of historical messages
	// may well be offline.
	AuthorOnline bool

	// ShowDateSeparator marks the first message of a new calendar day.
	ShowDateSeparator bool

	// DateLabel is set only when ShowDateSeparator is true.
	DateLabel string
}

// ProjectFeed computes the display projection over an ordered message
// sequence. It is a pure function of its inputs, so it can be recomputed on
// every ledger or presence change without drift. Calendar days are evaluated
// in loc, the viewer's local time zone.
func ProjectFeed(ordered []domain.Message, presence *PresenceTracker, selfID uuid.UUID, now time.Time, loc *time.Location) []FeedItem {
	if loc == nil {
		loc = time.Local
	}

	items := make([]FeedItem, 0, len(ordered))
	var prevDay string
	for _, m := range ordered {
		day := m.CreatedAt.In(loc).Format("2006-01-02")
		item := FeedItem{
			Message:      m,
			IsSelf:       m.Author.ID == selfID,
			AuthorOnline: presence.Has(m.Author.ID),
		}
		if day != prevDay {
			item.ShowDateSeparator = true
			item.DateLabel = dateLabel(m.CreatedAt, now, loc)
			prevDay = day
		}
		items = append(items, item)
	}
	return items
}

// dateLabel renders a separator label: "Today", "Yesterday", or a formatted
// date for older days.
func dateLabel(t, now time.Time, loc *time.Location) string {
	y1, m1, d1 := t.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today"
	}
	yesterday := now.In(loc).AddDate(0, 0, -1)
	y3, m3, d3 := yesterday.Date()
	if y1 == y3 && m1 == m3 && d1 == d3 {
		return "Yesterday"
	}
	return t.In(loc).Format("January 2, 2006")
}
