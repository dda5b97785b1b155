package chat

import "github.com/gatherly/event-chat/internal/core/domain"

// AnnouncementIndex is a derived view over an ordered message sequence,
// restricted to organizer announcements. It is recomputed from the ledger on
// every change and never mutated independently of it.
type AnnouncementIndex struct {
	items []domain.Message
}

// BuildAnnouncementIndex derives the index from a sequence already ordered by
// (createdAt, id), as produced by Ledger.Ordered.
func BuildAnnouncementIndex(ordered []domain.Message) AnnouncementIndex {
	var items []domain.Message
	for _, m := range ordered {
		if m.IsAnnouncement {
			items = append(items, m)
		}
	}
	return AnnouncementIndex{items: items}
}

// Latest returns the most recent announcement, shown in the pinned banner.
// The second return is false when there are no announcements.
func (a AnnouncementIndex) Latest() (domain.Message, bool) {
	if len(a.items) == 0 {
		return domain.Message{}, false
	}
	return a.items[len(a.items)-1], true
}

// All returns the full ordered announcement list for the history view.
func (a AnnouncementIndex) All() []domain.Message {
	out := make([]domain.Message, len(a.items))
	copy(out, a.items)
	return out
}
