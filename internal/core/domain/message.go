package domain

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/gatherly/event-chat/internal/core/errors"
)

// MaxMessageLength is the maximum accepted message body length in runes.
const MaxMessageLength = 2000

// Message is one chat message in a room. ID and CreatedAt are assigned by the
// server when it accepts a send; clients never fabricate either.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	RoomID         string      `json:"roomId"`
	Text           string      `json:"text"`
	Author         Participant `json:"author"`
	IsAnnouncement bool        `json:"isAnnouncement,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ValidateText checks an outgoing message body at the command boundary.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLength {
		return apperrors.ErrMessageTooLong
	}
	return nil
}

// Less orders messages by creation time ascending, with ties broken by ID so
// that the order is deterministic regardless of delivery order.
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(m.ID[:], other.ID[:]) < 0
}
