package domain

import "github.com/google/uuid"

// Role determines announcement privilege and badge styling.
type Role string

const (
	RoleOrganizer   Role = "ORGANIZER"
	RoleParticipant Role = "PARTICIPANT"
)

// IsValid checks if the role is a known value.
func (r Role) IsValid() bool {
	return r == RoleOrganizer || r == RoleParticipant
}

// Participant is the identity attached to a chat session. It is owned by the
// external identity provider and treated as immutable input: the engine never
// mutates it, it only compares IDs and reads the role.
type Participant struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Role        Role      `json:"role"`
}

// IsZero reports whether the participant carries no identity.
func (p Participant) IsZero() bool {
	return p.ID == uuid.Nil
}

// IsOrganizer reports whether the participant may author announcements.
func (p Participant) IsOrganizer() bool {
	return p.Role == RoleOrganizer
}
