package domain

import (
	"time"

	"github.com/google/uuid"
)

type ParticipationStatus string

const (
	ParticipationPending  ParticipationStatus = "pending"
	ParticipationAccepted ParticipationStatus = "accepted"
	ParticipationRejected ParticipationStatus = "rejected"
)

type ParticipationRole string

const (
	RoleOrganizer   ParticipationRole = "ORGANIZADOR"
	RoleCoorganizer ParticipationRole = "COORGANIZADOR"
	RoleParticipant ParticipationRole = "PARTICIPANTE"
)

type Participation struct {
	ID        uuid.UUID           `json:"id" db:"id"`
	EventID   uuid.UUID           `json:"event_id" db:"event_id"`
	UserID    uuid.UUID           `json:"user_id" db:"user_id"`
	Status    ParticipationStatus `json:"status" db:"status"`
	Role      ParticipationRole   `json:"role" db:"role"`
	InvitedBy *uuid.UUID          `json:"invited_by,omitempty" db:"invited_by"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" db:"updated_at"`

	Event *Event `json:"event,omitempty" db:"-"`
}
