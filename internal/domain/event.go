package domain

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type EventStatus string

const (
	EventActive   EventStatus = "active"
	EventCanceled EventStatus = "canceled"
)

type TransportStatus string

const (
	TransportNone      TransportStatus = ""
	TransportPending   TransportStatus = "pending"
	TransportConfirmed TransportStatus = "confirmed"
	TransportRejected  TransportStatus = "rejected"
)

type Event struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	Title                  string          `json:"title" db:"title"`
	Category               string          `json:"category" db:"category"`
	Resources              string          `json:"resources" db:"resources"`
	StartAt                time.Time       `json:"start_at" db:"start_at"`
	EndAt                  *time.Time      `json:"end_at,omitempty" db:"end_at"`
	CreatedBy              uuid.UUID       `json:"created_by" db:"created_by"`
	Participants           UserIDs         `json:"participants" db:"participants"`
	Location               string          `json:"location" db:"location"`
	CustomLocation         *string         `json:"custom_location,omitempty" db:"custom_location"`
	Status                 EventStatus     `json:"status" db:"status"`
	ConfirmedItems         JSONB           `json:"confirmed_items,omitempty" db:"confirmed_items"`
	TransportStatus        TransportStatus `json:"transport_status" db:"transport_status"`
	TransportJustification string          `json:"transport_justification" db:"transport_justification"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// Boundary is the instant after which the event counts as concluded.
// Events without an end time conclude at their start.
func (e *Event) Boundary() time.Time {
	if e.EndAt != nil && !e.EndAt.IsZero() {
		return *e.EndAt
	}
	return e.StartAt
}

func (e *Event) HasParticipant(userID uuid.UUID) bool {
	for _, id := range e.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// UserIDs is a uuid list stored as a Postgres text array.
type UserIDs []uuid.UUID

func (ids UserIDs) Value() (driver.Value, error) {
	arr := make(pq.StringArray, len(ids))
	for i, id := range ids {
		arr[i] = id.String()
	}
	return arr.Value()
}

func (ids *UserIDs) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}

	out := make(UserIDs, 0, len(arr))
	for _, s := range arr {
		id, err := uuid.Parse(s)
		if err != nil {
			return err
		}
		out = append(out, id)
	}
	*ids = out
	return nil
}
