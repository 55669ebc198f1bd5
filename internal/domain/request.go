package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestKind string

const (
	RequestItem          RequestKind = "item"
	RequestParticipation RequestKind = "participation"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type Request struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Kind          RequestKind   `json:"kind" db:"kind"`
	EventID       uuid.UUID     `json:"event_id" db:"event_id"`
	RequestedBy   uuid.UUID     `json:"requested_by" db:"requested_by"`
	Sector        string        `json:"sector" db:"sector"`
	ItemName      string        `json:"item_name" db:"item_name"`
	Quantity      int           `json:"quantity" db:"quantity"`
	Justification string        `json:"justification" db:"justification"`
	Status        RequestStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`

	Event     *Event `json:"event,omitempty" db:"-"`
	Requester *User  `json:"requester,omitempty" db:"-"`
}
