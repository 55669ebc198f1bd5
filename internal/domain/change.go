package domain

import (
	"time"

	"github.com/google/uuid"
)

type Collection string

const (
	CollectionEvents         Collection = "events"
	CollectionParticipations Collection = "participations"
	CollectionRequests       Collection = "requests"
	CollectionNotifications  Collection = "notifications"
	CollectionUsers          Collection = "users"
)

type ChangeAction string

const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
	ChangeDelete ChangeAction = "delete"
	// ChangeRefresh carries no record; it only asks subscribers to re-read.
	ChangeRefresh ChangeAction = "refresh"
)

// ChangeEvent says "something changed" in a collection. Subscribers must not
// rely on it for anything beyond triggering a re-read.
type ChangeEvent struct {
	Collection Collection   `json:"collection"`
	Action     ChangeAction `json:"action"`
	RecordID   uuid.UUID    `json:"record_id"`
	At         time.Time    `json:"at"`
}
