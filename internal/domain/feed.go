package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	itemKeyPrefix      = "req_"
	transportKeyPrefix = "tra_"
)

type EntrySource string

const (
	SourcePersisted EntrySource = "persisted"
	SourceVirtual   EntrySource = "virtual"
)

// VirtualNotification is synthesized from a pending request at read time and
// never stored. Item requests are keyed by request id, transport requests by
// event id because the request lives on the event row.
type VirtualNotification struct {
	Kind         NotificationType `json:"type"`
	RequestID    *uuid.UUID       `json:"related_request,omitempty"`
	EventID      uuid.UUID        `json:"event"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	InviteStatus DecisionStatus   `json:"invite_status"`
	CreatedAt    time.Time        `json:"created_at"`

	Request *Request `json:"expand_request,omitempty"`
	Event   *Event   `json:"expand_event,omitempty"`
}

func (v *VirtualNotification) Key() string {
	if v.Kind == NotifTransportRequest {
		return transportKeyPrefix + v.EventID.String()
	}
	if v.RequestID != nil {
		return itemKeyPrefix + v.RequestID.String()
	}
	return itemKeyPrefix + uuid.Nil.String()
}

// FeedEntry is either a persisted notification row or a virtual one.
// Exactly one of Notification and Virtual is set, as named by Source.
type FeedEntry struct {
	Source       EntrySource          `json:"source"`
	Key          string               `json:"id"`
	Notification *Notification        `json:"notification,omitempty"`
	Virtual      *VirtualNotification `json:"virtual,omitempty"`
}

func PersistedEntry(n *Notification) FeedEntry {
	return FeedEntry{Source: SourcePersisted, Key: n.ID.String(), Notification: n}
}

func VirtualEntry(v *VirtualNotification) FeedEntry {
	return FeedEntry{Source: SourceVirtual, Key: v.Key(), Virtual: v}
}

func (e *FeedEntry) IsVirtual() bool {
	return e.Source == SourceVirtual
}

func (e *FeedEntry) Kind() NotificationType {
	if e.IsVirtual() {
		return e.Virtual.Kind
	}
	return e.Notification.Type
}

func (e *FeedEntry) CreatedAt() time.Time {
	if e.IsVirtual() {
		return e.Virtual.CreatedAt
	}
	return e.Notification.CreatedAt
}

func (e *FeedEntry) Status() DecisionStatus {
	if e.IsVirtual() {
		return e.Virtual.InviteStatus
	}
	return e.Notification.InviteStatus
}

func (e *FeedEntry) SetStatus(status DecisionStatus) {
	if e.IsVirtual() {
		e.Virtual.InviteStatus = status
		return
	}
	e.Notification.InviteStatus = status
	e.Notification.Read = true
}

func (e *FeedEntry) IsRead() bool {
	if e.IsVirtual() {
		return false
	}
	return e.Notification.Read
}

func (e *FeedEntry) RelatedRequest() *uuid.UUID {
	if e.IsVirtual() {
		return e.Virtual.RequestID
	}
	return e.Notification.RelatedRequest
}

func (e *FeedEntry) EventID() *uuid.UUID {
	if e.IsVirtual() {
		id := e.Virtual.EventID
		return &id
	}
	if e.Notification.EventID != nil {
		return e.Notification.EventID
	}
	if e.Notification.Request != nil {
		id := e.Notification.Request.EventID
		return &id
	}
	return nil
}

func (e *FeedEntry) LinkedEvent() *Event {
	if e.IsVirtual() {
		if e.Virtual.Event != nil {
			return e.Virtual.Event
		}
		if e.Virtual.Request != nil {
			return e.Virtual.Request.Event
		}
		return nil
	}
	return e.Notification.LinkedEvent()
}

func (e *FeedEntry) LinkedRequest() *Request {
	if e.IsVirtual() {
		return e.Virtual.Request
	}
	return e.Notification.Request
}

type Feed struct {
	Entries []FeedEntry `json:"items"`
	Badge   int         `json:"badge"`
}

func (f *Feed) Find(key string) (int, bool) {
	for i := range f.Entries {
		if f.Entries[i].Key == key {
			return i, true
		}
	}
	return -1, false
}

// EntryKey is a parsed feed key: a persisted notification id or the source
// of a virtual notification.
type EntryKey struct {
	Source EntrySource
	Kind   NotificationType
	ID     uuid.UUID
}

func ParseEntryKey(raw string) (EntryKey, error) {
	switch {
	case strings.HasPrefix(raw, itemKeyPrefix):
		id, err := uuid.Parse(strings.TrimPrefix(raw, itemKeyPrefix))
		if err != nil {
			return EntryKey{}, fmt.Errorf("invalid request key %q: %w", raw, err)
		}
		return EntryKey{Source: SourceVirtual, Kind: NotifItemRequest, ID: id}, nil
	case strings.HasPrefix(raw, transportKeyPrefix):
		id, err := uuid.Parse(strings.TrimPrefix(raw, transportKeyPrefix))
		if err != nil {
			return EntryKey{}, fmt.Errorf("invalid transport key %q: %w", raw, err)
		}
		return EntryKey{Source: SourceVirtual, Kind: NotifTransportRequest, ID: id}, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return EntryKey{}, fmt.Errorf("invalid notification id %q: %w", raw, err)
	}
	return EntryKey{Source: SourcePersisted, ID: id}, nil
}

func (k EntryKey) String() string {
	switch {
	case k.Source == SourcePersisted:
		return k.ID.String()
	case k.Kind == NotifTransportRequest:
		return transportKeyPrefix + k.ID.String()
	default:
		return itemKeyPrefix + k.ID.String()
	}
}
