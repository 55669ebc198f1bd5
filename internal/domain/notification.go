package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"user" db:"user_id"`
	Type           NotificationType `json:"type" db:"type"`
	Title          string           `json:"title" db:"title"`
	Message        string           `json:"message" db:"message"`
	Read           bool             `json:"read" db:"read"`
	EventID        *uuid.UUID       `json:"event,omitempty" db:"event_id"`
	RelatedRequest *uuid.UUID       `json:"related_request,omitempty" db:"related_request"`
	InviteStatus   DecisionStatus   `json:"invite_status" db:"invite_status"`
	Data           JSONB            `json:"data,omitempty" db:"data"`
	Acknowledged   bool             `json:"acknowledged" db:"acknowledged"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`

	Event   *Event   `json:"expand_event,omitempty" db:"-"`
	Request *Request `json:"expand_request,omitempty" db:"-"`
}

// LinkedEvent returns the event the notification points at, directly or
// through its related request.
func (n *Notification) LinkedEvent() *Event {
	if n.Event != nil {
		return n.Event
	}
	if n.Request != nil {
		return n.Request.Event
	}
	return nil
}

func (n *Notification) Payload() NotificationData {
	var data NotificationData
	if len(n.Data) > 0 {
		_ = json.Unmarshal(n.Data, &data)
	}
	return data
}

// NotificationData is the free-form payload. Only the fields the engine reads
// back are typed; anything else round-trips untouched in Notification.Data.
type NotificationData struct {
	RequesterID string `json:"requester_id,omitempty"`
	EventID     string `json:"event_id,omitempty"`
	EventTitle  string `json:"event_title,omitempty"`
	ItemName    string `json:"item_name,omitempty"`
	Action      string `json:"action,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Decision    string `json:"decision,omitempty"`
}

func (d NotificationData) Raw() JSONB {
	b, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	return b
}

type NotificationType string

const (
	NotifInvite               NotificationType = "event_invite"
	NotifCancellation         NotificationType = "event_cancellation"
	NotifItemRequest          NotificationType = "item_request"
	NotifTransportRequest     NotificationType = "transport_request"
	NotifParticipationRequest NotificationType = "participation_request"
	NotifServiceRequest       NotificationType = "service_request"
	NotifDecisionResult       NotificationType = "request_decision"
	NotifRefusal              NotificationType = "invite_refusal"
	NotifAcknowledgment       NotificationType = "acknowledgment"
	NotifSystem               NotificationType = "system"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotifInvite, NotifCancellation, NotifItemRequest, NotifTransportRequest,
		NotifParticipationRequest, NotifServiceRequest, NotifDecisionResult,
		NotifRefusal, NotifAcknowledgment, NotifSystem:
		return true
	}
	return false
}

// IsRequestKind reports whether the notification asks a reviewer to decide
// on an administrative request.
func (t NotificationType) IsRequestKind() bool {
	switch t {
	case NotifItemRequest, NotifTransportRequest, NotifParticipationRequest, NotifServiceRequest:
		return true
	}
	return false
}

type DecisionStatus string

const (
	DecisionNone     DecisionStatus = ""
	DecisionPending  DecisionStatus = "pending"
	DecisionAccepted DecisionStatus = "accepted"
	DecisionRejected DecisionStatus = "rejected"
)

type DecisionAction string

const (
	ActionAccepted DecisionAction = "accepted"
	ActionRejected DecisionAction = "rejected"
	ActionApproved DecisionAction = "approved"
)

func (a DecisionAction) IsValid() bool {
	switch a {
	case ActionAccepted, ActionRejected, ActionApproved:
		return true
	}
	return false
}

func (a DecisionAction) Approves() bool {
	return a == ActionAccepted || a == ActionApproved
}

func (a DecisionAction) Status() DecisionStatus {
	if a.Approves() {
		return DecisionAccepted
	}
	return DecisionRejected
}

type CreateNotificationInput struct {
	UserID         uuid.UUID        `json:"user"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	EventID        *uuid.UUID       `json:"event,omitempty"`
	RelatedRequest *uuid.UUID       `json:"related_request,omitempty"`
	Data           JSONB            `json:"data,omitempty"`
}

type DecisionInput struct {
	Action        DecisionAction `json:"action"`
	Justification *string        `json:"justification,omitempty"`
}
