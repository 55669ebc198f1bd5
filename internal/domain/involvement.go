package domain

import "time"

type InvolvementVariant string

const (
	VariantCreated       InvolvementVariant = "created"
	VariantParticipation InvolvementVariant = "participation"
	VariantRequest       InvolvementVariant = "request"
)

type InvolvementEntry struct {
	Variant InvolvementVariant `json:"variant"`
	Event   *Event             `json:"event"`
	Role    ParticipationRole  `json:"role"`
	Status  string             `json:"status"`

	ParticipationID *string `json:"participation_id,omitempty"`
	RequestID       *string `json:"request_id,omitempty"`
}

func (e *InvolvementEntry) StartAt() time.Time {
	if e.Event == nil {
		return time.Time{}
	}
	return e.Event.StartAt
}

// Confirmed reports whether the entry counts towards role statistics:
// an active event the user created, an accepted participation, or an
// approved request.
func (e *InvolvementEntry) Confirmed() bool {
	switch e.Variant {
	case VariantCreated:
		return e.Event != nil && e.Event.Status == EventActive
	case VariantParticipation:
		return e.Status == string(ParticipationAccepted)
	case VariantRequest:
		return e.Status == string(RequestApproved)
	}
	return false
}

type RoleStats struct {
	Organizer   int `json:"organizer"`
	Coorganizer int `json:"coorganizer"`
	Participant int `json:"participant"`
}

type PendingRejected struct {
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

type InvolvementStats struct {
	ByRole         RoleStats       `json:"by_role"`
	Confirmed      int             `json:"confirmed"`
	ReceivedInvite PendingRejected `json:"received_invites"`
	SentRequest    PendingRejected `json:"sent_requests"`
	InviteSent     PendingRejected `json:"invites_sent"`
}

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type InvolvementAnalytics struct {
	ByCategory  []Count `json:"by_category"`
	ByMonth     []Count `json:"by_month"`
	TopResource []Count `json:"top_resources"`
}

type Involvement struct {
	Entries   []InvolvementEntry   `json:"entries"`
	Stats     InvolvementStats     `json:"stats"`
	Analytics InvolvementAnalytics `json:"analytics"`
}
