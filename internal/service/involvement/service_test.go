package involvement_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/service/involvement"
	"agenda-eventos/internal/testutil"
	"agenda-eventos/internal/testutil/memstore"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestService_Aggregate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := involvement.NewService(store.Repositories(), testutil.DiscardLogger())

	me := store.PutUser(domain.User{Email: "me@example.com", Role: string(domain.RoleMember)})
	other := store.PutUser(domain.User{Email: "other@example.com", Role: string(domain.RoleMember)})
	guest := store.PutUser(domain.User{Email: "guest@example.com", Role: string(domain.RoleMember)})

	mine := store.PutEvent(domain.Event{
		Title: "Mine", Category: "taller", Resources: "proyector, sillas",
		StartAt: base, CreatedBy: me.ID,
	})
	canceled := store.PutEvent(domain.Event{
		Title: "Canceled", Category: "taller", Resources: "sillas",
		StartAt: base.AddDate(0, -1, 0), CreatedBy: me.ID, Status: domain.EventCanceled,
	})
	theirs := store.PutEvent(domain.Event{
		Title: "Theirs", Category: "reunion", Resources: "Sillas ,mesa",
		StartAt: base.AddDate(0, 1, 0), CreatedBy: other.ID,
	})
	pendingInvite := store.PutEvent(domain.Event{
		Title: "Pending", Category: "reunion", StartAt: base.AddDate(0, 2, 0), CreatedBy: other.ID,
	})
	requestedEvent := store.PutEvent(domain.Event{
		Title: "Requested", Category: "charla", StartAt: base.AddDate(0, 3, 0), CreatedBy: other.ID,
	})

	store.PutParticipation(domain.Participation{EventID: theirs.ID, UserID: me.ID, Status: domain.ParticipationAccepted, Role: domain.RoleCoorganizer})
	store.PutParticipation(domain.Participation{EventID: pendingInvite.ID, UserID: me.ID, Status: domain.ParticipationPending, Role: domain.RoleParticipant})
	// self-participation on my own event must not double-list
	store.PutParticipation(domain.Participation{EventID: mine.ID, UserID: me.ID, Status: domain.ParticipationAccepted, Role: domain.RoleOrganizer})
	store.PutRequest(domain.Request{Kind: domain.RequestParticipation, EventID: requestedEvent.ID, RequestedBy: me.ID, Status: domain.RequestApproved})
	store.PutRequest(domain.Request{Kind: domain.RequestParticipation, EventID: mine.ID, RequestedBy: me.ID, Status: domain.RequestPending})

	store.PutParticipation(domain.Participation{EventID: mine.ID, UserID: guest.ID, Status: domain.ParticipationPending})
	store.PutParticipation(domain.Participation{EventID: canceled.ID, UserID: guest.ID, Status: domain.ParticipationRejected})

	inv, err := svc.Aggregate(ctx, me.ID)
	require.NoError(t, err)

	t.Run("EntriesSortedByStartDescending", func(t *testing.T) {
		require.Len(t, inv.Entries, 5)
		titles := make([]string, len(inv.Entries))
		for i, e := range inv.Entries {
			titles[i] = e.Event.Title
		}
		assert.Equal(t, []string{"Requested", "Pending", "Theirs", "Mine", "Canceled"}, titles)
		assert.Equal(t, domain.VariantRequest, inv.Entries[0].Variant)
		assert.Equal(t, domain.VariantParticipation, inv.Entries[1].Variant)
		assert.Equal(t, domain.VariantCreated, inv.Entries[3].Variant)
	})

	t.Run("StatsCountOnlyConfirmed", func(t *testing.T) {
		assert.Equal(t, 3, inv.Stats.Confirmed)
		assert.Equal(t, domain.RoleStats{Organizer: 1, Coorganizer: 1, Participant: 1}, inv.Stats.ByRole)
		assert.Equal(t, domain.PendingRejected{Pending: 1}, inv.Stats.ReceivedInvite)
		assert.Equal(t, domain.PendingRejected{}, inv.Stats.SentRequest)
		assert.Equal(t, domain.PendingRejected{Pending: 1, Rejected: 1}, inv.Stats.InviteSent)
	})

	t.Run("Analytics", func(t *testing.T) {
		assert.Equal(t, []domain.Count{{Key: "reunion", Count: 2}, {Key: "taller", Count: 2}, {Key: "charla", Count: 1}}, inv.Analytics.ByCategory)
		assert.Equal(t, "2026-02", inv.Analytics.ByMonth[0].Key)
		assert.Len(t, inv.Analytics.ByMonth, 5)
		assert.Equal(t, domain.Count{Key: "sillas", Count: 2}, inv.Analytics.TopResource[0])
		assert.Contains(t, inv.Analytics.TopResource, domain.Count{Key: "Sillas", Count: 1})
	})
}

func TestService_AggregateToleratesSourceFailure(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := involvement.NewService(store.Repositories(), testutil.DiscardLogger())

	me := store.PutUser(domain.User{Email: "me@example.com", Role: string(domain.RoleMember)})
	store.PutEvent(domain.Event{Title: "Mine", StartAt: base, CreatedBy: me.ID})
	store.FailOn("Participation.ListByUser", errors.New("timeout"))
	store.FailOn("Request.ListByRequester", errors.New("timeout"))

	inv, err := svc.Aggregate(ctx, me.ID)

	require.NoError(t, err)
	require.Len(t, inv.Entries, 1)
	assert.Equal(t, domain.VariantCreated, inv.Entries[0].Variant)
}

func TestService_TopResourcesCapped(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := involvement.NewService(store.Repositories(), testutil.DiscardLogger())
	me := store.PutUser(domain.User{Email: "me@example.com", Role: string(domain.RoleMember)})

	resources := ""
	for i := 0; i < 12; i++ {
		resources += fmt.Sprintf("r%02d,", i)
	}
	store.PutEvent(domain.Event{Title: "A", StartAt: base, CreatedBy: me.ID, Resources: resources + "r11"})

	inv, err := svc.Aggregate(ctx, me.ID)
	require.NoError(t, err)

	require.Len(t, inv.Analytics.TopResource, 10)
	assert.Equal(t, domain.Count{Key: "r11", Count: 2}, inv.Analytics.TopResource[0])
	assert.Equal(t, "r00", inv.Analytics.TopResource[1].Key)
}
