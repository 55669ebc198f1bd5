package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/service/retention"
	"agenda-eventos/internal/testutil"
	"agenda-eventos/internal/testutil/memstore"
)

func TestCheck(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tomorrow := &domain.Event{ID: uuid.New(), StartAt: now.Add(24 * time.Hour)}
	past := &domain.Event{ID: uuid.New(), StartAt: now.Add(-48 * time.Hour)}

	tests := []struct {
		name      string
		entry     domain.FeedEntry
		deletable bool
	}{
		{
			name:      "RequestKindUpcomingEvent",
			entry:     domain.PersistedEntry(&domain.Notification{Type: domain.NotifItemRequest, EventID: &tomorrow.ID, Event: tomorrow}),
			deletable: false,
		},
		{
			name:      "RequestKindPastEvent",
			entry:     domain.PersistedEntry(&domain.Notification{Type: domain.NotifItemRequest, EventID: &past.ID, Event: past}),
			deletable: true,
		},
		{
			name: "EventReachedThroughRequest",
			entry: domain.PersistedEntry(&domain.Notification{
				Type:    domain.NotifTransportRequest,
				Request: &domain.Request{EventID: tomorrow.ID, Event: tomorrow},
			}),
			deletable: false,
		},
		{
			name:      "NonRequestKind",
			entry:     domain.PersistedEntry(&domain.Notification{Type: domain.NotifInvite, EventID: &tomorrow.ID, Event: tomorrow}),
			deletable: true,
		},
		{
			name:      "Virtual",
			entry:     domain.VirtualEntry(&domain.VirtualNotification{Kind: domain.NotifTransportRequest, EventID: past.ID}),
			deletable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := retention.Check(&tt.entry, now)
			assert.Equal(t, tt.deletable, v.Deletable)
			if !tt.deletable {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func TestProtected(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)
	n := &domain.Notification{Type: domain.NotifItemRequest, Event: &domain.Event{StartAt: start}}

	assert.True(t, retention.Protected(n, now))
	// once the event has ended the same notification may go
	assert.False(t, retention.Protected(n, start.Add(time.Minute)))

	end := start.Add(3 * time.Hour)
	n.Event.EndAt = &end
	assert.True(t, retention.Protected(n, start.Add(time.Hour)))
	assert.False(t, retention.Protected(n, end.Add(time.Second)))
}

type fixture struct {
	store    *memstore.Store
	svc      retention.Service
	member   domain.User
	admin    domain.User
	upcoming domain.Event
	finished domain.Event
}

func newFixture() *fixture {
	store := memstore.New()
	member := store.PutUser(domain.User{Email: "m@example.com", Role: string(domain.RoleMember)})
	admin := store.PutUser(domain.User{Email: "a@example.com", Role: string(domain.RoleAdmin)})
	ended := time.Now().Add(-time.Hour)
	return &fixture{
		store:    store,
		svc:      retention.NewService(store.Repositories().Notification, testutil.DiscardLogger()),
		member:   member,
		admin:    admin,
		upcoming: store.PutEvent(domain.Event{Title: "Up", StartAt: time.Now().Add(24 * time.Hour), CreatedBy: admin.ID}),
		finished: store.PutEvent(domain.Event{Title: "Done", StartAt: ended.Add(-time.Hour), EndAt: &ended, CreatedBy: admin.ID}),
	}
}

func TestService_ClearSafe(t *testing.T) {
	ctx := context.Background()

	t.Run("SkipsProtected", func(t *testing.T) {
		f := newFixture()
		f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifItemRequest, EventID: &f.upcoming.ID})
		f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifItemRequest, EventID: &f.finished.ID})
		f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifSystem})
		f.store.PutNotification(domain.Notification{UserID: f.admin.ID, Type: domain.NotifSystem})

		res, err := f.svc.ClearSafe(ctx, &f.member, false, false)

		require.NoError(t, err)
		assert.Equal(t, retention.ClearResult{Deleted: 2, Skipped: 1}, res)
		assert.Len(t, f.store.Notifications(), 2)
	})

	t.Run("ReadOnly", func(t *testing.T) {
		f := newFixture()
		f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifSystem, Read: true})
		f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifSystem})

		res, err := f.svc.ClearSafe(ctx, &f.member, false, true)

		require.NoError(t, err)
		assert.Equal(t, retention.ClearResult{Deleted: 1}, res)
		remaining := f.store.Notifications()
		require.Len(t, remaining, 1)
		assert.False(t, remaining[0].Read)
	})

	t.Run("AllRequiresAdmin", func(t *testing.T) {
		f := newFixture()
		f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifSystem})
		f.store.PutNotification(domain.Notification{UserID: f.admin.ID, Type: domain.NotifSystem})

		_, err := f.svc.ClearSafe(ctx, &f.member, true, false)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Len(t, f.store.Notifications(), 2)

		res, err := f.svc.ClearSafe(ctx, &f.admin, true, false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Deleted)
		assert.Empty(t, f.store.Notifications())
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	protected := f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifTransportRequest, EventID: &f.upcoming.ID})
	plain := f.store.PutNotification(domain.Notification{UserID: f.member.ID, Type: domain.NotifSystem})

	assert.ErrorIs(t, f.svc.Delete(ctx, f.member.ID, protected.ID), domain.ErrNotDeletable)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.admin.ID, plain.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.member.ID, plain.ID))
	// already gone counts as done
	require.NoError(t, f.svc.Delete(ctx, f.member.ID, plain.ID))

	_, ok := f.store.Notification(plain.ID)
	assert.False(t, ok)
}
