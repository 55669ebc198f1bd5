package inbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/inbox"
	"agenda-eventos/internal/realtime"
	"agenda-eventos/internal/service/notification"
	"agenda-eventos/internal/service/retention"
	"agenda-eventos/internal/testutil"
	"agenda-eventos/internal/testutil/memstore"
)

type fixture struct {
	store    *memstore.Store
	notifSvc notification.Service
	retSvc   retention.Service
	user     domain.User
	event    domain.Event
}

func newFixture() *fixture {
	store := memstore.New()
	logger := testutil.DiscardLogger()
	user := store.PutUser(domain.User{Email: "m@example.com", Role: string(domain.RoleMember)})
	return &fixture{
		store:    store,
		notifSvc: notification.NewService(store.Repositories(), nil, nil, "en", logger),
		retSvc:   retention.NewService(store.Repositories().Notification, logger),
		user:     user,
		event:    store.PutEvent(domain.Event{Title: "Feria", StartAt: time.Now().Add(24 * time.Hour), CreatedBy: user.ID}),
	}
}

func (f *fixture) inbox(t *testing.T) *inbox.Inbox {
	t.Helper()
	ib := inbox.New(&f.user, f.notifSvc, f.notifSvc, f.retSvc, testutil.DiscardLogger())
	require.NoError(t, ib.Refresh(context.Background()))
	return ib
}

func TestInbox_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		n := f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifSystem})
		ib := f.inbox(t)
		require.Equal(t, 1, ib.Snapshot().Badge)

		require.NoError(t, ib.MarkRead(ctx, n.ID.String()))

		snap := ib.Snapshot()
		assert.Zero(t, snap.Badge)
		assert.True(t, snap.Entries[0].IsRead())
		stored, _ := f.store.Notification(n.ID)
		assert.True(t, stored.Read)
	})

	t.Run("FailureIsCompensated", func(t *testing.T) {
		f := newFixture()
		n := f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifSystem})
		ib := f.inbox(t)
		f.store.FailOn("Notification.MarkAsRead", errors.New("offline"))

		err := ib.MarkRead(ctx, n.ID.String())

		require.Error(t, err)
		snap := ib.Snapshot()
		assert.Equal(t, 1, snap.Badge)
		assert.False(t, snap.Entries[0].IsRead())
	})

	t.Run("UnknownKey", func(t *testing.T) {
		f := newFixture()
		ib := f.inbox(t)
		assert.ErrorIs(t, ib.MarkRead(ctx, uuid.NewString()), domain.ErrNotFound)
	})
}

func TestInbox_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("AlreadyDeletedCountsAsSuccess", func(t *testing.T) {
		f := newFixture()
		n := f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifSystem})
		ib := f.inbox(t)
		require.NoError(t, f.store.Repositories().Notification.Delete(ctx, n.ID))

		require.NoError(t, ib.Delete(ctx, n.ID.String()))
		assert.Empty(t, ib.Snapshot().Entries)
	})

	t.Run("FailureRestoresPosition", func(t *testing.T) {
		f := newFixture()
		f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifSystem, Title: "old"})
		mid := f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifSystem, Title: "mid"})
		f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifSystem, Title: "new"})
		ib := f.inbox(t)
		f.store.FailOn("Notification.Delete", errors.New("offline"))

		err := ib.Delete(ctx, mid.ID.String())

		require.Error(t, err)
		snap := ib.Snapshot()
		require.Len(t, snap.Entries, 3)
		assert.Equal(t, "mid", snap.Entries[1].Notification.Title)
		assert.Equal(t, 3, snap.Badge)
	})

	t.Run("ProtectedEntryStays", func(t *testing.T) {
		f := newFixture()
		n := f.store.PutNotification(domain.Notification{UserID: f.user.ID, Type: domain.NotifItemRequest, EventID: &f.event.ID})
		ib := f.inbox(t)

		err := ib.Delete(ctx, n.ID.String())

		assert.ErrorIs(t, err, domain.ErrNotDeletable)
		assert.Len(t, ib.Snapshot().Entries, 1)
		_, ok := f.store.Notification(n.ID)
		assert.True(t, ok)
	})
}

func TestInbox_Watch(t *testing.T) {
	f := newFixture()
	broker := realtime.NewLocalBroker()
	f.store.SetPublisher(broker)

	ib := f.inbox(t)
	updates, stop := ib.Listen()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ib.Watch(ctx, broker))

	_, err := f.notifSvc.Create(context.Background(), domain.CreateNotificationInput{
		UserID: f.user.ID, Type: domain.NotifSystem, Title: "hola",
	})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case feed := <-updates:
			if len(feed.Entries) == 1 {
				assert.Equal(t, "hola", feed.Entries[0].Notification.Title)
				return
			}
		case <-deadline:
			t.Fatal("inbox did not refresh")
		}
	}
}

func TestHub(t *testing.T) {
	f := newFixture()
	broker := realtime.NewLocalBroker()
	hub := inbox.NewHub(f.notifSvc, f.notifSvc, f.retSvc, broker, testutil.DiscardLogger())
	ctx := context.Background()

	first, releaseFirst, err := hub.Acquire(ctx, &f.user)
	require.NoError(t, err)
	second, releaseSecond, err := hub.Acquire(ctx, &f.user)
	require.NoError(t, err)
	assert.Same(t, first, second)

	releaseFirst()
	releaseFirst()
	_, ok := hub.Get(f.user.ID)
	assert.True(t, ok)

	releaseSecond()
	_, ok = hub.Get(f.user.ID)
	assert.False(t, ok)
}

// gatedAggregator holds every aggregation until release is closed.
type gatedAggregator struct {
	inner   inbox.Aggregator
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedAggregator(inner inbox.Aggregator) *gatedAggregator {
	return &gatedAggregator{inner: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedAggregator) Aggregate(ctx context.Context, user *domain.User) (*domain.Feed, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.inner.Aggregate(ctx, user)
}

type aggregatorFunc func(ctx context.Context, user *domain.User) (*domain.Feed, error)

func (fn aggregatorFunc) Aggregate(ctx context.Context, user *domain.User) (*domain.Feed, error) {
	return fn(ctx, user)
}

type acquired struct {
	ib      *inbox.Inbox
	release func()
	err     error
}

func TestHub_AcquireRefreshOutsideLock(t *testing.T) {
	ctx := context.Background()

	t.Run("GetDoesNotWaitForRefresh", func(t *testing.T) {
		f := newFixture()
		gate := newGatedAggregator(f.notifSvc)
		hub := inbox.NewHub(gate, f.notifSvc, f.retSvc, realtime.NewLocalBroker(), testutil.DiscardLogger())

		result := make(chan acquired, 1)
		go func() {
			ib, release, err := hub.Acquire(ctx, &f.user)
			result <- acquired{ib, release, err}
		}()
		<-gate.entered

		done := make(chan bool, 1)
		go func() {
			_, ok := hub.Get(uuid.New())
			done <- ok
		}()
		select {
		case ok := <-done:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("Get blocked while an inbox was refreshing")
		}

		close(gate.release)
		got := <-result
		require.NoError(t, got.err)
		defer got.release()
		open, ok := hub.Get(f.user.ID)
		require.True(t, ok)
		assert.Same(t, got.ib, open)
	})

	t.Run("ConcurrentAcquireSharesInbox", func(t *testing.T) {
		f := newFixture()
		gate := newGatedAggregator(f.notifSvc)
		hub := inbox.NewHub(gate, f.notifSvc, f.retSvc, realtime.NewLocalBroker(), testutil.DiscardLogger())

		results := make(chan acquired, 2)
		for i := 0; i < 2; i++ {
			go func() {
				ib, release, err := hub.Acquire(ctx, &f.user)
				results <- acquired{ib, release, err}
			}()
		}
		<-gate.entered
		close(gate.release)

		first, second := <-results, <-results
		require.NoError(t, first.err)
		require.NoError(t, second.err)
		assert.Same(t, first.ib, second.ib)

		first.release()
		_, ok := hub.Get(f.user.ID)
		assert.True(t, ok)
		second.release()
		_, ok = hub.Get(f.user.ID)
		assert.False(t, ok)
	})

	t.Run("RefreshErrorLeavesNoSlot", func(t *testing.T) {
		f := newFixture()
		failing := aggregatorFunc(func(context.Context, *domain.User) (*domain.Feed, error) {
			return nil, errors.New("offline")
		})
		hub := inbox.NewHub(failing, f.notifSvc, f.retSvc, realtime.NewLocalBroker(), testutil.DiscardLogger())

		_, _, err := hub.Acquire(ctx, &f.user)

		require.Error(t, err)
		_, ok := hub.Get(f.user.ID)
		assert.False(t, ok)
	})
}
