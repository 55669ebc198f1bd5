// Package inbox keeps a live, per-user view of the notification feed.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/pkg/optimistic"
	"agenda-eventos/internal/realtime"
	"agenda-eventos/internal/service/retention"
)

type Aggregator interface {
	Aggregate(ctx context.Context, user *domain.User) (*domain.Feed, error)
}

type Marker interface {
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
}

type Remover interface {
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// watched lists every collection whose changes can alter a feed.
var watched = []domain.Collection{
	domain.CollectionNotifications,
	domain.CollectionRequests,
	domain.CollectionEvents,
	domain.CollectionParticipations,
}

type Inbox struct {
	user    *domain.User
	agg     Aggregator
	marker  Marker
	remover Remover
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	feed      domain.Feed
	listeners map[int]chan domain.Feed
	nextID    int
}

func New(user *domain.User, agg Aggregator, marker Marker, remover Remover, logger *slog.Logger) *Inbox {
	return &Inbox{
		user:      user,
		agg:       agg,
		marker:    marker,
		remover:   remover,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]chan domain.Feed),
	}
}

// Refresh re-aggregates and replaces the view. Whichever aggregation
// finishes last wins.
func (i *Inbox) Refresh(ctx context.Context) error {
	feed, err := i.agg.Aggregate(ctx, i.user)
	if err != nil {
		i.logger.WarnContext(ctx, "inbox refresh failed", slog.String("user", i.user.ID.String()), slog.Any("error", err))
		return err
	}

	i.mu.Lock()
	i.feed = *feed
	i.mu.Unlock()

	i.broadcast()
	return nil
}

// Snapshot returns a copy that later mutations of the view do not touch.
func (i *Inbox) Snapshot() domain.Feed {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return copyFeed(i.feed)
}

func (i *Inbox) MarkRead(ctx context.Context, key string) error {
	var (
		id      uuid.UUID
		wasRead bool
	)

	i.mu.Lock()
	idx, ok := i.feed.Find(key)
	if !ok {
		i.mu.Unlock()
		return domain.ErrNotFound
	}
	entry := i.feed.Entries[idx]
	if entry.IsVirtual() {
		i.mu.Unlock()
		return domain.ErrNotActionable
	}
	id = entry.Notification.ID
	wasRead = entry.Notification.Read
	i.mu.Unlock()

	if wasRead {
		return nil
	}

	err := optimistic.Run(ctx, optimistic.Command{
		Apply: func() { i.setRead(key, true) },
		Persist: func(ctx context.Context) error {
			return i.marker.MarkAsRead(ctx, i.user.ID, id)
		},
		Compensate: func() { i.setRead(key, false) },
	})
	i.broadcast()
	return err
}

func (i *Inbox) setRead(key string, read bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	idx, ok := i.feed.Find(key)
	if !ok || i.feed.Entries[idx].IsVirtual() {
		return
	}
	n := *i.feed.Entries[idx].Notification
	if n.Read == read {
		return
	}
	n.Read = read
	i.feed.Entries[idx].Notification = &n
	if read {
		i.feed.Badge--
	} else {
		i.feed.Badge++
	}
}

// Delete removes the entry locally, then from the store. A record that is
// already gone counts as deleted.
func (i *Inbox) Delete(ctx context.Context, key string) error {
	i.mu.RLock()
	idx, ok := i.feed.Find(key)
	if !ok {
		i.mu.RUnlock()
		return nil
	}
	entry := i.feed.Entries[idx]
	i.mu.RUnlock()

	if v := retention.Check(&entry, i.now()); !v.Deletable {
		return fmt.Errorf("%w: %s", domain.ErrNotDeletable, v.Reason)
	}

	var removedAt int
	err := optimistic.Run(ctx, optimistic.Command{
		Apply: func() { removedAt = i.remove(key) },
		Persist: func(ctx context.Context) error {
			return i.remover.Delete(ctx, i.user.ID, entry.Notification.ID)
		},
		Accept:     func(err error) bool { return errors.Is(err, domain.ErrNotFound) },
		Compensate: func() { i.restore(removedAt, entry) },
	})
	i.broadcast()
	return err
}

func (i *Inbox) remove(key string) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	idx, ok := i.feed.Find(key)
	if !ok {
		return -1
	}
	if !i.feed.Entries[idx].IsRead() {
		i.feed.Badge--
	}
	i.feed.Entries = append(i.feed.Entries[:idx:idx], i.feed.Entries[idx+1:]...)
	return idx
}

func (i *Inbox) restore(idx int, entry domain.FeedEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if idx < 0 {
		return
	}
	if _, ok := i.feed.Find(entry.Key); ok {
		return
	}
	if idx > len(i.feed.Entries) {
		idx = len(i.feed.Entries)
	}
	entries := make([]domain.FeedEntry, 0, len(i.feed.Entries)+1)
	entries = append(entries, i.feed.Entries[:idx]...)
	entries = append(entries, entry)
	entries = append(entries, i.feed.Entries[idx:]...)
	i.feed.Entries = entries
	if !entry.IsRead() {
		i.feed.Badge++
	}
}

// Watch refreshes the view on every change to a watched collection until
// ctx is done.
func (i *Inbox) Watch(ctx context.Context, broker realtime.Broker) error {
	unsubscribe, err := broker.Subscribe(ctx, func(domain.ChangeEvent) {
		go func() {
			_ = i.Refresh(ctx)
		}()
	}, watched...)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return nil
}

// Listen returns a channel receiving a snapshot after every change. Slow
// readers only ever see the latest snapshot.
func (i *Inbox) Listen() (<-chan domain.Feed, func()) {
	ch := make(chan domain.Feed, 1)

	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = ch
	i.mu.Unlock()

	return ch, func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

func (i *Inbox) broadcast() {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, ch := range i.listeners {
		snap := copyFeed(i.feed)
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func copyFeed(f domain.Feed) domain.Feed {
	out := domain.Feed{Badge: f.Badge, Entries: make([]domain.FeedEntry, len(f.Entries))}
	for idx, e := range f.Entries {
		if e.Notification != nil {
			n := *e.Notification
			e.Notification = &n
		}
		if e.Virtual != nil {
			v := *e.Virtual
			e.Virtual = &v
		}
		out.Entries[idx] = e
	}
	return out
}
