package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
)

// Broker is the per-collection change channel. Callbacks fire on any write
// to a watched collection and carry no guarantee beyond "something changed".
type Broker interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
	Subscribe(ctx context.Context, fn func(domain.ChangeEvent), collections ...domain.Collection) (unsubscribe func(), err error)
}

// Refresher publishes a refresh signal on the notifications collection so
// every live view re-aggregates.
type Refresher struct {
	Broker Broker
}

func (r Refresher) Refresh(ctx context.Context) error {
	return r.Broker.Publish(ctx, domain.ChangeEvent{
		Collection: domain.CollectionNotifications,
		Action:     domain.ChangeRefresh,
		RecordID:   uuid.Nil,
		At:         time.Now(),
	})
}

// LocalBroker delivers change events in-process. It is used when Redis is
// unavailable and in tests.
type LocalBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]localSub
}

type localSub struct {
	fn          func(domain.ChangeEvent)
	collections map[domain.Collection]bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[int]localSub)}
}

func (b *LocalBroker) Publish(_ context.Context, ev domain.ChangeEvent) error {
	b.mu.RLock()
	targets := make([]func(domain.ChangeEvent), 0, len(b.subs))
	for _, s := range b.subs {
		if s.collections[ev.Collection] {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, fn func(domain.ChangeEvent), collections ...domain.Collection) (func(), error) {
	set := make(map[domain.Collection]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = localSub{fn: fn, collections: set}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}
