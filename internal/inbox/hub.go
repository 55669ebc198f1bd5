package inbox

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/realtime"
)

// Hub shares one live inbox per user between every open stream of that user.
type Hub struct {
	agg     Aggregator
	marker  Marker
	remover Remover
	broker  realtime.Broker
	logger  *slog.Logger

	mu      sync.Mutex
	inboxes map[uuid.UUID]*slot
}

type slot struct {
	inbox  *Inbox
	refs   int
	cancel context.CancelFunc
}

func NewHub(agg Aggregator, marker Marker, remover Remover, broker realtime.Broker, logger *slog.Logger) *Hub {
	return &Hub{
		agg:     agg,
		marker:  marker,
		remover: remover,
		broker:  broker,
		logger:  logger,
		inboxes: make(map[uuid.UUID]*slot),
	}
}

// Acquire returns the user's live inbox, creating and watching it on first
// use. Call release when the caller is done with it. The first aggregation
// runs without holding the hub lock; when two callers race, the first one
// to register wins and the other's inbox is discarded.
func (h *Hub) Acquire(ctx context.Context, user *domain.User) (*Inbox, func(), error) {
	if ib, ok := h.retain(user.ID); ok {
		return ib, h.releaser(user.ID), nil
	}

	ib := New(user, h.agg, h.marker, h.remover, h.logger)
	if err := ib.Refresh(ctx); err != nil {
		return nil, nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := ib.Watch(watchCtx, h.broker); err != nil {
		cancel()
		return nil, nil, err
	}

	h.mu.Lock()
	if s, ok := h.inboxes[user.ID]; ok {
		s.refs++
		h.mu.Unlock()
		cancel()
		return s.inbox, h.releaser(user.ID), nil
	}
	h.inboxes[user.ID] = &slot{inbox: ib, refs: 1, cancel: cancel}
	h.mu.Unlock()

	return ib, h.releaser(user.ID), nil
}

func (h *Hub) retain(userID uuid.UUID) (*Inbox, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.inboxes[userID]
	if !ok {
		return nil, false
	}
	s.refs++
	return s.inbox, true
}

func (h *Hub) releaser(userID uuid.UUID) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			s, ok := h.inboxes[userID]
			if !ok {
				return
			}
			s.refs--
			if s.refs <= 0 {
				s.cancel()
				delete(h.inboxes, userID)
			}
		})
	}
}

// Get returns the live inbox of a user if one is open.
func (h *Hub) Get(userID uuid.UUID) (*Inbox, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.inboxes[userID]
	if !ok {
		return nil, false
	}
	return s.inbox, true
}
