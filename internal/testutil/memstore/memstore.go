// Package memstore is an in-memory implementation of the repository
// interfaces for tests. It enforces the same uniqueness rules as the
// Postgres schema and expands relations the same way.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/repository"
)

type Store struct {
	mu sync.Mutex

	users          map[uuid.UUID]domain.User
	events         map[uuid.UUID]domain.Event
	participations map[uuid.UUID]domain.Participation
	requests       map[uuid.UUID]domain.Request
	notifications  map[uuid.UUID]domain.Notification

	// Ops records every write as "<collection>.<op>" in call order.
	Ops []string

	failures map[string]error
	pub      repository.ChangePublisher
	clock    time.Time
}

func New() *Store {
	return &Store{
		users:          make(map[uuid.UUID]domain.User),
		events:         make(map[uuid.UUID]domain.Event),
		participations: make(map[uuid.UUID]domain.Participation),
		requests:       make(map[uuid.UUID]domain.Request),
		notifications:  make(map[uuid.UUID]domain.Notification),
		failures:       make(map[string]error),
		clock:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Repositories exposes the store through the repository aggregate.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:          userRepo{s},
		Event:         eventRepo{s},
		Participation: participationRepo{s},
		Request:       requestRepo{s},
		Notification:  notificationRepo{s},
	}
}

func (s *Store) SetPublisher(pub repository.ChangePublisher) {
	s.mu.Lock()
	s.pub = pub
	s.mu.Unlock()
}

// FailOn makes the named operation (for example "Request.UpdateStatus")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// tick hands out strictly increasing timestamps so ordering is deterministic.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) record(op string, coll domain.Collection, action domain.ChangeAction, id uuid.UUID) {
	s.Ops = append(s.Ops, op)
	if s.pub == nil {
		return
	}
	pub := s.pub
	ev := domain.ChangeEvent{Collection: coll, Action: action, RecordID: id, At: s.clock}
	// Publish outside the lock; subscribers read the store again.
	s.mu.Unlock()
	_ = pub.Publish(context.Background(), ev)
	s.mu.Lock()
}

func (s *Store) PutUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.IsActive = true
	s.users[u.ID] = u
	return u
}

func (s *Store) PutEvent(e domain.Event) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = domain.EventActive
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.tick()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	s.events[e.ID] = e
	return e
}

func (s *Store) PutParticipation(p domain.Participation) domain.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.tick()
	}
	s.participations[p.ID] = p
	return p
}

func (s *Store) PutRequest(r domain.Request) domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = domain.RequestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.tick()
	}
	s.requests[r.ID] = r
	return r
}

func (s *Store) PutNotification(n domain.Notification) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.tick()
	}
	s.notifications[n.ID] = n
	return n
}

func (s *Store) Event(id uuid.UUID) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	return e, ok
}

func (s *Store) Request(id uuid.UUID) (domain.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	return r, ok
}

func (s *Store) Notification(id uuid.UUID) (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	return n, ok
}

// Notifications returns every stored notification, oldest first.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Participations() []domain.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Participation, 0, len(s.participations))
	for _, p := range s.participations {
		out = append(out, p)
	}
	return out
}

func (s *Store) eventPtr(id uuid.UUID) *domain.Event {
	e, ok := s.events[id]
	if !ok {
		return nil
	}
	return &e
}

func (s *Store) userPtr(id uuid.UUID) *domain.User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (s *Store) expandRequest(r domain.Request) domain.Request {
	r.Event = s.eventPtr(r.EventID)
	r.Requester = s.userPtr(r.RequestedBy)
	return r
}

func (s *Store) expandNotification(n domain.Notification) domain.Notification {
	if n.EventID != nil {
		n.Event = s.eventPtr(*n.EventID)
	}
	if n.RelatedRequest != nil {
		if r, ok := s.requests[*n.RelatedRequest]; ok {
			r = s.expandRequest(r)
			n.Request = &r
		}
	}
	return n
}
