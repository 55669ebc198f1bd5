package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
)

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("User.GetByID"); err != nil {
		return nil, err
	}
	u := r.s.userPtr(id)
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r userRepo) GetByRoles(_ context.Context, roles []domain.UserRole) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("User.GetByRoles"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(roles))
	for _, role := range roles {
		want[string(role)] = true
	}
	out := []domain.User{}
	for _, u := range r.s.users {
		if want[u.Role] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.GetByID"); err != nil {
		return nil, err
	}
	e := r.s.eventPtr(id)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (r eventRepo) ListByCreator(_ context.Context, userID uuid.UUID) ([]domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.ListByCreator"); err != nil {
		return nil, err
	}
	var out []domain.Event
	for _, e := range r.s.events {
		if e.CreatedBy == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	return out, nil
}

func (r eventRepo) ListPendingTransport(_ context.Context) ([]domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.ListPendingTransport"); err != nil {
		return nil, err
	}
	var out []domain.Event
	for _, e := range r.s.events {
		if e.TransportStatus == domain.TransportPending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r eventRepo) AddParticipant(_ context.Context, eventID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.AddParticipant"); err != nil {
		return err
	}
	e, ok := r.s.events[eventID]
	if !ok || e.HasParticipant(userID) {
		return nil
	}
	e.Participants = append(append(domain.UserIDs{}, e.Participants...), userID)
	e.UpdatedAt = r.s.tick()
	r.s.events[eventID] = e
	r.s.record("events.add_participant", domain.CollectionEvents, domain.ChangeUpdate, eventID)
	return nil
}

func (r eventRepo) RemoveParticipant(_ context.Context, eventID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.RemoveParticipant"); err != nil {
		return err
	}
	e, ok := r.s.events[eventID]
	if !ok || !e.HasParticipant(userID) {
		return nil
	}
	kept := make(domain.UserIDs, 0, len(e.Participants))
	for _, id := range e.Participants {
		if id != userID {
			kept = append(kept, id)
		}
	}
	e.Participants = kept
	e.UpdatedAt = r.s.tick()
	r.s.events[eventID] = e
	r.s.record("events.remove_participant", domain.CollectionEvents, domain.ChangeUpdate, eventID)
	return nil
}

func (r eventRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.EventStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.UpdateStatus"); err != nil {
		return err
	}
	e, ok := r.s.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = status
	e.UpdatedAt = r.s.tick()
	r.s.events[id] = e
	r.s.record("events.update_status", domain.CollectionEvents, domain.ChangeUpdate, id)
	return nil
}

func (r eventRepo) UpdateTransport(_ context.Context, id uuid.UUID, status domain.TransportStatus, justification string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.UpdateTransport"); err != nil {
		return err
	}
	e, ok := r.s.events[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.TransportStatus = status
	e.TransportJustification = justification
	e.UpdatedAt = r.s.tick()
	r.s.events[id] = e
	r.s.record("events.update_transport", domain.CollectionEvents, domain.ChangeUpdate, id)
	return nil
}

// Delete mirrors the schema's foreign keys: event-linked notifications go
// with the event and related_request links are nulled.
func (r eventRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Event.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.events, id)

	removed := make(map[uuid.UUID]bool)
	for rid, req := range r.s.requests {
		if req.EventID == id {
			removed[rid] = true
			delete(r.s.requests, rid)
		}
	}
	for pid, p := range r.s.participations {
		if p.EventID == id {
			delete(r.s.participations, pid)
		}
	}
	for nid, n := range r.s.notifications {
		if n.EventID != nil && *n.EventID == id {
			delete(r.s.notifications, nid)
			continue
		}
		if n.RelatedRequest != nil && removed[*n.RelatedRequest] {
			n.RelatedRequest = nil
			r.s.notifications[nid] = n
		}
	}
	r.s.record("events.delete", domain.CollectionEvents, domain.ChangeDelete, id)
	return nil
}

type participationRepo struct{ s *Store }

func (r participationRepo) GetByEventAndUser(_ context.Context, eventID, userID uuid.UUID) (*domain.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Participation.GetByEventAndUser"); err != nil {
		return nil, err
	}
	for _, p := range r.s.participations {
		if p.EventID == eventID && p.UserID == userID {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r participationRepo) Create(_ context.Context, p *domain.Participation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Participation.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.participations {
		if existing.EventID == p.EventID && existing.UserID == p.UserID {
			return domain.ErrDuplicate
		}
	}
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Event = nil
	r.s.participations[p.ID] = stored
	r.s.record("participations.create", domain.CollectionParticipations, domain.ChangeCreate, p.ID)
	return nil
}

func (r participationRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ParticipationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Participation.UpdateStatus"); err != nil {
		return err
	}
	p, ok := r.s.participations[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = r.s.tick()
	r.s.participations[id] = p
	r.s.record("participations.update_status", domain.CollectionParticipations, domain.ChangeUpdate, id)
	return nil
}

func (r participationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Participation, error) {
	return r.list("Participation.ListByUser", func(p domain.Participation) bool {
		return p.UserID == userID
	})
}

func (r participationRepo) ListByEventCreator(_ context.Context, creatorID uuid.UUID) ([]domain.Participation, error) {
	return r.list("Participation.ListByEventCreator", func(p domain.Participation) bool {
		e, ok := r.s.events[p.EventID]
		return ok && e.CreatedBy == creatorID && p.UserID != creatorID
	})
}

func (r participationRepo) list(op string, keep func(domain.Participation) bool) ([]domain.Participation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	var out []domain.Participation
	for _, p := range r.s.participations {
		if keep(p) {
			p.Event = r.s.eventPtr(p.EventID)
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type requestRepo struct{ s *Store }

func (r requestRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Request.GetByID"); err != nil {
		return nil, err
	}
	req, ok := r.s.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	req = r.s.expandRequest(req)
	return &req, nil
}

func (r requestRepo) ListByRequester(_ context.Context, userID uuid.UUID, kind domain.RequestKind) ([]domain.Request, error) {
	return r.list("Request.ListByRequester", func(req domain.Request) bool {
		return req.RequestedBy == userID && req.Kind == kind
	})
}

func (r requestRepo) ListPending(_ context.Context, kind domain.RequestKind, sectors []string) ([]domain.Request, error) {
	allowed := make(map[string]bool, len(sectors))
	for _, s := range sectors {
		allowed[s] = true
	}
	return r.list("Request.ListPending", func(req domain.Request) bool {
		if req.Status != domain.RequestPending || req.Kind != kind {
			return false
		}
		return sectors == nil || allowed[req.Sector]
	})
}

func (r requestRepo) ListPendingByEventAndRequester(_ context.Context, eventID, requesterID uuid.UUID, kind domain.RequestKind) ([]domain.Request, error) {
	return r.list("Request.ListPendingByEventAndRequester", func(req domain.Request) bool {
		return req.EventID == eventID && req.RequestedBy == requesterID &&
			req.Kind == kind && req.Status == domain.RequestPending
	})
}

func (r requestRepo) ListApprovedSectors(_ context.Context, eventID uuid.UUID) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Request.ListApprovedSectors"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, req := range r.s.requests {
		if req.EventID == eventID && req.Kind == domain.RequestItem &&
			req.Status == domain.RequestApproved && req.Sector != "" && !seen[req.Sector] {
			seen[req.Sector] = true
			out = append(out, req.Sector)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r requestRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.RequestStatus, justification *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Request.UpdateStatus"); err != nil {
		return err
	}
	req, ok := r.s.requests[id]
	if !ok {
		return domain.ErrNotFound
	}
	req.Status = status
	if justification != nil {
		req.Justification = *justification
	}
	req.UpdatedAt = r.s.tick()
	r.s.requests[id] = req
	r.s.record("requests.update_status", domain.CollectionRequests, domain.ChangeUpdate, id)
	return nil
}

func (r requestRepo) list(op string, keep func(domain.Request) bool) ([]domain.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	var out []domain.Request
	for _, req := range r.s.requests {
		if keep(req) {
			out = append(out, r.s.expandRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.Create"); err != nil {
		return err
	}
	if n.Type == domain.NotifInvite && n.EventID != nil {
		for _, existing := range r.s.notifications {
			if existing.Type == domain.NotifInvite && existing.UserID == n.UserID &&
				existing.EventID != nil && *existing.EventID == *n.EventID {
				return domain.ErrDuplicate
			}
		}
	}
	n.CreatedAt = r.s.tick()
	stored := *n
	stored.Event, stored.Request = nil, nil
	r.s.notifications[n.ID] = stored
	r.s.record("notifications.create", domain.CollectionNotifications, domain.ChangeCreate, n.ID)
	return nil
}

func (r notificationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.GetByID"); err != nil {
		return nil, err
	}
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	n = r.s.expandNotification(n)
	return &n, nil
}

func (r notificationRepo) FindInvite(_ context.Context, userID, eventID uuid.UUID) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.FindInvite"); err != nil {
		return nil, err
	}
	for _, n := range r.s.notifications {
		if n.Type == domain.NotifInvite && n.UserID == userID && n.EventID != nil && *n.EventID == eventID {
			return &n, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r notificationRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	return r.list("Notification.ListByUser", func(n domain.Notification) bool {
		return n.UserID == userID
	})
}

func (r notificationRepo) ListForRetention(_ context.Context, userID *uuid.UUID, readOnly bool) ([]domain.Notification, error) {
	return r.list("Notification.ListForRetention", func(n domain.Notification) bool {
		if userID != nil && n.UserID != *userID {
			return false
		}
		return !readOnly || n.Read
	})
}

func (r notificationRepo) ListIDsByEvent(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.ListIDsByEvent"); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, n := range r.s.notifications {
		if n.EventID != nil && *n.EventID == eventID {
			ids = append(ids, n.ID)
		}
	}
	return ids, nil
}

func (r notificationRepo) MarkAsRead(_ context.Context, id uuid.UUID) error {
	return r.update("Notification.MarkAsRead", id, func(n *domain.Notification) { n.Read = true })
}

func (r notificationRepo) MarkAsUnread(_ context.Context, id uuid.UUID) error {
	return r.update("Notification.MarkAsUnread", id, func(n *domain.Notification) { n.Read = false })
}

func (r notificationRepo) MarkAllAsRead(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.MarkAllAsRead"); err != nil {
		return err
	}
	for id, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.s.notifications[id] = n
		}
	}
	r.s.record("notifications.mark_all_read", domain.CollectionNotifications, domain.ChangeRefresh, userID)
	return nil
}

func (r notificationRepo) Resolve(_ context.Context, id uuid.UUID, status domain.DecisionStatus) error {
	return r.update("Notification.Resolve", id, func(n *domain.Notification) {
		n.Read = true
		n.InviteStatus = status
	})
}

func (r notificationRepo) ResolveByRelatedRequest(_ context.Context, requestID uuid.UUID, notifType domain.NotificationType, status domain.DecisionStatus) (int64, error) {
	return r.resolveMany("Notification.ResolveByRelatedRequest", status, func(n domain.Notification) bool {
		return n.RelatedRequest != nil && *n.RelatedRequest == requestID && n.Type == notifType
	})
}

func (r notificationRepo) ResolveByEventAndType(_ context.Context, eventID uuid.UUID, notifType domain.NotificationType, status domain.DecisionStatus) (int64, error) {
	return r.resolveMany("Notification.ResolveByEventAndType", status, func(n domain.Notification) bool {
		return n.EventID != nil && *n.EventID == eventID && n.Type == notifType
	})
}

func (r notificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.CountUnread"); err != nil {
		return 0, err
	}
	var count int64
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Notification.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.notifications[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.notifications, id)
	r.s.record("notifications.delete", domain.CollectionNotifications, domain.ChangeDelete, id)
	return nil
}

func (r notificationRepo) update(op string, id uuid.UUID, fn func(*domain.Notification)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return err
	}
	n, ok := r.s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&n)
	r.s.notifications[id] = n
	r.s.record("notifications.update", domain.CollectionNotifications, domain.ChangeUpdate, id)
	return nil
}

func (r notificationRepo) resolveMany(op string, status domain.DecisionStatus, match func(domain.Notification) bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return 0, err
	}
	var n int64
	for id, notif := range r.s.notifications {
		if match(notif) && notif.InviteStatus != status {
			notif.Read = true
			notif.InviteStatus = status
			r.s.notifications[id] = notif
			n++
		}
	}
	if n > 0 {
		r.s.record("notifications.resolve_many", domain.CollectionNotifications, domain.ChangeRefresh, uuid.Nil)
	}
	return n, nil
}

func (r notificationRepo) list(op string, keep func(domain.Notification) bool) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	var out []domain.Notification
	for _, n := range r.s.notifications {
		if keep(n) {
			out = append(out, r.s.expandNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
