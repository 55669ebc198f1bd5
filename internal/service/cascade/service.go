package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/metrics"
	"agenda-eventos/internal/pkg/i18n"
	"agenda-eventos/internal/repository"
	"agenda-eventos/internal/service/notification"
)

type Action string

const (
	ActionCancelled Action = "cancelled"
	ActionDeleted   Action = "deleted"
)

// Snapshot is what gets archived before an event row is removed.
type Snapshot struct {
	Event      domain.Event `json:"event"`
	Actor      uuid.UUID    `json:"actor"`
	Reason     string       `json:"reason,omitempty"`
	Recipients []uuid.UUID  `json:"recipients"`
	DeletedAt  time.Time    `json:"deleted_at"`
}

type Archiver interface {
	ArchiveEvent(ctx context.Context, snap Snapshot) error
}

type Result struct {
	Notified int `json:"notified"`
	Removed  int `json:"removed"`
	Failed   int `json:"failed"`
}

type Service interface {
	// Cancel marks the event canceled and tells every stakeholder.
	Cancel(ctx context.Context, actor *domain.User, eventID uuid.UUID, reason string) (*Result, error)
	// Delete tells every stakeholder, removes the event-linked notifications
	// and only then deletes the event row.
	Delete(ctx context.Context, actor *domain.User, eventID uuid.UUID, reason string) (*Result, error)
}

type service struct {
	eventRepo   repository.EventRepository
	requestRepo repository.RequestRepository
	notifRepo   repository.NotificationRepository
	userRepo    repository.UserRepository
	notifSvc    notification.Service
	archiver    Archiver
	batchSize   int
	catalog     *i18n.Catalog
	locale      string
	logger      *slog.Logger
}

func NewService(
	repos *repository.Repositories,
	notifSvc notification.Service,
	archiver Archiver,
	batchSize int,
	catalog *i18n.Catalog,
	locale string,
	logger *slog.Logger,
) Service {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &service{
		eventRepo:   repos.Event,
		requestRepo: repos.Request,
		notifRepo:   repos.Notification,
		userRepo:    repos.User,
		notifSvc:    notifSvc,
		archiver:    archiver,
		batchSize:   batchSize,
		catalog:     catalog,
		locale:      locale,
		logger:      logger,
	}
}

func (s *service) Cancel(ctx context.Context, actor *domain.User, eventID uuid.UUID, reason string) (*Result, error) {
	event, err := s.authorize(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.eventRepo.UpdateStatus(ctx, eventID, domain.EventCanceled); err != nil {
		return nil, fmt.Errorf("failed to cancel event: %w", err)
	}

	recipients, err := s.recipients(ctx, actor, event)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	result.Notified, result.Failed = s.notify(ctx, event, recipients, ActionCancelled, reason)
	return result, nil
}

func (s *service) Delete(ctx context.Context, actor *domain.User, eventID uuid.UUID, reason string) (*Result, error) {
	event, err := s.authorize(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	recipients, err := s.recipients(ctx, actor, event)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	result.Notified, result.Failed = s.notify(ctx, event, recipients, ActionDeleted, reason)

	if s.archiver != nil {
		snap := Snapshot{Event: *event, Actor: actor.ID, Reason: reason, Recipients: recipients, DeletedAt: time.Now()}
		if err := s.archiver.ArchiveEvent(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "failed to archive event", slog.String("event", eventID.String()), slog.Any("error", err))
		}
	}

	removed, failed := s.purge(ctx, eventID)
	result.Removed = removed
	result.Failed += failed

	if err := s.eventRepo.Delete(ctx, eventID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return result, fmt.Errorf("failed to delete event: %w", err)
	}

	s.logger.InfoContext(ctx, "event deleted",
		slog.String("event", eventID.String()),
		slog.String("actor", actor.ID.String()),
		slog.Int("notified", result.Notified),
		slog.Int("removed", result.Removed),
		slog.Int("failed", result.Failed))
	return result, nil
}

func (s *service) authorize(ctx context.Context, actor *domain.User, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

// recipients lists participants, the creator unless acting, reviewers of
// every sector with an approved request and transport reviewers when
// transport was confirmed. Order is stable and free of duplicates.
func (s *service) recipients(ctx context.Context, actor *domain.User, event *domain.Event) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range event.Participants {
		add(id)
	}
	if event.CreatedBy != actor.ID {
		add(event.CreatedBy)
	}

	sectors, err := s.requestRepo.ListApprovedSectors(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved sectors: %w", err)
	}
	roles := make([]domain.UserRole, 0, len(sectors)+1)
	for _, sector := range sectors {
		roles = append(roles, domain.ReviewerRoleFor(sector))
	}
	if event.TransportStatus == domain.TransportConfirmed {
		roles = append(roles, domain.RoleTransport)
	}

	reviewers, err := s.userRepo.GetByRoles(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	for _, u := range reviewers {
		add(u.ID)
	}
	return out, nil
}

func (s *service) notify(ctx context.Context, event *domain.Event, recipients []uuid.UUID, action Action, reason string) (sent, failed int) {
	title := s.catalog.T(s.locale, "event_"+string(action)+"_title")
	message := s.catalog.T(s.locale, "event_"+string(action)+"_message", event.Title)
	if reason != "" {
		message += s.catalog.T(s.locale, "reason_suffix", reason)
	}
	data := domain.NotificationData{
		EventID:    event.ID.String(),
		EventTitle: event.Title,
		Action:     string(action),
		Reason:     reason,
	}.Raw()

	// A deleted event's row is about to go, and the foreign key would take
	// linked notifications with it.
	var link *uuid.UUID
	if action == ActionCancelled {
		link = &event.ID
	}

	for _, userID := range recipients {
		_, err := s.notifSvc.Create(ctx, domain.CreateNotificationInput{
			UserID:  userID,
			Type:    domain.NotifCancellation,
			Title:   title,
			Message: message,
			EventID: link,
			Data:    data,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to notify stakeholder",
				slog.String("user", userID.String()), slog.Any("error", err))
			failed++
			continue
		}
		sent++
	}
	metrics.CascadeNotifications.WithLabelValues("sent").Add(float64(sent))
	return sent, failed
}

// purge deletes event-linked notifications in bounded batches. Individual
// failures are logged and counted, never fatal.
func (s *service) purge(ctx context.Context, eventID uuid.UUID) (removed, failed int) {
	ids, err := s.notifRepo.ListIDsByEvent(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list event notifications", slog.String("event", eventID.String()), slog.Any("error", err))
		return 0, 0
	}

	var mu sync.Mutex
	for start := 0; start < len(ids); start += s.batchSize {
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.batchSize)
		for _, id := range ids[start:end] {
			id := id
			g.Go(func() error {
				err := s.notifRepo.Delete(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					s.logger.WarnContext(gctx, "failed to delete event notification",
						slog.String("id", id.String()), slog.Any("error", err))
					failed++
					return nil
				}
				removed++
				return nil
			})
		}
		_ = g.Wait()
	}

	metrics.CascadeNotifications.WithLabelValues("deleted").Add(float64(removed))
	return removed, failed
}
