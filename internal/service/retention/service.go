package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/metrics"
	"agenda-eventos/internal/repository"
)

const (
	ReasonVirtual       = "virtual notifications have no stored record"
	ReasonUpcomingEvent = "linked to an event that has not happened yet"
)

// Verdict tells whether an entry may be deleted and, if not, why.
type Verdict struct {
	Deletable bool   `json:"deletable"`
	Reason    string `json:"reason,omitempty"`
}

// Check is the client-side rule: request-kind entries linked to an event
// that has not started yet are kept.
func Check(entry *domain.FeedEntry, now time.Time) Verdict {
	if entry.IsVirtual() {
		return Verdict{Reason: ReasonVirtual}
	}
	if !entry.Kind().IsRequestKind() {
		return Verdict{Deletable: true}
	}
	if e := entry.LinkedEvent(); e != nil && now.Before(e.StartAt) {
		return Verdict{Reason: ReasonUpcomingEvent}
	}
	return Verdict{Deletable: true}
}

// Protected is the server-side rule. It uses the event's end, falling back
// to its start, as the boundary.
func Protected(n *domain.Notification, now time.Time) bool {
	if !n.Type.IsRequestKind() {
		return false
	}
	e := n.LinkedEvent()
	return e != nil && now.Before(e.Boundary())
}

type ClearResult struct {
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

type Service interface {
	// ClearSafe deletes the actor's notifications, or everyone's when all is
	// set, skipping protected ones. all requires an admin.
	ClearSafe(ctx context.Context, actor *domain.User, all, readOnly bool) (ClearResult, error)
	// Delete removes one notification owned by userID unless it is protected.
	Delete(ctx context.Context, userID uuid.UUID, id uuid.UUID) error
}

type service struct {
	notifRepo repository.NotificationRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(notifRepo repository.NotificationRepository, logger *slog.Logger) Service {
	return &service{notifRepo: notifRepo, logger: logger, now: time.Now}
}

func (s *service) ClearSafe(ctx context.Context, actor *domain.User, all, readOnly bool) (ClearResult, error) {
	if all && !actor.IsAdmin() {
		return ClearResult{}, domain.ErrForbidden
	}

	var scope *uuid.UUID
	if !all {
		scope = &actor.ID
	}

	rows, err := s.notifRepo.ListForRetention(ctx, scope, readOnly)
	if err != nil {
		return ClearResult{}, fmt.Errorf("failed to list notifications: %w", err)
	}

	now := s.now()
	var result ClearResult
	for i := range rows {
		if Protected(&rows[i], now) {
			result.Skipped++
			continue
		}
		err := s.notifRepo.Delete(ctx, rows[i].ID)
		switch {
		case err == nil, errors.Is(err, domain.ErrNotFound):
			result.Deleted++
		default:
			s.logger.WarnContext(ctx, "failed to delete notification",
				slog.String("id", rows[i].ID.String()), slog.Any("error", err))
			result.Skipped++
		}
	}

	metrics.Cleared.WithLabelValues("deleted").Add(float64(result.Deleted))
	metrics.Cleared.WithLabelValues("skipped").Add(float64(result.Skipped))
	s.logger.InfoContext(ctx, "notifications cleared",
		slog.String("actor", actor.ID.String()),
		slog.Bool("all", all),
		slog.Bool("read_only", readOnly),
		slog.Int("deleted", result.Deleted),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, id uuid.UUID) error {
	n, err := s.notifRepo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return domain.ErrForbidden
	}
	if Protected(n, s.now()) {
		return domain.ErrNotDeletable
	}

	if err := s.notifRepo.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}
