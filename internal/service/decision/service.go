package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/metrics"
	"agenda-eventos/internal/pkg/i18n"
	"agenda-eventos/internal/repository"
	"agenda-eventos/internal/service/notification"
)

// Refresher asks every live view to re-aggregate.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Outcome struct {
	Entry    domain.FeedEntry      `json:"entry"`
	Status   domain.DecisionStatus `json:"status"`
	Siblings int64                 `json:"siblings_resolved"`
	Notified *domain.Notification  `json:"notified,omitempty"`
}

type Service interface {
	// Decide applies action to the entry's underlying records, notifies the
	// counterpart and resolves the entry and its siblings. A failed mutation
	// returns before anything is resolved, leaving the entry actionable.
	Decide(ctx context.Context, actor *domain.User, entry *domain.FeedEntry, action domain.DecisionAction, justification *string) (*Outcome, error)
}

type service struct {
	eventRepo         repository.EventRepository
	participationRepo repository.ParticipationRepository
	requestRepo       repository.RequestRepository
	notifRepo         repository.NotificationRepository
	userRepo          repository.UserRepository
	notifSvc          notification.Service
	refresher         Refresher
	delay             time.Duration
	catalog           *i18n.Catalog
	locale            string
	logger            *slog.Logger
}

func NewService(
	repos *repository.Repositories,
	notifSvc notification.Service,
	refresher Refresher,
	delay time.Duration,
	catalog *i18n.Catalog,
	locale string,
	logger *slog.Logger,
) Service {
	return &service{
		eventRepo:         repos.Event,
		participationRepo: repos.Participation,
		requestRepo:       repos.Request,
		notifRepo:         repos.Notification,
		userRepo:          repos.User,
		notifSvc:          notifSvc,
		refresher:         refresher,
		delay:             delay,
		catalog:           catalog,
		locale:            locale,
		logger:            logger,
	}
}

func (s *service) Decide(ctx context.Context, actor *domain.User, entry *domain.FeedEntry, action domain.DecisionAction, justification *string) (*Outcome, error) {
	if !action.IsValid() {
		return nil, domain.ErrInvalidAction
	}
	kind := entry.Kind()
	if kind != domain.NotifInvite && !kind.IsRequestKind() {
		return nil, domain.ErrNotActionable
	}
	// Invites may be answered again; a decided request stays decided.
	if kind.IsRequestKind() && entry.Status() != domain.DecisionPending {
		return nil, domain.ErrNotActionable
	}

	var (
		counterpart *domain.CreateNotificationInput
		err         error
	)
	switch kind {
	case domain.NotifInvite:
		counterpart, err = s.decideInvite(ctx, entry, action)
	case domain.NotifParticipationRequest:
		counterpart, err = s.decideParticipation(ctx, entry, action)
	case domain.NotifItemRequest:
		counterpart, err = s.decideItem(ctx, entry, action, justification)
	case domain.NotifTransportRequest:
		counterpart, err = s.decideTransport(ctx, entry, action, justification)
	default:
		counterpart = s.serviceResult(entry, action)
	}
	if err != nil {
		metrics.Decisions.WithLabelValues(string(kind), string(action), "error").Inc()
		return nil, err
	}

	outcome := &Outcome{Status: action.Status()}
	if counterpart != nil {
		counterpart.Message += s.suffix("justification_suffix", justification)
		notif, err := s.notifSvc.Create(ctx, *counterpart)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to notify counterpart",
				slog.String("kind", string(kind)), slog.Any("error", err))
		} else {
			outcome.Notified = notif
		}
	}

	if !entry.IsVirtual() {
		if err := s.notifRepo.Resolve(ctx, entry.Notification.ID, outcome.Status); err != nil {
			s.logger.WarnContext(ctx, "failed to resolve notification",
				slog.String("id", entry.Key), slog.Any("error", err))
		}
	}
	entry.SetStatus(outcome.Status)

	outcome.Siblings = s.syncSiblings(ctx, entry, outcome.Status)
	outcome.Entry = *entry

	s.scheduleRefresh()

	metrics.Decisions.WithLabelValues(string(kind), string(action), "ok").Inc()
	s.logger.InfoContext(ctx, "decision applied",
		slog.String("actor", actor.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("key", entry.Key),
		slog.String("status", string(outcome.Status)),
		slog.Int64("siblings", outcome.Siblings))
	return outcome, nil
}

func (s *service) decideInvite(ctx context.Context, entry *domain.FeedEntry, action domain.DecisionAction) (*domain.CreateNotificationInput, error) {
	if entry.IsVirtual() || entry.Notification.EventID == nil {
		return nil, domain.ErrNotActionable
	}
	invitee := entry.Notification.UserID
	eventID := *entry.Notification.EventID

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	status := domain.ParticipationRejected
	if action.Approves() {
		status = domain.ParticipationAccepted
	}

	existing, err := s.participationRepo.GetByEventAndUser(ctx, eventID, invitee)
	switch {
	case err == nil:
		if existing.Status != status {
			if err := s.participationRepo.UpdateStatus(ctx, existing.ID, status); err != nil {
				return nil, fmt.Errorf("failed to update participation: %w", err)
			}
		}
	case errors.Is(err, domain.ErrNotFound):
		if status == domain.ParticipationAccepted {
			if err := s.createParticipation(ctx, event, invitee); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}

	if err := s.syncParticipant(ctx, eventID, invitee, status == domain.ParticipationAccepted); err != nil {
		return nil, err
	}

	if event.CreatedBy == invitee {
		return nil, nil
	}

	name := s.catalog.T(s.locale, "someone")
	if u, err := s.userRepo.GetByID(ctx, invitee); err == nil && u.FullName != "" {
		name = u.FullName
	}

	input := &domain.CreateNotificationInput{
		UserID:  event.CreatedBy,
		EventID: &event.ID,
		Data: domain.NotificationData{
			RequesterID: invitee.String(),
			EventID:     event.ID.String(),
			EventTitle:  event.Title,
			Decision:    string(status),
		}.Raw(),
	}
	if status == domain.ParticipationAccepted {
		input.Type = domain.NotifDecisionResult
		input.Title = s.catalog.T(s.locale, "invite_accepted_title")
		input.Message = s.catalog.T(s.locale, "invite_accepted_message", name, event.Title)
	} else {
		input.Type = domain.NotifRefusal
		input.Title = s.catalog.T(s.locale, "invite_rejected_title")
		input.Message = s.catalog.T(s.locale, "invite_rejected_message", name, event.Title)
	}
	return input, nil
}

// createParticipation inserts an accepted row. Losing a race against the
// unique (event, user) index falls back to updating the winner.
func (s *service) createParticipation(ctx context.Context, event *domain.Event, userID uuid.UUID) error {
	creator := event.CreatedBy
	p := &domain.Participation{
		ID:        uuid.New(),
		EventID:   event.ID,
		UserID:    userID,
		Status:    domain.ParticipationAccepted,
		Role:      domain.RoleParticipant,
		InvitedBy: &creator,
	}
	err := s.participationRepo.Create(ctx, p)
	if errors.Is(err, domain.ErrDuplicate) {
		existing, err := s.participationRepo.GetByEventAndUser(ctx, event.ID, userID)
		if err != nil {
			return fmt.Errorf("failed to get participation: %w", err)
		}
		return s.participationRepo.UpdateStatus(ctx, existing.ID, domain.ParticipationAccepted)
	}
	if err != nil {
		return fmt.Errorf("failed to create participation: %w", err)
	}
	return nil
}

// syncParticipant keeps the event's participant list in line with the
// decision, so a later rejection takes the user off it again.
func (s *service) syncParticipant(ctx context.Context, eventID, userID uuid.UUID, joined bool) error {
	if joined {
		if err := s.eventRepo.AddParticipant(ctx, eventID, userID); err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
		return nil
	}
	if err := s.eventRepo.RemoveParticipant(ctx, eventID, userID); err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

func (s *service) decideParticipation(ctx context.Context, entry *domain.FeedEntry, action domain.DecisionAction) (*domain.CreateNotificationInput, error) {
	eventID := entry.EventID()
	requester := s.requesterOf(entry)
	if eventID == nil || requester == uuid.Nil {
		return nil, domain.ErrNotActionable
	}

	status := domain.RequestRejected
	if action.Approves() {
		status = domain.RequestApproved
	}

	pending, err := s.requestRepo.ListPendingByEventAndRequester(ctx, *eventID, requester, domain.RequestParticipation)
	if err != nil {
		return nil, fmt.Errorf("failed to list participation requests: %w", err)
	}
	for _, req := range pending {
		if err := s.requestRepo.UpdateStatus(ctx, req.ID, status, nil); err != nil {
			return nil, fmt.Errorf("failed to update request: %w", err)
		}
	}

	if err := s.syncParticipant(ctx, *eventID, requester, status == domain.RequestApproved); err != nil {
		return nil, err
	}

	eventTitle := s.eventTitle(entry)
	return &domain.CreateNotificationInput{
		UserID:  requester,
		Type:    domain.NotifDecisionResult,
		Title:   s.catalog.T(s.locale, "participation_"+string(status)+"_title"),
		Message: s.catalog.T(s.locale, "participation_message", eventTitle, s.word(status == domain.RequestApproved, false)),
		EventID: eventID,
		Data: domain.NotificationData{
			EventID:    eventID.String(),
			EventTitle: eventTitle,
			Decision:   string(status),
		}.Raw(),
	}, nil
}

func (s *service) decideItem(ctx context.Context, entry *domain.FeedEntry, action domain.DecisionAction, justification *string) (*domain.CreateNotificationInput, error) {
	requestID := entry.RelatedRequest()
	if requestID == nil {
		return nil, domain.ErrNotActionable
	}

	status := domain.RequestRejected
	if action.Approves() {
		status = domain.RequestApproved
	}
	just := ""
	if justification != nil {
		just = *justification
	}
	if err := s.requestRepo.UpdateStatus(ctx, *requestID, status, &just); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	requester := s.requesterOf(entry)
	if requester == uuid.Nil {
		return nil, nil
	}

	payload := payloadOf(entry)
	itemName := payload.ItemName
	if req := entry.LinkedRequest(); req != nil && req.ItemName != "" {
		itemName = req.ItemName
	}
	if itemName == "" {
		itemName = s.catalog.T(s.locale, "unknown_item")
	}
	eventTitle := s.eventTitle(entry)

	return &domain.CreateNotificationInput{
		UserID:         requester,
		Type:           domain.NotifDecisionResult,
		Title:          s.catalog.T(s.locale, "item_"+string(status)+"_title"),
		Message:        s.catalog.T(s.locale, "item_message", itemName, eventTitle, s.word(status == domain.RequestApproved, false)),
		EventID:        entry.EventID(),
		RelatedRequest: requestID,
		Data: domain.NotificationData{
			EventTitle: eventTitle,
			ItemName:   itemName,
			Decision:   string(status),
		}.Raw(),
	}, nil
}

func (s *service) decideTransport(ctx context.Context, entry *domain.FeedEntry, action domain.DecisionAction, justification *string) (*domain.CreateNotificationInput, error) {
	eventID := entry.EventID()
	if eventID == nil {
		return nil, domain.ErrNotActionable
	}

	status := domain.TransportRejected
	if action.Approves() {
		status = domain.TransportConfirmed
	}
	just := ""
	if justification != nil {
		just = *justification
	}
	if err := s.eventRepo.UpdateTransport(ctx, *eventID, status, just); err != nil {
		return nil, fmt.Errorf("failed to update transport: %w", err)
	}

	event := entry.LinkedEvent()
	if event == nil {
		loaded, err := s.eventRepo.GetByID(ctx, *eventID)
		if err != nil {
			s.logger.WarnContext(ctx, "transport decided on missing event", slog.String("event", eventID.String()))
			return nil, nil
		}
		event = loaded
	}

	return &domain.CreateNotificationInput{
		UserID:  event.CreatedBy,
		Type:    domain.NotifDecisionResult,
		Title:   s.catalog.T(s.locale, "transport_"+string(status)+"_title"),
		Message: s.catalog.T(s.locale, "transport_message", event.Title, s.word(status == domain.TransportConfirmed, true)),
		EventID: &event.ID,
		Data: domain.NotificationData{
			EventID:    event.ID.String(),
			EventTitle: event.Title,
			Decision:   string(status),
		}.Raw(),
	}, nil
}

// serviceResult only informs the requester; there is nothing to mutate.
func (s *service) serviceResult(entry *domain.FeedEntry, action domain.DecisionAction) *domain.CreateNotificationInput {
	requester := s.requesterOf(entry)
	if requester == uuid.Nil {
		return nil
	}

	subject := payloadOf(entry).ItemName
	if subject == "" {
		subject = s.eventTitle(entry)
	}
	key := "service_rejected_title"
	if action.Approves() {
		key = "service_approved_title"
	}

	return &domain.CreateNotificationInput{
		UserID:         requester,
		Type:           domain.NotifDecisionResult,
		Title:          s.catalog.T(s.locale, key),
		Message:        s.catalog.T(s.locale, "service_message", subject, s.word(action.Approves(), false)),
		EventID:        entry.EventID(),
		RelatedRequest: entry.RelatedRequest(),
		Data:           domain.NotificationData{Decision: string(action.Status())}.Raw(),
	}
}

func (s *service) syncSiblings(ctx context.Context, entry *domain.FeedEntry, status domain.DecisionStatus) int64 {
	var (
		n   int64
		err error
	)
	switch {
	case entry.RelatedRequest() != nil:
		n, err = s.notifRepo.ResolveByRelatedRequest(ctx, *entry.RelatedRequest(), entry.Kind(), status)
	case entry.Kind() == domain.NotifTransportRequest && entry.EventID() != nil:
		n, err = s.notifRepo.ResolveByEventAndType(ctx, *entry.EventID(), domain.NotifTransportRequest, status)
	default:
		return 0
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to sync sibling notifications",
			slog.String("key", entry.Key), slog.Any("error", err))
	}
	return n
}

// scheduleRefresh gives server-side effects time to settle before live
// views re-read.
func (s *service) scheduleRefresh() {
	if s.refresher == nil {
		return
	}
	time.AfterFunc(s.delay, func() {
		if err := s.refresher.Refresh(context.Background()); err != nil {
			s.logger.Warn("refresh after decision failed", slog.Any("error", err))
		}
	})
}

func (s *service) requesterOf(entry *domain.FeedEntry) uuid.UUID {
	if req := entry.LinkedRequest(); req != nil {
		return req.RequestedBy
	}
	if id, err := uuid.Parse(payloadOf(entry).RequesterID); err == nil {
		return id
	}
	return uuid.Nil
}

func (s *service) eventTitle(entry *domain.FeedEntry) string {
	if e := entry.LinkedEvent(); e != nil && e.Title != "" {
		return e.Title
	}
	if title := payloadOf(entry).EventTitle; title != "" {
		return title
	}
	return s.catalog.T(s.locale, "unknown_event")
}

func (s *service) word(approved, transport bool) string {
	switch {
	case approved && transport:
		return s.catalog.T(s.locale, "decision_confirmed")
	case transport:
		return s.catalog.T(s.locale, "decision_refused")
	case approved:
		return s.catalog.T(s.locale, "decision_approved")
	default:
		return s.catalog.T(s.locale, "decision_rejected")
	}
}

func (s *service) suffix(key string, value *string) string {
	if value == nil || *value == "" {
		return ""
	}
	return s.catalog.T(s.locale, key, *value)
}

func payloadOf(entry *domain.FeedEntry) domain.NotificationData {
	if entry.IsVirtual() {
		return domain.NotificationData{}
	}
	return entry.Notification.Payload()
}
