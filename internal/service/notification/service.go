package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/metrics"
	"agenda-eventos/internal/pkg/i18n"
	"agenda-eventos/internal/repository"
	"agenda-eventos/internal/service/email"
)

type Service interface {
	// Create persists a notification. Invites are deduplicated per (user, event):
	// creating one again returns the existing row.
	Create(ctx context.Context, input domain.CreateNotificationInput) (*domain.Notification, error)
	Aggregate(ctx context.Context, user *domain.User) (*domain.Feed, error)
	Resolve(ctx context.Context, user *domain.User, key string) (*domain.FeedEntry, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	notifRepo repository.NotificationRepository
	reqRepo   repository.RequestRepository
	eventRepo repository.EventRepository
	userRepo  repository.UserRepository
	emailSvc  email.Service
	catalog   *i18n.Catalog
	locale    string
	logger    *slog.Logger
}

func NewService(
	repos *repository.Repositories,
	emailSvc email.Service,
	catalog *i18n.Catalog,
	locale string,
	logger *slog.Logger,
) Service {
	return &service{
		notifRepo: repos.Notification,
		reqRepo:   repos.Request,
		eventRepo: repos.Event,
		userRepo:  repos.User,
		emailSvc:  emailSvc,
		catalog:   catalog,
		locale:    locale,
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, input domain.CreateNotificationInput) (*domain.Notification, error) {
	if input.UserID == uuid.Nil || !input.Type.IsValid() {
		return nil, domain.ErrInvalidInput
	}

	if input.Type == domain.NotifInvite {
		if input.EventID == nil {
			return nil, domain.ErrInvalidInput
		}
		existing, err := s.notifRepo.FindInvite(ctx, input.UserID, *input.EventID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up invite: %w", err)
		}
	}

	notif := &domain.Notification{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Type:           input.Type,
		Title:          input.Title,
		Message:        input.Message,
		EventID:        input.EventID,
		RelatedRequest: input.RelatedRequest,
		Data:           input.Data,
	}
	if input.Type == domain.NotifInvite || input.Type.IsRequestKind() {
		notif.InviteStatus = domain.DecisionPending
	}

	if err := s.notifRepo.Create(ctx, notif); err != nil {
		// A concurrent create won the unique index; hand back its row.
		if errors.Is(err, domain.ErrDuplicate) && input.Type == domain.NotifInvite {
			return s.notifRepo.FindInvite(ctx, input.UserID, *input.EventID)
		}
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.sendCopy(notif)
	return notif, nil
}

func (s *service) sendCopy(notif *domain.Notification) {
	if s.emailSvc == nil {
		return
	}
	go func() {
		ctx := context.Background()
		user, err := s.userRepo.GetByID(ctx, notif.UserID)
		if err != nil || user.Email == "" {
			return
		}
		_ = s.emailSvc.SendNotificationCopy(ctx, user.Email, user.FullName, notif.Title, notif.Message)
	}()
}

func (s *service) Aggregate(ctx context.Context, user *domain.User) (*domain.Feed, error) {
	var (
		persisted []domain.Notification
		items     []domain.Request
		transport []domain.Event
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.notifRepo.ListByUser(gctx, user.ID)
		if err != nil {
			s.sourceFailed(gctx, "persisted", err)
			return nil
		}
		persisted = rows
		return nil
	})

	if sectors, ok := user.ReviewedSectors(); ok {
		g.Go(func() error {
			rows, err := s.reqRepo.ListPending(gctx, domain.RequestItem, sectors)
			if err != nil {
				s.sourceFailed(gctx, "item_requests", err)
				return nil
			}
			items = rows
			return nil
		})
	}

	if user.ReviewsTransport() {
		g.Go(func() error {
			rows, err := s.eventRepo.ListPendingTransport(gctx)
			if err != nil {
				s.sourceFailed(gctx, "transport_requests", err)
				return nil
			}
			transport = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.merge(persisted, items, transport), nil
}

func (s *service) sourceFailed(ctx context.Context, source string, err error) {
	s.logger.WarnContext(ctx, "notification source unavailable",
		slog.String("source", source), slog.Any("error", err))
	metrics.SourceFailures.WithLabelValues("notifications", source).Inc()
}

// merge builds the feed. The badge counts every pending request before
// deduplication so a persisted duplicate never lowers it.
func (s *service) merge(persisted []domain.Notification, items []domain.Request, transport []domain.Event) *domain.Feed {
	seenRequests := make(map[uuid.UUID]bool)
	seenTransport := make(map[uuid.UUID]bool)
	unread := 0

	entries := make([]domain.FeedEntry, 0, len(persisted)+len(items)+len(transport))
	for i := range persisted {
		n := &persisted[i]
		if !n.Read {
			unread++
		}
		if n.RelatedRequest != nil {
			seenRequests[*n.RelatedRequest] = true
		}
		if n.Type == domain.NotifTransportRequest && n.EventID != nil {
			seenTransport[*n.EventID] = true
		}
		entries = append(entries, domain.PersistedEntry(n))
	}

	for i := range items {
		if seenRequests[items[i].ID] {
			continue
		}
		entries = append(entries, domain.VirtualEntry(s.itemVirtual(&items[i])))
	}

	for i := range transport {
		if seenTransport[transport[i].ID] {
			continue
		}
		entries = append(entries, domain.VirtualEntry(s.transportVirtual(&transport[i])))
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].CreatedAt().After(entries[b].CreatedAt())
	})

	return &domain.Feed{
		Entries: entries,
		Badge:   unread + len(items) + len(transport),
	}
}

func (s *service) itemVirtual(req *domain.Request) *domain.VirtualNotification {
	requester := s.catalog.T(s.locale, "someone")
	if req.Requester != nil && req.Requester.FullName != "" {
		requester = req.Requester.FullName
	}
	eventTitle := s.catalog.T(s.locale, "unknown_event")
	if req.Event != nil {
		eventTitle = req.Event.Title
	}

	id := req.ID
	return &domain.VirtualNotification{
		Kind:         domain.NotifItemRequest,
		RequestID:    &id,
		EventID:      req.EventID,
		Title:        s.catalog.T(s.locale, "item_request_title"),
		Message:      s.catalog.T(s.locale, "item_request_message", requester, req.Quantity, req.ItemName, eventTitle),
		InviteStatus: domain.DecisionPending,
		CreatedAt:    req.CreatedAt,
		Request:      req,
		Event:        req.Event,
	}
}

func (s *service) transportVirtual(event *domain.Event) *domain.VirtualNotification {
	return &domain.VirtualNotification{
		Kind:         domain.NotifTransportRequest,
		EventID:      event.ID,
		Title:        s.catalog.T(s.locale, "transport_request_title"),
		Message:      s.catalog.T(s.locale, "transport_request_message", event.Title),
		InviteStatus: domain.DecisionPending,
		CreatedAt:    event.UpdatedAt,
		Event:        event,
	}
}

func (s *service) Resolve(ctx context.Context, user *domain.User, key string) (*domain.FeedEntry, error) {
	parsed, err := domain.ParseEntryKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	switch {
	case parsed.Source == domain.SourcePersisted:
		notif, err := s.notifRepo.GetByID(ctx, parsed.ID)
		if err != nil {
			return nil, err
		}
		if notif.UserID != user.ID {
			return nil, domain.ErrForbidden
		}
		entry := domain.PersistedEntry(notif)
		return &entry, nil

	case parsed.Kind == domain.NotifTransportRequest:
		if !user.ReviewsTransport() {
			return nil, domain.ErrForbidden
		}
		event, err := s.eventRepo.GetByID(ctx, parsed.ID)
		if err != nil {
			return nil, err
		}
		if event.TransportStatus != domain.TransportPending {
			return nil, domain.ErrNotActionable
		}
		entry := domain.VirtualEntry(s.transportVirtual(event))
		return &entry, nil

	default:
		req, err := s.reqRepo.GetByID(ctx, parsed.ID)
		if err != nil {
			return nil, err
		}
		if req.Kind != domain.RequestItem {
			return nil, domain.ErrNotFound
		}
		if !reviews(user, req.Sector) {
			return nil, domain.ErrForbidden
		}
		if req.Status != domain.RequestPending {
			return nil, domain.ErrNotActionable
		}
		entry := domain.VirtualEntry(s.itemVirtual(req))
		return &entry, nil
	}
}

func reviews(user *domain.User, sector string) bool {
	sectors, ok := user.ReviewedSectors()
	if !ok {
		return false
	}
	if sectors == nil {
		return true
	}
	for _, s := range sectors {
		if s == sector {
			return true
		}
	}
	return false
}

func (s *service) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	notif, err := s.notifRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notif.UserID != userID {
		return domain.ErrForbidden
	}
	if notif.Read {
		return nil
	}
	return s.notifRepo.MarkAsRead(ctx, id)
}

func (s *service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.notifRepo.MarkAllAsRead(ctx, userID)
}
