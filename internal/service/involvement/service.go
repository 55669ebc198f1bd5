package involvement

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/metrics"
	"agenda-eventos/internal/repository"
)

const topResources = 10

type Service interface {
	Aggregate(ctx context.Context, userID uuid.UUID) (*domain.Involvement, error)
}

type service struct {
	eventRepo         repository.EventRepository
	participationRepo repository.ParticipationRepository
	requestRepo       repository.RequestRepository
	logger            *slog.Logger
}

func NewService(repos *repository.Repositories, logger *slog.Logger) Service {
	return &service{
		eventRepo:         repos.Event,
		participationRepo: repos.Participation,
		requestRepo:       repos.Request,
		logger:            logger,
	}
}

func (s *service) Aggregate(ctx context.Context, userID uuid.UUID) (*domain.Involvement, error) {
	var (
		created      []domain.Event
		participated []domain.Participation
		requested    []domain.Request
		sent         []domain.Participation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		created = fetch(gctx, s, "created", func(ctx context.Context) ([]domain.Event, error) {
			return s.eventRepo.ListByCreator(ctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		participated = fetch(gctx, s, "participations", func(ctx context.Context) ([]domain.Participation, error) {
			return s.participationRepo.ListByUser(ctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		requested = fetch(gctx, s, "requests", func(ctx context.Context) ([]domain.Request, error) {
			return s.requestRepo.ListByRequester(ctx, userID, domain.RequestParticipation)
		})
		return nil
	})
	g.Go(func() error {
		sent = fetch(gctx, s, "invites_sent", func(ctx context.Context) ([]domain.Participation, error) {
			return s.participationRepo.ListByEventCreator(ctx, userID)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := buildEntries(userID, created, participated, requested)
	return &domain.Involvement{
		Entries:   entries,
		Stats:     buildStats(entries, sent),
		Analytics: buildAnalytics(entries),
	}, nil
}

// fetch runs one source and degrades it to an empty set on failure.
func fetch[T any](ctx context.Context, s *service, source string, fn func(context.Context) ([]T, error)) []T {
	rows, err := fn(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "involvement source unavailable",
			slog.String("source", source), slog.Any("error", err))
		metrics.SourceFailures.WithLabelValues("involvement", source).Inc()
		return nil
	}
	return rows
}

func buildEntries(userID uuid.UUID, created []domain.Event, participated []domain.Participation, requested []domain.Request) []domain.InvolvementEntry {
	entries := make([]domain.InvolvementEntry, 0, len(created)+len(participated)+len(requested))

	for i := range created {
		e := &created[i]
		entries = append(entries, domain.InvolvementEntry{
			Variant: domain.VariantCreated,
			Event:   e,
			Role:    domain.RoleOrganizer,
			Status:  string(e.Status),
		})
	}

	for _, p := range participated {
		if p.Event == nil || p.Event.CreatedBy == userID {
			continue
		}
		id := p.ID.String()
		role := p.Role
		if role == "" {
			role = domain.RoleParticipant
		}
		entries = append(entries, domain.InvolvementEntry{
			Variant:         domain.VariantParticipation,
			Event:           p.Event,
			Role:            role,
			Status:          string(p.Status),
			ParticipationID: &id,
		})
	}

	for _, r := range requested {
		if r.Event == nil || r.Event.CreatedBy == userID {
			continue
		}
		id := r.ID.String()
		entries = append(entries, domain.InvolvementEntry{
			Variant:   domain.VariantRequest,
			Event:     r.Event,
			Role:      domain.RoleParticipant,
			Status:    string(r.Status),
			RequestID: &id,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartAt().After(entries[j].StartAt())
	})
	return entries
}

func buildStats(entries []domain.InvolvementEntry, sent []domain.Participation) domain.InvolvementStats {
	var stats domain.InvolvementStats

	for i := range entries {
		e := &entries[i]
		if e.Confirmed() {
			stats.Confirmed++
			switch e.Role {
			case domain.RoleOrganizer:
				stats.ByRole.Organizer++
			case domain.RoleCoorganizer:
				stats.ByRole.Coorganizer++
			default:
				stats.ByRole.Participant++
			}
		}

		switch e.Variant {
		case domain.VariantParticipation:
			count(&stats.ReceivedInvite, e.Status)
		case domain.VariantRequest:
			count(&stats.SentRequest, e.Status)
		}
	}

	for _, p := range sent {
		count(&stats.InviteSent, string(p.Status))
	}
	return stats
}

func count(pr *domain.PendingRejected, status string) {
	switch status {
	case string(domain.ParticipationPending):
		pr.Pending++
	case string(domain.ParticipationRejected):
		pr.Rejected++
	}
}

func buildAnalytics(entries []domain.InvolvementEntry) domain.InvolvementAnalytics {
	categories := make(map[string]int)
	months := make(map[string]int)
	resources := make(map[string]int)

	for i := range entries {
		e := entries[i].Event
		if e == nil {
			continue
		}
		if e.Category != "" {
			categories[e.Category]++
		}
		if !e.StartAt.IsZero() {
			months[e.StartAt.Format("2006-01")]++
		}
		for _, token := range strings.Split(e.Resources, ",") {
			if token = strings.TrimSpace(token); token != "" {
				resources[token]++
			}
		}
	}

	byMonth := toCounts(months)
	sort.Slice(byMonth, func(i, j int) bool { return byMonth[i].Key < byMonth[j].Key })

	top := ranked(resources)
	if len(top) > topResources {
		top = top[:topResources]
	}

	return domain.InvolvementAnalytics{
		ByCategory:  ranked(categories),
		ByMonth:     byMonth,
		TopResource: top,
	}
}

// ranked orders counts by frequency, ties by key.
func ranked(m map[string]int) []domain.Count {
	out := toCounts(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func toCounts(m map[string]int) []domain.Count {
	out := make([]domain.Count, 0, len(m))
	for k, v := range m {
		out = append(out, domain.Count{Key: k, Count: v})
	}
	return out
}
