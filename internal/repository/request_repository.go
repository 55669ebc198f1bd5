package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agenda-eventos/internal/domain"
)

type RequestRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error)
	ListByRequester(ctx context.Context, userID uuid.UUID, kind domain.RequestKind) ([]domain.Request, error)
	// ListPending returns pending requests of a kind; nil sectors means every sector.
	ListPending(ctx context.Context, kind domain.RequestKind, sectors []string) ([]domain.Request, error)
	ListPendingByEventAndRequester(ctx context.Context, eventID, requesterID uuid.UUID, kind domain.RequestKind) ([]domain.Request, error)
	ListApprovedSectors(ctx context.Context, eventID uuid.UUID) ([]string, error)
	// UpdateStatus sets the status; a nil justification leaves the stored one untouched.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RequestStatus, justification *string) error
}

type requestRepository struct {
	db  *sqlx.DB
	pub ChangePublisher
}

func NewRequestRepository(db *sqlx.DB, pub ChangePublisher) RequestRepository {
	return &requestRepository{db: db, pub: pub}
}

func (r *requestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	var req domain.Request
	query := `SELECT * FROM requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, notFound(err)
	}

	rows := []domain.Request{req}
	if err := r.expand(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (r *requestRepository) ListByRequester(ctx context.Context, userID uuid.UUID, kind domain.RequestKind) ([]domain.Request, error) {
	var rows []domain.Request
	query := `SELECT * FROM requests WHERE requested_by = $1 AND kind = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID, kind); err != nil {
		return nil, err
	}
	return rows, r.expand(ctx, rows)
}

func (r *requestRepository) ListPending(ctx context.Context, kind domain.RequestKind, sectors []string) ([]domain.Request, error) {
	var rows []domain.Request

	if sectors != nil {
		query := `
			SELECT * FROM requests
			WHERE status = $1 AND kind = $2 AND sector = ANY($3)
			ORDER BY created_at DESC`
		if err := r.db.SelectContext(ctx, &rows, query, domain.RequestPending, kind, pq.Array(sectors)); err != nil {
			return nil, err
		}
		return rows, r.expand(ctx, rows)
	}

	query := `SELECT * FROM requests WHERE status = $1 AND kind = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, domain.RequestPending, kind); err != nil {
		return nil, err
	}
	return rows, r.expand(ctx, rows)
}

func (r *requestRepository) ListPendingByEventAndRequester(ctx context.Context, eventID, requesterID uuid.UUID, kind domain.RequestKind) ([]domain.Request, error) {
	var rows []domain.Request
	query := `
		SELECT * FROM requests
		WHERE event_id = $1 AND requested_by = $2 AND kind = $3 AND status = $4`
	err := r.db.SelectContext(ctx, &rows, query, eventID, requesterID, kind, domain.RequestPending)
	return rows, err
}

func (r *requestRepository) ListApprovedSectors(ctx context.Context, eventID uuid.UUID) ([]string, error) {
	var sectors []string
	query := `
		SELECT DISTINCT sector FROM requests
		WHERE event_id = $1 AND kind = $2 AND status = $3 AND sector <> ''`
	err := r.db.SelectContext(ctx, &sectors, query, eventID, domain.RequestItem, domain.RequestApproved)
	return sectors, err
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RequestStatus, justification *string) error {
	query := `
		UPDATE requests
		SET status = $2, justification = COALESCE($3, justification), updated_at = NOW()
		WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id, status, justification)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionRequests, domain.ChangeUpdate, id)
	return nil
}

func (r *requestRepository) expand(ctx context.Context, rows []domain.Request) error {
	eventIDs := make([]uuid.UUID, 0, len(rows))
	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, req := range rows {
		eventIDs = append(eventIDs, req.EventID)
		userIDs = append(userIDs, req.RequestedBy)
	}

	events, err := loadEvents(ctx, r.db, eventIDs)
	if err != nil {
		return err
	}

	users := make(map[uuid.UUID]*domain.User, len(userIDs))
	if len(userIDs) > 0 {
		var list []domain.User
		query := `SELECT * FROM users WHERE id = ANY($1::uuid[])`
		if err := r.db.SelectContext(ctx, &list, query, uuidStrings(userIDs)); err != nil {
			return err
		}
		for i := range list {
			users[list[i].ID] = &list[i]
		}
	}

	for i := range rows {
		rows[i].Event = events[rows[i].EventID]
		rows[i].Requester = users[rows[i].RequestedBy]
	}
	return nil
}
