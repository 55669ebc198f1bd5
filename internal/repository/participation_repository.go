package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"agenda-eventos/internal/domain"
)

type ParticipationRepository interface {
	GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.Participation, error)
	Create(ctx context.Context, p *domain.Participation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ParticipationStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Participation, error)
	ListByEventCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Participation, error)
}

type participationRepository struct {
	db  *sqlx.DB
	pub ChangePublisher
}

func NewParticipationRepository(db *sqlx.DB, pub ChangePublisher) ParticipationRepository {
	return &participationRepository{db: db, pub: pub}
}

func (r *participationRepository) GetByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*domain.Participation, error) {
	var p domain.Participation
	query := `SELECT * FROM participations WHERE event_id = $1 AND user_id = $2`

	if err := r.db.GetContext(ctx, &p, query, eventID, userID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *participationRepository) Create(ctx context.Context, p *domain.Participation) error {
	query := `
		INSERT INTO participations (id, event_id, user_id, status, role, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.EventID, p.UserID, p.Status, p.Role, p.InvitedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return err
	}

	publish(ctx, r.pub, domain.CollectionParticipations, domain.ChangeCreate, p.ID)
	return nil
}

func (r *participationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ParticipationStatus) error {
	query := `UPDATE participations SET status = $2, updated_at = NOW() WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id, status)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionParticipations, domain.ChangeUpdate, id)
	return nil
}

func (r *participationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Participation, error) {
	var rows []domain.Participation
	query := `SELECT * FROM participations WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rows, r.expand(ctx, rows)
}

func (r *participationRepository) ListByEventCreator(ctx context.Context, creatorID uuid.UUID) ([]domain.Participation, error) {
	var rows []domain.Participation
	query := `
		SELECT p.* FROM participations p
		JOIN events e ON e.id = p.event_id
		WHERE e.created_by = $1 AND p.user_id <> $1
		ORDER BY p.created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, creatorID); err != nil {
		return nil, err
	}
	return rows, r.expand(ctx, rows)
}

func (r *participationRepository) expand(ctx context.Context, rows []domain.Participation) error {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.EventID)
	}

	events, err := loadEvents(ctx, r.db, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i].Event = events[rows[i].EventID]
	}
	return nil
}
