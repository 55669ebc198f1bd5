package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"agenda-eventos/internal/domain"
)

type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListByCreator(ctx context.Context, userID uuid.UUID) ([]domain.Event, error)
	ListPendingTransport(ctx context.Context) ([]domain.Event, error)
	AddParticipant(ctx context.Context, eventID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error
	UpdateTransport(ctx context.Context, id uuid.UUID, status domain.TransportStatus, justification string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type eventRepository struct {
	db  *sqlx.DB
	pub ChangePublisher
}

func NewEventRepository(db *sqlx.DB, pub ChangePublisher) EventRepository {
	return &eventRepository{db: db, pub: pub}
}

func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	query := `SELECT * FROM events WHERE id = $1`

	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *eventRepository) ListByCreator(ctx context.Context, userID uuid.UUID) ([]domain.Event, error) {
	var events []domain.Event
	query := `SELECT * FROM events WHERE created_by = $1 ORDER BY start_at DESC`
	err := r.db.SelectContext(ctx, &events, query, userID)
	return events, err
}

func (r *eventRepository) ListPendingTransport(ctx context.Context) ([]domain.Event, error) {
	var events []domain.Event
	query := `SELECT * FROM events WHERE transport_status = $1 ORDER BY updated_at DESC`
	err := r.db.SelectContext(ctx, &events, query, domain.TransportPending)
	return events, err
}

func (r *eventRepository) AddParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	query := `
		UPDATE events
		SET participants = array_append(participants, $2::text), updated_at = NOW()
		WHERE id = $1 AND NOT ($2::text = ANY(participants))`

	res, err := r.db.ExecContext(ctx, query, eventID, userID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		publish(ctx, r.pub, domain.CollectionEvents, domain.ChangeUpdate, eventID)
	}
	return nil
}

func (r *eventRepository) RemoveParticipant(ctx context.Context, eventID, userID uuid.UUID) error {
	query := `
		UPDATE events
		SET participants = array_remove(participants, $2::text), updated_at = NOW()
		WHERE id = $1 AND $2::text = ANY(participants)`

	res, err := r.db.ExecContext(ctx, query, eventID, userID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		publish(ctx, r.pub, domain.CollectionEvents, domain.ChangeUpdate, eventID)
	}
	return nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error {
	query := `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id, status)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionEvents, domain.ChangeUpdate, id)
	return nil
}

func (r *eventRepository) UpdateTransport(ctx context.Context, id uuid.UUID, status domain.TransportStatus, justification string) error {
	query := `
		UPDATE events
		SET transport_status = $2, transport_justification = $3, updated_at = NOW()
		WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id, status, justification)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionEvents, domain.ChangeUpdate, id)
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM events WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionEvents, domain.ChangeDelete, id)
	return nil
}
