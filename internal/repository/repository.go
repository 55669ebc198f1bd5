package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agenda-eventos/internal/domain"
)

// ChangePublisher receives a change event after every successful write so
// subscribers of the collection can re-read.
type ChangePublisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

type Repositories struct {
	User          UserRepository
	Event         EventRepository
	Participation ParticipationRepository
	Request       RequestRepository
	Notification  NotificationRepository
}

func NewRepositories(db *sqlx.DB, pub ChangePublisher) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Event:         NewEventRepository(db, pub),
		Participation: NewParticipationRepository(db, pub),
		Request:       NewRequestRepository(db, pub),
		Notification:  NewNotificationRepository(db, pub),
	}
}

func publish(ctx context.Context, pub ChangePublisher, coll domain.Collection, action domain.ChangeAction, id uuid.UUID) {
	if pub == nil {
		return
	}
	_ = pub.Publish(ctx, domain.ChangeEvent{
		Collection: coll,
		Action:     action,
		RecordID:   id,
		At:         time.Now(),
	})
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// loadEvents expands event relations for a set of ids in one query.
func loadEvents(ctx context.Context, db *sqlx.DB, ids []uuid.UUID) (map[uuid.UUID]*domain.Event, error) {
	out := make(map[uuid.UUID]*domain.Event, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var events []domain.Event
	query := `SELECT * FROM events WHERE id = ANY($1::uuid[])`
	if err := db.SelectContext(ctx, &events, query, uuidStrings(ids)); err != nil {
		return nil, err
	}

	for i := range events {
		out[events[i].ID] = &events[i]
	}
	return out, nil
}
