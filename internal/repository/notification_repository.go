package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"agenda-eventos/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notif *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	FindInvite(ctx context.Context, userID, eventID uuid.UUID) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error)
	// ListForRetention lists candidates for a bulk clear; a nil userID means every user.
	ListForRetention(ctx context.Context, userID *uuid.UUID, readOnly bool) ([]domain.Notification, error)
	ListIDsByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAsUnread(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	Resolve(ctx context.Context, id uuid.UUID, status domain.DecisionStatus) error
	// ResolveByRelatedRequest resolves every notification of notifType pointing at the request.
	ResolveByRelatedRequest(ctx context.Context, requestID uuid.UUID, notifType domain.NotificationType, status domain.DecisionStatus) (int64, error)
	ResolveByEventAndType(ctx context.Context, eventID uuid.UUID, notifType domain.NotificationType, status domain.DecisionStatus) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type notificationRepository struct {
	db  *sqlx.DB
	pub ChangePublisher
}

func NewNotificationRepository(db *sqlx.DB, pub ChangePublisher) NotificationRepository {
	return &notificationRepository{db: db, pub: pub}
}

func (r *notificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, read, event_id, related_request, invite_status, data, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		notif.ID, notif.UserID, notif.Type, notif.Title, notif.Message, notif.Read,
		notif.EventID, notif.RelatedRequest, notif.InviteStatus, notif.Data, notif.Acknowledged,
	).Scan(&notif.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return err
	}

	publish(ctx, r.pub, domain.CollectionNotifications, domain.ChangeCreate, notif.ID)
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var notif domain.Notification
	query := `SELECT * FROM notifications WHERE id = $1`
	if err := r.db.GetContext(ctx, &notif, query, id); err != nil {
		return nil, notFound(err)
	}

	rows := []domain.Notification{notif}
	if err := r.expand(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (r *notificationRepository) FindInvite(ctx context.Context, userID, eventID uuid.UUID) (*domain.Notification, error) {
	var notif domain.Notification
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1 AND event_id = $2 AND type = $3
		ORDER BY created_at ASC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &notif, query, userID, eventID, domain.NotifInvite); err != nil {
		return nil, notFound(err)
	}
	return &notif, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	var rows []domain.Notification
	query := `SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rows, r.expand(ctx, rows)
}

func (r *notificationRepository) ListForRetention(ctx context.Context, userID *uuid.UUID, readOnly bool) ([]domain.Notification, error) {
	var rows []domain.Notification
	query := `
		SELECT * FROM notifications
		WHERE ($1::uuid IS NULL OR user_id = $1) AND (NOT $2 OR read = true)
		ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID, readOnly); err != nil {
		return nil, err
	}
	return rows, r.expand(ctx, rows)
}

func (r *notificationRepository) ListIDsByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT id FROM notifications WHERE event_id = $1`
	err := r.db.SelectContext(ctx, &ids, query, eventID)
	return ids, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return r.setRead(ctx, id, true)
}

func (r *notificationRepository) MarkAsUnread(ctx context.Context, id uuid.UUID) error {
	return r.setRead(ctx, id, false)
}

func (r *notificationRepository) setRead(ctx context.Context, id uuid.UUID, read bool) error {
	query := `UPDATE notifications SET read = $2 WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id, read)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionNotifications, domain.ChangeUpdate, id)
	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionNotifications, domain.ChangeRefresh, userID)
	return nil
}

func (r *notificationRepository) Resolve(ctx context.Context, id uuid.UUID, status domain.DecisionStatus) error {
	query := `UPDATE notifications SET read = true, invite_status = $2 WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id, status)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionNotifications, domain.ChangeUpdate, id)
	return nil
}

func (r *notificationRepository) ResolveByRelatedRequest(ctx context.Context, requestID uuid.UUID, notifType domain.NotificationType, status domain.DecisionStatus) (int64, error) {
	query := `
		UPDATE notifications SET read = true, invite_status = $3
		WHERE related_request = $1 AND type = $2 AND invite_status IS DISTINCT FROM $3`
	return r.resolveMany(ctx, query, requestID, notifType, status)
}

func (r *notificationRepository) ResolveByEventAndType(ctx context.Context, eventID uuid.UUID, notifType domain.NotificationType, status domain.DecisionStatus) (int64, error) {
	query := `
		UPDATE notifications SET read = true, invite_status = $3
		WHERE event_id = $1 AND type = $2 AND invite_status IS DISTINCT FROM $3`
	return r.resolveMany(ctx, query, eventID, notifType, status)
}

func (r *notificationRepository) resolveMany(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		publish(ctx, r.pub, domain.CollectionNotifications, domain.ChangeRefresh, uuid.Nil)
	}
	return n, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}

func (r *notificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM notifications WHERE id = $1`
	if err := affected(r.db.ExecContext(ctx, query, id)); err != nil {
		return err
	}
	publish(ctx, r.pub, domain.CollectionNotifications, domain.ChangeDelete, id)
	return nil
}

func (r *notificationRepository) expand(ctx context.Context, rows []domain.Notification) error {
	eventIDs := make([]uuid.UUID, 0, len(rows))
	requestIDs := make([]uuid.UUID, 0, len(rows))
	for _, n := range rows {
		if n.EventID != nil {
			eventIDs = append(eventIDs, *n.EventID)
		}
		if n.RelatedRequest != nil {
			requestIDs = append(requestIDs, *n.RelatedRequest)
		}
	}

	requests := make(map[uuid.UUID]*domain.Request, len(requestIDs))
	if len(requestIDs) > 0 {
		var list []domain.Request
		query := `SELECT * FROM requests WHERE id = ANY($1::uuid[])`
		if err := r.db.SelectContext(ctx, &list, query, uuidStrings(requestIDs)); err != nil {
			return err
		}
		for i := range list {
			requests[list[i].ID] = &list[i]
			eventIDs = append(eventIDs, list[i].EventID)
		}
	}

	events, err := loadEvents(ctx, r.db, eventIDs)
	if err != nil {
		return err
	}
	for _, req := range requests {
		req.Event = events[req.EventID]
	}

	for i := range rows {
		if rows[i].EventID != nil {
			rows[i].Event = events[*rows[i].EventID]
		}
		if rows[i].RelatedRequest != nil {
			rows[i].Request = requests[*rows[i].RelatedRequest]
		}
	}
	return nil
}
