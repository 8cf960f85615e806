package db

import (
	"context"
	"time"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

func (q *queries) EnqueueNotification(ctx context.Context, n models.Notification) error {
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = n.CreatedAt
	}
	_, err := q.db.Exec(ctx, `INSERT INTO notifications
		(id, kind, pqr_id, recipient, subject, body, status, attempts, created_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.Kind, n.PQRID, n.Recipient, n.Subject, n.Body, n.Status, n.Attempts, n.CreatedAt, n.NextAttemptAt)
	return err
}

// ClaimNotifications leases due rows in one statement; concurrent workers
// skip rows another transaction is already claiming.
func (q *queries) ClaimNotifications(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]models.Notification, error) {
	rows, err := q.db.Query(ctx, `UPDATE notifications SET status = $1, next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status IN ($3, $4, $1) AND next_attempt_at <= $5
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED)
		RETURNING id, kind, pqr_id, recipient, subject, body, status, attempts, last_error, created_at, next_attempt_at, sent_at`,
		models.NotificationSending, now.Add(lease), models.NotificationPending, models.NotificationFailed, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Kind, &n.PQRID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Attempts,
			&n.LastError, &n.CreatedAt, &n.NextAttemptAt, &n.SentAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *queries) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE notifications SET status = $2, attempts = attempts + 1, last_error = '', sent_at = $3
		WHERE id = $1`, id, models.NotificationSent, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotificationMissing
	}
	return nil
}

func (q *queries) MarkNotificationFailed(ctx context.Context, id, lastError string, dead bool, retryAt time.Time) error {
	status := models.NotificationFailed
	if dead {
		status = models.NotificationDead
	}
	tag, err := q.db.Exec(ctx, `UPDATE notifications SET status = $2, attempts = attempts + 1, last_error = $3, next_attempt_at = $4
		WHERE id = $1`, id, status, lastError, retryAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotificationMissing
	}
	return nil
}
