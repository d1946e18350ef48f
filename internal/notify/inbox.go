package notify

import (
	"context"
	"database/sql"

	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/models"
)

// Inbox reads the persisted notification records of a user.
type Inbox struct {
	db database.DBTX
}

func NewInbox(db database.DBTX) *Inbox {
	return &Inbox{db: db}
}

// List returns the newest notifications of userID first.
func (i *Inbox) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, user_id, type, title, message, data, read_at, created_at
		FROM notifications
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id LIMIT $2`

	rows, err := i.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_notifications", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n      models.Notification
			data   []byte
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &readAt, &n.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan_notifications", err)
		}
		if len(data) > 0 {
			n.Data = append(n.Data[:0], data...)
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_notifications", err)
	}
	return out, nil
}

// MarkRead sets read_at once. Marking an already read notification is a
// no-op; a notification of another user is not found.
func (i *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	res, err := i.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark_notification_read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark_notification_read", err)
	}
	if n == 0 {
		return errors.NewEntityNotFoundError("notification", id)
	}
	return nil
}
