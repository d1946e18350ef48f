package alerts

import (
	"context"
	"database/sql"
	"time"

	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/models"
)

type Store struct {
	db database.DBTX
}

func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Due loads the active alerts whose interval has elapsed at now. The SQL only
// narrows the candidates; IsDue has the final word.
func (s *Store) Due(ctx context.Context, now time.Time) ([]models.JobAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, keywords, location, frequency, is_active, last_sent_at, created_at
		FROM job_alerts
		WHERE is_active
		  AND (last_sent_at IS NULL OR last_sent_at <= $1::timestamptz - CASE frequency
		        WHEN 'daily' THEN INTERVAL '1 day'
		        WHEN 'weekly' THEN INTERVAL '7 days'
		        WHEN 'biweekly' THEN INTERVAL '14 days'
		        ELSE INTERVAL '30 days'
		      END)
		ORDER BY last_sent_at NULLS FIRST, id`, now)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("due_alerts", err)
	}
	defer rows.Close()

	var due []models.JobAlert
	for rows.Next() {
		var (
			a        models.JobAlert
			lastSent sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Keywords, &a.Location, &a.Frequency, &a.IsActive, &lastSent, &a.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan_alerts", err)
		}
		if lastSent.Valid {
			t := lastSent.Time
			a.LastSentAt = &t
		}
		if IsDue(a, now) {
			due = append(due, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("due_alerts", err)
	}
	return due, nil
}

func (s *Store) MarkSent(ctx context.Context, alertID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE job_alerts SET last_sent_at = $1 WHERE id = $2`, at, alertID); err != nil {
		return errors.NewQueryExecutionFailedError("mark_alert_sent", err)
	}
	return nil
}
