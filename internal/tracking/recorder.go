package tracking

import (
	"context"
	"database/sql"
	"fmt"

	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/models"
	"jobboard-workers/internal/status"
)

// Recorder appends to and reads the status history tables. It never updates
// or deletes a row.
type Recorder struct {
	db database.DBTX
}

func NewRecorder(db database.DBTX) *Recorder {
	return &Recorder{db: db}
}

// Record appends one history row using tx, so it commits or rolls back with
// the status update it belongs to.
func (r *Recorder) Record(ctx context.Context, tx database.DBTX, kind status.Kind, parentID string, s status.Status, note, actorID *string) (*models.StatusHistory, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	// An actor that is not a row in users (a service account, a user from
	// another realm) is stored as NULL instead of failing the foreign key.
	query := fmt.Sprintf(`
		INSERT INTO %s (parent_id, status, notes, changed_by)
		VALUES ($1, $2, $3, (SELECT id FROM users WHERE id = $4))
		RETURNING id, created_at, changed_by`, t.history)

	row := &models.StatusHistory{
		ParentID: parentID,
		Status:   string(s),
		Notes:    note,
	}
	var changedBy sql.NullString
	if err := tx.QueryRowContext(ctx, query, parentID, string(s), nullString(note), nullString(actorID)).
		Scan(&row.ID, &row.CreatedAt, &changedBy); err != nil {
		return nil, fmt.Errorf("insert %s: %w", t.history, err)
	}
	row.ChangedBy = stringPtr(changedBy)
	return row, nil
}

// List returns the history of parentID oldest first. id breaks ties between
// rows sharing a timestamp.
func (r *Recorder) List(ctx context.Context, kind status.Kind, parentID string) ([]models.StatusHistory, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, parent_id, status, notes, changed_by, created_at
		FROM %s
		WHERE parent_id = $1
		ORDER BY created_at ASC, id ASC`, t.history)

	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.history, err)
	}
	defer rows.Close()

	history := make([]models.StatusHistory, 0)
	for rows.Next() {
		var (
			h         models.StatusHistory
			notes     sql.NullString
			changedBy sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.ParentID, &h.Status, &notes, &changedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.history, err)
		}
		h.Notes = stringPtr(notes)
		h.ChangedBy = stringPtr(changedBy)
		history = append(history, h)
	}
	return history, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
