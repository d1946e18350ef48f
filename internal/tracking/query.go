package tracking

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/models"
	"jobboard-workers/internal/status"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Filter composes the list scopes. Zero fields do not constrain the result.
type Filter struct {
	Status   *status.Status
	From     *time.Time
	To       *time.Time
	ParentID string
	Limit    int
	Offset   int
}

// Scope is one SQL predicate with its arguments. Placeholders are written as
// "?" and numbered when the query is assembled.
type Scope struct {
	clause string
	args   []interface{}
}

func WithStatus(s status.Status) Scope {
	return Scope{clause: "status = ?", args: []interface{}{string(s)}}
}

// CreatedBetween bounds created_at inclusively. A nil bound is open.
func CreatedBetween(from, to *time.Time) []Scope {
	var out []Scope
	if from != nil {
		out = append(out, Scope{clause: "created_at >= ?", args: []interface{}{*from}})
	}
	if to != nil {
		out = append(out, Scope{clause: "created_at <= ?", args: []interface{}{*to}})
	}
	return out
}

func ForParent(column, id string) Scope {
	return Scope{clause: column + " = ?", args: []interface{}{id}}
}

func (f Filter) scopes(t table) []Scope {
	var out []Scope
	if f.ParentID != "" {
		out = append(out, ForParent(t.parentCol, f.ParentID))
	}
	if f.Status != nil {
		out = append(out, WithStatus(*f.Status))
	}
	return append(out, CreatedBetween(f.From, f.To)...)
}

func (f Filter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// buildWhere renders scopes as a WHERE clause with $n placeholders starting
// at 1 and returns the next free placeholder index.
func buildWhere(scopes []Scope) (string, []interface{}, int) {
	if len(scopes) == 0 {
		return "", nil, 1
	}
	var (
		parts []string
		args  []interface{}
		n     = 1
	)
	for _, sc := range scopes {
		clause := sc.clause
		for range sc.args {
			clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", n), 1)
			n++
		}
		parts = append(parts, clause)
		args = append(args, sc.args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, n
}

// List returns the entities of kind matching f, newest first.
func (s *Service) List(ctx context.Context, kind status.Kind, f Filter) ([]models.TrackedEntity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	if f.Status != nil && !status.IsValid(kind, *f.Status) {
		return nil, errors.NewInvalidStatusError(string(kind), string(*f.Status))
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, errors.NewInvalidRequestError("from must not be after to")
	}

	where, args, n := buildWhere(f.scopes(t))
	limit, offset := f.page()
	query := fmt.Sprintf(`
		SELECT id, %s, candidate_profile_id, status, created_at, updated_at
		FROM %s%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, t.parentCol, t.entity, where, n, n+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_"+t.entity, err)
	}
	defer rows.Close()

	out := make([]models.TrackedEntity, 0)
	for rows.Next() {
		e := models.TrackedEntity{Kind: string(kind)}
		if err := rows.Scan(&e.ID, &e.ParentID, &e.CandidateProfileID, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan_"+t.entity, err)
		}
		decorate(&e)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_"+t.entity, err)
	}
	return out, nil
}

// Get loads one entity. parentID, when non-empty, must match.
func (s *Service) Get(ctx context.Context, kind status.Kind, id, parentID string) (*models.TrackedEntity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}

	query := fmt.Sprintf(`
		SELECT id, %s, candidate_profile_id, status, created_at, updated_at
		FROM %s
		WHERE id = $1`, t.parentCol, t.entity)
	args := []interface{}{id}
	if parentID != "" {
		query += fmt.Sprintf(" AND %s = $2", t.parentCol)
		args = append(args, parentID)
	}

	e := models.TrackedEntity{Kind: string(kind)}
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&e.ID, &e.ParentID, &e.CandidateProfileID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewEntityNotFoundError(string(kind), id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get_"+t.entity, err)
	}
	decorate(&e)
	return &e, nil
}

// History returns the audit trail of one entity, oldest first.
func (s *Service) History(ctx context.Context, kind status.Kind, id, parentID string) ([]models.StatusHistory, error) {
	if _, err := s.Get(ctx, kind, id, parentID); err != nil {
		return nil, err
	}
	rows, err := s.recorder.List(ctx, kind, id)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_history", err)
	}
	return rows, nil
}
