// Package tracking owns the status mutation of job applications and candidate
// pool memberships together with their append-only history.
package tracking

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
	"jobboard-workers/internal/common/observability"
	"jobboard-workers/internal/models"
	"jobboard-workers/internal/status"
)

// Notifier is told about every committed status change, exactly once.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, change models.StatusChange) error
}

type SetStatusInput struct {
	Kind     status.Kind
	EntityID string
	// ParentID, when set, must match the entity's job or job pool.
	ParentID       string
	Status         string
	Note           *string
	ActorID        *string
	ExpectedStatus *string
}

type Result struct {
	Entity         models.TrackedEntity `json:"entity"`
	History        models.StatusHistory `json:"history"`
	PreviousStatus string               `json:"previousStatus"`
}

type Service struct {
	db       *sql.DB
	recorder *Recorder
	notifier Notifier
	policy   status.Policy
	obs      observability.Recorder
	logger   logger.Logger
}

type Option func(*Service)

func WithObservability(obs observability.Recorder) Option {
	return func(s *Service) {
		if obs != nil {
			s.obs = obs
		}
	}
}

func WithPolicy(p status.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func NewService(db *sql.DB, notifier Notifier, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		recorder: NewRecorder(db),
		notifier: notifier,
		obs:      (*observability.Observability)(nil),
		logger:   logger.Component(log, "tracking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recorder exposes the history reader used by the API.
func (s *Service) Recorder() *Recorder {
	return s.recorder
}

func (s *Service) SetApplicationStatus(ctx context.Context, applicationID, newStatus string, note, actorID *string) (*Result, error) {
	return s.SetStatus(ctx, SetStatusInput{
		Kind:     status.KindApplication,
		EntityID: applicationID,
		Status:   newStatus,
		Note:     note,
		ActorID:  actorID,
	})
}

// SetPoolMemberStatus changes a candidate's status inside jobPoolID. A member
// of another pool is reported as not found.
func (s *Service) SetPoolMemberStatus(ctx context.Context, jobPoolID, memberID, newStatus string, note, actorID *string) (*Result, error) {
	return s.SetStatus(ctx, SetStatusInput{
		Kind:     status.KindJobPool,
		EntityID: memberID,
		ParentID: jobPoolID,
		Status:   newStatus,
		Note:     note,
		ActorID:  actorID,
	})
}

// SetStatus validates the new status, then updates the entity and appends the
// history row in one transaction. The notifier runs only after a successful
// commit and its failure never fails the mutation.
func (s *Service) SetStatus(ctx context.Context, in SetStatusInput) (*Result, error) {
	start := time.Now()

	t, err := tableFor(in.Kind)
	if err != nil {
		return nil, s.fail(ctx, in.Kind, start, errors.NewInvalidRequestError(err.Error()))
	}

	next, err := status.Parse(in.Kind, in.Status)
	if err != nil {
		return nil, s.fail(ctx, in.Kind, start, errors.NewInvalidStatusError(string(in.Kind), in.Status))
	}

	var (
		result *Result
		sc     models.StatusContext
	)
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		entity, ctxRow, err := s.lock(ctx, tx, t, in)
		if err != nil {
			return err
		}
		sc = ctxRow
		previous := entity.Status

		if in.ExpectedStatus != nil && *in.ExpectedStatus != previous {
			return errors.NewStatusConflictError(*in.ExpectedStatus, previous)
		}
		if err := s.policy.Check(in.Kind, status.Status(previous), next); err != nil {
			return errors.NewTransitionNotAllowedError(previous, string(next))
		}

		update := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = now() WHERE id = $2 RETURNING updated_at`, t.entity)
		if err := tx.QueryRowContext(ctx, update, string(next), entity.ID).Scan(&entity.UpdatedAt); err != nil {
			return errors.NewQueryExecutionFailedError("update_status", err)
		}

		row, err := s.recorder.Record(ctx, tx, in.Kind, entity.ID, next, in.Note, in.ActorID)
		if err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}

		entity.Status = string(next)
		decorate(&entity)
		result = &Result{Entity: entity, History: *row, PreviousStatus: previous}
		return nil
	})
	if err != nil {
		var stdErr *errors.StandardError
		if !stderrors.As(err, &stdErr) {
			stdErr = errors.NewTransactionFailedError("set_status", err)
		}
		return nil, s.fail(ctx, in.Kind, start, stdErr)
	}

	metrics.StatusChanges.WithLabelValues(string(in.Kind), result.Entity.Status).Inc()
	s.obs.RecordStatusMutation(ctx, string(in.Kind), time.Since(start), "committed")

	s.logger.Info("Status changed", map[string]interface{}{
		"kind":           in.Kind,
		"entityId":       result.Entity.ID,
		"previousStatus": result.PreviousStatus,
		"currentStatus":  result.Entity.Status,
		"historyId":      result.History.ID,
	})

	s.notify(ctx, in, result, sc)
	return result, nil
}

func (s *Service) lock(ctx context.Context, tx *sql.Tx, t table, in SetStatusInput) (models.TrackedEntity, models.StatusContext, error) {
	query := t.lockSQL
	args := []interface{}{in.EntityID}
	if in.ParentID != "" {
		query += fmt.Sprintf(" AND t.%s = $2", t.parentCol)
		args = append(args, in.ParentID)
	}
	query += " FOR UPDATE OF t"

	var (
		e  models.TrackedEntity
		sc models.StatusContext
	)
	err := tx.QueryRowContext(ctx, query, args...).Scan(
		&e.ID, &e.ParentID, &e.CandidateProfileID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		&sc.ParentName, &sc.CompanyName, &sc.RecipientUserID,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return e, sc, errors.NewEntityNotFoundError(string(t.kind), in.EntityID)
	}
	if err != nil {
		return e, sc, errors.NewQueryExecutionFailedError("lock_entity", err)
	}
	e.Kind = string(t.kind)
	return e, sc, nil
}

func (s *Service) notify(ctx context.Context, in SetStatusInput, result *Result, sc models.StatusContext) {
	if s.notifier == nil {
		return
	}
	change := models.StatusChange{
		Kind:            string(in.Kind),
		EntityID:        result.Entity.ID,
		ParentID:        result.Entity.ParentID,
		ParentName:      sc.ParentName,
		CompanyName:     sc.CompanyName,
		RecipientUserID: sc.RecipientUserID,
		PreviousStatus:  result.PreviousStatus,
		CurrentStatus:   result.Entity.Status,
		Note:            in.Note,
		ActorID:         in.ActorID,
		HistoryID:       result.History.ID,
		ChangedAt:       result.History.CreatedAt,
	}
	// The change is committed; a cancelled request must not drop its notification.
	if err := s.notifier.NotifyStatusChanged(context.WithoutCancel(ctx), change); err != nil {
		s.logger.Error("Status notification dispatch failed", map[string]interface{}{
			"kind":     in.Kind,
			"entityId": result.Entity.ID,
			"error":    err,
		})
	}
}

func (s *Service) fail(ctx context.Context, kind status.Kind, start time.Time, err *errors.StandardError) error {
	metrics.StatusChangeFailures.WithLabelValues(string(kind), string(err.Code)).Inc()
	s.obs.RecordStatusMutation(ctx, string(kind), time.Since(start), string(err.Code))
	return err
}

func decorate(e *models.TrackedEntity) {
	e.StatusLabel = status.Label(status.Status(e.Status))
	e.StatusColor = status.Color(status.Status(e.Status))
}
