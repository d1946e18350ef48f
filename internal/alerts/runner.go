package alerts

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
	"jobboard-workers/internal/models"
	"jobboard-workers/internal/notify"
	"jobboard-workers/pkg/registry"
)

// AlertStore is the persistence the runner needs.
type AlertStore interface {
	Due(ctx context.Context, now time.Time) ([]models.JobAlert, error)
	MarkSent(ctx context.Context, alertID string, at time.Time) error
}

// Dispatcher enqueues a notification payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload notify.Payload, channels []string) error
}

type RunnerConfig struct {
	MaxMatches  int
	Concurrency int
}

// RunResult summarises one pass over the due alerts.
type RunResult struct {
	Processed int `json:"processed"`
	Notified  int `json:"notified"`
	Empty     int `json:"empty"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// errNoRecipient marks an alert whose owner is unknown. Nothing is searched
// or sent and the alert is not marked sent.
var errNoRecipient = stderrors.New("job alert has no recipient")

type Runner struct {
	store      AlertStore
	searcher   JobSearcher
	dispatcher Dispatcher
	cfg        RunnerConfig
	logger     logger.Logger
	now        func() time.Time
}

func NewRunner(store AlertStore, searcher JobSearcher, dispatcher Dispatcher, cfg RunnerConfig, log logger.Logger) *Runner {
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{
		store:      store,
		searcher:   searcher,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.Component(log, "alerts.runner"),
		now:        time.Now,
	}
}

// RunDue sends every alert that is due. A failing alert is logged and left
// unsent so the next pass picks it up again; only loading the due set can
// fail the run.
func (r *Runner) RunDue(ctx context.Context) (*RunResult, error) {
	now := r.now()
	due, err := r.store.Due(ctx, now)
	if err != nil {
		return nil, err
	}

	var notified, empty, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, alert := range due {
		g.Go(func() error {
			sent, err := r.runOne(gctx, alert, now)
			switch {
			case stderrors.Is(err, errNoRecipient):
				skipped.Add(1)
				metrics.JobAlertsSent.WithLabelValues(alert.Frequency, "skipped").Inc()
				r.logger.Warn("Job alert skipped", map[string]interface{}{
					"alertId": alert.ID,
					"reason":  err.Error(),
				})
			case err != nil:
				failed.Add(1)
				metrics.JobAlertsSent.WithLabelValues(alert.Frequency, "failed").Inc()
				r.logger.Error("Job alert failed", map[string]interface{}{
					"alertId": alert.ID,
					"userId":  alert.UserID,
					"error":   err.Error(),
				})
			case sent:
				notified.Add(1)
				metrics.JobAlertsSent.WithLabelValues(alert.Frequency, "sent").Inc()
			default:
				empty.Add(1)
				metrics.JobAlertsSent.WithLabelValues(alert.Frequency, "empty").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &RunResult{
		Processed: len(due),
		Notified:  int(notified.Load()),
		Empty:     int(empty.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
	r.logger.Info("Job alert run complete", map[string]interface{}{
		"processed": result.Processed,
		"notified":  result.Notified,
		"empty":     result.Empty,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
	return result, nil
}

// runOne searches for new matches and dispatches them. The alert is marked
// sent even when nothing matched, so the window moves forward.
func (r *Runner) runOne(ctx context.Context, alert models.JobAlert, now time.Time) (bool, error) {
	if strings.TrimSpace(alert.UserID) == "" {
		return false, errNoRecipient
	}

	matches, total, err := r.searcher.Search(ctx, alert, alert.LastSentAt, r.cfg.MaxMatches)
	if err != nil {
		return false, err
	}

	sent := false
	if len(matches) > 0 {
		if err := r.dispatcher.Dispatch(ctx, alertPayload(alert, matches, total, now), nil); err != nil {
			return false, err
		}
		sent = true
	}

	if err := r.store.MarkSent(ctx, alert.ID, now); err != nil {
		return sent, err
	}
	return sent, nil
}

func alertPayload(alert models.JobAlert, matches []models.JobMatch, total int64, now time.Time) notify.Payload {
	if total < int64(len(matches)) {
		total = int64(len(matches))
	}

	lines := make([]string, 0, len(matches))
	jobIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		line := fmt.Sprintf("- %s at %s", m.Title, m.CompanyName)
		if m.Location != "" {
			line += " (" + m.Location + ")"
		}
		lines = append(lines, line)
		jobIDs = append(jobIDs, m.ID)
	}

	keywords := alert.Keywords
	if keywords == "" {
		keywords = "your saved search"
	}

	return notify.Payload{
		ID:          uuid.NewString(),
		Recipient:   alert.UserID,
		TemplateKey: registry.KeyJobAlert,
		EntityID:    alert.ID,
		EntityKind:  "job_alert",
		Data: map[string]interface{}{
			"alertId":    alert.ID,
			"keywords":   keywords,
			"location":   alert.Location,
			"frequency":  alert.Frequency,
			"matchCount": total,
			"matchList":  strings.Join(lines, "\n"),
			"jobIds":     jobIDs,
		},
		CreatedAt: now,
	}
}
