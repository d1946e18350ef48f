// internal/workers/alerts/dispatch-due-alerts/handler.go
package dispatchduealerts

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"jobboard-workers/internal/alerts"
	"jobboard-workers/internal/common/config"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
)

const (
	TaskType = "dispatch-due-alerts"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Config{Timeout: timeout}
}

// Runner sends the alerts that are due.
type Runner interface {
	RunDue(ctx context.Context) (*alerts.RunResult, error)
}

type Output struct {
	Processed int    `json:"processed"`
	Notified  int    `json:"notified"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	RanAt     string `json:"ranAt"`
}

// Handler runs one pass of the alert runner from a BPMN timer, as an
// alternative to the in-process scheduler.
type Handler struct {
	config     *Config
	runner     Runner
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, runner Runner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		runner:     runner,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx)
	if err != nil {
		stdErr := errors.AsStandard(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context) (*Output, error) {
	res, err := h.runner.RunDue(ctx)
	if err != nil {
		return nil, err
	}
	return &Output{
		Processed: res.Processed,
		Notified:  res.Notified,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		RanAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	return h.execute(ctx)
}
