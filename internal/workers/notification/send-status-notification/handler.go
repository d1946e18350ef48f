// internal/workers/notification/send-status-notification/handler.go
package sendstatusnotification

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
	"jobboard-workers/internal/common/observability"
	"jobboard-workers/internal/notify"
)

const (
	TaskType = "send-status-notification"
)

var (
	ErrInvalidEnvelope = stderrors.New("INVALID_ENVELOPE")
)

// Deliverer sends one envelope over its channels.
type Deliverer interface {
	Deliver(ctx context.Context, env *notify.Envelope) (*notify.DeliveryReport, error)
}

type Handler struct {
	config     *Config
	deliverer  Deliverer
	errHandler *errors.ErrorHandler
	obs        observability.Recorder
	logger     logger.Logger
}

func NewHandler(config *Config, deliverer Deliverer, obs observability.Recorder, log logger.Logger) *Handler {
	if obs == nil {
		obs = (*observability.Observability)(nil)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		deliverer:  deliverer,
		errHandler: errors.NewErrorHandler(log),
		obs:        obs,
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retries":     job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, start, errors.NewInvalidRequestError(err.Error()))
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, start, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func parseInput(variables string) (*Input, error) {
	env, err := notify.UnmarshalEnvelope([]byte(variables))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Payload.ID == "" || env.Payload.TemplateKey == "" {
		return nil, fmt.Errorf("%w: payload id and templateKey are required", ErrInvalidEnvelope)
	}
	return env, nil
}

// execute delivers the envelope. When some channels fail the error carries
// them as metadata so the retried job only repeats those.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	report, err := h.deliverer.Deliver(ctx, input)
	if err != nil {
		stdErr := errors.AsStandard(err)
		if report != nil && len(report.Failed) > 0 {
			if stdErr.Metadata == nil {
				stdErr.Metadata = map[string]interface{}{}
			}
			stdErr.Metadata["channels"] = report.Failed
			stdErr.Metadata["attempt"] = input.Attempt + 1
		}
		return nil, stdErr
	}

	return &Output{
		PayloadID:   report.PayloadID,
		TemplateKey: report.TemplateKey,
		Status:      StatusDelivered,
		Results:     report.Results,
		DeliveredAt: report.DeliveredAt.Format(time.RFC3339),
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := errors.AsStandard(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
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
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
