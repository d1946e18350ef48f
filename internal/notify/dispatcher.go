package notify

import (
	"context"
	"time"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
	"jobboard-workers/internal/models"
)

// Dispatcher enqueues notifications. Delivery happens elsewhere, so a publish
// only waits for the queue to accept the envelope.
type Dispatcher struct {
	queue   Queue
	driver  string
	timeout time.Duration
	logger  logger.Logger
}

func NewDispatcher(queue Queue, driver string, publishTimeout time.Duration, log logger.Logger) *Dispatcher {
	if publishTimeout <= 0 {
		publishTimeout = 2 * time.Second
	}
	return &Dispatcher{
		queue:   queue,
		driver:  driver,
		timeout: publishTimeout,
		logger:  logger.Component(log, "notify.dispatcher"),
	}
}

// NotifyStatusChanged enqueues the status notification for change.
func (d *Dispatcher) NotifyStatusChanged(ctx context.Context, change models.StatusChange) error {
	return d.Dispatch(ctx, NewStatusPayload(change), nil)
}

// Dispatch publishes payload for channels, or for the template's channels
// when channels is empty.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload, channels []string) error {
	if payload.Recipient == "" {
		metrics.NotificationsEnqueued.WithLabelValues(payload.TemplateKey, "skipped").Inc()
		d.logger.Warn("Notification has no recipient, skipping", map[string]interface{}{
			"templateKey": payload.TemplateKey,
			"entityId":    payload.EntityID,
		})
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	env := &Envelope{Payload: payload, Channels: channels}
	if err := d.queue.Publish(ctx, env); err != nil {
		metrics.NotificationsEnqueued.WithLabelValues(payload.TemplateKey, "failed").Inc()
		return errors.NewQueuePublishFailedError(d.driver, err)
	}

	metrics.NotificationsEnqueued.WithLabelValues(payload.TemplateKey, "queued").Inc()
	d.logger.Debug("Notification queued", map[string]interface{}{
		"payloadId":   payload.ID,
		"templateKey": payload.TemplateKey,
		"recipient":   payload.Recipient,
	})
	return nil
}
