package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
)

// Processor delivers one envelope. *Deliverer satisfies it.
type Processor interface {
	Deliver(ctx context.Context, env *Envelope) (*DeliveryReport, error)
}

type ConsumerConfig struct {
	Workers         int
	PopTimeout      time.Duration
	MaxAttempts     int
	DeliveryTimeout time.Duration
	// ErrorBackoff is the pause after the queue itself fails.
	ErrorBackoff time.Duration
}

// Consumer runs a fixed number of goroutines that pop envelopes and deliver
// them. Failed channels are requeued until MaxAttempts, then dead-lettered.
type Consumer struct {
	source    Source
	processor Processor
	cfg       ConsumerConfig
	logger    logger.Logger
}

func NewConsumer(source Source, processor Processor, cfg ConsumerConfig, log logger.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Consumer{
		source:    source,
		processor: processor,
		cfg:       cfg,
		logger:    logger.Component(log, "notify.consumer"),
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has finished its current envelope.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Notification consumer started", map[string]interface{}{
		"workers":     c.cfg.Workers,
		"maxAttempts": c.cfg.MaxAttempts,
	})

	var wg sync.WaitGroup
	for i := range c.cfg.Workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	c.logger.Info("Notification consumer stopped", nil)
}

func (c *Consumer) loop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		env, err := c.source.Pop(ctx, c.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Queue pop failed", map[string]interface{}{
				"worker": id,
				"error":  err,
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.ErrorBackoff):
			}
			continue
		}
		if env == nil {
			continue
		}

		c.handle(ctx, id, env)
	}
}

// handle delivers env outside the lifetime of ctx so a shutdown does not cut
// a delivery in half.
func (c *Consumer) handle(ctx context.Context, id int, env *Envelope) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.DeliveryTimeout)
	defer cancel()

	report, err := c.processor.Deliver(dctx, env)
	if err == nil {
		c.logger.Debug("Notification delivered", map[string]interface{}{
			"worker":    id,
			"payloadId": env.Payload.ID,
			"attempt":   env.Attempt,
		})
		return
	}

	env.Attempt++
	if report != nil && len(report.Failed) > 0 {
		env.Channels = report.Failed
	}

	var stdErr *errors.StandardError
	permanent := stderrors.As(err, &stdErr) && !stdErr.Retryable

	if permanent || env.Attempt >= c.cfg.MaxAttempts {
		metrics.NotificationsDeadLettered.Inc()
		if dlErr := c.source.DeadLetter(dctx, env, err.Error()); dlErr != nil {
			c.logger.Error("Dead letter failed, notification dropped", map[string]interface{}{
				"payloadId": env.Payload.ID,
				"error":     dlErr,
			})
			return
		}
		c.logger.Warn("Notification dead-lettered", map[string]interface{}{
			"payloadId": env.Payload.ID,
			"attempt":   env.Attempt,
			"channels":  env.Channels,
			"error":     err,
		})
		return
	}

	if rqErr := c.source.Requeue(dctx, env); rqErr != nil {
		c.logger.Error("Requeue failed, notification dropped", map[string]interface{}{
			"payloadId": env.Payload.ID,
			"error":     rqErr,
		})
		return
	}
	c.logger.Info("Notification requeued", map[string]interface{}{
		"payloadId": env.Payload.ID,
		"attempt":   env.Attempt,
		"channels":  env.Channels,
	})
}
