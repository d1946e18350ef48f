package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue accepts envelopes for asynchronous delivery.
type Queue interface {
	Publish(ctx context.Context, env *Envelope) error
}

// Source is the consuming side of a queue.
type Source interface {
	// Pop blocks up to timeout and returns nil without error when nothing
	// arrived.
	Pop(ctx context.Context, timeout time.Duration) (*Envelope, error)
	Requeue(ctx context.Context, env *Envelope) error
	DeadLetter(ctx context.Context, env *Envelope, reason string) error
}

type deadLetter struct {
	Envelope *Envelope `json:"envelope"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// RedisQueue is a FIFO list: LPUSH on publish, BRPOP on pop.
type RedisQueue struct {
	client  redis.Cmdable
	key     string
	deadKey string
}

func NewRedisQueue(client redis.Cmdable, key, deadKey string) *RedisQueue {
	return &RedisQueue{client: client, key: key, deadKey: deadKey}
}

func (q *RedisQueue) Publish(ctx context.Context, env *Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Envelope, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	env, err := UnmarshalEnvelope([]byte(res[1]))
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Requeue puts env at the back of the line so waiting envelopes go first.
func (q *RedisQueue) Requeue(ctx context.Context, env *Envelope) error {
	return q.Publish(ctx, env)
}

func (q *RedisQueue) DeadLetter(ctx context.Context, env *Envelope, reason string) error {
	raw, err := json.Marshal(deadLetter{Envelope: env, Reason: reason, FailedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.deadKey, raw).Err()
}

// Len reports the number of envelopes waiting.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
