package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jobboard-workers/internal/common/errors"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"grpc unavailable", status.Error(codes.Unavailable, "broker down"), true},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "backpressure"), true},
		{"grpc not found", status.Error(codes.NotFound, "no process"), false},
		{"plain deadline", stderrors.New("context deadline exceeded"), true},
		{"plain broken pipe", stderrors.New("write: broken pipe"), true},
		{"plain invalid", stderrors.New("invalid variables"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transient(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"connection reset", stderrors.New("connection reset by peer"), errors.ErrCodeExternalService},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), errors.ErrCodeTimeout},
		{"missing definition text", stderrors.New("Expected to find process definition with process ID 'status-notification', but none found"), errors.ErrCodeExternalService},
		{"grpc not found", status.Error(codes.NotFound, "process not found"), errors.ErrCodeEntityNotFound},
		{"permission", status.Error(codes.PermissionDenied, "nope"), errors.ErrCodeAuthentication},
		{"other", stderrors.New("something odd"), errors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "start status-notification", 1)
			assert.Equal(t, tt.want, errors.AsStandard(err).Code)
		})
	}
}

func TestWithBackoff(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		key, err := withBackoff(context.Background(), fastBackoff(3), "op", func(context.Context) (int64, error) {
			calls++
			if calls < 3 {
				return 0, status.Error(codes.Unavailable, "leader change")
			}
			return 2251799813685249, nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2251799813685249), key)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		calls := 0
		_, err := withBackoff(context.Background(), fastBackoff(3), "op", func(context.Context) (int64, error) {
			calls++
			return 0, stderrors.New("invalid variables")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("passes standard errors through", func(t *testing.T) {
		calls := 0
		_, err := withBackoff(context.Background(), fastBackoff(3), "op", func(context.Context) (int64, error) {
			calls++
			return 0, errors.NewInvalidRequestError("process variables: bad json")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, errors.ErrCodeInvalidRequest, errors.AsStandard(err).Code)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		_, err := withBackoff(context.Background(), fastBackoff(2), "op", func(context.Context) (int64, error) {
			calls++
			return 0, stderrors.New("timeout")
		})
		require.Error(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, errors.ErrCodeTimeout, errors.AsStandard(err).Code)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := withBackoff(ctx, Backoff{Attempts: 5, Initial: time.Hour, Max: time.Hour}, "op", func(context.Context) (int64, error) {
			return 0, status.Error(codes.Unavailable, "down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
