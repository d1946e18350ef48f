// internal/workers/alerts/dispatch-due-alerts/handler_test.go
package dispatchduealerts

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-workers/internal/alerts"
	"jobboard-workers/internal/common/config"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
)

type MockRunner struct {
	RunDueFunc func(ctx context.Context) (*alerts.RunResult, error)
}

func (m *MockRunner) RunDue(ctx context.Context) (*alerts.RunResult, error) {
	return m.RunDueFunc(ctx)
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		result   *alerts.RunResult
		err      error
		want     *Output
		wantCode errors.ErrorCode
	}{
		{
			name:   "reports the run",
			result: &alerts.RunResult{Processed: 6, Notified: 3, Empty: 1, Skipped: 1, Failed: 1},
			want:   &Output{Processed: 6, Notified: 3, Skipped: 1, Failed: 1},
		},
		{
			name:   "nothing due",
			result: &alerts.RunResult{},
			want:   &Output{},
		},
		{
			name:     "due query fails",
			err:      errors.NewQueryExecutionFailedError("due_alerts", stderrors.New("conn refused")),
			wantCode: errors.ErrCodeQueryExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{RunDueFunc: func(context.Context) (*alerts.RunResult, error) {
				return tt.result, tt.err
			}}
			h := NewHandler(LoadConfig(config.WorkerConfig{}), runner, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background())
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.AsStandard(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Processed, out.Processed)
			assert.Equal(t, tt.want.Notified, out.Notified)
			assert.Equal(t, tt.want.Skipped, out.Skipped)
			assert.Equal(t, tt.want.Failed, out.Failed)
			_, perr := time.Parse(time.RFC3339, out.RanAt)
			assert.NoError(t, perr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 2*time.Minute, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 10*time.Second, LoadConfig(config.WorkerConfig{Timeout: 10000}).Timeout)
}
