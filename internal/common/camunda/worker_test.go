package camunda

import (
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"

	"jobboard-workers/internal/common/config"
	"jobboard-workers/internal/common/logger"
)

type fakeJobWorker struct {
	mu     sync.Mutex
	closed bool
}

func (w *fakeJobWorker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *fakeJobWorker) AwaitClose() {}

func (w *fakeJobWorker) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// fakeBuilder walks the builder steps and records what was configured.
// Builder methods the group never calls stay nil through the embedded interfaces.
type fakeBuilder struct {
	worker.JobWorkerBuilderStep3

	jobType       string
	maxJobsActive int
	timeout       time.Duration
	opened        []*fakeJobWorker
}

func (b *fakeBuilder) JobType(t string) worker.JobWorkerBuilderStep2 {
	b.jobType = t
	return b
}

func (b *fakeBuilder) Handler(worker.JobHandler) worker.JobWorkerBuilderStep3 { return b }

func (b *fakeBuilder) MaxJobsActive(n int) worker.JobWorkerBuilderStep3 {
	b.maxJobsActive = n
	return b
}

func (b *fakeBuilder) Timeout(d time.Duration) worker.JobWorkerBuilderStep3 {
	b.timeout = d
	return b
}

func (b *fakeBuilder) Open() worker.JobWorker {
	w := &fakeJobWorker{}
	b.opened = append(b.opened, w)
	return w
}

type fakeOpener struct{ b *fakeBuilder }

func (o fakeOpener) NewJobWorker() worker.JobWorkerBuilderStep1 { return o.b }

type nopHandler struct{}

func (nopHandler) Handle(worker.JobClient, entities.Job) {}

func TestGroup_OpenAndStop(t *testing.T) {
	b := &fakeBuilder{}
	g := NewGroup(fakeOpener{b}, logger.NewTestLogger(t))

	enabled := config.WorkerConfig{Enabled: true, MaxJobsActive: 8, Timeout: 45000}
	assert.True(t, g.Open("send-status-notification", enabled, nopHandler{}))
	assert.Equal(t, "send-status-notification", b.jobType)
	assert.Equal(t, 8, b.maxJobsActive)
	assert.Equal(t, 45*time.Second, b.timeout)

	assert.False(t, g.Open("dispatch-due-alerts", config.WorkerConfig{}, nopHandler{}))
	assert.True(t, g.Open("send-status-notification", enabled, nopHandler{}))
	assert.Equal(t, 1, g.Len())
	assert.Len(t, b.opened, 1)

	g.Stop()
	assert.True(t, b.opened[0].isClosed())
}
