// internal/common/camunda/worker.go
package camunda

import (
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"jobboard-workers/internal/common/config"
	"jobboard-workers/internal/common/logger"
)

// JobHandler is implemented by every worker package handler. Handlers
// complete or fail the job themselves.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobWorkerOpener is the subset of zbc.Client needed to open a job worker.
type JobWorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

var _ JobWorkerOpener = (zbc.Client)(nil)

// Group holds the job workers of one process so they can be stopped together.
type Group struct {
	client  JobWorkerOpener
	log     logger.Logger
	workers map[string]worker.JobWorker
}

func NewGroup(client JobWorkerOpener, log logger.Logger) *Group {
	return &Group{
		client:  client,
		log:     logger.Component(log, "camunda.workers"),
		workers: make(map[string]worker.JobWorker),
	}
}

// Open starts polling taskType. Disabled task types are skipped and report
// false. Opening the same task type twice keeps the first worker.
func (g *Group) Open(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		g.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}
	if _, dup := g.workers[taskType]; dup {
		return true
	}

	g.workers[taskType] = g.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	g.log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return true
}

func (g *Group) Len() int {
	return len(g.workers)
}

// Stop closes every worker and waits until their in-flight jobs return.
// The caller closes the client afterwards.
func (g *Group) Stop() {
	var wg sync.WaitGroup
	for taskType, w := range g.workers {
		wg.Add(1)
		go func(taskType string, w worker.JobWorker) {
			defer wg.Done()
			w.Close()
			w.AwaitClose()
			g.log.Info("worker stopped", map[string]interface{}{"taskType": taskType})
		}(taskType, w)
	}
	wg.Wait()
}
