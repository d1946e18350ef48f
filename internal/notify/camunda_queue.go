package notify

import (
	"context"
)

// ProcessStarter starts BPMN process instances. *camunda.Client satisfies it.
type ProcessStarter interface {
	CreateProcessInstance(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// CamundaQueue hands each envelope to a new process instance. The process
// runs the send-status-notification job, which owns retries.
type CamundaQueue struct {
	starter   ProcessStarter
	processID string
}

func NewCamundaQueue(starter ProcessStarter, processID string) *CamundaQueue {
	return &CamundaQueue{starter: starter, processID: processID}
}

func (q *CamundaQueue) Publish(ctx context.Context, env *Envelope) error {
	_, err := q.starter.CreateProcessInstance(ctx, q.processID, env)
	return err
}
