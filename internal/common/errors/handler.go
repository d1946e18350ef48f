// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports a failed job back to the broker. Technical failures
// are failed with a bounded retry count; business failures and exhausted
// retries become BPMN errors the process can catch.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandard(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	retries := remainingRetries(job.Retries, bpmnErr.Retries)
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":          job.Key,
		"jobType":         job.Type,
		"processInstance": job.ProcessInstanceKey,
		"errorCode":       string(stdErr.Code),
		"bpmnErrorCode":   bpmnErr.Code,
		"category":        GetErrorCategory(stdErr.Code),
		"details":         stdErr.Details,
		"retriesLeft":     retries,
	})

	// Variables are best effort: a payload that does not encode is dropped
	// and the command goes out without it.
	vars := ""
	if raw, mErr := json.Marshal(bpmnErr.ToErrorVariables()); mErr == nil {
		vars = string(raw)
	}

	var sendErr error
	if retries > 0 {
		sendErr = h.fail(ctx, client, job.Key, retries, bpmnErr.Message, vars)
	} else {
		sendErr = h.throw(ctx, client, job.Key, bpmnErr, vars)
	}
	if sendErr != nil {
		h.logger.Error("job error not reported to broker", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr,
		})
	}
}

// remainingRetries caps the broker's count at what the error code allows.
// Zero means the error is not worth retrying.
func remainingRetries(jobRetries int32, allowed int) int32 {
	if allowed <= 0 || jobRetries <= 1 {
		return 0
	}
	left := jobRetries - 1
	if limit := int32(allowed); left > limit {
		left = limit
	}
	return left
}

func (h *ErrorHandler) fail(ctx context.Context, client worker.JobClient, key int64, retries int32, msg, vars string) error {
	cmd := client.NewFailJobCommand().JobKey(key).Retries(retries).ErrorMessage(msg)
	if vars != "" {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}

func (h *ErrorHandler) throw(ctx context.Context, client worker.JobClient, key int64, bpmnErr *BPMNError, vars string) error {
	cmd := client.NewThrowErrorCommand().JobKey(key).ErrorCode(bpmnErr.Code).ErrorMessage(bpmnErr.Message)
	if vars != "" {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}
