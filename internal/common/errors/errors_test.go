package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidStatus, http.StatusUnprocessableEntity},
		{ErrCodeTransitionNotAllowed, http.StatusUnprocessableEntity},
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodeRequestValidationFail, http.StatusBadRequest},
		{ErrCodeEntityNotFound, http.StatusNotFound},
		{ErrCodeStatusConflict, http.StatusConflict},
		{ErrCodeAuthentication, http.StatusUnauthorized},
		{ErrCodeAuthorization, http.StatusForbidden},
		{ErrCodeQueryTimeout, http.StatusGatewayTimeout},
		{ErrCodeDatabaseConnectionFailed, http.StatusServiceUnavailable},
		{ErrCodeQueryExecutionFailed, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable technical error keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewNotificationSendFailedError("email", errors.New("ses throttled")))
		assert.Equal(t, "NOTIFICATION_SEND_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)

		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "NOTIFICATION_SEND_FAILED", vars["originalErrorCode"])
		assert.Equal(t, "NOTIFICATION_SEND_FAILED", vars["errorCode"])
	})

	t.Run("business error has no retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInvalidStatusError("application", "bogus"))
		assert.Equal(t, "INVALID_STATUS", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
	})

	t.Run("metadata is carried into the variables", func(t *testing.T) {
		stdErr := NewNotificationSendFailedError("email", errors.New("ses throttled"))
		stdErr.Metadata = map[string]interface{}{"channels": []string{"email"}}
		vars := ConvertToBPMNError(stdErr).ToErrorVariables()
		assert.Equal(t, []string{"email"}, vars["channels"])
		assert.Equal(t, "NOTIFICATION_SEND_FAILED", vars["originalErrorCode"])
	})

	t.Run("unmapped code falls back to its own name", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewStatusConflictError("pending", "reviewed"))
		assert.Equal(t, "STATUS_CONFLICT", bpmn.Code)
	})
}

func TestStandardError_UnwrapKeepsCause(t *testing.T) {
	err := NewQueryExecutionFailedError("select_application", sql.ErrConnDone)
	assert.True(t, errors.Is(err, sql.ErrConnDone))

	wrapped := fmt.Errorf("outer: %w", err)
	std := AsStandard(wrapped)
	assert.Equal(t, ErrCodeQueryExecutionFailed, std.Code)
}

func TestAsStandard_UnknownErrorBecomesInternal(t *testing.T) {
	std := AsStandard(errors.New("kaboom"))
	require.NotNil(t, std)
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.Equal(t, "kaboom", std.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "STATUS", GetErrorCategory(ErrCodeInvalidStatus))
	assert.Equal(t, "STATUS", GetErrorCategory(ErrCodeTransitionNotAllowed))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeEntityNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeQueuePublishFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeAuthorization))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeQueuePublishFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeSearchTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeEntityNotFound))
}

func TestRemainingRetries(t *testing.T) {
	tests := []struct {
		name       string
		jobRetries int32
		allowed    int
		want       int32
	}{
		{"business error is never retried", 3, 0, 0},
		{"last broker retry", 1, 3, 0},
		{"broker has fewer than allowed", 3, 3, 2},
		{"capped by error code", 10, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remainingRetries(tt.jobRetries, tt.allowed))
		})
	}
}
