// internal/common/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidStatus         ErrorCode = "INVALID_STATUS"
	ErrCodeEntityNotFound        ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeStatusConflict        ErrorCode = "STATUS_CONFLICT"
	ErrCodeTransitionNotAllowed  ErrorCode = "TRANSITION_NOT_ALLOWED"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeRequestValidationFail ErrorCode = "REQUEST_VALIDATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeTransactionFailed        ErrorCode = "DATABASE_TRANSACTION_FAILED"

	ErrCodeQueuePublishFailed     ErrorCode = "QUEUE_PUBLISH_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTemplateNotFound       ErrorCode = "TEMPLATE_NOT_FOUND"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  ErrorCode = "AUTHORIZATION_ERROR"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape shared by the API, the queue consumer and
// the Zeebe job handlers.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithCause attaches the sentinel or driver error so errors.Is keeps working.
func (e *StandardError) WithCause(err error) *StandardError {
	e.cause = err
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidStatusError(kind, status string) *StandardError {
	e := newError(ErrCodeInvalidStatus, "Status is not a recognized value", fmt.Sprintf("kind: %s, status: %q", kind, status), false)
	e.Metadata = map[string]interface{}{"kind": kind, "status": status}
	return e
}

func NewEntityNotFoundError(kind, id string) *StandardError {
	e := newError(ErrCodeEntityNotFound, "Entity not found", fmt.Sprintf("kind: %s, id: %s", kind, id), false)
	e.Metadata = map[string]interface{}{"kind": kind, "id": id}
	return e
}

func NewStatusConflictError(expected, actual string) *StandardError {
	e := newError(ErrCodeStatusConflict, "Status was changed by another request", fmt.Sprintf("expected: %s, actual: %s", expected, actual), false)
	e.Metadata = map[string]interface{}{"expectedStatus": expected, "currentStatus": actual}
	return e
}

func NewTransitionNotAllowedError(from, to string) *StandardError {
	return newError(ErrCodeTransitionNotAllowed, "Status transition is not allowed", fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Malformed request", details, false)
}

func NewRequestValidationError(details string) *StandardError {
	return newError(ErrCodeRequestValidationFail, "Request body failed validation", details, false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true).WithCause(err)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true).WithCause(err)
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true).WithCause(err)
}

func NewTransactionFailedError(step string, err error) *StandardError {
	return newError(ErrCodeTransactionFailed, "Database transaction failed",
		fmt.Sprintf("step: %s, error: %s", step, err.Error()), true).WithCause(err)
}

func NewQueuePublishFailedError(driver string, err error) *StandardError {
	return newError(ErrCodeQueuePublishFailed, "Notification could not be queued",
		fmt.Sprintf("driver: %s, error: %s", driver, err.Error()), true).WithCause(err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true).WithCause(err)
}

func NewTemplateNotFoundError(templateKey string) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found in registry", fmt.Sprintf("templateKey: %s", templateKey), false)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true).WithCause(err)
}

func NewSearchTimeoutError(index string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout", fmt.Sprintf("index: %s", index), true)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewAuthorizationError(details string) *StandardError {
	return newError(ErrCodeAuthorization, "Not allowed to perform this action", details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true).WithCause(err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true).WithCause(err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false).WithCause(err)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidStatus:            "INVALID_STATUS",
	ErrCodeEntityNotFound:           "ENTITY_NOT_FOUND",
	ErrCodeTemplateNotFound:         "TEMPLATE_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:            "SEARCH_TIMEOUT",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeTransactionFailed,
		ErrCodeQueuePublishFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeTimeout:
		return 2

	default:
		return 0 // business errors
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	// Metadata travels with the fail command so a retried job can read it
	// back from its variables.
	vars := make(map[string]interface{}, len(stdErr.Metadata)+2)
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}
	vars["originalErrorCode"] = string(stdErr.Code)
	vars["timestamp"] = stdErr.Timestamp.Format(time.RFC3339)

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STATUS") || strings.Contains(codeStr, "TRANSITION"):
		return "STATUS"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "QUEUE") || strings.Contains(codeStr, "TEMPLATE"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "REQUEST"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps an error code onto the response status of the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidStatus, ErrCodeTransitionNotAllowed:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidRequest, ErrCodeRequestValidationFail:
		return http.StatusBadRequest
	case ErrCodeEntityNotFound:
		return http.StatusNotFound
	case ErrCodeStatusConflict:
		return http.StatusConflict
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeAuthorization:
		return http.StatusForbidden
	case ErrCodeQueryTimeout, ErrCodeSearchTimeout, ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeDatabaseConnectionFailed, ErrCodeExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsStandard unwraps err into a StandardError, wrapping unknown errors as
// INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
