package api

import (
	"encoding/json"
	"net/http"

	"jobboard-workers/internal/common/errors"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type errorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   string      `json:"details,omitempty"`
	Metadata  interface{} `json:"metadata,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

// writeError renders err with the status its code maps to. Internal errors
// do not leak their details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.AsStandard(err)
	status := errors.HTTPStatus(stdErr.Code)

	body := errorBody{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		RequestID: RequestIDFrom(r.Context()),
	}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
		if len(stdErr.Metadata) > 0 {
			body.Metadata = stdErr.Metadata
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: body})
}
