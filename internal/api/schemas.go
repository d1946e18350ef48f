package api

import "jobboard-workers/internal/common/validation"

// Status values are checked by the tracking service so that an unknown value
// is a 422, not a schema failure.
var setStatusSchema = validation.MustValidator(validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"status": {
			Type:      "string",
			MinLength: validation.IntPtr(1),
			MaxLength: validation.IntPtr(64),
		},
		"notes": {
			Type:      []string{"string", "null"},
			MaxLength: validation.IntPtr(2000),
		},
		"expectedStatus": {
			Type:      []string{"string", "null"},
			MaxLength: validation.IntPtr(64),
		},
	},
	Required:             []string{"status"},
	AdditionalProperties: false,
})

type setStatusRequest struct {
	Status         string  `json:"status"`
	Notes          *string `json:"notes"`
	ExpectedStatus *string `json:"expectedStatus"`
}
