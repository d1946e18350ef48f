// internal/workers/notification/send-status-notification/models.go
package sendstatusnotification

import "jobboard-workers/internal/notify"

// Input is the envelope the CamundaQueue started the process with. A failed
// attempt narrows Channels to what is still pending.
type Input = notify.Envelope

type Output struct {
	PayloadID   string                 `json:"payloadId"`
	TemplateKey string                 `json:"templateKey"`
	Status      string                 `json:"status"`
	Results     []notify.ChannelResult `json:"results"`
	DeliveredAt string                 `json:"deliveredAt"` // ISO 8601
}

const (
	StatusDelivered = "delivered"
)
