// Package notify turns committed status changes and alert matches into
// notifications and delivers them over the configured channels.
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"jobboard-workers/internal/models"
	"jobboard-workers/internal/status"
	"jobboard-workers/pkg/registry"
)

const (
	ChannelRecord = "record"
	ChannelEmail  = "email"
	ChannelSMS    = "sms"
)

// DefaultChannels is used when neither the envelope nor the template lists any.
var DefaultChannels = []string{ChannelRecord, ChannelEmail, ChannelSMS}

// Payload is everything a channel needs to word and address a notification.
type Payload struct {
	ID             string                 `json:"id"`
	Recipient      string                 `json:"recipient"`
	TemplateKey    string                 `json:"templateKey"`
	ParentName     string                 `json:"parentName,omitempty"`
	CompanyName    string                 `json:"companyName,omitempty"`
	PreviousStatus string                 `json:"previousStatus,omitempty"`
	CurrentStatus  string                 `json:"currentStatus,omitempty"`
	PreviousLabel  string                 `json:"previousLabel,omitempty"`
	CurrentLabel   string                 `json:"currentLabel,omitempty"`
	EntityID       string                 `json:"entityId,omitempty"`
	EntityKind     string                 `json:"entityKind,omitempty"`
	Note           string                 `json:"note,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Envelope is the unit carried by a queue. Channels holds the channels not yet
// delivered, so a retry only repeats what failed.
type Envelope struct {
	Payload  Payload  `json:"payload"`
	Channels []string `json:"channels,omitempty"`
	Attempt  int      `json:"attempt"`
}

func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// TemplateKeyFor maps an entity kind to its status template.
func TemplateKeyFor(kind string) string {
	if kind == string(status.KindJobPool) {
		return registry.KeyJobPoolStatusChanged
	}
	return registry.KeyApplicationStatusChanged
}

// NewStatusPayload builds the payload for one committed status change.
func NewStatusPayload(change models.StatusChange) Payload {
	p := Payload{
		ID:             uuid.New().String(),
		Recipient:      change.RecipientUserID,
		TemplateKey:    TemplateKeyFor(change.Kind),
		ParentName:     change.ParentName,
		CompanyName:    change.CompanyName,
		PreviousStatus: change.PreviousStatus,
		CurrentStatus:  change.CurrentStatus,
		PreviousLabel:  status.Label(status.Status(change.PreviousStatus)),
		CurrentLabel:   status.Label(status.Status(change.CurrentStatus)),
		EntityID:       change.EntityID,
		EntityKind:     change.Kind,
		CreatedAt:      change.ChangedAt,
	}
	if change.Note != nil {
		p.Note = *change.Note
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return p
}

// templateData flattens the payload into the placeholder map of the registry.
func (p Payload) templateData(recipientName string) map[string]interface{} {
	data := map[string]interface{}{
		"recipientName":  recipientName,
		"parentName":     p.ParentName,
		"companyName":    p.CompanyName,
		"previousStatus": p.PreviousStatus,
		"currentStatus":  p.CurrentStatus,
		"previousLabel":  p.PreviousLabel,
		"currentLabel":   p.CurrentLabel,
		"entityId":       p.EntityID,
		"note":           p.Note,
	}
	for k, v := range p.Data {
		if _, taken := data[k]; !taken {
			data[k] = v
		}
	}
	return data
}

// recordData is stored with the inbox row so clients can link back.
func (p Payload) recordData() map[string]interface{} {
	data := map[string]interface{}{
		"payloadId": p.ID,
	}
	if p.EntityID != "" {
		data["entityId"] = p.EntityID
		data["entityKind"] = p.EntityKind
		data["previousStatus"] = p.PreviousStatus
		data["currentStatus"] = p.CurrentStatus
	}
	for k, v := range p.Data {
		if _, taken := data[k]; !taken {
			data[k] = v
		}
	}
	return data
}
