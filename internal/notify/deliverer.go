package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"jobboard-workers/internal/common/database"
	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/common/metrics"
	"jobboard-workers/internal/models"
	"jobboard-workers/pkg/registry"
)

const (
	ResultSent     = "sent"
	ResultSkipped  = "skipped"
	ResultDisabled = "disabled"
	ResultFailed   = "failed"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ContactLookup is satisfied by *ContactStore.
type ContactLookup interface {
	Lookup(ctx context.Context, userID string) (*models.Contact, error)
}

type DeliveryConfig struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	// SMSStatuses limits status notifications sent by SMS. Other templates
	// are not filtered.
	SMSStatuses []string
	SMSSenderID string
}

type ChannelResult struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type DeliveryReport struct {
	PayloadID   string          `json:"payloadId"`
	TemplateKey string          `json:"templateKey"`
	Results     []ChannelResult `json:"results"`
	Failed      []string        `json:"failed,omitempty"`
	DeliveredAt time.Time       `json:"deliveredAt"`
}

// Deliverer renders a payload and sends it over each requested channel. A
// failing channel does not stop the others.
type Deliverer struct {
	cfg       DeliveryConfig
	db        database.DBTX
	contacts  ContactLookup
	templates *registry.TemplateRegistry
	ses       SESService
	sns       SNSService
	logger    logger.Logger
}

func NewDeliverer(cfg DeliveryConfig, db database.DBTX, contacts ContactLookup, templates *registry.TemplateRegistry, sesClient SESService, snsClient SNSService, log logger.Logger) *Deliverer {
	if templates == nil {
		templates = registry.Defaults()
	}
	return &Deliverer{
		cfg:       cfg,
		db:        db,
		contacts:  contacts,
		templates: templates,
		ses:       sesClient,
		sns:       snsClient,
		logger:    logger.Component(log, "notify.deliverer"),
	}
}

type rendered struct {
	registry.Rendered
	contact *models.Contact
}

// Deliver returns a report for every channel. The error is non-nil when at
// least one channel failed; report.Failed lists those channels for a retry.
func (d *Deliverer) Deliver(ctx context.Context, env *Envelope) (*DeliveryReport, error) {
	p := env.Payload
	tmpl, ok := d.templates.Lookup(p.TemplateKey)
	if !ok {
		return nil, errors.NewTemplateNotFoundError(p.TemplateKey)
	}

	channels := env.Channels
	if len(channels) == 0 {
		channels = tmpl.Channels
	}
	if len(channels) == 0 {
		channels = DefaultChannels
	}

	report := &DeliveryReport{PayloadID: p.ID, TemplateKey: p.TemplateKey}

	var contactErr error
	msg := rendered{}
	if p.Recipient != "" && d.contacts != nil {
		msg.contact, contactErr = d.contacts.Lookup(ctx, p.Recipient)
	}
	name := ""
	if msg.contact != nil {
		name = msg.contact.Name
	}
	msg.Rendered = tmpl.Render(p.templateData(name))

	var firstErr error
	for _, ch := range channels {
		var (
			res string
			err error
		)
		switch ch {
		case ChannelRecord:
			res, err = d.sendRecord(ctx, p, msg)
		case ChannelEmail:
			res, err = d.sendEmail(ctx, msg, contactErr)
		case ChannelSMS:
			res, err = d.sendSMS(ctx, p, msg, contactErr)
		default:
			res, err = ResultSkipped, nil
		}

		result := ChannelResult{Channel: ch, Status: res}
		if err != nil {
			result.Status = ResultFailed
			result.Error = err.Error()
			report.Failed = append(report.Failed, ch)
			if firstErr == nil {
				firstErr = err
			}
			d.logger.Error("Notification channel failed", map[string]interface{}{
				"payloadId": p.ID,
				"channel":   ch,
				"error":     err,
			})
		}
		metrics.NotificationDeliveries.WithLabelValues(ch, result.Status).Inc()
		report.Results = append(report.Results, result)
	}
	report.DeliveredAt = time.Now().UTC()

	if firstErr != nil {
		return report, errors.NewNotificationSendFailedError(strings.Join(report.Failed, ","), firstErr)
	}
	return report, nil
}

// sendRecord writes the inbox row. The payload id is the row id, so a retried
// envelope never creates a second row.
func (d *Deliverer) sendRecord(ctx context.Context, p Payload, msg rendered) (string, error) {
	if p.Recipient == "" {
		return ResultSkipped, nil
	}
	data, err := json.Marshal(p.recordData())
	if err != nil {
		return "", fmt.Errorf("encode notification data: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Recipient, p.TemplateKey, msg.Title, msg.Body, data, p.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return ResultSent, nil
}

func (d *Deliverer) sendEmail(ctx context.Context, msg rendered, contactErr error) (string, error) {
	if !d.cfg.EmailEnabled || d.ses == nil {
		return ResultDisabled, nil
	}
	if contactErr != nil {
		return "", contactErr
	}
	if msg.contact == nil || msg.contact.Email == "" {
		return ResultSkipped, nil
	}

	_, err := d.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.contact.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(d.cfg.FromEmail),
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return ResultSent, nil
}

func (d *Deliverer) sendSMS(ctx context.Context, p Payload, msg rendered, contactErr error) (string, error) {
	if !d.cfg.SMSEnabled || d.sns == nil {
		return ResultDisabled, nil
	}
	if p.CurrentStatus != "" && !contains(d.cfg.SMSStatuses, p.CurrentStatus) {
		return ResultSkipped, nil
	}
	if contactErr != nil {
		return "", contactErr
	}
	if msg.contact == nil || msg.contact.Phone == "" || msg.SMS == "" {
		return ResultSkipped, nil
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.contact.Phone),
		Message:     aws.String(msg.SMS),
	}
	if d.cfg.SMSSenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(d.cfg.SMSSenderID),
			},
		}
	}
	if _, err := d.sns.Publish(ctx, input); err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return ResultSent, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
