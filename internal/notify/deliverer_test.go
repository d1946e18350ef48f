package notify

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/common/logger"
	"jobboard-workers/internal/models"
	"jobboard-workers/pkg/registry"
)

// ===== Test Helper Functions =====

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-123")}, nil
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{MessageId: aws.String("sms-123")}, nil
}

type staticContacts struct {
	contact *models.Contact
	err     error
}

func (s staticContacts) Lookup(context.Context, string) (*models.Contact, error) {
	return s.contact, s.err
}

var ada = &models.Contact{UserID: "user-1", Name: "Ada", Email: "ada@example.com", Phone: "+15550100"}

func allChannelsConfig() DeliveryConfig {
	return DeliveryConfig{
		EmailEnabled: true,
		FromEmail:    "noreply@jobboard.test",
		SMSEnabled:   true,
		SMSStatuses:  []string{"offered", "hired"},
		SMSSenderID:  "JOBBOARD",
	}
}

func setupDeliverer(t *testing.T, cfg DeliveryConfig, contacts ContactLookup) (*Deliverer, sqlmock.Sqlmock, *MockSESService, *MockSNSService) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sesMock := &MockSESService{}
	snsMock := &MockSNSService{}
	d := NewDeliverer(cfg, db, contacts, registry.Defaults(), sesMock, snsMock, logger.NewTestLogger(t))
	return d, mock, sesMock, snsMock
}

func expectRecordInsert(mock sqlmock.Sqlmock, env *Envelope) {
	mock.ExpectExec("INSERT INTO notifications .* ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs(env.Payload.ID, env.Payload.Recipient, env.Payload.TemplateKey,
			"Application status updated", sqlmock.AnyArg(), sqlmock.AnyArg(), env.Payload.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func statusEnvelope(current string) *Envelope {
	note := "Strong portfolio"
	return &Envelope{Payload: NewStatusPayload(models.StatusChange{
		Kind:            "application",
		EntityID:        "app-1",
		ParentName:      "Senior Go Engineer",
		CompanyName:     "Acme Corp",
		RecipientUserID: "user-1",
		PreviousStatus:  "pending",
		CurrentStatus:   current,
		Note:            &note,
	})}
}

// ===== Deliver =====

func TestDeliver_AllChannels(t *testing.T) {
	d, mock, sesMock, snsMock := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	env := statusEnvelope("offered")
	expectRecordInsert(mock, env)

	report, err := d.Deliver(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.Equal(t, ResultSent, r.Status, r.Channel)
	}
	assert.Empty(t, report.Failed)

	require.Len(t, sesMock.calls, 1)
	email := sesMock.calls[0]
	assert.Equal(t, []string{"ada@example.com"}, email.Destination.ToAddresses)
	assert.Equal(t, "noreply@jobboard.test", *email.Source)
	body := *email.Message.Body.Text.Data
	assert.Contains(t, body, "Hello Ada")
	assert.Contains(t, body, "Senior Go Engineer")
	assert.Contains(t, body, "Acme Corp")
	assert.Contains(t, body, "from Pending to Offered")
	assert.Contains(t, body, "Strong portfolio")

	require.Len(t, snsMock.calls, 1)
	assert.Equal(t, "+15550100", *snsMock.calls[0].PhoneNumber)
	assert.Equal(t, "JOBBOARD", *snsMock.calls[0].MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_ChannelsFailIndependently(t *testing.T) {
	d, mock, sesMock, snsMock := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	sesMock.SendEmailFunc = func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, stderrors.New("Throttling: Maximum sending rate exceeded")
	}
	env := statusEnvelope("hired")
	expectRecordInsert(mock, env)

	report, err := d.Deliver(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.AsStandard(err).Code)
	assert.True(t, errors.AsStandard(err).Retryable)

	require.NotNil(t, report)
	assert.Equal(t, []string{ChannelEmail}, report.Failed)
	assert.Equal(t, ChannelResult{Channel: ChannelRecord, Status: ResultSent}, report.Results[0])
	assert.Equal(t, ResultFailed, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Error, "Throttling")
	assert.Equal(t, ResultSent, report.Results[2].Status)
	assert.Len(t, snsMock.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_RetryOnlyTouchesPendingChannels(t *testing.T) {
	d, mock, sesMock, snsMock := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	env := statusEnvelope("hired")
	env.Channels = []string{ChannelEmail}
	env.Attempt = 1

	report, err := d.Deliver(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Len(t, sesMock.calls, 1)
	assert.Empty(t, snsMock.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_SMSOnlyForConfiguredStatuses(t *testing.T) {
	d, mock, _, snsMock := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	env := statusEnvelope("shortlisted")
	expectRecordInsert(mock, env)

	report, err := d.Deliver(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, report.Results[2].Status)
	assert.Empty(t, snsMock.calls)
}

func TestDeliver_UnknownRecipientIsSkipped(t *testing.T) {
	d, mock, sesMock, snsMock := setupDeliverer(t, allChannelsConfig(), staticContacts{})
	env := statusEnvelope("offered")
	expectRecordInsert(mock, env)

	report, err := d.Deliver(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, ResultSkipped, report.Results[1].Status)
	assert.Equal(t, ResultSkipped, report.Results[2].Status)
	assert.Empty(t, sesMock.calls)
	assert.Empty(t, snsMock.calls)
}

func TestDeliver_DisabledChannels(t *testing.T) {
	d, mock, sesMock, _ := setupDeliverer(t, DeliveryConfig{}, staticContacts{contact: ada})
	env := statusEnvelope("offered")
	expectRecordInsert(mock, env)

	report, err := d.Deliver(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, ResultDisabled, report.Results[1].Status)
	assert.Equal(t, ResultDisabled, report.Results[2].Status)
	assert.Empty(t, sesMock.calls)
}

func TestDeliver_ContactLookupFailureFailsAddressedChannels(t *testing.T) {
	d, mock, _, _ := setupDeliverer(t, allChannelsConfig(), staticContacts{err: sql.ErrConnDone})
	env := statusEnvelope("offered")
	expectRecordInsert(mock, env)

	report, err := d.Deliver(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, []string{ChannelEmail, ChannelSMS}, report.Failed)
	assert.Equal(t, ResultSent, report.Results[0].Status)
}

func TestDeliver_RecordFailure(t *testing.T) {
	d, mock, sesMock, _ := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	env := statusEnvelope("offered")
	mock.ExpectExec("INSERT INTO notifications").WillReturnError(sql.ErrConnDone)

	report, err := d.Deliver(context.Background(), env)
	require.Error(t, err)
	assert.Equal(t, []string{ChannelRecord}, report.Failed)
	assert.Len(t, sesMock.calls, 1)
}

func TestDeliver_UnknownTemplate(t *testing.T) {
	d, mock, sesMock, _ := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	env := statusEnvelope("offered")
	env.Payload.TemplateKey = "welcome"

	report, err := d.Deliver(context.Background(), env)
	assert.Nil(t, report)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTemplateNotFound, errors.AsStandard(err).Code)
	assert.False(t, errors.AsStandard(err).Retryable)
	assert.Empty(t, sesMock.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_JobAlertUsesTemplateChannels(t *testing.T) {
	d, mock, sesMock, snsMock := setupDeliverer(t, allChannelsConfig(), staticContacts{contact: ada})
	env := &Envelope{Payload: Payload{
		ID:          "alert-1",
		Recipient:   "user-1",
		TemplateKey: registry.KeyJobAlert,
		Data: map[string]interface{}{
			"matchCount": 2,
			"keywords":   "golang",
			"frequency":  "weekly",
			"matchList":  "- Go Engineer at Acme Corp",
		},
	}}
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("alert-1", "user-1", registry.KeyJobAlert, "New jobs for your alert", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	report, err := d.Deliver(context.Background(), env)
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
	require.Len(t, sesMock.calls, 1)
	assert.Equal(t, "2 new jobs matching \"golang\"", *sesMock.calls[0].Message.Subject.Data)
	assert.Empty(t, snsMock.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStatusPayload(t *testing.T) {
	p := statusEnvelope("shortlisted").Payload
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "user-1", p.Recipient)
	assert.Equal(t, registry.KeyApplicationStatusChanged, p.TemplateKey)
	assert.Equal(t, "Pending", p.PreviousLabel)
	assert.Equal(t, "Shortlisted", p.CurrentLabel)
	assert.Equal(t, "Strong portfolio", p.Note)
	assert.False(t, p.CreatedAt.IsZero())

	pool := NewStatusPayload(models.StatusChange{Kind: "job_pool", CurrentStatus: "contacted"})
	assert.Equal(t, registry.KeyJobPoolStatusChanged, pool.TemplateKey)
}
