package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/ports"
)

// NotifierConfig holds usage notifier configuration
type NotifierConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	BaseURL        string
}

// UsageNotifier delivers warning-zone notices to the organization's billing
// contact via SendGrid.
type UsageNotifier struct {
	config *NotifierConfig
	logger *logrus.Logger
	client *sendgrid.Client
	tmpl   *template.Template
}

const quotaWarningTemplate = `
<html>
<body>
	<p>Hello {{.OrganizationName}},</p>
	<p>Your organization has used {{.Used}} of {{.Limit}} monthly {{.Resource}}
	({{printf "%.0f" .Percentage}}%). The quota resets in {{.ResetsInDays}} day(s).</p>
	<p><a href="{{.UsageURL}}">Review your usage</a></p>
</body>
</html>
`

type quotaWarningData struct {
	OrganizationName string
	Resource         string
	Used             int
	Limit            int
	Percentage       float64
	ResetsInDays     int
	UsageURL         string
}

func NewUsageNotifier(config *NotifierConfig, logger *logrus.Logger) (ports.UsageNotifier, error) {
	tmpl, err := template.New("quota_warning").Parse(quotaWarningTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quota warning template: %w", err)
	}
	return &UsageNotifier{
		config: config,
		logger: logger,
		client: sendgrid.NewSendClient(config.SendGridAPIKey),
		tmpl:   tmpl,
	}, nil
}

// QuotaWarning sends the approaching-limit notice. Callers treat delivery as
// best-effort; a failed send never affects admission.
func (n *UsageNotifier) QuotaWarning(ctx context.Context, o *org.Organization, view *quota.UsageView) error {
	if o.BillingEmail == "" {
		return fmt.Errorf("organization %s has no billing email", o.ID)
	}
	limitValue := 0
	if view.Limit != nil {
		limitValue = *view.Limit
	}

	data := quotaWarningData{
		OrganizationName: o.Name,
		Resource:         string(view.Resource),
		Used:             view.Used,
		Limit:            limitValue,
		Percentage:       view.Percentage,
		ResetsInDays:     view.ResetsInDays,
		UsageURL:         fmt.Sprintf("%s/usage", n.config.BaseURL),
	}

	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render quota warning template: %w", err)
	}

	from := mail.NewEmail(n.config.FromName, n.config.FromEmail)
	recipient := mail.NewEmail(o.Name, o.BillingEmail)
	subject := fmt.Sprintf("Approaching your monthly %s quota", view.Resource)
	message := mail.NewSingleEmail(from, subject, recipient, "", buf.String())

	response, err := n.client.Send(message)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"organization_id": o.ID,
			"resource":        view.Resource,
			"error":           err,
		}).Error("Failed to send quota warning email")
		return fmt.Errorf("failed to send quota warning email: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"organization_id": o.ID,
		"resource":        view.Resource,
		"status_code":     response.StatusCode,
	}).Info("Quota warning email sent")

	return nil
}

// LogNotifier writes warning-zone transitions to the structured log. Used in
// development and as the default driver.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) ports.UsageNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) QuotaWarning(ctx context.Context, o *org.Organization, view *quota.UsageView) error {
	n.logger.WithFields(logrus.Fields{
		"organization_id": o.ID,
		"resource":        view.Resource,
		"used":            view.Used,
		"percentage":      view.Percentage,
		"resets_in_days":  view.ResetsInDays,
	}).Warn("organization entered quota warning zone")
	return nil
}
