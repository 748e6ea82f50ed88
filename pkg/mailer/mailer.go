// Package mailer sends templated notification mail over SMTP.
package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names accepted by SendTemplate.
const (
	TemplateWelcome                 = "welcome"
	TemplateNewLead                 = "new_lead"
	TemplateTransactionUpdate       = "transaction_update"
	TemplateDeadlineReminder        = "deadline_reminder"
	TemplateAnalyticsReport         = "analytics_report"
	TemplateAppointmentConfirmation = "appointment_confirmation"
)

var subjects = map[string]string{
	TemplateWelcome:                 "Welcome to your CRM",
	TemplateNewLead:                 "New lead assigned: {{.lead_name}}",
	TemplateTransactionUpdate:       "Transaction update: {{.property_address}}",
	TemplateDeadlineReminder:        "Deadline approaching: {{.deadline_name}}",
	TemplateAnalyticsReport:         "Your performance report",
	TemplateAppointmentConfirmation: "Appointment confirmed: {{.summary}}",
}

// Sender delivers one templated mail. Implementations must return an error
// on failure; callers treat delivery as part of the operation, never
// best-effort.
type Sender interface {
	SendTemplate(to, templateName string, data map[string]any) error
}

// Render produces the subject and HTML body for a template. Unknown
// template names are a validation error.
func Render(templateName string, data map[string]any) (subject, body string, err error) {
	subjectTmpl, ok := subjects[templateName]
	if !ok {
		return "", "", agent.ValidationError("mailer", "unknown template %q", templateName)
	}

	st, err := template.New("subject").Parse(subjectTmpl)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse subject for %s: %w", templateName, err)
	}
	var subjectBuf bytes.Buffer
	if err := st.Execute(&subjectBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject for %s: %w", templateName, err)
	}

	bt, err := template.ParseFS(templateFS, "templates/"+templateName+".tmpl")
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}
	var bodyBuf bytes.Buffer
	if err := bt.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return subjectBuf.String(), bodyBuf.String(), nil
}

// Config holds SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through a real SMTP relay.
type SMTPMailer struct {
	cfg    Config
	logger *logx.Logger
}

// NewSMTPMailer creates an SMTP-backed Sender.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logx.NewLogger("mailer")}
}

// SendTemplate renders the template and delivers it to one recipient.
func (m *SMTPMailer) SendTemplate(to, templateName string, data map[string]any) error {
	if to == "" {
		return agent.ValidationError("mailer", "recipient address is empty")
	}

	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}

	msg := buildMessage(m.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return agent.NewError(agent.ErrorTypeUnavailable, "mailer",
			fmt.Errorf("failed to send %s mail to %s: %w", templateName, to, err))
	}

	m.logger.Info("sent %s mail to %s", templateName, to)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
