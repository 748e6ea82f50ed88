package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtycrm/pkg/agent"
)

func TestRenderAllTemplates(t *testing.T) {
	data := map[string]any{
		"full_name":          "Test Agent",
		"lead_name":          "Jane Doe",
		"source":             "website",
		"email":              "jane@example.com",
		"phone":              "555-0100",
		"property_address":   "12 Elm St",
		"status":             "under_contract",
		"notes":              "inspection waived",
		"deadline_name":      "financing",
		"due_date":           "2026-10-15",
		"days_remaining":     12,
		"date_range":         30,
		"total_leads":        10,
		"converted_leads":    4,
		"conversion_rate":    40.0,
		"total_transactions": 4,
		"summary":            "Strong month.",
		"start_time":         "2026-09-07T10:00",
		"end_time":           "2026-09-07T11:00",
		"location":           "12 Elm St",
		"description":        "walkthrough",
	}

	for _, name := range []string{
		TemplateWelcome, TemplateNewLead, TemplateTransactionUpdate,
		TemplateDeadlineReminder, TemplateAnalyticsReport, TemplateAppointmentConfirmation,
	} {
		t.Run(name, func(t *testing.T) {
			subject, body, err := Render(name, data)
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.NotEmpty(t, body)
		})
	}
}

func TestRenderSubjectInterpolation(t *testing.T) {
	subject, _, err := Render(TemplateNewLead, map[string]any{"lead_name": "Jane Doe", "source": "referral"})
	require.NoError(t, err)
	assert.Equal(t, "New lead assigned: Jane Doe", subject)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("no_such_template", nil)
	require.Error(t, err)
	assert.Equal(t, agent.ErrorTypeValidation, agent.TypeOf(err))
}

func TestRenderEscapesHTML(t *testing.T) {
	_, body, err := Render(TemplateNewLead, map[string]any{
		"lead_name": "<script>alert(1)</script>",
		"source":    "web",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestSendTemplateValidation(t *testing.T) {
	sender := NewSMTPMailer(Config{Host: "localhost", Port: 2525, From: "crm@example.com"})

	err := sender.SendTemplate("", TemplateWelcome, nil)
	require.Error(t, err)
	assert.Equal(t, agent.ErrorTypeValidation, agent.TypeOf(err))

	err = sender.SendTemplate("a@example.com", "bogus", nil)
	require.Error(t, err)
	assert.Equal(t, agent.ErrorTypeValidation, agent.TypeOf(err))
}

func TestSendTemplateUnreachableRelay(t *testing.T) {
	// Port 1 refuses connections
	sender := NewSMTPMailer(Config{Host: "127.0.0.1", Port: 1, From: "crm@example.com"})
	err := sender.SendTemplate("a@example.com", TemplateWelcome, nil)
	require.Error(t, err)
	assert.Equal(t, agent.ErrorTypeUnavailable, agent.TypeOf(err))
}
