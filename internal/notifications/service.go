package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ocdul/social-listening/internal/config"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// maxListedEdits caps the per-edit lines of a report
const maxListedEdits = 20

// Service sends editor batch reports via Teams and email
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether any channel is configured
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendEditorReport sends the outcome of a queue apply via configured channels
func (s *Service) SendEditorReport(ctx context.Context, report *models.EditorReport) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, report); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Sent editor report to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Sent editor report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, report *models.EditorReport) error {
	message := buildTeamsMessage(report)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func buildTeamsMessage(report *models.EditorReport) *TeamsMessage {
	message := &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Super Editor - alert %d", report.AlertID),
		Text:    fmt.Sprintf("%s applied %d change(s): %d succeeded, %d failed", report.Actor, report.Succeeded+report.Failed, report.Succeeded, report.Failed),
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Analyst", Value: report.Actor},
			{Name: "Succeeded", Value: fmt.Sprintf("%d", report.Succeeded)},
			{Name: "Failed", Value: fmt.Sprintf("%d", report.Failed)},
			{Name: "Generated", Value: report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	if len(report.Outcomes) > 0 {
		var lines []string
		for i, o := range report.Outcomes {
			if i == maxListedEdits {
				lines = append(lines, fmt.Sprintf("... and %d more", len(report.Outcomes)-maxListedEdits))
				break
			}
			lines = append(lines, fmt.Sprintf("%s **%s** %s: %s", statusMark(o.OK), o.Edit.Action, o.Edit.RecordKey, o.Detail))
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Changes",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}

func statusMark(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}

func (s *Service) sendEmail(report *models.EditorReport) error {
	subject := fmt.Sprintf("Super Editor report - alert %d (%d ok, %d failed)", report.AlertID, report.Succeeded, report.Failed)

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", buildEmailText(report))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"status": statusMark,
}).Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Super Editor report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #0078d4; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .edit { border-left: 4px solid #107c10; padding: 8px; margin: 6px 0; background-color: #fafafa; }
        .failed { border-left-color: #d13438; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Super Editor report</h1>
        <p>Alert {{.AlertID}}, generated {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>

    <div class="summary">
        <p><strong>Analyst:</strong> {{.Actor}}</p>
        <p><strong>Succeeded:</strong> {{.Succeeded}}</p>
        <p><strong>Failed:</strong> {{.Failed}}</p>
    </div>

    {{range .Outcomes}}
    <div class="edit{{if not .OK}} failed{{end}}">
        <strong>{{status .OK}}</strong> {{.Edit.Action}} {{.Edit.RecordKey}}: {{.Detail}}
        <div><small>{{.Edit.TextPreview}}</small></div>
    </div>
    {{end}}
</body>
</html>
`))

func buildEmailHTML(report *models.EditorReport) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(report *models.EditorReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Super Editor report - alert %d\n", report.AlertID))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Analyst: %s\n", report.Actor))
	text.WriteString(fmt.Sprintf("Succeeded: %d\n", report.Succeeded))
	text.WriteString(fmt.Sprintf("Failed: %d\n", report.Failed))

	if len(report.Outcomes) > 0 {
		text.WriteString("\nCHANGES\n")
		text.WriteString("=======\n")
		for i, o := range report.Outcomes {
			if i == maxListedEdits {
				text.WriteString(fmt.Sprintf("... and %d more\n", len(report.Outcomes)-maxListedEdits))
				break
			}
			text.WriteString(fmt.Sprintf("%d. [%s] %s %s\n", i+1, statusMark(o.OK), o.Edit.Action, o.Edit.RecordKey))
			text.WriteString(fmt.Sprintf("   %s\n", o.Detail))
		}
	}

	return text.String()
}
