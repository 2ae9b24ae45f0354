package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/internal/config"
	"github.com/fastygo/taskdesk/usecase"
)

const dueLayout = "Monday, 02 January 2006"

var assignmentBody = template.Must(template.New("assignment").Parse(`Hello {{.RecipientName}},

You have been assigned a new task.

Title:       {{.Title}}
Priority:    {{.Priority}}
Due:         {{.Due}}

{{.Description}}
{{- if .Instruction}}

Instructions:
{{.Instruction}}
{{- end}}
{{- if .AssignerEmail}}

Assigned by {{.AssignerEmail}}.
{{- end}}
`))

// Sender is the part of the SMTP client the mailer needs.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends assignment notices over SMTP.
type Mailer struct {
	sender  Sender
	from    string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds an SMTP client from configuration. Authentication is only
// negotiated when a username is set.
func New(cfg config.MailConfig, logger *zap.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is not configured")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return NewWithSender(client, cfg.From, cfg.Timeout, logger), nil
}

func NewWithSender(sender Sender, from string, timeout time.Duration, logger *zap.Logger) *Mailer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{sender: sender, from: from, timeout: timeout, logger: logger}
}

// NotifyAssignment e-mails the assignee.
func (m *Mailer) NotifyAssignment(ctx context.Context, notice usecase.AssignmentNotice) error {
	msg, err := m.Compose(notice)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send assignment notice: %w", err)
	}
	m.logger.Info("assignment notice sent",
		zap.String("task_id", notice.TaskID),
		zap.String("recipient", notice.RecipientEmail))
	return nil
}

// Compose renders notice into a message.
func (m *Mailer) Compose(notice usecase.AssignmentNotice) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(notice.RecipientEmail); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	if notice.AssignerEmail != "" {
		if err := msg.ReplyTo(notice.AssignerEmail); err != nil {
			m.logger.Debug("ignoring invalid reply-to", zap.String("address", notice.AssignerEmail), zap.Error(err))
		}
	}
	msg.Subject(Subject(notice))

	body, err := RenderBody(notice)
	if err != nil {
		return nil, err
	}
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func Subject(notice usecase.AssignmentNotice) string {
	return "New task assigned: " + notice.Title
}

// RenderBody formats the plain-text notice.
func RenderBody(notice usecase.AssignmentNotice) (string, error) {
	data := struct {
		usecase.AssignmentNotice
		Due string
	}{AssignmentNotice: notice}
	if !notice.DueDate.IsZero() {
		data.Due = notice.DueDate.Format(dueLayout)
	}

	var buf bytes.Buffer
	if err := assignmentBody.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render assignment notice: %w", err)
	}
	return buf.String(), nil
}

var _ usecase.Notifier = (*Mailer)(nil)
