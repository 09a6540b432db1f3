package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"scuola/internal/core"
	"scuola/internal/log"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// ErrNoRecipient marks a notice whose student has no guardian e-mail on file.
var ErrNoRecipient = errors.New("no guardian e-mail")

// Mail is a rendered guardian message.
type Mail struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends a rendered message.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

var htmlBody = template.Must(template.New("absentee").Parse(
	`<p>Dear {{.GuardianName}},</p>
<p>{{.StudentName}} (class {{.Class}}-{{.Section}}, admission no. {{.AdmissionNo}}) was marked absent on {{.Date}}.</p>
<p>Please contact the school office if this is unexpected.</p>
<p>{{.School}}</p>
`))

// Compose renders the guardian e-mail for n.
func Compose(n core.AbsenteeNotice) (Mail, error) {
	to := strings.TrimSpace(n.GuardianEmail)
	if to == "" {
		return Mail{}, fmt.Errorf("%w for %s", ErrNoRecipient, n.AdmissionNo)
	}
	if strings.TrimSpace(n.GuardianName) == "" {
		n.GuardianName = "Parent/Guardian"
	}
	var html bytes.Buffer
	if err := htmlBody.Execute(&html, n); err != nil {
		return Mail{}, fmt.Errorf("render notice: %w", err)
	}
	subject := fmt.Sprintf("Absence notice: %s on %s", n.StudentName, n.Date)
	if n.School != "" {
		subject = "[" + n.School + "] " + subject
	}
	text := fmt.Sprintf("Dear %s,\n\n%s (class %s-%s, admission no. %s) was marked absent on %s.\nPlease contact the school office if this is unexpected.\n\n%s\n",
		n.GuardianName, n.StudentName, n.Class, n.Section, n.AdmissionNo, n.Date, n.School)
	return Mail{
		ToName:  n.GuardianName,
		ToEmail: to,
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogMailer{logger: logger.WithComponent(log.ComponentNotify)}
}

func (l *LogMailer) Send(ctx context.Context, m Mail) error {
	l.logger.InfoContext(ctx, "Mail (not sent)", "to", m.ToEmail, "subject", m.Subject)
	return nil
}

// SendGridMailer sends through the SendGrid v3 mail API.
type SendGridMailer struct {
	key  string
	from *sgmail.Email
	host string
}

func NewSendGridMailer(key, fromName, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		key:  key,
		from: sgmail.NewEmail(fromName, fromEmail),
		host: sendgridHost,
	}
}

func (s *SendGridMailer) prepare(m Mail) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.Subject
	p.AddTos(sgmail.NewEmail(m.ToName, m.ToEmail))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(s.from)
	msg.AddPersonalizations(p)
	msg.AddContent(
		sgmail.NewContent("text/plain", m.Text),
		sgmail.NewContent("text/html", m.HTML),
	)
	return msg
}

func (s *SendGridMailer) Send(ctx context.Context, m Mail) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(m))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
