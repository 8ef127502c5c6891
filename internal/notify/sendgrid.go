package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridProvider sends plain text email through SendGrid.
type SendgridProvider struct {
	key     string
	host    string
	from    *sgmail.Email
	subject string
}

func NewSendgridProvider(key, fromName, fromEmail, subject string) *SendgridProvider {
	return &SendgridProvider{
		key:     key,
		host:    sendgridHost,
		from:    sgmail.NewEmail(fromName, fromEmail),
		subject: subject,
	}
}

func (p *SendgridProvider) message(to, body string) *sgmail.SGMailV3 {
	pers := sgmail.NewPersonalization()
	pers.Subject = p.subject
	pers.AddTos(sgmail.NewEmail("", to))

	m := sgmail.NewV3Mail()
	m.SetFrom(p.from)
	m.AddPersonalizations(pers)
	m.AddContent(sgmail.NewContent("text/plain", body))
	return m
}

func (p *SendgridProvider) Send(ctx context.Context, to, body string) error {
	if to == "" {
		return errors.New("sendgrid: recipient email is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(p.key, sendgridEndpoint, p.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(p.message(to, body))
	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sendgrid: send")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
