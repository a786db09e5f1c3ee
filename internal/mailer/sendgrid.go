package mailer

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Sendgrid delivers through the Sendgrid v3 API.
type Sendgrid struct {
	key  string
	host string
	from *sgmail.Email
}

var _ Sender = (*Sendgrid)(nil)

func NewSendgrid(key, fromName, fromAddress string) *Sendgrid {
	return &Sendgrid{key: key, host: sendgridHost, from: sgmail.NewEmail(fromName, fromAddress)}
}

// WithHost points the sender at another API host.
func (s *Sendgrid) WithHost(host string) *Sendgrid {
	s.host = host
	return s
}

func (s *Sendgrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.ContentType,
			Filename:    a.FileName,
			Disposition: "attachment",
		})
	}
	return m
}

func (s *Sendgrid) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("send email: no recipient")
	}
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "send email")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("send email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
