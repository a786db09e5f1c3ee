package mailer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Console logs messages instead of sending them and keeps them for
// inspection. Used in development and tests.
type Console struct {
	log *logrus.Entry
	// Err, when set, is returned by every Send.
	Err error

	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*Console)(nil)

func NewConsole() *Console {
	return &Console{log: logrus.WithField("component", "mailer")}
}

func (c *Console) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Err != nil {
		return c.Err
	}
	files := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		files = append(files, a.FileName)
	}
	c.log.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": files,
	}).Info("email")
	if msg.Text != "" {
		c.log.Debug(msg.Text)
	}

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of the delivered messages.
func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}
