// Package mailer sends transactional email: seat assignments, registration
// receipts and password resets.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Sender delivers one message synchronously. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Attachment is a file sent along with a message.
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Message struct {
	ToName      string
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// HasContent reports whether the message carries a body or a file.
func (m Message) HasContent() bool {
	return m.Text != "" || m.HTML != "" || len(m.Attachments) > 0
}

func pdfAttachment(name string, pdf []byte) []Attachment {
	if len(pdf) == 0 {
		return nil
	}
	return []Attachment{{FileName: name, ContentType: "application/pdf", Content: pdf}}
}

func fileBase(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func htmlList(items []string) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, it := range items {
		b.WriteString("<li>" + html.EscapeString(it) + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// AssignmentMessage notifies a recipient of manually assigned seats. The
// receipt is attached and linked.
func AssignmentMessage(name, email string, seats []string, notes, receiptURL string, pdf []byte, fileName string) Message {
	text := fmt.Sprintf("Hello %s,\n\n%s\n\nAssigned seats:\n- %s\n\nYour receipt: %s\n",
		name, notes, strings.Join(seats, "\n- "), receiptURL)
	body := fmt.Sprintf("<p>Hello %s,</p><p>%s</p><p>Assigned seats:</p>%s<p><a href=\"%s\">Download your receipt</a></p>",
		html.EscapeString(name), html.EscapeString(notes), htmlList(seats), html.EscapeString(receiptURL))
	return Message{
		ToName:      name,
		To:          email,
		Subject:     fmt.Sprintf("Seat assignment: %d seat(s)", len(seats)),
		Text:        text,
		HTML:        body,
		Attachments: pdfAttachment(fileBase(fileName), pdf),
	}
}

// RegistrationMessage confirms a submitted registration.
func RegistrationMessage(name, email string, seats []string, receiptURL string, pdf []byte, fileName string) Message {
	text := fmt.Sprintf("Hello %s,\n\nWe received your registration for %d seat(s):\n- %s\n\nYour receipt: %s\n",
		name, len(seats), strings.Join(seats, "\n- "), receiptURL)
	body := fmt.Sprintf("<p>Hello %s,</p><p>We received your registration for %d seat(s):</p>%s<p><a href=\"%s\">Download your receipt</a></p>",
		html.EscapeString(name), len(seats), htmlList(seats), html.EscapeString(receiptURL))
	return Message{
		ToName:      name,
		To:          email,
		Subject:     "Registration received",
		Text:        text,
		HTML:        body,
		Attachments: pdfAttachment(fileBase(fileName), pdf),
	}
}

// PasswordResetMessage carries the reset link.
func PasswordResetMessage(email, link string) Message {
	return Message{
		To:      email,
		Subject: "Reset your password",
		Text:    "Use this link to choose a new password: " + link + "\n\nIf you did not ask for it, ignore this email.\n",
		HTML: fmt.Sprintf("<p>Use <a href=\"%s\">this link</a> to choose a new password.</p><p>If you did not ask for it, ignore this email.</p>",
			html.EscapeString(link)),
	}
}
