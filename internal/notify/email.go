package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends plain-text mail over SMTP. smtp.SendMail upgrades to
// STARTTLS when the server offers it.
type Email struct {
	host      string
	port      int
	username  string
	password  string
	recipient string
	sendMail  SendMailFunc
	now       func() time.Time
}

// EmailOption configures an Email channel.
type EmailOption func(*Email)

// WithSendMail replaces the SMTP transport.
func WithSendMail(fn SendMailFunc) EmailOption {
	return func(e *Email) {
		e.sendMail = fn
	}
}

// NewEmail creates an Email channel. username doubles as the From address.
func NewEmail(host string, port int, username, password, recipient string, opts ...EmailOption) *Email {
	e := &Email{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		recipient: recipient,
		sendMail:  smtp.SendMail,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Channel.
func (e *Email) Name() string { return "email" }

// Enabled reports whether all credentials are present.
func (e *Email) Enabled() bool {
	return e.host != "" && e.username != "" && e.password != "" && e.recipient != ""
}

// Send implements Channel. net/smtp has no context support, so ctx is only
// checked before dialing; the dispatcher's timeout bounds the call.
func (e *Email) Send(ctx context.Context, msg Message) error {
	if !e.Enabled() {
		return fmt.Errorf("email: %w", ErrDisabled)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := e.sendMail(addr, auth, e.username, []string{e.recipient}, e.compose(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *Email) compose(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + e.username + "\r\n")
	b.WriteString("To: " + e.recipient + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + e.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
