package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Account carries the SMTP settings and credentials for one sending mailbox.
type Account struct {
	Host     string // SMTP host.
	Port     int    // SMTP port.
	Secure   bool   // Implicit TLS instead of STARTTLS.
	Username string // SMTP username, usually the email address.
	Password string // Account or app password, or the access token for OAuth.
	OAuth    bool   // Authenticate with XOAUTH2 instead of a password.
}

// Message is one outbound email.
type Message struct {
	From     string   // Sender address.
	FromName string   // Optional sender display name.
	To       []string // Primary recipients.
	Cc       []string // Carbon-copy recipients.
	Bcc      []string // Blind-copy recipients.
	Subject  string   // Subject line.
	HTMLBody string   // HTML body, preferred when set.
	TextBody string   // Plain-text body.
}

// Transport tests SMTP credentials and delivers messages.
type Transport interface {
	// Test dials and authenticates without sending anything.
	Test(ctx context.Context, acct Account) error
	// Send delivers the message and returns the generated message ID.
	Send(ctx context.Context, acct Account, msg Message) (string, error)
}

// SMTPTransport delivers mail over authenticated SMTP.
type SMTPTransport struct {
	timeout time.Duration
}

// NewSMTPTransport constructs an SMTPTransport with the given dial timeout.
func NewSMTPTransport(timeout time.Duration) *SMTPTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMTPTransport{timeout: timeout}
}

func (t *SMTPTransport) client(acct Account) (*mail.Client, error) {
	auth := mail.SMTPAuthPlain
	if acct.OAuth {
		auth = mail.SMTPAuthXOAUTH2
	}
	opts := []mail.Option{
		mail.WithPort(acct.Port),
		mail.WithSMTPAuth(auth),
		mail.WithUsername(acct.Username),
		mail.WithPassword(acct.Password),
		mail.WithTimeout(t.timeout),
	}
	if acct.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(acct.Host, opts...)
}

// Test dials the SMTP server and authenticates, then disconnects.
func (t *SMTPTransport) Test(ctx context.Context, acct Account) error {
	client, errClient := t.client(acct)
	if errClient != nil {
		return fmt.Errorf("smtp client: %w", errClient)
	}
	if errDial := client.DialWithContext(ctx); errDial != nil {
		return fmt.Errorf("smtp connection failed: %w", errDial)
	}
	return client.Close()
}

// Send delivers one message through the account's SMTP server.
func (t *SMTPTransport) Send(ctx context.Context, acct Account, msg Message) (string, error) {
	m := mail.NewMsg()
	if msg.FromName != "" {
		if errFrom := m.FromFormat(msg.FromName, msg.From); errFrom != nil {
			return "", fmt.Errorf("from address: %w", errFrom)
		}
	} else if errFrom := m.From(msg.From); errFrom != nil {
		return "", fmt.Errorf("from address: %w", errFrom)
	}
	if errTo := m.To(msg.To...); errTo != nil {
		return "", fmt.Errorf("to addresses: %w", errTo)
	}
	if len(msg.Cc) > 0 {
		if errCc := m.Cc(msg.Cc...); errCc != nil {
			return "", fmt.Errorf("cc addresses: %w", errCc)
		}
	}
	if len(msg.Bcc) > 0 {
		if errBcc := m.Bcc(msg.Bcc...); errBcc != nil {
			return "", fmt.Errorf("bcc addresses: %w", errBcc)
		}
	}
	m.Subject(msg.Subject)
	if msg.HTMLBody != "" {
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
		if msg.TextBody != "" {
			m.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
		}
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}
	m.SetMessageID()

	client, errClient := t.client(acct)
	if errClient != nil {
		return "", fmt.Errorf("smtp client: %w", errClient)
	}
	if errSend := client.DialAndSendWithContext(ctx, m); errSend != nil {
		return "", errSend
	}

	var messageID string
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		messageID = ids[0]
	}
	return messageID, nil
}

// Ensure SMTPTransport implements Transport.
var _ Transport = (*SMTPTransport)(nil)
