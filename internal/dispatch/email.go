package dispatch

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"offerwatch/internal/model"
)

// Mailer sends composed messages over SMTP.
type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailChannel delivers notifications by e-mail.
type EmailChannel struct {
	mailer Mailer
	from   string
}

// NewEmailChannel creates an EmailChannel backed by an SMTP client.
func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
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
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return NewEmailChannelWithMailer(client, cfg.From), nil
}

// NewEmailChannelWithMailer creates an EmailChannel with a custom mailer.
func NewEmailChannelWithMailer(m Mailer, from string) *EmailChannel {
	return &EmailChannel{mailer: m, from: from}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Deliver implements Channel.
func (c *EmailChannel) Deliver(ctx context.Context, to model.Recipient, n model.Notification) error {
	if to.Email == "" {
		return fmt.Errorf("user %s: %w", to.UserID, ErrNoAddress)
	}

	msg := mail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to.Email); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(n.Title)
	msg.SetBodyString(mail.TypeTextPlain, FormatNotification(n))

	if err := c.mailer.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
