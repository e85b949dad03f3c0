package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	StartTLS  bool
	Timeout   time.Duration
	RateLimit float64 // messages per second, 0 disables throttling
	RateBurst int
}

// Attachment is a file attached to a message
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is one outgoing email
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers messages through an SMTP server
type Sender struct {
	config  *Config
	client  *mail.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSender creates an SMTP sender. No connection is made until Send.
func NewSender(config *Config, logger *slog.Logger) (*Sender, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
	}
	if config.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(config.Timeout))
	}

	if config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if config.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	logger.Info("SMTP sender initialized",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.Float64("rate_limit", config.RateLimit),
	)

	return &Sender{
		config:  config,
		client:  client,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Send delivers msg. Any error is returned as-is; the caller decides whether to retry.
func (s *Sender) Send(ctx context.Context, msg *Message) error {
	m, err := buildMessage(s.config.From, msg)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail rate limiter: %w", err)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.logger.Info("Mail sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

// buildMessage converts msg into a go-mail message
func buildMessage(from string, msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}

	return m, nil
}
