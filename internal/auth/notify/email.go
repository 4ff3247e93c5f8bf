package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	mail "github.com/go-mail/mail"
)

// SMTPConfig carries the dialer settings for the email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS negotiates TLS on a plaintext connection; when false the
	// dialer connects over implicit TLS instead.
	StartTLS bool
}

// EmailSender delivers verification codes over SMTP using go-mail.
type EmailSender struct {
	Config  SMTPConfig
	Logger  *slog.Logger
	Subject string
	Timeout time.Duration
}

func NewEmailSender(cfg SMTPConfig, logger *slog.Logger) *EmailSender {
	return &EmailSender{
		Config:  cfg,
		Logger:  logger,
		Subject: "Your Spendlyzer verification code",
		Timeout: DefaultSendTimeout,
	}
}

// SendCode emails the verification code. The context deadline is honoured
// by running the blocking dial in a goroutine; go-mail itself has no
// context support.
func (s *EmailSender) SendCode(ctx context.Context, to string, code string, ttl time.Duration) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.Config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", s.Subject)
	m.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s. It expires in %d minutes.\n\nIf you did not request this code, you can ignore this message.",
		code, int(ttl.Minutes()),
	))

	d := mail.NewDialer(s.Config.Host, s.Config.Port, s.Config.Username, s.Config.Password)
	d.TLSConfig = &tls.Config{ServerName: s.Config.Host}
	if !s.Config.StartTLS {
		d.SSL = true
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			s.logger().Error("failed to send verification email",
				slog.String("host", s.Config.Host),
				slog.Any("error", err),
			)
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
	case <-ctx.Done():
		s.logger().Error("verification email timed out",
			slog.String("host", s.Config.Host),
		)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, ctx.Err())
	}

	s.logger().Info("verification email sent")
	return nil
}

func (s *EmailSender) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
