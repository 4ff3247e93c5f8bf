package notify

import (
	"context"
	"log/slog"
	"time"
)

// LogSender writes codes to the log instead of a real delivery channel.
// Used in development and anywhere no provider is configured; production
// deployments inject a real gateway behind the same CodeSender interface.
type LogSender struct {
	Channel string // e.g. "sms", "email"
	Logger  *slog.Logger
}

func (s *LogSender) SendCode(_ context.Context, to string, code string, ttl time.Duration) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification code dispatch (log sender)",
		slog.String("channel", s.Channel),
		slog.String("to", maskDestination(to)),
		slog.String("code", code),
		slog.Duration("ttl", ttl),
	)
	return nil
}

// maskDestination keeps only the last three characters for log output.
func maskDestination(dest string) string {
	if len(dest) <= 3 {
		return "***"
	}
	return "***" + dest[len(dest)-3:]
}
