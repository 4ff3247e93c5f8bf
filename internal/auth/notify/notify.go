// Package notify delivers out-of-band verification codes to users over
// email or sms. Senders are interfaces so services can be tested with
// in-memory fakes and deployments can swap providers.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrDeliveryFailed wraps any transport failure so callers can react
// uniformly without inspecting provider errors.
var ErrDeliveryFailed = errors.New("code delivery failed")

// DefaultSendTimeout bounds a single delivery attempt. Sign-in latency
// should never hang on a slow SMTP or sms provider.
const DefaultSendTimeout = 10 * time.Second

// CodeSender delivers a short-lived verification code to a destination
// address (email address or phone number depending on the transport).
type CodeSender interface {
	SendCode(ctx context.Context, to string, code string, ttl time.Duration) error
}
