package service_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/spendlyzer/auth/internal/auth/notify"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/internal/auth/store/drivers/sqlite"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "spendlyzer-auth"
	testPassword = "correct-horse-battery"
)

type sentCode struct {
	to   string
	code string
}

// fakeSender records dispatched codes and can be flipped into failure mode
// to simulate a provider outage.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentCode
	fail bool
}

func (f *fakeSender) SendCode(_ context.Context, to, code string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return notify.ErrDeliveryFailed
	}
	f.sent = append(f.sent, sentCode{to: to, code: code})
	return nil
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no code was dispatched")
	return f.sent[len(f.sent)-1].code
}

type env struct {
	store      store.Store
	tokens     *service.TokenIssuer
	signin     *service.SigninService
	challenges *service.ChallengeService
	twofactor  *service.TwoFactorService
	sessions   *service.SessionService
	devices    *service.DeviceService
	email      *fakeSender
	sms        *fakeSender
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:   testIssuer,
		Audience: []string{"spendlyzer"},
		NumKeys:  1,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := &service.TokenIssuer{Keys: km, Issuer: testIssuer, Audience: []string{"spendlyzer"}}
	sessions := &service.SessionService{Store: st, Tokens: tokens, Logger: logger}
	devices := &service.DeviceService{Store: st, Logger: logger}
	email := &fakeSender{}
	sms := &fakeSender{}
	challenges := &service.ChallengeService{
		Store:    st,
		Tokens:   tokens,
		Sessions: sessions,
		Devices:  devices,
		Email:    email,
		SMS:      sms,
		Logger:   logger,
	}
	twofactor := &service.TwoFactorService{
		Store:      st,
		Email:      email,
		SMS:        sms,
		TOTPIssuer: "Spendlyzer",
		Logger:     logger,
	}
	signin := &service.SigninService{
		Store:      st,
		Challenges: challenges,
		Sessions:   sessions,
		Devices:    devices,
		Logger:     logger,
	}

	return &env{
		store:      st,
		tokens:     tokens,
		signin:     signin,
		challenges: challenges,
		twofactor:  twofactor,
		sessions:   sessions,
		devices:    devices,
		email:      email,
		sms:        sms,
	}
}

func (e *env) signupUser(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := e.signin.Signup(context.Background(), username, username+"@example.com", testPassword)
	require.NoError(t, err)
	return user
}

// enableEmail2FA walks the full enrollment: enable, receive the setup
// code, verify it. Returns the backup codes shown to the user.
func (e *env) enableEmail2FA(t *testing.T, user domain.User) []string {
	t.Helper()
	ctx := context.Background()

	resp, err := e.twofactor.Enable(ctx, user, domain.MethodEmail, "")
	require.NoError(t, err)
	require.True(t, resp.SetupSent)

	codes, err := e.twofactor.VerifySetup(ctx, user.ID, e.email.lastCode(t))
	require.NoError(t, err)
	require.Len(t, codes, 10)
	return codes
}

func testDevice() fingerprint.Device {
	return fingerprint.Device{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:128.0) Gecko/20100101 Firefox/128.0",
		IPAddress: "203.0.113.9",
		Hash:      fingerprint.Hash("Firefox", "macOS", "Desktop", "en-AU", ""),
		Name:      "Desktop - macOS - Firefox",
	}
}

func otherDevice() fingerprint.Device {
	return fingerprint.Device{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0.0.0",
		IPAddress: "198.51.100.20",
		Hash:      fingerprint.Hash("Chrome", "Windows", "Desktop", "en-US", ""),
		Name:      "Desktop - Windows - Chrome",
	}
}

// beginChallenge signs a user in far enough to get a pending challenge id.
func (e *env) beginChallenge(t *testing.T, user domain.User) string {
	t.Helper()

	_, challenge, err := e.signin.Signin(context.Background(), service.SigninRequest{
		Login:    user.Username,
		Password: testPassword,
		Device:   testDevice(),
	})
	require.NoError(t, err)
	require.NotNil(t, challenge)

	claims, err := e.tokens.Keys.Verifier.Verify(challenge.ChallengeToken)
	require.NoError(t, err)
	return claims.SID
}
