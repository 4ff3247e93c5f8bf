package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/jwtx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	SigninService    *service.SigninService
	ChallengeService *service.ChallengeService
	TwoFactorService *service.TwoFactorService
	SessionService   *service.SessionService
	DeviceService    *service.DeviceService
	UserService      *service.UserService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerChallenge()
	r.registerTwoFactor()
	r.registerSessions()
	r.registerDevices()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// sessionGuard confirms the session behind the access token still exists
// and bumps its activity. A revoked session reads as an invalid token, so
// revocation takes effect on the next request rather than at token expiry.
func (r *Router) sessionGuard() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims, ok := req.Context().Value(httpx.CtxKeyClaims).(jwtx.Claims)
			if !ok || claims.SID == "" {
				authsdk.ErrInvalidToken.WriteError(w)
				return
			}

			if err := r.SessionService.Heartbeat(req.Context(), claims.SID); err != nil {
				if errors.Is(err, service.ErrSessionRevoked) {
					authsdk.ErrInvalidToken.WriteError(w)
					return
				}
				slogx.FromContext(req.Context()).Error("session check failed", "err", err)
				authsdk.ErrServerError.WriteError(w)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// account wraps a handler with the full stack for signed-in endpoints:
// token verification, account scope, live session and per-user limiting.
func (r *Router) account(h http.Handler, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(service.ScopeAccount),
		r.sessionGuard(),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{SigninService: r.SigninService}

	// POST /signup - strict rate limit by IP (public account creation)
	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /signin - strict rate limit by IP + login form field to slow
	// credential stuffing against a single account
	r.Mux.Handle("POST /v1/auth/signin",
		httpx.Chain(http.HandlerFunc(h.HandleSignin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "login"),
		),
	)
}

func (r *Router) registerChallenge() {
	h := &ChallengeHandler{ChallengeService: r.ChallengeService}

	// Both endpoints accept only the challenge token, never a full access
	// token: its single scope keeps a half-done signin away from account
	// data, and an account token cannot drive the second-factor step.
	challenge := func(hf http.HandlerFunc) http.Handler {
		return httpx.Chain(hf,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(service.ScopeChallenge),
			httpx.RateLimitByUser(httpx.StrictLimit),
		)
	}

	r.Mux.Handle("POST /v1/auth/2fa/send-code", challenge(h.HandleSendCode))
	r.Mux.Handle("POST /v1/auth/2fa/verify", challenge(h.HandleVerify))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{
		TwoFactorService: r.TwoFactorService,
		UserService:      r.UserService,
	}

	r.Mux.Handle("GET /v1/2fa", r.account(http.HandlerFunc(h.HandleSettings), httpx.LenientLimit))
	r.Mux.Handle("POST /v1/2fa/enable", r.account(http.HandlerFunc(h.HandleEnable), httpx.ModerateLimit))
	// Strict: setup codes are brute-forceable
	r.Mux.Handle("POST /v1/2fa/verify-setup", r.account(http.HandlerFunc(h.HandleVerifySetup), httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/2fa", r.account(http.HandlerFunc(h.HandleDisable), httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/2fa/backup-codes", r.account(http.HandlerFunc(h.HandleRegenerateBackupCodes), httpx.ModerateLimit))
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{SessionService: r.SessionService}

	r.Mux.Handle("GET /v1/sessions", r.account(http.HandlerFunc(h.HandleList), httpx.LenientLimit))
	r.Mux.Handle("DELETE /v1/sessions/{id}", r.account(http.HandlerFunc(h.HandleRevoke), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/sessions", r.account(http.HandlerFunc(h.HandleRevokeAll), httpx.ModerateLimit))
}

func (r *Router) registerDevices() {
	h := &DevicesHandler{
		DeviceService:  r.DeviceService,
		SessionService: r.SessionService,
	}

	r.Mux.Handle("GET /v1/devices", r.account(http.HandlerFunc(h.HandleList), httpx.LenientLimit))
	r.Mux.Handle("DELETE /v1/devices/{id}", r.account(http.HandlerFunc(h.HandleRevoke), httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/devices", r.account(http.HandlerFunc(h.HandleRevokeAll), httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
