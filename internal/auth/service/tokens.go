package service

import (
	"errors"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/pkg/jwtx"
)

// Token scopes. Access tokens carry ScopeAccount; a challenge token
// carries only ScopeChallenge so every account endpoint rejects it until
// the second factor is completed.
const (
	ScopeAccount   = "account"
	ScopeChallenge = "2fa"
)

var ErrNoSigner = errors.New("no signing key available")

// TokenIssuer mints the two JWT shapes the service hands out. Both are
// EdDSA-signed with the same key set; they differ only in scope, TTL and
// what their sid references (session row vs challenge row).
type TokenIssuer struct {
	Keys     *jwtx.KeyManager
	Issuer   string
	Audience []string

	AccessTokenTTL    time.Duration // defaults to jwtx.DefaultAccessTokenTTL
	ChallengeTokenTTL time.Duration // defaults to jwtx.DefaultChallengeTokenTTL
}

func (t *TokenIssuer) accessTTL() time.Duration {
	if t.AccessTokenTTL > 0 {
		return t.AccessTokenTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (t *TokenIssuer) challengeTTL() time.Duration {
	if t.ChallengeTokenTTL > 0 {
		return t.ChallengeTokenTTL
	}
	return jwtx.DefaultChallengeTokenTTL
}

// IssueAccessToken signs an access token bound to a session row.
func (t *TokenIssuer) IssueAccessToken(user domain.User, sessionID string, amr []string, now time.Time) (string, int64, error) {
	ttl := t.accessTTL()
	claims := jwtx.NewAccessClaims(
		user.ID, sessionID,
		[]string{ScopeAccount}, amr,
		ttl, t.Issuer, t.Audience, user.Username, now,
	)

	signer := t.Keys.GetSigner()
	if signer == nil {
		return "", 0, ErrNoSigner
	}

	token, err := signer.Sign(claims)
	if err != nil {
		return "", 0, err
	}
	return token, int64(ttl.Seconds()), nil
}

// IssueChallengeToken signs the short-lived token that gates the 2fa
// verification endpoints. Its sid references the pending challenge row.
func (t *TokenIssuer) IssueChallengeToken(user domain.User, challengeID string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		user.ID, challengeID,
		[]string{ScopeChallenge}, []string{"pwd"},
		t.challengeTTL(), t.Issuer, t.Audience, user.Username, now,
	)

	signer := t.Keys.GetSigner()
	if signer == nil {
		return "", ErrNoSigner
	}
	return signer.Sign(claims)
}
