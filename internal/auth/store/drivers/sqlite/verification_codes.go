package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
)

type verificationCodesRepo struct {
	db dbtx
}

const verificationCodeColumns = `id, challenge_id, code_hash, created_at, expires_at, consumed_at`

func scanVerificationCode(row *sql.Row) (domain.VerificationCode, error) {
	var (
		c        domain.VerificationCode
		consumed sql.NullTime
	)
	err := row.Scan(&c.ID, &c.ChallengeID, &c.CodeHash, &c.CreatedAt, &c.ExpiresAt, &consumed)
	c.ConsumedAt = mapNullTimePtr(consumed)
	return c, err
}

func (r *verificationCodesRepo) CreateVerificationCode(ctx context.Context, c domain.VerificationCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_codes (id, challenge_id, code_hash, created_at, expires_at, consumed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ChallengeID, c.CodeHash, c.CreatedAt, c.ExpiresAt, mapOptionalTime(c.ConsumedAt))
	return err
}

func (r *verificationCodesRepo) GetActiveVerificationCode(ctx context.Context, challengeID string) (domain.VerificationCode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+verificationCodeColumns+`
		 FROM verification_codes
		 WHERE challenge_id = ? AND consumed_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, challengeID)
	c, err := scanVerificationCode(row)
	if err != nil {
		return domain.VerificationCode{}, mapNotFound(err)
	}
	return c, nil
}

func (r *verificationCodesRepo) GetLatestVerificationCode(ctx context.Context, challengeID string) (domain.VerificationCode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+verificationCodeColumns+`
		 FROM verification_codes
		 WHERE challenge_id = ?
		 ORDER BY created_at DESC LIMIT 1`, challengeID)
	c, err := scanVerificationCode(row)
	if err != nil {
		return domain.VerificationCode{}, mapNotFound(err)
	}
	return c, nil
}

// ConsumeVerificationCode is a compare-and-set on consumed_at. When two
// requests race to redeem the same code, the guarded UPDATE lets exactly
// one of them through.
func (r *verificationCodesRepo) ConsumeVerificationCode(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verification_codes SET consumed_at = ?
		 WHERE id = ? AND consumed_at IS NULL`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *verificationCodesRepo) DeleteVerificationCodes(ctx context.Context, challengeID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE challenge_id = ?`, challengeID)
	return err
}

func (r *verificationCodesRepo) DeleteExpiredVerificationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE expires_at < ?`, time.Now().UTC())
	return err
}
