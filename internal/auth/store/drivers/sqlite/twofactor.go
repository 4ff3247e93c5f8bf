package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
)

type twoFactorRepo struct {
	db dbtx
}

func (r *twoFactorRepo) GetTwoFactor(ctx context.Context, userID string) (domain.TwoFactor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, method, secret, phone, enabled_at, updated_at
		 FROM two_factor WHERE user_id = ?`, userID)

	var (
		t         domain.TwoFactor
		method    string
		secret    sql.NullString
		phone     sql.NullString
		enabledAt sql.NullTime
	)
	if err := row.Scan(&t.UserID, &method, &secret, &phone, &enabledAt, &t.UpdatedAt); err != nil {
		return domain.TwoFactor{}, mapNotFound(err)
	}

	t.Method = domain.Method(method)
	t.Secret = mapNullStringPtr(secret)
	t.Phone = mapNullStringPtr(phone)
	t.EnabledAt = mapNullTimePtr(enabledAt)
	return t, nil
}

func (r *twoFactorRepo) UpsertTwoFactor(ctx context.Context, t domain.TwoFactor) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO two_factor (user_id, method, secret, phone, enabled_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   method = excluded.method,
		   secret = excluded.secret,
		   phone = excluded.phone,
		   enabled_at = excluded.enabled_at,
		   updated_at = excluded.updated_at`,
		t.UserID, t.Method.String(), mapOptionalString(t.Secret), mapOptionalString(t.Phone),
		mapOptionalTime(t.EnabledAt), t.UpdatedAt)
	return err
}

func (r *twoFactorRepo) EnableTwoFactor(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE two_factor SET enabled_at = ?, updated_at = ? WHERE user_id = ?`,
		at, at, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *twoFactorRepo) DeleteTwoFactor(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM two_factor WHERE user_id = ?`, userID)
	return err
}
