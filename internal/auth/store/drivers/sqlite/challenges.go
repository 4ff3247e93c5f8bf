package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
)

type challengesRepo struct {
	db dbtx
}

const challengeColumns = `id, user_id, method, attempts, created_at, expires_at`

func scanChallenge(row *sql.Row) (domain.Challenge, error) {
	var (
		c      domain.Challenge
		method string
	)
	err := row.Scan(&c.ID, &c.UserID, &method, &c.Attempts, &c.CreatedAt, &c.ExpiresAt)
	c.Method = domain.Method(method)
	return c, err
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenges (id, user_id, method, attempts, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Method.String(), c.Attempts, c.CreatedAt, c.ExpiresAt)
	return err
}

func (r *challengesRepo) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, id string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE challenges SET attempts = attempts + 1 WHERE id = ?
		 RETURNING `+challengeColumns, id)
	c, err := scanChallenge(row)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	// Bind now from Go so both sides of the comparison use the driver's
	// own timestamp encoding.
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at < ?`, time.Now().UTC())
	return err
}
