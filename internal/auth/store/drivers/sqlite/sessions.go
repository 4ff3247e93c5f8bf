package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, trusted_device_id, device_info, ip_address, user_agent, created_at, last_active_at`

func scanSession(scan func(dest ...any) error) (domain.Session, error) {
	var (
		s      domain.Session
		device sql.NullString
	)
	err := scan(&s.ID, &s.UserID, &device, &s.DeviceInfo, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.LastActiveAt)
	s.TrustedDeviceID = mapNullStringPtr(device)
	return s, err
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, trusted_device_id, device_info, ip_address, user_agent, created_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, mapOptionalString(s.TrustedDeviceID), s.DeviceInfo, s.IPAddress, s.UserAgent,
		s.CreatedAt, s.LastActiveAt)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row.Scan)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? ORDER BY last_active_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// DeleteSession scopes the delete to the owner. A cross-user id affects
// zero rows and reads back as not found.
func (r *sessionsRepo) DeleteSession(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *sessionsRepo) DeleteAllSessions(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
