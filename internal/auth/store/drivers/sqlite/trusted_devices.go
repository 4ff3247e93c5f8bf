package sqlite

import (
	"context"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
)

type trustedDevicesRepo struct {
	db dbtx
}

const trustedDeviceColumns = `id, user_id, device_hash, token_hash, device_name, user_agent, ip_address, location, active, created_at, expires_at, last_used_at`

func scanTrustedDevice(scan func(dest ...any) error) (domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	err := scan(&d.ID, &d.UserID, &d.DeviceHash, &d.TokenHash, &d.DeviceName, &d.UserAgent,
		&d.IPAddress, &d.Location, &d.Active, &d.CreatedAt, &d.ExpiresAt, &d.LastUsedAt)
	return d, err
}

func (r *trustedDevicesRepo) CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trusted_devices (id, user_id, device_hash, token_hash, device_name, user_agent, ip_address, location, active, created_at, expires_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.DeviceHash, d.TokenHash, d.DeviceName, d.UserAgent,
		d.IPAddress, d.Location, d.Active, d.CreatedAt, d.ExpiresAt, d.LastUsedAt)
	return err
}

func (r *trustedDevicesRepo) GetTrustedDeviceByTokenHash(ctx context.Context, userID, tokenHash string) (domain.TrustedDevice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+trustedDeviceColumns+` FROM trusted_devices
		 WHERE user_id = ? AND token_hash = ? AND active = TRUE`, userID, tokenHash)
	d, err := scanTrustedDevice(row.Scan)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	return d, nil
}

func (r *trustedDevicesRepo) ListActiveTrustedDevices(ctx context.Context, userID string) ([]domain.TrustedDevice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+trustedDeviceColumns+` FROM trusted_devices
		 WHERE user_id = ? AND active = TRUE ORDER BY last_used_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []domain.TrustedDevice
	for rows.Next() {
		d, err := scanTrustedDevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *trustedDevicesRepo) TouchTrustedDevice(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE trusted_devices SET last_used_at = ? WHERE id = ?`, at, id)
	return err
}

// DeactivateTrustedDevice keeps the row for auditability and flips the
// active flag. Ownership is enforced in the query.
func (r *trustedDevicesRepo) DeactivateTrustedDevice(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trusted_devices SET active = FALSE
		 WHERE id = ? AND user_id = ? AND active = TRUE`, id, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *trustedDevicesRepo) DeactivateAllTrustedDevices(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trusted_devices SET active = FALSE
		 WHERE user_id = ? AND active = TRUE`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *trustedDevicesRepo) DeleteExpiredTrustedDevices(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM trusted_devices WHERE expires_at < ?`, time.Now().UTC())
	return err
}
