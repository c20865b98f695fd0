package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateDevice inserts a new device. CreatedAt/UpdatedAt are stamped here.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, dev *Device) error {
	now := time.Now().UTC()
	dev.CreatedAt = now
	dev.UpdatedAt = now

	const query = `INSERT INTO devices (id, token, name, status, connection, room_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		dev.ID, dev.Token, dev.Name,
		boolToInt(dev.Status), boolToInt(dev.Connection),
		dev.RoomID,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			if tokenExists(ctx, r.db, dev.Token) {
				return ErrDuplicateToken
			}
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting device %s: %w", dev.ID, err)
	}
	return nil
}

// tokenExists reports whether any device already carries the token.
// Used only to pick the right sentinel after a UNIQUE violation.
func tokenExists(ctx context.Context, db *sql.DB, token string) bool {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE token = ?", token).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

// GetDevice returns a single device by ID with its share list populated.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	const query = `SELECT id, token, name, status, connection, room_id, created_at, updated_at
		FROM devices WHERE id = ?`
	return r.getDevice(ctx, query, id)
}

// GetDeviceByToken returns a single device by its hardware token. This is
// the bridge's lookup path for every inbound MQTT event.
func (r *SQLiteRepository) GetDeviceByToken(ctx context.Context, token string) (*Device, error) {
	const query = `SELECT id, token, name, status, connection, room_id, created_at, updated_at
		FROM devices WHERE token = ?`
	return r.getDevice(ctx, query, token)
}

func (r *SQLiteRepository) getDevice(ctx context.Context, query string, arg any) (*Device, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	dev, err := scanDevice(row)
	if err != nil {
		return nil, err
	}
	shares, err := r.deviceShares(ctx, dev.ID)
	if err != nil {
		return nil, err
	}
	dev.SharedWith = shares
	return dev, nil
}

// ListDevicesByRoom returns the devices of a room ordered by name.
// Share lists are not populated on list reads.
func (r *SQLiteRepository) ListDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	const query = `SELECT id, token, name, status, connection, room_id, created_at, updated_at
		FROM devices WHERE room_id = ? ORDER BY name`
	return r.queryDevices(ctx, query, roomID)
}

// ListDevicesByUser returns every device the user can see: devices in
// homes they own, devices shared with them directly, and devices in
// homes shared with them. The UNION deduplicates users reachable by
// more than one path.
func (r *SQLiteRepository) ListDevicesByUser(ctx context.Context, userID string) ([]Device, error) {
	const query = `SELECT d.id, d.token, d.name, d.status, d.connection, d.room_id, d.created_at, d.updated_at
		FROM devices d
		JOIN rooms rm ON rm.id = d.room_id
		JOIN homes h ON h.id = rm.home_id
		WHERE h.owner_id = ?
		UNION
		SELECT d.id, d.token, d.name, d.status, d.connection, d.room_id, d.created_at, d.updated_at
		FROM devices d
		JOIN device_shares ds ON ds.device_id = d.id
		WHERE ds.user_id = ?
		UNION
		SELECT d.id, d.token, d.name, d.status, d.connection, d.room_id, d.created_at, d.updated_at
		FROM devices d
		JOIN rooms rm ON rm.id = d.room_id
		JOIN home_shares hs ON hs.home_id = rm.home_id
		WHERE hs.user_id = ?
		ORDER BY name`
	return r.queryDevices(ctx, query, userID, userID, userID)
}

// UpdateDevice updates a device's name and room assignment. Token,
// status and connection are not touched here: token is immutable and
// the state fields go through the conditional update operations.
func (r *SQLiteRepository) UpdateDevice(ctx context.Context, dev *Device) error {
	const query = `UPDATE devices SET name = ?, room_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, dev.Name, dev.RoomID, dev.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating device %s: %w", dev.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// DeleteDevice removes a device. Shares and schedules cascade away with it.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// SetDeviceShares replaces the device's share list with the given user IDs.
func (r *SQLiteRepository) SetDeviceShares(ctx context.Context, deviceID string, userIDs []string) error {
	return r.replaceShares(ctx, "device_shares", "device_id", deviceID, userIDs)
}

// deviceShares returns the user IDs the device is shared with.
func (r *SQLiteRepository) deviceShares(ctx context.Context, deviceID string) ([]string, error) {
	const query = `SELECT user_id FROM device_shares WHERE device_id = ? ORDER BY user_id`
	return r.queryIDs(ctx, query, deviceID)
}

// UpdateStatusByToken writes the status value only if it differs from
// the stored one. The WHERE clause makes the comparison and the write a
// single statement, so a no-op event never bumps updated_at.
func (r *SQLiteRepository) UpdateStatusByToken(ctx context.Context, token string, status bool) (UpdateOutcome, error) {
	const query = `UPDATE devices SET status = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE token = ? AND status <> ?`
	return r.conditionalUpdate(ctx, query, token, boolToInt(status))
}

// UpdateConnectionByToken writes the connection value only if it differs
// from the stored one.
func (r *SQLiteRepository) UpdateConnectionByToken(ctx context.Context, token string, connected bool) (UpdateOutcome, error) {
	const query = `UPDATE devices SET connection = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE token = ? AND connection <> ?`
	return r.conditionalUpdate(ctx, query, token, boolToInt(connected))
}

func (r *SQLiteRepository) conditionalUpdate(ctx context.Context, query, token string, value int) (UpdateOutcome, error) {
	result, err := r.db.ExecContext(ctx, query, value, token, value)
	if err != nil {
		return OutcomeUnknownDevice, fmt.Errorf("conditional update for token %s: %w", token, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n > 0 {
		return OutcomeChanged, nil
	}

	// Zero rows means either the value already matched or the token is
	// unregistered; one more lookup tells them apart.
	var exists int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE token = ?", token).Scan(&exists); err != nil {
		return OutcomeUnknownDevice, fmt.Errorf("checking token %s: %w", token, err)
	}
	if exists == 0 {
		return OutcomeUnknownDevice, nil
	}
	return OutcomeUnchanged, nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		dev, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// scanDevice scans a single row into a Device (for QueryRow).
func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var status, connection int
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.Token, &d.Name, &status, &connection, &d.RoomID, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	d.Status = status != 0
	d.Connection = connection != 0
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// scanDeviceRow scans a device from a Rows cursor.
func scanDeviceRow(rows *sql.Rows) (*Device, error) {
	var d Device
	var status, connection int
	var createdAt, updatedAt string

	err := rows.Scan(&d.ID, &d.Token, &d.Name, &status, &connection, &d.RoomID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning device row: %w", err)
	}
	d.Status = status != 0
	d.Connection = connection != 0
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}
