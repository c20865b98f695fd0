package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateSchedule inserts a new daily on/off schedule for a device.
func (r *SQLiteRepository) CreateSchedule(ctx context.Context, sched *Schedule) error {
	const query = `INSERT INTO device_schedules (id, device_id, on_time, off_time, on_fired, off_fired)
		VALUES (?, ?, ?, ?, 0, 0)`
	_, err := r.db.ExecContext(ctx, query, sched.ID, sched.DeviceID, sched.OnTime, sched.OffTime)
	if err != nil {
		return fmt.Errorf("inserting schedule %s: %w", sched.ID, err)
	}
	return nil
}

// GetSchedule returns a single schedule by ID.
func (r *SQLiteRepository) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	const query = `SELECT id, device_id, on_time, off_time, on_fired, off_fired
		FROM device_schedules WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	sched, err := scanSchedule(row)
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// ListSchedulesByDevice returns a device's schedules ordered by on_time.
func (r *SQLiteRepository) ListSchedulesByDevice(ctx context.Context, deviceID string) ([]Schedule, error) {
	const query = `SELECT id, device_id, on_time, off_time, on_fired, off_fired
		FROM device_schedules WHERE device_id = ? ORDER BY on_time`
	return r.querySchedules(ctx, query, deviceID)
}

// DeleteSchedule removes a schedule by ID.
func (r *SQLiteRepository) DeleteSchedule(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// DueSchedules returns schedules whose on or off time has been reached
// today and has not fired yet. Times earlier than the current minute
// also count as due, so a runner that was down catches up on restart.
func (r *SQLiteRepository) DueSchedules(ctx context.Context, now time.Time) ([]Schedule, error) {
	hhmm := now.Format("15:04")
	const query = `SELECT id, device_id, on_time, off_time, on_fired, off_fired
		FROM device_schedules
		WHERE (on_fired = 0 AND on_time <= ?) OR (off_fired = 0 AND off_time <= ?)
		ORDER BY id`
	return r.querySchedules(ctx, query, hhmm, hhmm)
}

// MarkScheduleFired sets the on or off fired flag so the schedule does
// not trigger again today.
func (r *SQLiteRepository) MarkScheduleFired(ctx context.Context, id string, on bool) error {
	column := "off_fired"
	if on {
		column = "on_fired"
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE device_schedules SET %s = 1 WHERE id = ?", column), id)
	if err != nil {
		return fmt.Errorf("marking schedule %s fired: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ResetFiredFlags clears all fired flags. The schedule runner calls this
// once per day at midnight.
func (r *SQLiteRepository) ResetFiredFlags(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE device_schedules SET on_fired = 0, off_fired = 0 WHERE on_fired = 1 OR off_fired = 1")
	if err != nil {
		return 0, fmt.Errorf("resetting fired flags: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// querySchedules executes a query and returns a slice of Schedule.
func (r *SQLiteRepository) querySchedules(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var scheds []Schedule
	for rows.Next() {
		var s Schedule
		var onFired, offFired int
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.OnTime, &s.OffTime, &onFired, &offFired); err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		s.OnFired = onFired != 0
		s.OffFired = offFired != 0
		scheds = append(scheds, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedule rows: %w", err)
	}
	return scheds, nil
}

// scanSchedule scans a single row into a Schedule.
func scanSchedule(row *sql.Row) (*Schedule, error) {
	var s Schedule
	var onFired, offFired int
	err := row.Scan(&s.ID, &s.DeviceID, &s.OnTime, &s.OffTime, &onFired, &offFired)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}
	s.OnFired = onFired != 0
	s.OffFired = offFired != 0
	return &s, nil
}
