package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence operations the bridge and API need.
type Repository interface {
	CreateHome(ctx context.Context, home *Home) error
	GetHome(ctx context.Context, id string) (*Home, error)
	ListHomesByUser(ctx context.Context, userID string) ([]Home, error)
	UpdateHome(ctx context.Context, home *Home) error
	DeleteHome(ctx context.Context, id string) error
	SetHomeShares(ctx context.Context, homeID string, userIDs []string) error

	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRoomsByHome(ctx context.Context, homeID string) ([]Room, error)
	UpdateRoom(ctx context.Context, room *Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreateDevice(ctx context.Context, dev *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	GetDeviceByToken(ctx context.Context, token string) (*Device, error)
	ListDevicesByRoom(ctx context.Context, roomID string) ([]Device, error)
	ListDevicesByUser(ctx context.Context, userID string) ([]Device, error)
	UpdateDevice(ctx context.Context, dev *Device) error
	DeleteDevice(ctx context.Context, id string) error
	SetDeviceShares(ctx context.Context, deviceID string, userIDs []string) error

	UpdateStatusByToken(ctx context.Context, token string, status bool) (UpdateOutcome, error)
	UpdateConnectionByToken(ctx context.Context, token string, connected bool) (UpdateOutcome, error)

	AuthorizedUserIDs(ctx context.Context, deviceID string) ([]string, error)
	CanAccess(ctx context.Context, deviceID, userID string) (bool, error)

	CreateSchedule(ctx context.Context, sched *Schedule) error
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	ListSchedulesByDevice(ctx context.Context, deviceID string) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	DueSchedules(ctx context.Context, now time.Time) ([]Schedule, error)
	MarkScheduleFired(ctx context.Context, id string, on bool) error
	ResetFiredFlags(ctx context.Context) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed registry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateHome inserts a new home.
func (r *SQLiteRepository) CreateHome(ctx context.Context, home *Home) error {
	const query = `INSERT INTO homes (id, name, owner_id) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, home.ID, home.Name, home.OwnerID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting home %s: %w", home.ID, err)
	}
	return nil
}

// GetHome returns a single home by ID with its share list populated.
func (r *SQLiteRepository) GetHome(ctx context.Context, id string) (*Home, error) {
	const query = `SELECT id, name, owner_id FROM homes WHERE id = ?`
	var h Home
	err := r.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.Name, &h.OwnerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrHomeNotFound
		}
		return nil, fmt.Errorf("scanning home: %w", err)
	}
	shares, err := r.homeShares(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	h.SharedWith = shares
	return &h, nil
}

// ListHomesByUser returns every home the user owns or has been shared
// into, owned homes first.
func (r *SQLiteRepository) ListHomesByUser(ctx context.Context, userID string) ([]Home, error) {
	const query = `SELECT id, name, owner_id FROM homes WHERE owner_id = ?
		UNION
		SELECT h.id, h.name, h.owner_id FROM homes h
		JOIN home_shares hs ON hs.home_id = h.id
		WHERE hs.user_id = ?
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying homes for user %s: %w", userID, err)
	}
	defer rows.Close()

	var homes []Home
	for rows.Next() {
		var h Home
		if err := rows.Scan(&h.ID, &h.Name, &h.OwnerID); err != nil {
			return nil, fmt.Errorf("scanning home row: %w", err)
		}
		homes = append(homes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating home rows: %w", err)
	}
	return homes, nil
}

// UpdateHome renames a home. Ownership does not change after creation.
func (r *SQLiteRepository) UpdateHome(ctx context.Context, home *Home) error {
	const query = `UPDATE homes SET name = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, home.Name, home.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating home %s: %w", home.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrHomeNotFound
	}
	return nil
}

// DeleteHome removes a home. Returns ErrHomeHasRooms if rooms still
// reference it, so callers cannot silently cascade away live devices.
func (r *SQLiteRepository) DeleteHome(ctx context.Context, id string) error {
	var roomCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms WHERE home_id = ?", id).Scan(&roomCount); err != nil {
		return fmt.Errorf("counting rooms for home %s: %w", id, err)
	}
	if roomCount > 0 {
		return ErrHomeHasRooms
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM homes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting home %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrHomeNotFound
	}
	return nil
}

// SetHomeShares replaces the home's share list with the given user IDs.
func (r *SQLiteRepository) SetHomeShares(ctx context.Context, homeID string, userIDs []string) error {
	return r.replaceShares(ctx, "home_shares", "home_id", homeID, userIDs)
}

// homeShares returns the user IDs the home is shared with, ordered for
// stable output.
func (r *SQLiteRepository) homeShares(ctx context.Context, homeID string) ([]string, error) {
	const query = `SELECT user_id FROM home_shares WHERE home_id = ? ORDER BY user_id`
	return r.queryIDs(ctx, query, homeID)
}

// CreateRoom inserts a new room.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	const query = `INSERT INTO rooms (id, name, home_id) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, room.ID, room.Name, room.HomeID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("inserting room %s: %w", room.ID, err)
	}
	return nil
}

// GetRoom returns a single room by ID.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	const query = `SELECT id, name, home_id FROM rooms WHERE id = ?`
	var rm Room
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rm.ID, &rm.Name, &rm.HomeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	return &rm, nil
}

// ListRoomsByHome returns the rooms of a home ordered by name.
func (r *SQLiteRepository) ListRoomsByHome(ctx context.Context, homeID string) ([]Room, error) {
	const query = `SELECT id, name, home_id FROM rooms WHERE home_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, homeID)
	if err != nil {
		return nil, fmt.Errorf("querying rooms for home %s: %w", homeID, err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var rm Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.HomeID); err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// UpdateRoom renames a room.
func (r *SQLiteRepository) UpdateRoom(ctx context.Context, room *Room) error {
	const query = `UPDATE rooms SET name = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, room.Name, room.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("updating room %s: %w", room.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteRoom removes a room. Returns ErrRoomHasDevices if devices still
// reference it.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id string) error {
	var deviceCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE room_id = ?", id).Scan(&deviceCount); err != nil {
		return fmt.Errorf("counting devices for room %s: %w", id, err)
	}
	if deviceCount > 0 {
		return ErrRoomHasDevices
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// replaceShares swaps the full share list for a home or device inside a
// single transaction so readers never see a half-applied list.
func (r *SQLiteRepository) replaceShares(ctx context.Context, table, keyCol, keyID string, userIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning share transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol), keyID); err != nil {
		return fmt.Errorf("clearing %s for %s: %w", table, keyID, err)
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, user_id) VALUES (?, ?)", table, keyCol),
			keyID, userID); err != nil {
			return fmt.Errorf("inserting %s row for %s: %w", table, keyID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing share transaction: %w", err)
	}
	return nil
}

// queryIDs executes a single-column string query.
func (r *SQLiteRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating id rows: %w", err)
	}
	return ids, nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
