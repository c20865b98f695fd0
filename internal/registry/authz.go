package registry

import (
	"context"
	"database/sql"
	"fmt"
)

// AuthorizedUserIDs returns the users allowed to see a device: the home
// owner first, then direct device shares, then home-level shares.
// Duplicates are removed while keeping that order, so fan-out delivers
// exactly one copy of each event per user.
func (r *SQLiteRepository) AuthorizedUserIDs(ctx context.Context, deviceID string) ([]string, error) {
	const ownerQuery = `SELECT h.owner_id FROM devices d
		JOIN rooms rm ON rm.id = d.room_id
		JOIN homes h ON h.id = rm.home_id
		WHERE d.id = ?`
	var ownerID string
	err := r.db.QueryRowContext(ctx, ownerQuery, deviceID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("resolving owner for device %s: %w", deviceID, err)
	}

	deviceShares, err := r.deviceShares(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	const homeShareQuery = `SELECT hs.user_id FROM home_shares hs
		JOIN rooms rm ON rm.home_id = hs.home_id
		JOIN devices d ON d.room_id = rm.id
		WHERE d.id = ?
		ORDER BY hs.user_id`
	homeShares, err := r.queryIDs(ctx, homeShareQuery, deviceID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, 1+len(deviceShares)+len(homeShares))
	users := make([]string, 0, 1+len(deviceShares)+len(homeShares))
	for _, id := range append(append([]string{ownerID}, deviceShares...), homeShares...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	return users, nil
}

// CanAccess reports whether the user may see and control the device.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *SQLiteRepository) CanAccess(ctx context.Context, deviceID, userID string) (bool, error) {
	users, err := r.AuthorizedUserIDs(ctx, deviceID)
	if err != nil {
		return false, err
	}
	for _, id := range users {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}
