package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"marketplace/internal/sqlitedb"
)

// LogActivity appends an audit entry. details may be nil.
func (s *Store) LogActivity(ctx context.Context, action Action, addonID, userID int64, details map[string]any) error {
	var encoded any
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		encoded = string(raw)
	}
	var addon, user any
	if addonID > 0 {
		addon = addonID
	}
	if userID > 0 {
		user = userID
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO activity_log (action, addon_id, user_id, details_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		action, addon, user, encoded, s.stamp(),
	); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// CountActivity returns how many entries with action exist for the addon.
func (s *Store) CountActivity(ctx context.Context, addonID int64, action Action) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM activity_log WHERE addon_id = ? AND action = ?`, addonID, action,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activity: %w", err)
	}
	return count, nil
}

// RecentActivity returns the addon's latest entries, newest first.
func (s *Store) RecentActivity(ctx context.Context, addonID int64, limit int) ([]*ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, addon_id, user_id, details_json, created_at FROM activity_log
         WHERE addon_id = ? ORDER BY id DESC LIMIT ?`, addonID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()
	var entries []*ActivityLog
	for rows.Next() {
		var (
			e               ActivityLog
			addon, user     sql.NullInt64
			details, stamp  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &addon, &user, &details, &stamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.AddonID = sqlitedb.IntPtrFrom(addon)
		e.UserID = sqlitedb.IntPtrFrom(user)
		e.DetailsJSON = details.String
		e.CreatedAt = sqlitedb.TimeFrom(stamp)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
