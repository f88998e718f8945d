package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace/internal/sqlitedb"
)

// StatsKind names a raw stats table that gets indexed.
type StatsKind string

const (
	StatsUpdateCounts     StatsKind = "update_counts"
	StatsDownloadCounts   StatsKind = "download_counts"
	StatsInstalled        StatsKind = "installed"
	StatsCollectionCounts StatsKind = "collection_counts"
)

type statsTable struct {
	dateColumn  string
	addonColumn string
	countExpr   string
}

var statsTables = map[StatsKind]statsTable{
	StatsUpdateCounts:     {dateColumn: "date", addonColumn: "addon_id", countExpr: "count"},
	StatsDownloadCounts:   {dateColumn: "date", addonColumn: "addon_id", countExpr: "count"},
	StatsInstalled:        {dateColumn: "created", addonColumn: "addon_id", countExpr: "1"},
	StatsCollectionCounts: {dateColumn: "date", countExpr: "count"},
}

// HasAddon reports whether rows of kind can be filtered by addon.
func (k StatsKind) HasAddon() bool {
	return statsTables[k].addonColumn != ""
}

func (k StatsKind) table() (statsTable, error) {
	t, ok := statsTables[k]
	if !ok {
		return statsTable{}, fmt.Errorf("unknown stats kind %q", k)
	}
	return t, nil
}

// dayExpr truncates a stored date or timestamp to YYYY-MM-DD.
func dayExpr(column string) string {
	return "substr(" + column + ", 1, 10)"
}

// StatsFilter narrows the rows selected for indexing. From and To are
// inclusive YYYY-MM-DD days; an empty From means no date constraint.
type StatsFilter struct {
	AddonIDs []int64
	From     string
	To       string
}

// StatsIDs returns row ids of kind matching filter, most recent date first.
func (s *Store) StatsIDs(ctx context.Context, kind StatsKind, filter StatsFilter) ([]int64, error) {
	t, err := kind.table()
	if err != nil {
		return nil, err
	}
	query := "SELECT id FROM " + string(kind) + " WHERE 1 = 1"
	var args []any
	if len(filter.AddonIDs) > 0 {
		if t.addonColumn == "" {
			return nil, fmt.Errorf("%s cannot be filtered by addon", kind)
		}
		query += " AND " + t.addonColumn + " IN (" + sqlitedb.Placeholders(len(filter.AddonIDs)) + ")"
		args = append(args, sqlitedb.Int64Args(filter.AddonIDs)...)
	}
	if filter.From != "" {
		to := filter.To
		if to == "" {
			to = filter.From
		}
		query += " AND " + dayExpr(t.dateColumn) + " BETWEEN ? AND ?"
		args = append(args, filter.From, to)
	}
	query += " ORDER BY " + t.dateColumn + " DESC, id DESC"
	return s.queryIDs(ctx, query, args...)
}

// StatsDateLimits returns the earliest and latest non-empty day of kind.
// ok is false when the table has no dated rows.
func (s *Store) StatsDateLimits(ctx context.Context, kind StatsKind) (minDay, maxDay time.Time, ok bool, err error) {
	t, err := kind.table()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	day := dayExpr(t.dateColumn)
	var lo, hi sql.NullString
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN("+day+"), MAX("+day+") FROM "+string(kind)+
			" WHERE "+t.dateColumn+" IS NOT NULL AND "+day+" != '0000-00-00' AND "+t.dateColumn+" != ''",
	).Scan(&lo, &hi); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("stats date limits: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	minDay, err = time.Parse(time.DateOnly, lo.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse min date: %w", err)
	}
	maxDay, err = time.Parse(time.DateOnly, hi.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse max date: %w", err)
	}
	return minDay, maxDay, true, nil
}

// StatsAddons returns the distinct addons with rows of kind.
func (s *Store) StatsAddons(ctx context.Context, kind StatsKind) ([]int64, error) {
	t, err := kind.table()
	if err != nil {
		return nil, err
	}
	if t.addonColumn == "" {
		return nil, fmt.Errorf("%s has no addon column", kind)
	}
	return s.queryIDs(ctx, "SELECT DISTINCT "+t.addonColumn+" FROM "+string(kind)+" ORDER BY "+t.addonColumn)
}

// StatsRowIDsForAddon returns every row id of kind belonging to the addon.
func (s *Store) StatsRowIDsForAddon(ctx context.Context, kind StatsKind, addonID int64) ([]int64, error) {
	t, err := kind.table()
	if err != nil {
		return nil, err
	}
	return s.queryIDs(ctx, "SELECT id FROM "+string(kind)+" WHERE "+t.addonColumn+" = ? ORDER BY id", addonID)
}

// RecordStat inserts a raw stats row. For collection counts, addonID is the collection id.
func (s *Store) RecordStat(ctx context.Context, kind StatsKind, addonID int64, count int, day string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	dateArg := sqlitedb.NullableString(day)
	switch kind {
	case StatsUpdateCounts, StatsDownloadCounts:
		res, err = s.db.Exec(ctx, "INSERT INTO "+string(kind)+" (addon_id, count, date) VALUES (?, ?, ?)", addonID, count, dateArg)
	case StatsCollectionCounts:
		res, err = s.db.Exec(ctx, "INSERT INTO collection_counts (collection_id, count, date) VALUES (?, ?, ?)", addonID, count, dateArg)
	case StatsInstalled:
		res, err = s.db.Exec(ctx, "INSERT INTO installed (addon_id, created) VALUES (?, ?)", addonID, dateArg)
	default:
		return 0, fmt.Errorf("unknown stats kind %q", kind)
	}
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", kind, err)
	}
	return res.LastInsertId()
}

// IndexStatsRows copies the given rows of kind into stats_index, replacing
// earlier copies. It returns how many rows were indexed.
func (s *Store) IndexStatsRows(ctx context.Context, kind StatsKind, ids []int64) (int, error) {
	t, err := kind.table()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	addonExpr := "NULL"
	if t.addonColumn != "" {
		addonExpr = t.addonColumn
	}
	args := append([]any{string(kind), s.stamp()}, sqlitedb.Int64Args(ids)...)
	res, err := s.db.Exec(ctx,
		`INSERT OR REPLACE INTO stats_index (kind, row_id, addon_id, date, count, indexed_at)
         SELECT ?, id, `+addonExpr+`, `+dayExpr(t.dateColumn)+`, `+t.countExpr+`, ?
         FROM `+string(kind)+` WHERE id IN (`+sqlitedb.Placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("index %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("index %s: %w", kind, err)
	}
	return int(n), nil
}

// IndexedCount returns how many indexed rows of kind belong to the addon.
func (s *Store) IndexedCount(ctx context.Context, kind StatsKind, addonID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM stats_index WHERE kind = ? AND addon_id = ?`, string(kind), addonID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("indexed count: %w", err)
	}
	return count, nil
}

// IndexedIDs returns up to limit indexed row ids of kind for the addon.
func (s *Store) IndexedIDs(ctx context.Context, kind StatsKind, addonID int64, limit int) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT row_id FROM stats_index WHERE kind = ? AND addon_id = ? ORDER BY row_id LIMIT ?`,
		string(kind), addonID, limit)
}

// IndexedTotals sums indexed counts of kind per day for an addon within [from, to].
func (s *Store) IndexedTotals(ctx context.Context, kind StatsKind, addonID int64, from, to string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, SUM(count) FROM stats_index WHERE kind = ? AND addon_id = ? AND date BETWEEN ? AND ?
         GROUP BY date ORDER BY date`, string(kind), addonID, from, to)
	if err != nil {
		return nil, fmt.Errorf("indexed totals: %w", err)
	}
	defer rows.Close()
	totals := make(map[string]int64)
	for rows.Next() {
		var (
			day   sql.NullString
			total int64
		)
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[day.String] = total
	}
	return totals, rows.Err()
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
