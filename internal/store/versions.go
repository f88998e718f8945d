package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/sqlitedb"
)

const versionColumns = "id, addon_id, version, license_id, release_notes, created_at"

func scanVersion(row sqlitedb.Scanner) (*Version, error) {
	var (
		v       Version
		license sql.NullInt64
		notes   sql.NullString
		created sql.NullString
	)
	if err := row.Scan(&v.ID, &v.AddonID, &v.Version, &license, &notes, &created); err != nil {
		return nil, err
	}
	v.LicenseID = sqlitedb.IntPtrFrom(license)
	v.ReleaseNotes = notes.String
	v.CreatedAt = sqlitedb.TimeFrom(created)
	return &v, nil
}

// CreateVersion inserts a version with its files and makes it the addon's
// current version, all in one transaction.
func (s *Store) CreateVersion(ctx context.Context, v *Version, files []*File) (*Version, []*File, error) {
	now := s.now()
	stamp := sqlitedb.FormatTime(now)
	created := *v
	created.CreatedAt = now
	var createdFiles []*File
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		createdFiles = createdFiles[:0]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO versions (addon_id, version, license_id, release_notes, created_at) VALUES (?, ?, ?, ?, ?)`,
			v.AddonID, v.Version, sqlitedb.NullableInt(v.LicenseID), sqlitedb.NullableString(v.ReleaseNotes), stamp)
		if err != nil {
			return wrapWrite("insert version", err)
		}
		if created.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("version id: %w", err)
		}
		for _, f := range files {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO files (version_id, platform, filename, hash, size, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				created.ID, f.Platform, f.Filename, sqlitedb.NullableString(f.Hash), f.Size, f.Status, stamp)
			if err != nil {
				return fmt.Errorf("insert file: %w", err)
			}
			cf := *f
			cf.VersionID = created.ID
			cf.CreatedAt = now
			if cf.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("file id: %w", err)
			}
			createdFiles = append(createdFiles, &cf)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE addons SET current_version_id = ?, updated_at = ? WHERE id = ?`, created.ID, stamp, v.AddonID,
		); err != nil {
			return fmt.Errorf("set current version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &created, createdFiles, nil
}

// GetVersion returns the version with id.
func (s *Store) GetVersion(ctx context.Context, id int64) (*Version, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM versions WHERE id = ?", id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// VersionExists reports whether the addon already has a version with that number.
func (s *Store) VersionExists(ctx context.Context, addonID int64, number string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM versions WHERE addon_id = ? AND version = ?`, addonID, number,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("check version: %w", err)
	}
	return count > 0, nil
}

// CountAddonFiles returns the number of files across every version of the addon.
func (s *Store) CountAddonFiles(ctx context.Context, addonID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM files f JOIN versions v ON v.id = f.version_id WHERE v.addon_id = ?`, addonID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return count, nil
}

// ListVersions returns the addon's versions, newest first.
func (s *Store) ListVersions(ctx context.Context, addonID int64) ([]*Version, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+versionColumns+" FROM versions WHERE addon_id = ? ORDER BY created_at DESC, id DESC", addonID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()
	var versions []*Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SetVersionLicense points a version at a license.
func (s *Store) SetVersionLicense(ctx context.Context, versionID, licenseID int64) error {
	if _, err := s.db.Exec(ctx, `UPDATE versions SET license_id = ? WHERE id = ?`, licenseID, versionID); err != nil {
		return fmt.Errorf("set license: %w", err)
	}
	return nil
}

// ListFiles returns the files of a version.
func (s *Store) ListFiles(ctx context.Context, versionID int64) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version_id, platform, filename, hash, size, status, created_at FROM files WHERE version_id = ? ORDER BY id`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		var (
			f       File
			hash    sql.NullString
			created sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.VersionID, &f.Platform, &f.Filename, &hash, &f.Size, &f.Status, &created); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Hash = hash.String
		f.CreatedAt = sqlitedb.TimeFrom(created)
		files = append(files, &f)
	}
	return files, rows.Err()
}

// SetFileStatus updates the status of every file in a version.
func (s *Store) SetFileStatus(ctx context.Context, versionID int64, status Status) error {
	if _, err := s.db.Exec(ctx, `UPDATE files SET status = ? WHERE version_id = ?`, status, versionID); err != nil {
		return fmt.Errorf("set file status: %w", err)
	}
	return nil
}

// CountReviews returns the number of reviews attached to a version.
func (s *Store) CountReviews(ctx context.Context, versionID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM reviews WHERE version_id = ?`, versionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return count, nil
}

// CreateReview inserts a review.
func (s *Store) CreateReview(ctx context.Context, r *Review) (*Review, error) {
	res, err := s.db.Exec(ctx,
		`INSERT INTO reviews (addon_id, version_id, user_id, rating, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.AddonID, sqlitedb.NullableInt(r.VersionID), sqlitedb.NullableInt(r.UserID), r.Rating,
		sqlitedb.NullableString(r.Body), s.stamp())
	if err != nil {
		return nil, wrapWrite("insert review", err)
	}
	created := *r
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("review id: %w", err)
	}
	return &created, nil
}

// CreateLicense inserts a license row.
func (s *Store) CreateLicense(ctx context.Context, l *License) (*License, error) {
	res, err := s.db.Exec(ctx,
		`INSERT INTO licenses (builtin, name, url, body) VALUES (?, ?, ?, ?)`,
		l.Builtin, sqlitedb.NullableString(l.Name), sqlitedb.NullableString(l.URL), sqlitedb.NullableString(l.Body))
	if err != nil {
		return nil, wrapWrite("insert license", err)
	}
	created := *l
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("license id: %w", err)
	}
	return &created, nil
}

// LicenseByBuiltin returns the stored row for a builtin license number.
func (s *Store) LicenseByBuiltin(ctx context.Context, builtin int) (*License, error) {
	var (
		l              License
		name, url, txt sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, builtin, name, url, body FROM licenses WHERE builtin = ? ORDER BY id LIMIT 1`, builtin,
	).Scan(&l.ID, &l.Builtin, &name, &url, &txt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("license by builtin: %w", err)
	}
	l.Name, l.URL, l.Body = name.String, url.String, txt.String
	return &l, nil
}
