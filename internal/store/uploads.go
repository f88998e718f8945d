package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/sqlitedb"
)

// CreateUpload records a received upload.
func (s *Store) CreateUpload(ctx context.Context, u *FileUpload) (*FileUpload, error) {
	now := s.now()
	_, err := s.db.Exec(ctx,
		`INSERT INTO file_uploads (uuid, user_id, addon_id, name, path, hash, size, package_type, guid,
            version, manifest_name, app_domain, valid, validation_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UUID, sqlitedb.NullableInt(u.UserID), sqlitedb.NullableInt(u.AddonID), u.Name, u.Path,
		sqlitedb.NullableString(u.Hash), u.Size, u.PackageType, sqlitedb.NullableString(u.GUID),
		sqlitedb.NullableString(u.Version), sqlitedb.NullableString(u.ManifestName),
		sqlitedb.NullableString(u.AppDomain), sqlitedb.BoolToInt(u.Valid),
		sqlitedb.NullableString(u.ValidationJSON), sqlitedb.FormatTime(now),
	)
	if err != nil {
		return nil, wrapWrite("insert upload", err)
	}
	created := *u
	created.CreatedAt = now
	return &created, nil
}

// GetUpload returns the upload with uuid.
func (s *Store) GetUpload(ctx context.Context, uuid string) (*FileUpload, error) {
	var (
		u                                     FileUpload
		userID, addonID                       sql.NullInt64
		hash, guid, version, name, domain, vj sql.NullString
		valid                                 int
		created                               sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, user_id, addon_id, name, path, hash, size, package_type, guid, version,
            manifest_name, app_domain, valid, validation_json, created_at
         FROM file_uploads WHERE uuid = ?`, uuid,
	).Scan(&u.UUID, &userID, &addonID, &u.Name, &u.Path, &hash, &u.Size, &u.PackageType, &guid,
		&version, &name, &domain, &valid, &vj, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	u.UserID = sqlitedb.IntPtrFrom(userID)
	u.AddonID = sqlitedb.IntPtrFrom(addonID)
	u.Hash = hash.String
	u.GUID = guid.String
	u.Version = version.String
	u.ManifestName = name.String
	u.AppDomain = domain.String
	u.Valid = valid != 0
	u.ValidationJSON = vj.String
	u.CreatedAt = sqlitedb.TimeFrom(created)
	return &u, nil
}
