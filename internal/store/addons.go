package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketplace/internal/sqlitedb"
	"marketplace/internal/textutil"
)

const addonColumns = `id, guid, type, name, slug, app_slug, summary, description, homepage,
    support_url, support_email, privacy_policy, eula, status, disabled_by_user, premium_type,
    icon_type, icon_hash, manifest_url, app_domain, device_types_json, wants_contributions,
    paypal_id, suggested_amount_cents, annoying, enable_thankyou, thankyou_note, charity_id,
    the_reason, the_future, current_version_id, nominated_at, created_at, updated_at`

func scanAddon(row sqlitedb.Scanner) (*Addon, error) {
	var (
		a                                                    Addon
		guid, slug, appSlug, summary, description, homepage  sql.NullString
		supportURL, supportEmail, privacy, eula, iconType    sql.NullString
		iconHash, manifestURL, domain, deviceTypes, paypalID sql.NullString
		note, reason, future, nominated, created, updated    sql.NullString
		suggested, charity, currentVersion                   sql.NullInt64
		disabled, wants, thankyou                            int
	)
	if err := row.Scan(
		&a.ID, &guid, &a.Type, &a.Name, &slug, &appSlug, &summary, &description, &homepage,
		&supportURL, &supportEmail, &privacy, &eula, &a.Status, &disabled, &a.PremiumType,
		&iconType, &iconHash, &manifestURL, &domain, &deviceTypes, &wants,
		&paypalID, &suggested, &a.Annoying, &thankyou, &note, &charity,
		&reason, &future, &currentVersion, &nominated, &created, &updated,
	); err != nil {
		return nil, err
	}
	a.GUID = guid.String
	a.Slug = slug.String
	a.AppSlug = appSlug.String
	a.Summary = summary.String
	a.Description = description.String
	a.Homepage = homepage.String
	a.SupportURL = supportURL.String
	a.SupportEmail = supportEmail.String
	a.PrivacyPolicy = privacy.String
	a.EULA = eula.String
	a.DisabledByUser = disabled != 0
	a.IconType = iconType.String
	a.IconHash = iconHash.String
	a.ManifestURL = manifestURL.String
	a.AppDomain = domain.String
	if deviceTypes.Valid && deviceTypes.String != "" {
		if err := json.Unmarshal([]byte(deviceTypes.String), &a.DeviceTypes); err != nil {
			return nil, fmt.Errorf("decode device types: %w", err)
		}
	}
	a.WantsContributions = wants != 0
	a.PaypalID = paypalID.String
	a.SuggestedAmountCents = sqlitedb.IntPtrFrom(suggested)
	a.EnableThankyou = thankyou != 0
	a.ThankyouNote = note.String
	a.CharityID = sqlitedb.IntPtrFrom(charity)
	a.TheReason = reason.String
	a.TheFuture = future.String
	a.CurrentVersionID = sqlitedb.IntPtrFrom(currentVersion)
	a.NominatedAt = sqlitedb.TimePtrFrom(nominated)
	a.CreatedAt = sqlitedb.TimeFrom(created)
	a.UpdatedAt = sqlitedb.TimeFrom(updated)
	return &a, nil
}

func addonArgs(a *Addon) ([]any, error) {
	var deviceTypes any
	if len(a.DeviceTypes) > 0 {
		encoded, err := json.Marshal(a.DeviceTypes)
		if err != nil {
			return nil, fmt.Errorf("encode device types: %w", err)
		}
		deviceTypes = string(encoded)
	}
	return []any{
		sqlitedb.NullableString(a.GUID), a.Type, a.Name, textutil.NameKey(a.Name),
		sqlitedb.NullableString(a.Slug), sqlitedb.NullableString(a.AppSlug),
		sqlitedb.NullableString(a.Summary), sqlitedb.NullableString(a.Description),
		sqlitedb.NullableString(a.Homepage), sqlitedb.NullableString(a.SupportURL),
		sqlitedb.NullableString(a.SupportEmail), sqlitedb.NullableString(a.PrivacyPolicy),
		sqlitedb.NullableString(a.EULA), a.Status, sqlitedb.BoolToInt(a.DisabledByUser), a.PremiumType,
		sqlitedb.NullableString(a.IconType), sqlitedb.NullableString(a.IconHash),
		sqlitedb.NullableString(a.ManifestURL), sqlitedb.NullableString(a.AppDomain), deviceTypes,
		sqlitedb.BoolToInt(a.WantsContributions), sqlitedb.NullableString(a.PaypalID),
		sqlitedb.NullableInt(a.SuggestedAmountCents), a.Annoying, sqlitedb.BoolToInt(a.EnableThankyou),
		sqlitedb.NullableString(a.ThankyouNote), sqlitedb.NullableInt(a.CharityID),
		sqlitedb.NullableString(a.TheReason), sqlitedb.NullableString(a.TheFuture),
		sqlitedb.NullableInt(a.CurrentVersionID), sqlitedb.NullableTime(a.NominatedAt),
	}, nil
}

// CreateAddon inserts an addon and returns it with its assigned ID.
func (s *Store) CreateAddon(ctx context.Context, a *Addon) (*Addon, error) {
	args, err := addonArgs(a)
	if err != nil {
		return nil, err
	}
	now := s.stamp()
	args = append(args, now, now)
	res, err := s.db.Exec(ctx, `INSERT INTO addons (
        guid, type, name, name_key, slug, app_slug, summary, description, homepage,
        support_url, support_email, privacy_policy, eula, status, disabled_by_user, premium_type,
        icon_type, icon_hash, manifest_url, app_domain, device_types_json, wants_contributions,
        paypal_id, suggested_amount_cents, annoying, enable_thankyou, thankyou_note, charity_id,
        the_reason, the_future, current_version_id, nominated_at, created_at, updated_at
    ) VALUES (`+sqlitedb.Placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, wrapWrite("insert addon", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("addon id: %w", err)
	}
	return s.GetAddon(ctx, id)
}

// UpdateAddon persists every mutable column of a.
func (s *Store) UpdateAddon(ctx context.Context, a *Addon) error {
	args, err := addonArgs(a)
	if err != nil {
		return err
	}
	args = append(args, s.stamp(), a.ID)
	res, err := s.db.Exec(ctx, `UPDATE addons SET
        guid = ?, type = ?, name = ?, name_key = ?, slug = ?, app_slug = ?, summary = ?,
        description = ?, homepage = ?, support_url = ?, support_email = ?, privacy_policy = ?,
        eula = ?, status = ?, disabled_by_user = ?, premium_type = ?, icon_type = ?, icon_hash = ?,
        manifest_url = ?, app_domain = ?, device_types_json = ?, wants_contributions = ?,
        paypal_id = ?, suggested_amount_cents = ?, annoying = ?, enable_thankyou = ?,
        thankyou_note = ?, charity_id = ?, the_reason = ?, the_future = ?,
        current_version_id = ?, nominated_at = ?, updated_at = ?
        WHERE id = ?`, args...)
	if err != nil {
		return wrapWrite("update addon", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAddon returns the addon with id.
func (s *Store) GetAddon(ctx context.Context, id int64) (*Addon, error) {
	return s.getAddonWhere(ctx, "id = ?", id)
}

// GetAddonBySlug resolves a developer hub slug: app_slug for web apps, slug otherwise.
func (s *Store) GetAddonBySlug(ctx context.Context, slug string, webapp bool) (*Addon, error) {
	if webapp {
		return s.getAddonWhere(ctx, "app_slug = ? AND type = ?", slug, TypeWebapp)
	}
	return s.getAddonWhere(ctx, "slug = ? AND type != ?", slug, TypeWebapp)
}

func (s *Store) getAddonWhere(ctx context.Context, where string, args ...any) (*Addon, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+addonColumns+" FROM addons WHERE "+where+" LIMIT 1", args...)
	a, err := scanAddon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get addon: %w", err)
	}
	return a, nil
}

// DeleteAddon removes an addon and everything that cascades from it.
func (s *Store) DeleteAddon(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "DELETE FROM addons WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete addon: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// NameInUse reports whether another addon in the same namespace (web apps or
// everything else) already uses name after case and width folding.
func (s *Store) NameInUse(ctx context.Context, name string, webapp bool, excludeID int64) (bool, error) {
	typeClause := "type != ?"
	if webapp {
		typeClause = "type = ?"
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM addons WHERE name_key = ? AND `+typeClause+` AND id != ? AND status != ?`,
		textutil.NameKey(name), TypeWebapp, excludeID, StatusDeleted,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name: %w", err)
	}
	return count > 0, nil
}

// SlugInUse reports whether slug (or app_slug for web apps) is taken by another addon.
func (s *Store) SlugInUse(ctx context.Context, slug string, webapp bool, excludeID int64) (bool, error) {
	column := "slug"
	if webapp {
		column = "app_slug"
	}
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM addons WHERE "+column+" = ? AND id != ?", slug, excludeID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

// UniqueSlug returns base, or base with the first free numeric suffix, that no
// addon other than excludeID uses in the namespace.
func (s *Store) UniqueSlug(ctx context.Context, base string, webapp bool, excludeID int64) (string, error) {
	if base == "" {
		base = "addon"
	}
	candidate := base
	for i := 1; ; i++ {
		taken, err := s.SlugInUse(ctx, candidate, webapp, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// DomainInUse reports whether a web app other than excludeID is registered for domain.
func (s *Store) DomainInUse(ctx context.Context, domain string, excludeID int64) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM addons WHERE type = ? AND app_domain = ? AND id != ? AND status != ?",
		TypeWebapp, strings.ToLower(domain), excludeID, StatusDeleted,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("check domain: %w", err)
	}
	return count > 0, nil
}

// AddonSort selects dashboard ordering.
type AddonSort string

const (
	SortByName    AddonSort = "name"
	SortByCreated AddonSort = "created"
)

// AddonsForAuthor returns a page of addons the user authors plus the total count.
func (s *Store) AddonsForAuthor(ctx context.Context, userID int64, sort AddonSort, limit, offset int) ([]*Addon, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM addons a JOIN addon_users au ON au.addon_id = a.id
         WHERE au.user_id = ? AND a.status != ?`, userID, StatusDeleted,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count author addons: %w", err)
	}

	order := "a.name_key ASC, a.id ASC"
	if sort == SortByCreated {
		order = "a.created_at DESC, a.id DESC"
	}
	cols := "a." + strings.Join(strings.Fields(strings.ReplaceAll(addonColumns, ",", " ")), ", a.")
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cols+` FROM addons a JOIN addon_users au ON au.addon_id = a.id
         WHERE au.user_id = ? AND a.status != ? ORDER BY `+order+` LIMIT ? OFFSET ?`,
		userID, StatusDeleted, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list author addons: %w", err)
	}
	defer rows.Close()
	addons, err := collectAddons(rows)
	return addons, total, err
}

// SearchApps returns public web apps whose name or summary contains query.
func (s *Store) SearchApps(ctx context.Context, query string, limit int) ([]*Addon, error) {
	like := "%" + strings.NewReplacer("%", "", "_", "").Replace(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+addonColumns+` FROM addons
         WHERE type = ? AND status = ? AND disabled_by_user = 0
           AND (name LIKE ? OR summary LIKE ?)
         ORDER BY name_key LIMIT ?`,
		TypeWebapp, StatusPublic, like, like, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search apps: %w", err)
	}
	defer rows.Close()
	return collectAddons(rows)
}

// ListAddons returns addons ordered by id, optionally restricted to one type.
func (s *Store) ListAddons(ctx context.Context, addonType AddonType) ([]*Addon, error) {
	query := "SELECT " + addonColumns + " FROM addons"
	var args []any
	if addonType != 0 {
		query += " WHERE type = ?"
		args = append(args, addonType)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list addons: %w", err)
	}
	defer rows.Close()
	return collectAddons(rows)
}

func collectAddons(rows *sql.Rows) ([]*Addon, error) {
	var addons []*Addon
	for rows.Next() {
		a, err := scanAddon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan addon: %w", err)
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}
