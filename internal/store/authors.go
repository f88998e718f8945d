package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/sqlitedb"
)

// AddAuthor links a user to an addon with the given role.
func (s *Store) AddAuthor(ctx context.Context, au AddonUser) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO addon_users (addon_id, user_id, role, listed, position) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(addon_id, user_id) DO UPDATE SET role = excluded.role, listed = excluded.listed, position = excluded.position`,
		au.AddonID, au.UserID, au.Role, sqlitedb.BoolToInt(au.Listed), au.Position,
	)
	if err != nil {
		return wrapWrite("add author", err)
	}
	return nil
}

// AuthorRole returns the user's role on the addon, or ErrNotFound when the user is not an author.
func (s *Store) AuthorRole(ctx context.Context, addonID, userID int64) (Role, error) {
	var role Role
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM addon_users WHERE addon_id = ? AND user_id = ?`, addonID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("author role: %w", err)
	}
	return role, nil
}

// ListedAuthors returns the users publicly credited on the addon, in position order.
func (s *Store) ListedAuthors(ctx context.Context, addonID int64) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.display_name, u.email, u.is_admin, u.created_at
         FROM users u JOIN addon_users au ON au.user_id = u.id
         WHERE au.addon_id = ? AND au.listed = 1 ORDER BY au.position, u.id`, addonID)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// OwnsAddon reports whether the user is an owner of the addon.
func (s *Store) OwnsAddon(ctx context.Context, addonID, userID int64) (bool, error) {
	role, err := s.AuthorRole(ctx, addonID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role == RoleOwner, nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	res, err := s.db.Exec(ctx,
		`INSERT INTO categories (name, slug, type, weight) VALUES (?, ?, ?, ?)`,
		c.Name, c.Slug, c.Type, c.Weight)
	if err != nil {
		return nil, wrapWrite("insert category", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category id: %w", err)
	}
	created := *c
	created.ID = id
	return &created, nil
}

// ListCategories returns the categories for an addon type ordered by weight then name.
func (s *Store) ListCategories(ctx context.Context, addonType AddonType) ([]*Category, error) {
	return s.queryCategories(ctx,
		`SELECT id, name, slug, type, weight FROM categories WHERE type = ? ORDER BY weight, name`, addonType)
}

// AddonCategories returns the categories assigned to an addon.
func (s *Store) AddonCategories(ctx context.Context, addonID int64) ([]*Category, error) {
	return s.queryCategories(ctx,
		`SELECT c.id, c.name, c.slug, c.type, c.weight FROM categories c
         JOIN addon_categories ac ON ac.category_id = c.id
         WHERE ac.addon_id = ? ORDER BY c.weight, c.name`, addonID)
}

func (s *Store) queryCategories(ctx context.Context, query string, args ...any) ([]*Category, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var cats []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Type, &c.Weight); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

// SetAddonCategories replaces the addon's categories with ids.
func (s *Store) SetAddonCategories(ctx context.Context, addonID int64, ids []int64) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM addon_categories WHERE addon_id = ?`, addonID); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO addon_categories (addon_id, category_id) VALUES (?, ?)`, addonID, id,
			); err != nil {
				return fmt.Errorf("add category %d: %w", id, err)
			}
		}
		return nil
	})
}
