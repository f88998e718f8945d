package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/sqlitedb"
)

const userColumns = "id, username, display_name, email, is_admin, created_at"

func scanUser(row sqlitedb.Scanner) (*User, error) {
	var (
		u       User
		display sql.NullString
		admin   int
		created sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &display, &u.Email, &admin, &created); err != nil {
		return nil, err
	}
	u.DisplayName = display.String
	u.IsAdmin = admin != 0
	u.CreatedAt = sqlitedb.TimeFrom(created)
	return &u, nil
}

// CreateUser inserts a user and returns it with its assigned ID.
func (s *Store) CreateUser(ctx context.Context, u *User) (*User, error) {
	now := s.now()
	res, err := s.db.Exec(ctx,
		`INSERT INTO users (username, display_name, email, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Username, sqlitedb.NullableString(u.DisplayName), u.Email, sqlitedb.BoolToInt(u.IsAdmin), sqlitedb.FormatTime(now),
	)
	if err != nil {
		return nil, wrapWrite("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	created := *u
	created.ID = id
	created.CreatedAt = now
	return &created, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetPreapproval stores a user's PayPal pre-authorization.
func (s *Store) SetPreapproval(ctx context.Context, p Preapproval) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO preapproval_users (user_id, paypal_key, currency) VALUES (?, ?, ?)
         ON CONFLICT(user_id) DO UPDATE SET paypal_key = excluded.paypal_key, currency = excluded.currency`,
		p.UserID, sqlitedb.NullableString(p.PaypalKey), sqlitedb.NullableString(p.Currency),
	)
	if err != nil {
		return wrapWrite("set preapproval", err)
	}
	return nil
}

// GetPreapproval returns the user's pre-authorization, or nil when none exists.
func (s *Store) GetPreapproval(ctx context.Context, userID int64) (*Preapproval, error) {
	var key, currency sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT paypal_key, currency FROM preapproval_users WHERE user_id = ?`, userID,
	).Scan(&key, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preapproval: %w", err)
	}
	return &Preapproval{UserID: userID, PaypalKey: key.String, Currency: currency.String}, nil
}
