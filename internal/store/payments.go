package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/sqlitedb"
)

// CreateCharity inserts a charity.
func (s *Store) CreateCharity(ctx context.Context, c *Charity) (*Charity, error) {
	res, err := s.db.Exec(ctx, `INSERT INTO charities (name, url, paypal) VALUES (?, ?, ?)`, c.Name, c.URL, c.Paypal)
	if err != nil {
		return nil, wrapWrite("insert charity", err)
	}
	created := *c
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("charity id: %w", err)
	}
	return &created, nil
}

// GetCharity returns the charity with id.
func (s *Store) GetCharity(ctx context.Context, id int64) (*Charity, error) {
	var c Charity
	err := s.db.QueryRowContext(ctx, `SELECT id, name, url, paypal FROM charities WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.URL, &c.Paypal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get charity: %w", err)
	}
	return &c, nil
}

// CreatePrice inserts a price tier.
func (s *Store) CreatePrice(ctx context.Context, p *Price) (*Price, error) {
	res, err := s.db.Exec(ctx, `INSERT INTO prices (price_cents, active) VALUES (?, ?)`, p.PriceCents, sqlitedb.BoolToInt(p.Active))
	if err != nil {
		return nil, wrapWrite("insert price", err)
	}
	created := *p
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("price id: %w", err)
	}
	return &created, nil
}

// GetPrice returns the price with id.
func (s *Store) GetPrice(ctx context.Context, id int64) (*Price, error) {
	var (
		p      Price
		active int
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, price_cents, active FROM prices WHERE id = ?`, id).
		Scan(&p.ID, &p.PriceCents, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	p.Active = active != 0
	return &p, nil
}

// GetPremium returns the addon's premium settings, or nil when none exist.
func (s *Store) GetPremium(ctx context.Context, addonID int64) (*AddonPremium, error) {
	var (
		p       AddonPremium
		price   sql.NullInt64
		token   sql.NullString
		created sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT addon_id, price_id, paypal_permissions_token, created_at FROM addon_premium WHERE addon_id = ?`, addonID,
	).Scan(&p.AddonID, &price, &token, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get premium: %w", err)
	}
	p.PriceID = sqlitedb.IntPtrFrom(price)
	p.PaypalPermissionsToken = token.String
	p.CreatedAt = sqlitedb.TimeFrom(created)
	return &p, nil
}

// SavePremium creates or updates the addon's premium settings.
func (s *Store) SavePremium(ctx context.Context, p *AddonPremium) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO addon_premium (addon_id, price_id, paypal_permissions_token, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(addon_id) DO UPDATE SET price_id = excluded.price_id,
             paypal_permissions_token = excluded.paypal_permissions_token`,
		p.AddonID, sqlitedb.NullableInt(p.PriceID), sqlitedb.NullableString(p.PaypalPermissionsToken), s.stamp())
	if err != nil {
		return wrapWrite("save premium", err)
	}
	return nil
}

// UpsellForPremium returns the upsell pointing at a premium addon, or nil.
func (s *Store) UpsellForPremium(ctx context.Context, premiumID int64) (*Upsell, error) {
	return s.getUpsell(ctx, "premium_id = ?", premiumID)
}

// UpsellForFree returns the upsell a free addon participates in, or nil.
func (s *Store) UpsellForFree(ctx context.Context, freeID int64) (*Upsell, error) {
	return s.getUpsell(ctx, "free_id = ?", freeID)
}

func (s *Store) getUpsell(ctx context.Context, where string, arg any) (*Upsell, error) {
	var u Upsell
	err := s.db.QueryRowContext(ctx, `SELECT free_id, premium_id, text FROM addon_upsell WHERE `+where+` LIMIT 1`, arg).
		Scan(&u.FreeID, &u.PremiumID, &u.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upsell: %w", err)
	}
	return &u, nil
}

// ReplaceUpsell makes u the only upsell for its premium addon.
func (s *Store) ReplaceUpsell(ctx context.Context, u Upsell) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM addon_upsell WHERE premium_id = ? OR free_id = ?`, u.PremiumID, u.FreeID); err != nil {
			return fmt.Errorf("clear upsell: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO addon_upsell (free_id, premium_id, text) VALUES (?, ?, ?)`,
			u.FreeID, u.PremiumID, u.Text); err != nil {
			return fmt.Errorf("insert upsell: %w", err)
		}
		return nil
	})
}

// DeleteUpsell removes the upsell for a premium addon.
func (s *Store) DeleteUpsell(ctx context.Context, premiumID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM addon_upsell WHERE premium_id = ?`, premiumID); err != nil {
		return fmt.Errorf("delete upsell: %w", err)
	}
	return nil
}

const contributionColumns = "id, addon_id, user_id, type, amount_cents, currency, uuid, transaction_id, paykey, related_id, created_at"

func scanContribution(row sqlitedb.Scanner) (*Contribution, error) {
	var (
		c                 Contribution
		userID, related   sql.NullInt64
		uuid, txn, paykey sql.NullString
		created           sql.NullString
	)
	if err := row.Scan(&c.ID, &c.AddonID, &userID, &c.Type, &c.AmountCents, &c.Currency, &uuid, &txn, &paykey, &related, &created); err != nil {
		return nil, err
	}
	c.UserID = sqlitedb.IntPtrFrom(userID)
	c.RelatedID = sqlitedb.IntPtrFrom(related)
	c.UUID = uuid.String
	c.TransactionID = txn.String
	c.Paykey = paykey.String
	c.CreatedAt = sqlitedb.TimeFrom(created)
	return &c, nil
}

// CreateContribution inserts a payment record.
func (s *Store) CreateContribution(ctx context.Context, c *Contribution) (*Contribution, error) {
	currency := c.Currency
	if currency == "" {
		currency = "USD"
	}
	now := s.now()
	res, err := s.db.Exec(ctx,
		`INSERT INTO contributions (addon_id, user_id, type, amount_cents, currency, uuid, transaction_id, paykey, related_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.AddonID, sqlitedb.NullableInt(c.UserID), c.Type, c.AmountCents, currency,
		sqlitedb.NullableString(c.UUID), sqlitedb.NullableString(c.TransactionID),
		sqlitedb.NullableString(c.Paykey), sqlitedb.NullableInt(c.RelatedID), sqlitedb.FormatTime(now))
	if err != nil {
		return nil, wrapWrite("insert contribution", err)
	}
	created := *c
	created.Currency = currency
	created.CreatedAt = now
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("contribution id: %w", err)
	}
	return &created, nil
}

// ContributionByTransaction finds the addon's contribution with a PayPal transaction id.
func (s *Store) ContributionByTransaction(ctx context.Context, addonID int64, txn string) (*Contribution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE addon_id = ? AND transaction_id = ? ORDER BY id LIMIT 1`,
		addonID, txn)
	c, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("contribution by transaction: %w", err)
	}
	return c, nil
}

// CreateRefund records a pending or pre-decided refund for a purchase.
func (s *Store) CreateRefund(ctx context.Context, r *Refund) error {
	requested := r.RequestedAt
	if requested.IsZero() {
		requested = s.now()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO refunds (contribution_id, status, refund_reason, rejection_reason, requested_at, approved_at, declined_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ContributionID, r.Status, sqlitedb.NullableString(r.RefundReason), sqlitedb.NullableString(r.RejectionReason),
		sqlitedb.FormatTime(requested), sqlitedb.NullableTime(r.ApprovedAt), sqlitedb.NullableTime(r.DeclinedAt))
	if err != nil {
		return wrapWrite("insert refund", err)
	}
	return nil
}

func scanRefund(row sqlitedb.Scanner) (*Refund, error) {
	var (
		r                         Refund
		reason, rejection         sql.NullString
		requested, approved, decl sql.NullString
	)
	if err := row.Scan(&r.ContributionID, &r.Status, &reason, &rejection, &requested, &approved, &decl); err != nil {
		return nil, err
	}
	r.RefundReason = reason.String
	r.RejectionReason = rejection.String
	r.RequestedAt = sqlitedb.TimeFrom(requested)
	r.ApprovedAt = sqlitedb.TimePtrFrom(approved)
	r.DeclinedAt = sqlitedb.TimePtrFrom(decl)
	return &r, nil
}

// GetRefund returns the refund attached to a contribution, or nil when none exists.
func (s *Store) GetRefund(ctx context.Context, contributionID int64) (*Refund, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT contribution_id, status, refund_reason, rejection_reason, requested_at, approved_at, declined_at
         FROM refunds WHERE contribution_id = ?`, contributionID)
	r, err := scanRefund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return r, nil
}

// TransitionRefund moves a pending refund to status. It returns false when the
// refund was no longer pending, so concurrent processors cannot both win.
func (s *Store) TransitionRefund(ctx context.Context, contributionID int64, status RefundStatus, rejection string) (bool, error) {
	stamp := s.stamp()
	var approved, declined any
	switch status {
	case RefundApproved, RefundApprovedInstant:
		approved = stamp
	case RefundDeclined:
		declined = stamp
	}
	res, err := s.db.Exec(ctx,
		`UPDATE refunds SET status = ?, rejection_reason = COALESCE(?, rejection_reason),
             approved_at = COALESCE(?, approved_at), declined_at = COALESCE(?, declined_at)
         WHERE contribution_id = ? AND status = ?`,
		status, sqlitedb.NullableString(rejection), approved, declined, contributionID, RefundPending)
	if err != nil {
		return false, fmt.Errorf("transition refund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition refund: %w", err)
	}
	return n == 1, nil
}

// RefundEntry pairs a refund with its purchase.
type RefundEntry struct {
	Refund       *Refund
	Contribution *Contribution
}

// RefundsForAddon returns every refund on the addon's purchases, newest request first.
func (s *Store) RefundsForAddon(ctx context.Context, addonID int64) ([]RefundEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.contribution_id, r.status, r.refund_reason, r.rejection_reason, r.requested_at, r.approved_at, r.declined_at,
                c.id, c.addon_id, c.user_id, c.type, c.amount_cents, c.currency, c.uuid, c.transaction_id, c.paykey, c.related_id, c.created_at
         FROM refunds r JOIN contributions c ON c.id = r.contribution_id
         WHERE c.addon_id = ? ORDER BY r.requested_at DESC, r.contribution_id DESC`, addonID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()
	var entries []RefundEntry
	for rows.Next() {
		var (
			r                           Refund
			reason, rejection           sql.NullString
			requested, approved, decl   sql.NullString
			c                           Contribution
			userID, related             sql.NullInt64
			uuid, txn, paykey, cCreated sql.NullString
		)
		if err := rows.Scan(&r.ContributionID, &r.Status, &reason, &rejection, &requested, &approved, &decl,
			&c.ID, &c.AddonID, &userID, &c.Type, &c.AmountCents, &c.Currency, &uuid, &txn, &paykey, &related, &cCreated,
		); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		r.RefundReason, r.RejectionReason = reason.String, rejection.String
		r.RequestedAt = sqlitedb.TimeFrom(requested)
		r.ApprovedAt = sqlitedb.TimePtrFrom(approved)
		r.DeclinedAt = sqlitedb.TimePtrFrom(decl)
		c.UserID, c.RelatedID = sqlitedb.IntPtrFrom(userID), sqlitedb.IntPtrFrom(related)
		c.UUID, c.TransactionID, c.Paykey = uuid.String, txn.String, paykey.String
		c.CreatedAt = sqlitedb.TimeFrom(cCreated)
		entries = append(entries, RefundEntry{Refund: &r, Contribution: &c})
	}
	return entries, rows.Err()
}
