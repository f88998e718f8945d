package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SubmitStep returns the addon's saved wizard step; ok is false when none is saved.
func (s *Store) SubmitStep(ctx context.Context, addonID int64) (step int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT step FROM submit_steps WHERE addon_id = ?`, addonID).Scan(&step)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get submit step: %w", err)
	}
	return step, true, nil
}

// SetSubmitStep saves the addon's wizard step.
func (s *Store) SetSubmitStep(ctx context.Context, addonID int64, step int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO submit_steps (addon_id, step) VALUES (?, ?)
         ON CONFLICT(addon_id) DO UPDATE SET step = excluded.step`, addonID, step)
	if err != nil {
		return wrapWrite("set submit step", err)
	}
	return nil
}

// ClearSubmitStep marks the wizard finished for the addon.
func (s *Store) ClearSubmitStep(ctx context.Context, addonID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM submit_steps WHERE addon_id = ?`, addonID); err != nil {
		return fmt.Errorf("clear submit step: %w", err)
	}
	return nil
}

// AcceptAgreement records that the user accepted the developer agreement.
func (s *Store) AcceptAgreement(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO submit_agreements (user_id, accepted_at) VALUES (?, ?)
         ON CONFLICT(user_id) DO NOTHING`, userID, s.stamp())
	if err != nil {
		return wrapWrite("accept agreement", err)
	}
	return nil
}

// HasAcceptedAgreement reports whether the user accepted the developer agreement.
func (s *Store) HasAcceptedAgreement(ctx context.Context, userID int64) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM submit_agreements WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("check agreement: %w", err)
	}
	return count > 0, nil
}
