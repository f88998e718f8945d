package devhub

import (
	"context"
	"slices"

	"marketplace/internal/logging"
	"marketplace/internal/store"
)

// ReviewTargets returns the review levels a may be put up for. An addon
// without files has nothing to review.
func ReviewTargets(a *store.Addon, files int) []store.Status {
	if a.IsDisabled() || files == 0 {
		return nil
	}
	switch a.Status {
	case store.StatusPublic, store.StatusLiteAndNominated:
		return nil
	case store.StatusNominated:
		return []store.Status{store.StatusLite}
	case store.StatusUnreviewed, store.StatusLite:
		return []store.Status{store.StatusPublic}
	default:
		return []store.Status{store.StatusLite, store.StatusPublic}
	}
}

// RequestReview asks for preliminary (LITE) or full (PUBLIC) review of a.
func (s *Service) RequestReview(ctx context.Context, user *store.User, a *store.Addon, target store.Status) (*store.Addon, error) {
	if target != store.StatusLite && target != store.StatusPublic {
		return nil, notFound("request review", "unknown review target")
	}
	if err := s.Authorize(ctx, user, a, AccessWrite); err != nil {
		return nil, err
	}
	files, err := s.store.CountAddonFiles(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ReviewTargets(a, files), target) {
		return nil, invalid("request review", "review not available for status "+a.Status.String())
	}

	from := a.Status
	switch {
	case target == store.StatusPublic && from == store.StatusLite:
		a.Status = store.StatusLiteAndNominated
	case target == store.StatusPublic:
		a.Status = store.StatusNominated
	case from == store.StatusPublic || from == store.StatusLiteAndNominated:
		a.Status = store.StatusLite
	default:
		a.Status = store.StatusUnreviewed
	}
	if target == store.StatusPublic && a.NominatedAt == nil {
		now := s.now()
		a.NominatedAt = &now
	}
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionChangeStatus, a, user, map[string]any{
		"from": int(from),
		"to":   int(a.Status),
	}); err != nil {
		return nil, err
	}
	s.log(ctx).Info("review requested",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("from", from.String()),
		logging.String("to", a.Status.String()),
	)
	return a, nil
}
