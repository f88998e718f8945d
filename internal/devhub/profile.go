package devhub

import (
	"context"
	"strings"

	"marketplace/internal/store"
)

// ProfileInput is the developer profile form.
type ProfileInput struct {
	TheReason string
	TheFuture string
}

// UpdateProfile stores why the developer made a and what comes next. Both
// fields become required once the addon takes contributions.
func (s *Service) UpdateProfile(ctx context.Context, user *store.User, a *store.Addon, in ProfileInput) (*store.Addon, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.TheReason)
	future := strings.TrimSpace(in.TheFuture)
	if a.WantsContributions {
		errs := FormErrors{}
		if reason == "" {
			errs.Add("the_reason", msgRequired)
		}
		if future == "" {
			errs.Add("the_future", msgRequired)
		}
		if err := errs.Err(); err != nil {
			return nil, err
		}
	}
	a.TheReason = reason
	a.TheFuture = future
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionEditProperties, a, user, map[string]any{"fields": []string{"the_reason", "the_future"}}); err != nil {
		return nil, err
	}
	return a, nil
}

// RemoveProfile clears the profile and, with it, contributions.
func (s *Service) RemoveProfile(ctx context.Context, user *store.User, a *store.Addon) (*store.Addon, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	a.TheReason = ""
	a.TheFuture = ""
	a.WantsContributions = false
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionEditProperties, a, user, map[string]any{"removed": "profile"}); err != nil {
		return nil, err
	}
	return a, nil
}
