package devhub

import (
	"context"
	"errors"

	"marketplace/internal/services"
	"marketplace/internal/store"
)

// Access is the permission an operation needs on an addon.
type Access int

const (
	// AccessRead lets any author, including viewers and support, look.
	AccessRead Access = iota
	// AccessWrite needs an owner or developer.
	AccessWrite
	// AccessOwner is reserved for payments, premium, profile, refunds and delete.
	AccessOwner
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Authorize checks that user may perform an operation needing need on a.
func (s *Service) Authorize(ctx context.Context, user *store.User, a *store.Addon, need Access) error {
	if err := requireUser(user, "authorize"); err != nil {
		return err
	}
	if user.IsAdmin {
		return nil
	}
	if need != AccessRead && a.Status == store.StatusDisabled {
		return forbidden("authorize", "addon is disabled")
	}
	role, err := s.store.AuthorRole(ctx, a.ID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return forbidden("authorize", "not an author")
	}
	if err != nil {
		return err
	}
	switch need {
	case AccessRead:
		return nil
	case AccessWrite:
		if role == store.RoleOwner || role == store.RoleDev {
			return nil
		}
	case AccessOwner:
		if role == store.RoleOwner {
			return nil
		}
	}
	return forbidden("authorize", need.String()+" access denied")
}

// Addon loads the addon behind a developer hub slug and authorizes user.
func (s *Service) Addon(ctx context.Context, user *store.User, slug string, webapp bool, need Access) (*store.Addon, error) {
	if err := requireUser(user, "load addon"); err != nil {
		return nil, err
	}
	a, err := s.store.GetAddonBySlug(ctx, slug, webapp)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("load addon", "no addon "+slug)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, user, a, need); err != nil {
		return nil, err
	}
	return a, nil
}

func requireUser(user *store.User, op string) error {
	if user == nil {
		return services.Wrap(services.ErrUnauthenticated, "devhub", op, "login required", nil)
	}
	return nil
}
