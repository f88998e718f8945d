package devhub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"marketplace/internal/logging"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

// AddVersionInput is the new version form.
type AddVersionInput struct {
	Upload    string
	Platforms []int
}

// AddVersion creates a version of a from a validated upload.
func (s *Service) AddVersion(ctx context.Context, user *store.User, a *store.Addon, in AddVersionInput) (*store.Version, error) {
	if err := s.Authorize(ctx, user, a, AccessWrite); err != nil {
		return nil, err
	}
	errs := FormErrors{}
	upload, err := s.ownUpload(ctx, user, in.Upload)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return nil, FormErrors{"upload": {msgUploadInvalid}}
	case err != nil:
		return nil, err
	case !upload.Valid:
		return nil, FormErrors{"upload": {msgUploadInvalid}}
	}
	if !a.IsWebapp() {
		validatePlatforms(errs, in.Platforms)
		if upload.GUID != "" && upload.GUID != a.GUID {
			errs.Add(NonField, "UUID doesn't match add-on.")
		}
	}
	number := strings.TrimSpace(upload.Version)
	if number == "" {
		number = defaultVersion
	}
	exists, err := s.store.VersionExists(ctx, a.ID, number)
	if err != nil {
		return nil, err
	}
	if exists {
		errs.Add(NonField, "Version %s already exists", number)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	v, err := s.versionFromUpload(ctx, a, upload, in.Platforms)
	if err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionAddVersion, a, user, map[string]any{"version": v.Version}); err != nil {
		return nil, err
	}
	s.log(ctx).Info("version added",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("version", v.Version),
	)
	return v, nil
}

// VersionStat summarizes one version for the versions page.
type VersionStat struct {
	ID      int64  `json:"id"`
	Version string `json:"version"`
	Files   int    `json:"files"`
	Reviews int    `json:"reviews"`
}

// VersionStats maps version ids to file and review counts.
func (s *Service) VersionStats(ctx context.Context, user *store.User, a *store.Addon) (map[string]VersionStat, error) {
	if err := s.Authorize(ctx, user, a, AccessRead); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]VersionStat, len(versions))
	for _, v := range versions {
		files, err := s.store.ListFiles(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		reviews, err := s.store.CountReviews(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		out[strconv.FormatInt(v.ID, 10)] = VersionStat{ID: v.ID, Version: v.Version, Files: len(files), Reviews: reviews}
	}
	return out, nil
}

// Versions lists a's versions, newest first.
func (s *Service) Versions(ctx context.Context, user *store.User, a *store.Addon) ([]*store.Version, error) {
	if err := s.Authorize(ctx, user, a, AccessRead); err != nil {
		return nil, err
	}
	versions, err := s.store.ListVersions(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("versions for %d: %w", a.ID, err)
	}
	return versions, nil
}
