package devhub

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"marketplace/internal/logging"
	"marketplace/internal/store"
)

const msgDeleted = "App deleted."

// Delete removes a. Paid addons are kept.
func (s *Service) Delete(ctx context.Context, user *store.User, a *store.Addon) (string, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return "", err
	}
	if a.IsPremium() {
		return "", FormErrors{NonField: {"Paid add-ons cannot be deleted."}}
	}
	if err := s.store.DeleteAddon(ctx, a.ID); err != nil {
		return "", err
	}
	// The audit row must outlive the addon, so it is not tied to it.
	if err := s.logActivity(ctx, store.ActionDeleteAddon, nil, user, map[string]any{
		"addon_id": a.ID,
		"name":     a.Name,
	}); err != nil {
		return "", err
	}
	s.removeAddonFiles(ctx, a.ID)
	s.log(ctx).Info("addon deleted",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("name", a.Name),
	)
	return msgDeleted, nil
}

// removeAddonFiles drops the copied packages and stored icons of an addon.
func (s *Service) removeAddonFiles(ctx context.Context, addonID int64) {
	id := strconv.FormatInt(addonID, 10)
	if err := os.RemoveAll(filepath.Join(s.cfg.Uploads.Dir, "files", id)); err != nil {
		s.log(ctx).Warn("remove addon files failed",
			logging.Int64(logging.FieldAddonID, addonID),
			logging.Error(err),
		)
	}
	for _, ext := range []string{".png", ".jpg"} {
		s.removeFile(ctx, filepath.Join(s.cfg.Uploads.IconDir, id+ext))
	}
}

func (s *Service) removeFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log(ctx).Warn("remove file failed",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}
