package devhub_test

import (
	"context"
	"errors"
	"testing"

	"marketplace/internal/devhub"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/testsupport"
)

func TestAuthorize(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	dev := testsupport.SeedUser(t, h.store, false)
	viewer := testsupport.SeedUser(t, h.store, false)
	stranger := testsupport.SeedUser(t, h.store, false)
	admin := testsupport.SeedUser(t, h.store, true)
	a := testsupport.SeedAddon(t, h.store, owner)
	testsupport.AddAuthor(t, h.store, a, dev, store.RoleDev)
	testsupport.AddAuthor(t, h.store, a, viewer, store.RoleViewer)
	disabled := testsupport.SeedAddon(t, h.store, owner, testsupport.WithStatus(store.StatusDisabled))

	tests := []struct {
		name  string
		user  *store.User
		addon *store.Addon
		need  devhub.Access
		want  error
	}{
		{name: "anonymous", user: nil, addon: a, need: devhub.AccessRead, want: services.ErrUnauthenticated},
		{name: "stranger read", user: stranger, addon: a, need: devhub.AccessRead, want: services.ErrForbidden},
		{name: "viewer read", user: viewer, addon: a, need: devhub.AccessRead},
		{name: "viewer write", user: viewer, addon: a, need: devhub.AccessWrite, want: services.ErrForbidden},
		{name: "dev write", user: dev, addon: a, need: devhub.AccessWrite},
		{name: "dev owner", user: dev, addon: a, need: devhub.AccessOwner, want: services.ErrForbidden},
		{name: "owner owner", user: owner, addon: a, need: devhub.AccessOwner},
		{name: "owner writes disabled", user: owner, addon: disabled, need: devhub.AccessWrite, want: services.ErrForbidden},
		{name: "owner reads disabled", user: owner, addon: disabled, need: devhub.AccessRead},
		{name: "admin writes disabled", user: admin, addon: disabled, need: devhub.AccessOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.svc.Authorize(ctx, tt.user, tt.addon, tt.need)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAddonLookup(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	app := testsupport.SeedAddon(t, h.store, owner, testsupport.AsWebapp())

	got, err := h.svc.Addon(ctx, owner, app.AppSlug, true, devhub.AccessOwner)
	if err != nil || got.ID != app.ID {
		t.Fatalf("Addon: %+v %v", got, err)
	}
	if _, err := h.svc.Addon(ctx, owner, app.AppSlug, false, devhub.AccessRead); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("addon namespace should not find app slug, got %v", err)
	}
	if _, err := h.svc.Addon(ctx, owner, "missing", true, devhub.AccessRead); services.HTTPStatus(err) != 404 {
		t.Fatalf("missing addon should map to 404, got %v", err)
	}
}

func TestRequestReview(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)

	tests := []struct {
		name    string
		from    store.Status
		target  store.Status
		want    store.Status
		wantErr error
	}{
		{name: "incomplete to full", from: store.StatusNull, target: store.StatusPublic, want: store.StatusNominated},
		{name: "incomplete to preliminary", from: store.StatusNull, target: store.StatusLite, want: store.StatusUnreviewed},
		{name: "lite to full", from: store.StatusLite, target: store.StatusPublic, want: store.StatusLiteAndNominated},
		{name: "unreviewed to full", from: store.StatusUnreviewed, target: store.StatusPublic, want: store.StatusNominated},
		{name: "nominated to preliminary", from: store.StatusNominated, target: store.StatusLite, want: store.StatusUnreviewed},
		{name: "public cannot request", from: store.StatusPublic, target: store.StatusLite, wantErr: services.ErrValidation},
		{name: "nominated again", from: store.StatusNominated, target: store.StatusPublic, wantErr: services.ErrValidation},
		{name: "unknown target", from: store.StatusNull, target: store.StatusDisabled, wantErr: services.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testsupport.SeedAddon(t, h.store, owner, testsupport.WithStatus(tt.from))
			got, err := h.svc.RequestReview(ctx, owner, a, tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if h.reload(t, a).Status != tt.from {
					t.Fatal("status changed on rejected request")
				}
				return
			}
			if err != nil {
				t.Fatalf("RequestReview: %v", err)
			}
			stored := h.reload(t, a)
			if got.Status != tt.want || stored.Status != tt.want {
				t.Fatalf("status = %v (stored %v), want %v", got.Status, stored.Status, tt.want)
			}
			if (tt.target == store.StatusPublic) != (stored.NominatedAt != nil) {
				t.Fatalf("nominated_at = %v for target %v", stored.NominatedAt, tt.target)
			}
			if n, _ := h.store.CountActivity(ctx, a.ID, store.ActionChangeStatus); n != 1 {
				t.Fatalf("status activity = %d", n)
			}
		})
	}
}

func TestRequestReviewDisabledByUser(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner, testsupport.WithStatus(store.StatusNull))
	a.DisabledByUser = true
	if err := h.store.UpdateAddon(context.Background(), a); err != nil {
		t.Fatalf("UpdateAddon: %v", err)
	}
	if targets := devhub.ReviewTargets(a, 1); len(targets) != 0 {
		t.Fatalf("disabled addon targets = %v", targets)
	}
	if _, err := h.svc.RequestReview(context.Background(), owner, a, store.StatusLite); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddVersion(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	upload := func(guid, version string) string {
		t.Helper()
		pkg := zipPackage(t, map[string]string{"name": a.Name, "version": version, "id": guid})
		detail, err := h.svc.Upload(ctx, owner, "update.xpi", bytesReader(pkg))
		if err != nil {
			t.Fatalf("Upload: %v", err)
		}
		return detail.Upload
	}

	_, err := h.svc.AddVersion(ctx, owner, a, devhub.AddVersionInput{Upload: upload("other@example.com", "1.1"), Platforms: []int{store.PlatformAll}})
	expectField(t, err, devhub.NonField, "UUID doesn't match add-on.")

	_, err = h.svc.AddVersion(ctx, owner, a, devhub.AddVersionInput{Upload: upload(a.GUID, "1.0"), Platforms: []int{store.PlatformAll}})
	expectField(t, err, devhub.NonField, "Version 1.0 already exists")

	_, err = h.svc.AddVersion(ctx, owner, a, devhub.AddVersionInput{Upload: "no-such-upload", Platforms: []int{store.PlatformAll}})
	expectField(t, err, "upload", "error with your upload")

	v, err := h.svc.AddVersion(ctx, owner, a, devhub.AddVersionInput{
		Upload:    upload(a.GUID, "1.1"),
		Platforms: []int{store.PlatformLinux, store.PlatformMac},
	})
	if err != nil {
		t.Fatalf("AddVersion: %v", err)
	}
	if v.Version != "1.1" {
		t.Fatalf("version = %q", v.Version)
	}
	if cur := h.reload(t, a).CurrentVersionID; cur == nil || *cur != v.ID {
		t.Fatalf("current version = %v, want %d", cur, v.ID)
	}
	if _, err := h.store.CreateReview(ctx, &store.Review{AddonID: a.ID, VersionID: &v.ID, UserID: &owner.ID, Rating: 5}); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}

	stats, err := h.svc.VersionStats(ctx, owner, a)
	if err != nil {
		t.Fatalf("VersionStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected two versions, got %v", stats)
	}
	var found bool
	for _, stat := range stats {
		if stat.ID == v.ID {
			found = true
			if stat.Files != 2 || stat.Reviews != 1 {
				t.Fatalf("unexpected stat %+v", stat)
			}
		}
	}
	if !found {
		t.Fatalf("new version missing from %v", stats)
	}
	if n, _ := h.store.CountActivity(ctx, a.ID, store.ActionAddVersion); n != 1 {
		t.Fatalf("add version activity = %d", n)
	}
}

func TestRequestReviewNeedsFiles(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	a, err := h.store.CreateAddon(ctx, &store.Addon{
		Type: store.TypeExtension, Name: "Empty", Slug: "empty", GUID: "empty@example.com", Status: store.StatusNull,
	})
	if err != nil {
		t.Fatalf("CreateAddon: %v", err)
	}
	testsupport.AddAuthor(t, h.store, a, owner, store.RoleOwner)

	if targets := devhub.ReviewTargets(a, 0); len(targets) != 0 {
		t.Fatalf("addon without files targets = %v", targets)
	}
	if _, err := h.svc.RequestReview(ctx, owner, a, store.StatusPublic); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.reload(t, a).Status != store.StatusNull {
		t.Fatal("status changed on rejected request")
	}

	testsupport.SeedVersion(t, h.store, a, "1.0")
	got, err := h.svc.RequestReview(ctx, owner, h.reload(t, a), store.StatusPublic)
	if err != nil {
		t.Fatalf("RequestReview: %v", err)
	}
	if got.Status != store.StatusNominated {
		t.Fatalf("status = %v", got.Status)
	}
}
