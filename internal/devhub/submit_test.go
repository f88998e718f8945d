package devhub_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"marketplace/internal/devhub"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/testsupport"
)

func TestAddonSubmissionWizard(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	cat, err := h.store.CreateCategory(ctx, &store.Category{Name: "Tools", Slug: "tools", Type: store.TypeExtension})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	pkg := zipPackage(t, map[string]string{"name": "Test Extension", "version": "2.0", "id": "test@example.com"})
	detail, err := h.svc.Upload(ctx, owner, "addon.xpi", bytes.NewReader(pkg))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !detail.Validation.Success || detail.Validation.Errors != 0 {
		t.Fatalf("expected clean validation, got %+v", detail.Validation)
	}

	_, err = h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload, Platforms: []int{store.PlatformAll}})
	if path, ok := devhub.AsRedirect(err); !ok || path != "/developers/submit/1" {
		t.Fatalf("expected redirect to agreement, got %v", err)
	}
	if res, err := h.svc.AcceptAgreement(ctx, owner); err != nil || res.Step != devhub.StepUpload {
		t.Fatalf("AcceptAgreement: %+v %v", res, err)
	}

	_, err = h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload})
	expectField(t, err, "platforms", "Need at least one platform.")

	res, err := h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload, Platforms: []int{store.PlatformAll}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	a := res.Addon
	if a.Slug != "test-extension" || a.GUID != "test@example.com" || a.Status != store.StatusNull {
		t.Fatalf("unexpected addon %+v", a)
	}
	if res.Next != "/developers/submit/3/test-extension" {
		t.Fatalf("next = %q", res.Next)
	}
	if a.CurrentVersionID == nil {
		t.Fatal("expected a current version")
	}
	files, err := h.store.ListFiles(ctx, *a.CurrentVersionID)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles: %v %v", files, err)
	}
	if files[0].Filename != "test-extension-2.0-1.xpi" || files[0].Status != store.StatusUnreviewed {
		t.Fatalf("unexpected file %+v", files[0])
	}
	stored := filepath.Join(h.cfg.Uploads.Dir, "files", strconv.FormatInt(a.ID, 10), files[0].Filename)
	if _, err := os.Stat(stored); err != nil {
		t.Fatalf("expected copied package: %v", err)
	}
	if n, _ := h.store.CountActivity(ctx, a.ID, store.ActionCreateAddon); n != 1 {
		t.Fatalf("create activity = %d", n)
	}

	err = h.svc.StepFor(ctx, owner, a, devhub.StepLicense)
	if path, ok := devhub.AsRedirect(err); !ok || path != "/developers/submit/3/test-extension" {
		t.Fatalf("expected redirect to step 3, got %v", err)
	}

	_, err = h.svc.Details(ctx, owner, a, devhub.DetailsInput{
		Name: "Test Extension", Slug: "bad slug!", Summary: "Does things",
		Categories: []int64{cat.ID, cat.ID + 1, cat.ID + 2},
	})
	fe := formErrors(t, err)
	if !fe.Has("slug") || fe["categories"][0] != "You can have only 2 categories." {
		t.Fatalf("unexpected details errors %v", fe)
	}

	res, err = h.svc.Details(ctx, owner, a, devhub.DetailsInput{
		Name: "Test Extension", Slug: "test-ext", Summary: "Does things", Categories: []int64{cat.ID},
	})
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	a = res.Addon
	if res.Step != devhub.StepMedia || a.Slug != "test-ext" {
		t.Fatalf("unexpected details result %+v", res)
	}

	if res, err = h.svc.Media(ctx, owner, a, devhub.MediaInput{IconType: "icon/alerts"}); err != nil || res.Step != devhub.StepLicense {
		t.Fatalf("Media: %+v %v", res, err)
	}

	_, err = h.svc.License(ctx, owner, a, devhub.LicenseInput{Builtin: 99})
	expectField(t, err, "builtin", "not one of the available choices")
	_, err = h.svc.License(ctx, owner, a, devhub.LicenseInput{Builtin: 1, HasEULA: true})
	expectField(t, err, "eula", "required")
	if res, err = h.svc.License(ctx, owner, a, devhub.LicenseInput{Builtin: 1}); err != nil || res.Step != devhub.StepReview {
		t.Fatalf("License: %+v %v", res, err)
	}
	v, err := h.store.GetVersion(ctx, *a.CurrentVersionID)
	if err != nil || v.LicenseID == nil {
		t.Fatalf("expected licensed version, got %+v %v", v, err)
	}

	_, err = h.svc.ReviewType(ctx, owner, a, store.StatusNull)
	expectField(t, err, "review_type", "A review type must be selected.")
	_, err = h.svc.ReviewType(ctx, owner, a, store.StatusPublic)
	expectField(t, err, "review_type", "not one of the available choices")
	if res, err = h.svc.ReviewType(ctx, owner, a, store.StatusNominated); err != nil {
		t.Fatalf("ReviewType: %v", err)
	}

	final := h.reload(t, a)
	if final.Status != store.StatusNominated || final.NominatedAt == nil {
		t.Fatalf("unexpected final addon %+v", final)
	}
	if _, ok, _ := h.store.SubmitStep(ctx, a.ID); ok {
		t.Fatal("expected submit step cleared")
	}
	cats, err := h.store.AddonCategories(ctx, a.ID)
	if err != nil || len(cats) != 1 {
		t.Fatalf("AddonCategories: %v %v", cats, err)
	}

	err = h.svc.StepFor(ctx, owner, final, devhub.StepDetails)
	if path, ok := devhub.AsRedirect(err); !ok || path != "/developers/submit/7/test-ext" {
		t.Fatalf("expected redirect to finish, got %v", err)
	}
	finish, err := h.svc.Finish(ctx, owner, final)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if finish.ReviewLabel != "Full Review" || finish.URL != "/addon/test-ext/" {
		t.Fatalf("unexpected finish %+v", finish)
	}
	if path, err := h.svc.Resume(ctx, owner, final); err != nil || path != "/developers/addon/test-ext/versions" {
		t.Fatalf("Resume: %q %v", path, err)
	}
}

func TestWebappSubmissionRestricted(t *testing.T) {
	h := newHarness(t, []testsupport.ConfigOption{testsupport.WithRestrictedWebapps()})
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	if _, err := h.svc.AcceptAgreement(ctx, owner); err != nil {
		t.Fatalf("AcceptAgreement: %v", err)
	}
	cat, err := h.store.CreateCategory(ctx, &store.Category{Name: "Weather", Slug: "weather", Type: store.TypeWebapp})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	detail, err := h.svc.Upload(ctx, owner, "manifest.webapp", bytes.NewBufferString(`{"name":"Weather Now","version":"1.2"}`))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	_, err = h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload})
	expectField(t, err, "upload", "not of a recognized type")

	res, err := h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload, Webapp: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	a := res.Addon
	if !a.IsWebapp() || a.AppSlug != "weather-now" || a.Slug != "app-"+strconv.FormatInt(a.ID, 10) {
		t.Fatalf("unexpected webapp %+v", a)
	}
	if res.Next != "/developers/submit/app/3/weather-now" {
		t.Fatalf("next = %q", res.Next)
	}

	_, err = h.svc.Details(ctx, owner, a, devhub.DetailsInput{
		Name: "Weather Now", Slug: "weather-now", Summary: "Forecasts", Categories: []int64{cat.ID},
	})
	expectField(t, err, "support_email", "required")

	res, err = h.svc.Details(ctx, owner, a, devhub.DetailsInput{
		Name: "Weather Now", Slug: "weather", Summary: "Forecasts", Categories: []int64{cat.ID},
		SupportEmail: "help@example.com", DeviceTypes: []string{"mobile"},
	})
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	a = res.Addon

	icon, err := h.svc.UploadIcon(ctx, owner, bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("UploadIcon: %v", err)
	}
	res, err = h.svc.Media(ctx, owner, a, devhub.MediaInput{IconType: "image/png", IconUploadHash: icon.Hash})
	if err != nil {
		t.Fatalf("Media: %v", err)
	}
	if res.Step != devhub.StepFinish {
		t.Fatalf("webapps finish after media, got step %d", res.Step)
	}

	final := h.reload(t, a)
	if final.Status != store.StatusPending || final.AppSlug != "weather" || final.IconType != "image/png" || len(final.IconHash) != 8 {
		t.Fatalf("unexpected final webapp %+v", final)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Uploads.IconDir, strconv.FormatInt(a.ID, 10)+".png")); err != nil {
		t.Fatalf("expected stored icon: %v", err)
	}
	finish, err := h.svc.Finish(ctx, owner, final)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if finish.ReviewLabel != store.StatusPending.String() || finish.URL != "/app/weather/" {
		t.Fatalf("unexpected finish %+v", finish)
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	existing := testsupport.SeedAddon(t, h.store, owner)
	if _, err := h.svc.AcceptAgreement(ctx, owner); err != nil {
		t.Fatalf("AcceptAgreement: %v", err)
	}

	pkg := zipPackage(t, map[string]string{"name": existing.Name, "version": "1.0", "id": "other@example.com"})
	detail, err := h.svc.Upload(ctx, owner, "dup.xpi", bytes.NewReader(pkg))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	_, err = h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload, Platforms: []int{store.PlatformAll}})
	expectField(t, err, "upload", "already in use")
}

func TestCreateDiscardsAddonWhenFilesCannotBeCopied(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	if _, err := h.svc.AcceptAgreement(ctx, owner); err != nil {
		t.Fatalf("AcceptAgreement: %v", err)
	}
	pkg := zipPackage(t, map[string]string{"name": "Tab Stacker", "version": "1.0", "id": "stacker@example.com"})
	detail, err := h.svc.Upload(ctx, owner, "stacker.xpi", bytes.NewReader(pkg))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	filesDir := filepath.Join(h.cfg.Uploads.Dir, "files")
	if err := os.RemoveAll(filesDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filesDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	in := devhub.CreateInput{Upload: detail.Upload, Platforms: []int{store.PlatformAll}}
	if _, err := h.svc.Create(ctx, owner, in); err == nil {
		t.Fatal("expected Create to fail while the file area is unusable")
	}
	left, err := h.store.ListAddons(ctx, 0)
	if err != nil {
		t.Fatalf("ListAddons: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no addon left behind, got %+v", left[0])
	}

	if err := os.Remove(filesDir); err != nil {
		t.Fatal(err)
	}
	res, err := h.svc.Create(ctx, owner, in)
	if err != nil {
		t.Fatalf("retry Create: %v", err)
	}
	if res.Addon == nil || res.Addon.Name != "Tab Stacker" || res.Addon.CurrentVersionID == nil {
		t.Fatalf("unexpected retry result %+v", res.Addon)
	}
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	stranger := testsupport.SeedUser(t, h.store, false)

	tests := []struct {
		name     string
		filename string
		body     []byte
		valid    bool
		warnings int
	}{
		{name: "unknown type", filename: "notes.txt", body: []byte("hello")},
		{name: "archive without manifest", filename: "empty.zip", body: zipWithout(t)},
		{name: "bad manifest json", filename: "broken.webapp", body: []byte("{")},
		{name: "manifest without name", filename: "anon.webapp", body: []byte(`{"version":"1.0"}`)},
		{name: "extension without id", filename: "noid.xpi", body: zipPackage(t, map[string]string{"name": "No Id", "version": "1.0"}), valid: true, warnings: 1},
		{name: "webapp without version", filename: "app.webapp", body: []byte(`{"name":"App"}`), valid: true, warnings: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, err := h.svc.Upload(ctx, owner, tt.filename, bytes.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if got := detail.Validation.Errors == 0; got != tt.valid {
				t.Fatalf("valid = %v, want %v (%+v)", got, tt.valid, detail.Validation)
			}
			if detail.Validation.Warnings != tt.warnings {
				t.Fatalf("warnings = %d, want %d", detail.Validation.Warnings, tt.warnings)
			}
			again, err := h.svc.UploadDetail(ctx, owner, detail.Upload)
			if err != nil {
				t.Fatalf("UploadDetail: %v", err)
			}
			if again.Validation.Errors != detail.Validation.Errors {
				t.Fatalf("stored validation differs: %+v", again.Validation)
			}
			if _, err := h.svc.UploadDetail(ctx, stranger, detail.Upload); !errors.Is(err, services.ErrNotFound) {
				t.Fatalf("stranger should not see upload, got %v", err)
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	h := newHarness(t, nil)
	h.cfg.Uploads.MaxSizeMiB = 1
	owner := testsupport.SeedUser(t, h.store, false)

	_, err := h.svc.Upload(context.Background(), owner, "big.xpi", bytes.NewReader(make([]byte, 2<<20)))
	expectField(t, err, "upload", "larger than 1 MB")
}

func TestUploadManifestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manifest.webapp" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-web-app-manifest+json")
		_, _ = w.Write([]byte(`{"name":"Hosted App","version":"0.3"}`))
	}))
	defer srv.Close()

	h := newHarness(t, nil, devhub.WithHTTPClient(srv.Client()))
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	if _, err := h.svc.AcceptAgreement(ctx, owner); err != nil {
		t.Fatalf("AcceptAgreement: %v", err)
	}

	_, err := h.svc.UploadManifestURL(ctx, owner, "ftp://example.com/manifest")
	expectField(t, err, "manifest", "Enter a valid URL.")

	missing, err := h.svc.UploadManifestURL(ctx, owner, srv.URL+"/missing.webapp")
	if err != nil {
		t.Fatalf("UploadManifestURL: %v", err)
	}
	if missing.Validation.Errors != 1 {
		t.Fatalf("expected fetch error, got %+v", missing.Validation)
	}

	manifestURL := srv.URL + "/manifest.webapp"
	detail, err := h.svc.UploadManifestURL(ctx, owner, manifestURL)
	if err != nil {
		t.Fatalf("UploadManifestURL: %v", err)
	}
	if !detail.Validation.Success {
		t.Fatalf("expected valid manifest, got %+v", detail.Validation)
	}
	res, err := h.svc.Create(ctx, owner, devhub.CreateInput{Upload: detail.Upload, Webapp: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Addon.ManifestURL != manifestURL || res.Addon.AppDomain != "127.0.0.1" {
		t.Fatalf("unexpected hosted app %+v", res.Addon)
	}

	_, err = h.svc.UploadManifestURL(ctx, owner, manifestURL)
	expectField(t, err, "manifest", "only one app per domain")

	h.cfg.Webapps.AllowDuplicateDomains = true
	if _, err := h.svc.UploadManifestURL(ctx, owner, manifestURL); err != nil {
		t.Fatalf("duplicate domains allowed: %v", err)
	}
}

func TestUploadIcon(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)

	icon, err := h.svc.UploadIcon(ctx, owner, bytes.NewReader(pngBytes(t)))
	if err != nil {
		t.Fatalf("UploadIcon: %v", err)
	}
	if icon.Type != "image/png" || icon.Width != 2 || icon.Height != 2 || len(icon.Hash) != 32 {
		t.Fatalf("unexpected icon %+v", icon)
	}

	_, err = h.svc.UploadIcon(ctx, owner, bytes.NewBufferString("definitely not an image"))
	expectField(t, err, "upload_image", "PNG or JPG")

	_, err = h.svc.UploadIcon(ctx, owner, bytes.NewReader(animatedPNG(t)))
	expectField(t, err, "upload_image", "cannot be animated")
}

func TestBumpAdminOnly(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	admin := testsupport.SeedUser(t, h.store, true)
	a := testsupport.SeedAddon(t, h.store, owner)

	if _, err := h.svc.Bump(ctx, owner, a, devhub.StepMedia); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("owner bump: %v", err)
	}
	_, err := h.svc.Bump(ctx, admin, a, 9)
	expectField(t, err, "step", "9")
	res, err := h.svc.Bump(ctx, admin, a, devhub.StepMedia)
	if err != nil || res.Next != "/developers/submit/4/"+a.Slug {
		t.Fatalf("Bump: %+v %v", res, err)
	}
	if step, ok, _ := h.store.SubmitStep(ctx, a.ID); !ok || step != devhub.StepMedia {
		t.Fatalf("saved step = %d %v", step, ok)
	}
}

func TestEditRedirectsWhileSubmitting(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	got, err := h.svc.Edit(ctx, owner, a)
	if err != nil || got.ID != a.ID {
		t.Fatalf("Edit finished addon: %v %v", got, err)
	}

	if err := h.store.SetSubmitStep(ctx, a.ID, devhub.StepMedia); err != nil {
		t.Fatalf("SetSubmitStep: %v", err)
	}
	_, err = h.svc.Edit(ctx, owner, a)
	path, ok := devhub.AsRedirect(err)
	if !ok || path != devhub.SubmitPath(a, devhub.StepMedia) {
		t.Fatalf("expected redirect to step 4, got %q %v", path, err)
	}

	stranger := testsupport.SeedUser(t, h.store, false)
	if _, err := h.svc.Edit(ctx, stranger, a); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
}
