package devhub

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"marketplace/internal/fileutil"
	"marketplace/internal/logging"
	"marketplace/internal/notifications"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/textutil"
)

// Wizard steps.
const (
	StepAgreement = 1
	StepUpload    = 2
	StepDetails   = 3
	StepMedia     = 4
	StepLicense   = 5
	StepReview    = 6
	StepFinish    = 7
)

const (
	maxAddonName   = 50
	maxWebappName  = 128
	maxSummary     = 250
	maxCategories  = 2
	defaultVersion = "1.0"
)

const (
	msgNameTaken    = "This name is already in use. Please choose another."
	msgSlugTaken    = "This slug is already in use. Please choose another."
	msgSlugInvalid  = "Enter a valid 'slug' consisting of letters, numbers, underscores or hyphens."
	msgMaxLength    = "Ensure this value has at most %d characters (it has %d)."
	msgChoice       = "Select a valid choice. %v is not one of the available choices."
	msgPlatforms    = "Need at least one platform."
	msgCategories   = "You can have only 2 categories."
	msgReviewNeeded = "A review type must be selected."
)

var (
	addonPlatforms = []int{
		store.PlatformAll, store.PlatformLinux, store.PlatformMac, store.PlatformBSD,
		store.PlatformWin, store.PlatformAndroid, store.PlatformMaemo,
	}
	deviceTypes = []string{"desktop", "mobile", "tablet"}
	iconPresets = []string{
		"icon/alerts", "icon/appearance", "icon/bookmarks", "icon/downloads", "icon/feeds",
		"icon/games", "icon/language", "icon/photos", "icon/privacy", "icon/search",
		"icon/social", "icon/tabs", "icon/webdev",
	}
)

// SubmitPath is the wizard path for step of a.
func SubmitPath(a *store.Addon, step int) string {
	if a == nil {
		return "/developers/submit/" + strconv.Itoa(step)
	}
	if a.IsWebapp() {
		return fmt.Sprintf("/developers/submit/app/%d/%s", step, a.AppSlug)
	}
	return fmt.Sprintf("/developers/submit/%d/%s", step, a.Slug)
}

func versionsPath(a *store.Addon) string { return a.DevPath() + "/versions" }

// StepResult reports where the wizard continues after a step succeeded.
type StepResult struct {
	Addon *store.Addon `json:"-"`
	Step  int          `json:"step"`
	Next  string       `json:"next"`
}

// AgreementAccepted reports whether user has accepted the developer agreement.
func (s *Service) AgreementAccepted(ctx context.Context, user *store.User) (bool, error) {
	if err := requireUser(user, "agreement"); err != nil {
		return false, err
	}
	return s.store.HasAcceptedAgreement(ctx, user.ID)
}

// AcceptAgreement is step 1.
func (s *Service) AcceptAgreement(ctx context.Context, user *store.User) (*StepResult, error) {
	if err := requireUser(user, "agreement"); err != nil {
		return nil, err
	}
	if err := s.store.AcceptAgreement(ctx, user.ID); err != nil {
		return nil, err
	}
	return &StepResult{Step: StepUpload, Next: SubmitPath(nil, StepUpload)}, nil
}

// CreateInput is the step 2 form.
type CreateInput struct {
	Upload    string
	Platforms []int
	Webapp    bool
}

// Create is step 2: it turns a validated upload into a new addon owned by user.
func (s *Service) Create(ctx context.Context, user *store.User, in CreateInput) (*StepResult, error) {
	if err := requireUser(user, "create"); err != nil {
		return nil, err
	}
	accepted, err := s.store.HasAcceptedAgreement(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, &Redirect{Path: SubmitPath(nil, StepAgreement)}
	}

	errs := FormErrors{}
	var upload *store.FileUpload
	if strings.TrimSpace(in.Upload) == "" {
		errs.Add("upload", msgRequired)
	} else {
		upload, err = s.ownUpload(ctx, user, in.Upload)
		switch {
		case errors.Is(err, services.ErrNotFound):
			upload = nil
			errs.Add("upload", msgUploadInvalid)
		case err != nil:
			return nil, err
		case !upload.Valid:
			errs.Add("upload", msgUploadInvalid)
		case in.Webapp != (upload.PackageType == store.TypeWebapp):
			errs.Add("upload", msgUnknownPackage)
		}
	}
	if !in.Webapp {
		validatePlatforms(errs, in.Platforms)
	}
	if upload != nil && !errs.Has("upload") {
		if err := s.checkNewName(ctx, errs, upload, in.Webapp); err != nil {
			return nil, err
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	a, err := s.createFromUpload(ctx, user, upload, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSubmitStep(ctx, a.ID, StepDetails); err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionCreateAddon, a, user, map[string]any{"name": a.Name}); err != nil {
		return nil, err
	}
	s.log(ctx).Info("addon created",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("name", a.Name),
		logging.Bool("webapp", a.IsWebapp()),
	)
	return &StepResult{Addon: a, Step: StepDetails, Next: SubmitPath(a, StepDetails)}, nil
}

func validatePlatforms(errs FormErrors, platforms []int) {
	if len(platforms) == 0 {
		errs.Add("platforms", msgPlatforms)
		return
	}
	for _, p := range platforms {
		if !slices.Contains(addonPlatforms, p) {
			errs.Add("platforms", msgChoice, p)
		}
	}
}

func (s *Service) checkNewName(ctx context.Context, errs FormErrors, upload *store.FileUpload, webapp bool) error {
	name := uploadName(upload)
	taken, err := s.store.NameInUse(ctx, name, webapp, 0)
	if err != nil {
		return err
	}
	if taken {
		errs.Add("upload", msgNameTaken)
	}
	if webapp && upload.AppDomain != "" && !s.cfg.Webapps.AllowDuplicateDomains {
		inUse, err := s.store.DomainInUse(ctx, upload.AppDomain, 0)
		if err != nil {
			return err
		}
		if inUse {
			errs.Add("upload", msgDomainTaken)
		}
	}
	return nil
}

func uploadName(u *store.FileUpload) string {
	if name := strings.TrimSpace(u.ManifestName); name != "" {
		return name
	}
	return strings.TrimSuffix(u.Name, filepath.Ext(u.Name))
}

func (s *Service) createFromUpload(ctx context.Context, user *store.User, upload *store.FileUpload, in CreateInput) (*store.Addon, error) {
	name := uploadName(upload)
	draft := &store.Addon{
		Type:   upload.PackageType,
		Name:   name,
		GUID:   upload.GUID,
		Status: store.StatusNull,
	}
	if in.Webapp {
		draft.Type = store.TypeWebapp
		draft.GUID = ""
		draft.AppDomain = upload.AppDomain
		if strings.HasPrefix(upload.Name, "http://") || strings.HasPrefix(upload.Name, "https://") {
			draft.ManifestURL = upload.Name
		}
	} else {
		slug, err := s.store.UniqueSlug(ctx, textutil.Slugify(name), false, 0)
		if err != nil {
			return nil, err
		}
		draft.Slug = slug
	}
	a, err := s.store.CreateAddon(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := s.finishCreate(ctx, user, a, upload, in.Platforms); err != nil {
		s.discardAddon(ctx, a.ID)
		return nil, err
	}
	return s.store.GetAddon(ctx, a.ID)
}

// finishCreate runs the writes that follow CreateAddon. A failure leaves a
// half-built addon that the caller must discard, or its name stays taken.
func (s *Service) finishCreate(ctx context.Context, user *store.User, a *store.Addon, upload *store.FileUpload, platforms []int) error {
	if a.IsWebapp() {
		appSlug, err := s.store.UniqueSlug(ctx, textutil.Slugify(a.Name), true, a.ID)
		if err != nil {
			return err
		}
		a.Slug = "app-" + strconv.FormatInt(a.ID, 10)
		a.AppSlug = appSlug
		if err := s.store.UpdateAddon(ctx, a); err != nil {
			return err
		}
	}
	if err := s.store.AddAuthor(ctx, store.AddonUser{AddonID: a.ID, UserID: user.ID, Role: store.RoleOwner, Listed: true}); err != nil {
		return err
	}
	_, err := s.versionFromUpload(ctx, a, upload, platforms)
	return err
}

func (s *Service) discardAddon(ctx context.Context, id int64) {
	cleanup := context.WithoutCancel(ctx)
	if err := s.store.DeleteAddon(cleanup, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log(ctx).Warn("discard incomplete addon failed",
			logging.Int64(logging.FieldAddonID, id),
			logging.Error(err),
		)
	}
	s.removeAddonFiles(ctx, id)
}

// versionFromUpload copies the uploaded package into the addon's file area
// and records a version with one file per platform.
func (s *Service) versionFromUpload(ctx context.Context, a *store.Addon, upload *store.FileUpload, platforms []int) (*store.Version, error) {
	number := strings.TrimSpace(upload.Version)
	if number == "" {
		number = defaultVersion
	}
	status := store.StatusUnreviewed
	if a.IsWebapp() {
		platforms = []int{store.PlatformAll}
		status = store.StatusPublic
	}
	dir := filepath.Join(s.cfg.Uploads.Dir, "files", strconv.FormatInt(a.ID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file dir: %w", err)
	}
	base := a.Slug
	ext := filepath.Ext(upload.Name)
	if a.IsWebapp() {
		base, ext = a.AppSlug, ".webapp"
	}
	files := make([]*store.File, 0, len(platforms))
	for _, platform := range platforms {
		filename := fmt.Sprintf("%s-%s-%d%s", base, number, platform, ext)
		if upload.Path != "" {
			if err := fileutil.CopyFileMode(upload.Path, filepath.Join(dir, filename), 0o644); err != nil {
				return nil, fmt.Errorf("copy upload: %w", err)
			}
		}
		files = append(files, &store.File{
			Platform: platform,
			Filename: filename,
			Hash:     upload.Hash,
			Size:     upload.Size,
			Status:   status,
		})
	}
	v, _, err := s.store.CreateVersion(ctx, &store.Version{AddonID: a.ID, Version: number}, files)
	return v, err
}

// StepFor checks that a may be shown at step requested. It returns a
// *Redirect when the wizard must continue elsewhere.
func (s *Service) StepFor(ctx context.Context, user *store.User, a *store.Addon, requested int) error {
	if err := s.Authorize(ctx, user, a, AccessRead); err != nil {
		return err
	}
	return s.guardStep(ctx, a, requested)
}

func (s *Service) guardStep(ctx context.Context, a *store.Addon, requested int) error {
	saved, ok, err := s.store.SubmitStep(ctx, a.ID)
	if err != nil {
		return err
	}
	switch {
	case ok && requested > saved:
		return &Redirect{Path: SubmitPath(a, saved)}
	case !ok && requested < StepFinish:
		return &Redirect{Path: SubmitPath(a, StepFinish)}
	}
	return nil
}

// Resume returns where a developer left off: the saved step, or the versions
// page once the wizard is done.
func (s *Service) Resume(ctx context.Context, user *store.User, a *store.Addon) (string, error) {
	if err := s.Authorize(ctx, user, a, AccessRead); err != nil {
		return "", err
	}
	step, ok, err := s.store.SubmitStep(ctx, a.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return SubmitPath(a, step), nil
	}
	return versionsPath(a), nil
}

// Edit opens the edit page of a. While a wizard step is still pending the
// developer is sent back to it instead.
func (s *Service) Edit(ctx context.Context, user *store.User, a *store.Addon) (*store.Addon, error) {
	if err := s.Authorize(ctx, user, a, AccessRead); err != nil {
		return nil, err
	}
	step, ok, err := s.store.SubmitStep(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, &Redirect{Path: SubmitPath(a, step)}
	}
	return a, nil
}

// Bump moves a's wizard to step. Only admins may do this.
func (s *Service) Bump(ctx context.Context, user *store.User, a *store.Addon, step int) (*StepResult, error) {
	if err := requireUser(user, "bump"); err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, forbidden("bump", "admin only")
	}
	if step < StepAgreement || step > StepFinish {
		return nil, FormErrors{"step": {fmt.Sprintf(msgChoice, step)}}
	}
	if err := s.store.SetSubmitStep(ctx, a.ID, step); err != nil {
		return nil, err
	}
	return &StepResult{Addon: a, Step: step, Next: SubmitPath(a, step)}, nil
}

// DetailsInput is the step 3 form.
type DetailsInput struct {
	Name         string
	Slug         string
	Summary      string
	Description  string
	Categories   []int64
	Homepage     string
	SupportURL   string
	SupportEmail string
	DeviceTypes  []string
}

// Details is step 3.
func (s *Service) Details(ctx context.Context, user *store.User, a *store.Addon, in DetailsInput) (*StepResult, error) {
	if err := s.Authorize(ctx, user, a, AccessWrite); err != nil {
		return nil, err
	}
	if err := s.guardStep(ctx, a, StepDetails); err != nil {
		return nil, err
	}
	errs := FormErrors{}
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)
	summary := strings.TrimSpace(in.Summary)

	maxName := maxAddonName
	if a.IsWebapp() {
		maxName = maxWebappName
	}
	if checkLength(errs, "name", name, maxName) {
		taken, err := s.store.NameInUse(ctx, name, a.IsWebapp(), a.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("name", msgNameTaken)
		}
	}
	switch {
	case slug == "":
		errs.Add("slug", msgRequired)
	case !textutil.ValidSlug(slug):
		errs.Add("slug", msgSlugInvalid)
	default:
		taken, err := s.store.SlugInUse(ctx, slug, a.IsWebapp(), a.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			errs.Add("slug", msgSlugTaken)
		}
	}
	checkLength(errs, "summary", summary, maxSummary)
	if err := s.checkCategories(ctx, errs, a.Type, in.Categories); err != nil {
		return nil, err
	}
	if a.IsWebapp() {
		checkURL(errs, "homepage", in.Homepage)
		checkURL(errs, "support_url", in.SupportURL)
		if strings.TrimSpace(in.SupportEmail) == "" {
			errs.Add("support_email", msgRequired)
		} else {
			checkEmail(errs, "support_email", in.SupportEmail)
		}
		for _, d := range in.DeviceTypes {
			if !slices.Contains(deviceTypes, d) {
				errs.Add("device_types", msgChoice, d)
			}
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	a.Name = name
	a.Summary = summary
	a.Description = strings.TrimSpace(in.Description)
	if a.IsWebapp() {
		a.AppSlug = slug
		a.Homepage = strings.TrimSpace(in.Homepage)
		a.SupportURL = strings.TrimSpace(in.SupportURL)
		a.SupportEmail = strings.TrimSpace(in.SupportEmail)
		a.DeviceTypes = in.DeviceTypes
	} else {
		a.Slug = slug
	}
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.SetAddonCategories(ctx, a.ID, in.Categories); err != nil {
		return nil, err
	}
	if err := s.store.SetSubmitStep(ctx, a.ID, StepMedia); err != nil {
		return nil, err
	}
	return &StepResult{Addon: a, Step: StepMedia, Next: SubmitPath(a, StepMedia)}, nil
}

// checkLength reports whether value is present and short enough.
func checkLength(errs FormErrors, field, value string, limit int) bool {
	if value == "" {
		errs.Add(field, msgRequired)
		return false
	}
	if n := utf8.RuneCountInString(value); n > limit {
		errs.Add(field, msgMaxLength, limit, n)
		return false
	}
	return true
}

func checkURL(errs FormErrors, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, msgInvalidURL)
	}
}

func checkEmail(errs FormErrors, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@")+1:], ".") {
		errs.Add(field, msgInvalidEmail)
	}
}

func (s *Service) checkCategories(ctx context.Context, errs FormErrors, addonType store.AddonType, ids []int64) error {
	if len(ids) == 0 {
		errs.Add("categories", msgRequired)
		return nil
	}
	if len(ids) > maxCategories {
		errs.Add("categories", msgCategories)
		return nil
	}
	available, err := s.store.ListCategories(ctx, addonType)
	if err != nil {
		return err
	}
	for _, id := range ids {
		found := slices.ContainsFunc(available, func(c *store.Category) bool { return c.ID == id })
		if !found {
			errs.Add("categories", msgChoice, id)
		}
	}
	return nil
}

// MediaInput is the step 4 form.
type MediaInput struct {
	IconType       string
	IconUploadHash string
}

// Media is step 4. Web apps finish the wizard here.
func (s *Service) Media(ctx context.Context, user *store.User, a *store.Addon, in MediaInput) (*StepResult, error) {
	if err := s.Authorize(ctx, user, a, AccessWrite); err != nil {
		return nil, err
	}
	if err := s.guardStep(ctx, a, StepMedia); err != nil {
		return nil, err
	}
	if err := s.applyIcon(ctx, a, in); err != nil {
		return nil, err
	}
	if !a.IsWebapp() {
		if err := s.store.UpdateAddon(ctx, a); err != nil {
			return nil, err
		}
		if err := s.store.SetSubmitStep(ctx, a.ID, StepLicense); err != nil {
			return nil, err
		}
		return &StepResult{Addon: a, Step: StepLicense, Next: SubmitPath(a, StepLicense)}, nil
	}

	a.Status = store.StatusPublic
	if s.cfg.Webapps.Restricted {
		a.Status = store.StatusPending
	}
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.ClearSubmitStep(ctx, a.ID); err != nil {
		return nil, err
	}
	s.submitted(ctx, a)
	return &StepResult{Addon: a, Step: StepFinish, Next: SubmitPath(a, StepFinish)}, nil
}

func (s *Service) applyIcon(ctx context.Context, a *store.Addon, in MediaInput) error {
	iconType := strings.TrimSpace(in.IconType)
	switch {
	case iconType == "":
		a.IconType, a.IconHash = "", ""
		return nil
	case slices.Contains(iconPresets, iconType):
		a.IconType, a.IconHash = iconType, ""
		return nil
	case iconType == "image/png" || iconType == "image/jpeg":
	default:
		return FormErrors{"icon_type": {fmt.Sprintf(msgChoice, iconType)}}
	}

	if !iconHashRE.MatchString(in.IconUploadHash) {
		return FormErrors{"icon_upload_hash": {msgUploadInvalid}}
	}
	staged := s.stagedIconPath(in.IconUploadHash)
	if _, err := os.Stat(staged); err != nil {
		return FormErrors{"icon_upload_hash": {msgUploadInvalid}}
	}
	icon, err := inspectIcon(staged)
	if err != nil {
		return err
	}
	ext := ".png"
	if icon.Type == "image/jpeg" {
		ext = ".jpg"
	}
	dst := filepath.Join(s.cfg.Uploads.IconDir, strconv.FormatInt(a.ID, 10)+ext)
	if err := fileutil.CopyFileMode(staged, dst, 0o644); err != nil {
		return fmt.Errorf("store icon: %w", err)
	}
	s.removeFile(ctx, staged)
	hash, err := fileutil.HashFile(dst)
	if err != nil {
		return fmt.Errorf("hash icon: %w", err)
	}
	a.IconType = icon.Type
	a.IconHash = strings.TrimPrefix(hash, "sha256:")[:8]
	return nil
}

// LicenseInput is the step 5 form.
type LicenseInput struct {
	Builtin int
	HasEULA bool
	EULA    string
}

// License is step 5.
func (s *Service) License(ctx context.Context, user *store.User, a *store.Addon, in LicenseInput) (*StepResult, error) {
	if err := s.Authorize(ctx, user, a, AccessWrite); err != nil {
		return nil, err
	}
	if err := s.guardStep(ctx, a, StepLicense); err != nil {
		return nil, err
	}
	errs := FormErrors{}
	def, ok := BuiltinLicense(in.Builtin)
	if !ok || !def.OnForm {
		errs.Add("builtin", msgChoice, in.Builtin)
	}
	eula := strings.TrimSpace(in.EULA)
	if in.HasEULA && eula == "" {
		errs.Add("eula", msgRequired)
	}
	if a.CurrentVersionID == nil {
		errs.Add(NonField, "This add-on has no version to license.")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	license, err := s.builtinLicenseRow(ctx, def)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetVersionLicense(ctx, *a.CurrentVersionID, license.ID); err != nil {
		return nil, err
	}
	if in.HasEULA {
		a.EULA = eula
		if err := s.store.UpdateAddon(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := s.store.SetSubmitStep(ctx, a.ID, StepReview); err != nil {
		return nil, err
	}
	return &StepResult{Addon: a, Step: StepReview, Next: SubmitPath(a, StepReview)}, nil
}

// ReviewType is step 6: the developer picks preliminary or full review.
func (s *Service) ReviewType(ctx context.Context, user *store.User, a *store.Addon, reviewType store.Status) (*StepResult, error) {
	if err := s.Authorize(ctx, user, a, AccessWrite); err != nil {
		return nil, err
	}
	if err := s.guardStep(ctx, a, StepReview); err != nil {
		return nil, err
	}
	switch reviewType {
	case store.StatusUnreviewed, store.StatusNominated:
	case store.StatusNull:
		return nil, FormErrors{"review_type": {msgReviewNeeded}}
	default:
		return nil, FormErrors{"review_type": {fmt.Sprintf(msgChoice, int(reviewType))}}
	}
	a.Status = reviewType
	if reviewType == store.StatusNominated && a.NominatedAt == nil {
		now := s.now()
		a.NominatedAt = &now
	}
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.store.ClearSubmitStep(ctx, a.ID); err != nil {
		return nil, err
	}
	s.submitted(ctx, a)
	return &StepResult{Addon: a, Step: StepFinish, Next: SubmitPath(a, StepFinish)}, nil
}

func (s *Service) submitted(ctx context.Context, a *store.Addon) {
	s.log(ctx).Info("submission complete",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("status", a.Status.String()),
	)
	s.publish(ctx, notifications.EventAppSubmitted, notifications.Payload{
		"name":   a.Name,
		"status": a.Status.String(),
	})
}

// Link is a labelled developer hub path.
type Link struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// FinishResult is the step 7 summary.
type FinishResult struct {
	URL         string `json:"url"`
	ReviewLabel string `json:"review_label"`
	NextSteps   []Link `json:"next_steps"`
}

// Finish is step 7.
func (s *Service) Finish(ctx context.Context, user *store.User, a *store.Addon) (*FinishResult, error) {
	if err := s.Authorize(ctx, user, a, AccessRead); err != nil {
		return nil, err
	}
	if err := s.guardStep(ctx, a, StepFinish); err != nil {
		return nil, err
	}
	if a.CurrentVersionID == nil {
		return nil, &Redirect{Path: versionsPath(a)}
	}
	label := a.Status.String()
	switch a.Status {
	case store.StatusUnreviewed, store.StatusLite:
		label = "Preliminary Review"
	case store.StatusNominated, store.StatusLiteAndNominated:
		label = "Full Review"
	}
	return &FinishResult{
		URL:         a.URLPath(),
		ReviewLabel: label,
		NextSteps: []Link{
			{Label: "Edit listing", Path: a.DevPath() + "/edit"},
			{Label: "Add a developer profile", Path: a.DevPath() + "/profile"},
			{Label: "Set up payments", Path: a.DevPath() + "/payments"},
			{Label: "View listing", Path: a.URLPath()},
		},
	}, nil
}
