package devhub

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"marketplace/internal/fileutil"
	"marketplace/internal/logging"
	"marketplace/internal/store"
	"marketplace/internal/textutil"
)

const (
	msgUnknownPackage  = "The package is not of a recognized type."
	msgDomainTaken     = "An app already exists on this domain; only one app per domain is allowed."
	msgIconType        = "Icons must be either PNG or JPG."
	msgIconAnimated    = "Icons cannot be animated."
	msgUploadInvalid   = "There was an error with your upload. Please try again."
	manifestReadLimit  = 1 << 20
	iconHashPattern    = `^[0-9a-f]{32}$`
	validationUIDBase  = "marketplace-validator"
	validationTierBase = 1
)

var iconHashRE = regexp.MustCompile(iconHashPattern)

// ValidationMessage is one finding of the package validator.
type ValidationMessage struct {
	UID         string   `json:"uid"`
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Description []string `json:"description"`
	Tier        int      `json:"tier"`
}

// Validation is the validator report stored with an upload.
type Validation struct {
	Success  bool                `json:"success"`
	Errors   int                 `json:"errors"`
	Warnings int                 `json:"warnings"`
	Messages []ValidationMessage `json:"messages"`
}

func (v *Validation) add(kind, uid, message string, description ...string) {
	if description == nil {
		description = []string{}
	}
	v.Messages = append(v.Messages, ValidationMessage{
		UID:         validationUIDBase + "/" + uid,
		Type:        kind,
		Message:     message,
		Description: description,
		Tier:        validationTierBase,
	})
	switch kind {
	case "error":
		v.Errors++
	case "warning":
		v.Warnings++
	}
	v.Success = v.Errors == 0
}

func newValidation() *Validation {
	return &Validation{Success: true, Messages: []ValidationMessage{}}
}

// UploadDetail is the JSON view of an upload and its validation.
type UploadDetail struct {
	URL           string      `json:"url"`
	FullReportURL string      `json:"full_report_url"`
	Validation    *Validation `json:"validation"`
	Upload        string      `json:"upload"`
}

func uploadDetail(u *store.FileUpload, v *Validation) *UploadDetail {
	return &UploadDetail{
		URL:           "/developers/upload/" + u.UUID + "/json",
		FullReportURL: "/developers/upload/" + u.UUID,
		Validation:    v,
		Upload:        u.UUID,
	}
}

type manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	ID          string `json:"id"`
	Description string `json:"description"`
	LaunchPath  string `json:"launch_path"`
}

type packageInfo struct {
	Type    store.AddonType
	Name    string
	Version string
	GUID    string
}

func packageKind(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webapp", ".json":
		return "webapp"
	case ".xpi", ".jar", ".zip":
		return "archive"
	default:
		return ""
	}
}

func validatePackage(path, name string) (packageInfo, *Validation) {
	switch packageKind(name) {
	case "webapp":
		return validateManifestFile(path)
	case "archive":
		return validateArchive(path)
	default:
		v := newValidation()
		v.add("error", "unknown_type", msgUnknownPackage)
		return packageInfo{}, v
	}
}

func validateManifestFile(path string) (packageInfo, *Validation) {
	f, err := os.Open(path)
	if err != nil {
		v := newValidation()
		v.add("error", "unreadable", "The manifest could not be read.")
		return packageInfo{Type: store.TypeWebapp}, v
	}
	defer f.Close()
	info, v := parseManifest(f)
	info.Type = store.TypeWebapp
	return info, v
}

func parseManifest(r io.Reader) (packageInfo, *Validation) {
	v := newValidation()
	var m manifest
	if err := json.NewDecoder(io.LimitReader(r, manifestReadLimit)).Decode(&m); err != nil {
		v.add("error", "manifest_json", "The manifest is not valid JSON.", err.Error())
		return packageInfo{}, v
	}
	info := packageInfo{Name: strings.TrimSpace(m.Name), Version: strings.TrimSpace(m.Version), GUID: strings.TrimSpace(m.ID)}
	if info.Name == "" {
		v.add("error", "manifest_name", "The manifest does not contain a name.")
	}
	if info.Version == "" {
		v.add("warning", "manifest_version", "The manifest does not contain a version; 1.0 will be used.")
	}
	return info, v
}

func validateArchive(path string) (packageInfo, *Validation) {
	info := packageInfo{Type: store.TypeExtension}
	zr, err := zip.OpenReader(path)
	if err != nil {
		v := newValidation()
		v.add("error", "bad_zip", "The package could not be opened as a zip archive.", err.Error())
		return info, v
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "manifest.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			v := newValidation()
			v.add("error", "bad_manifest", "manifest.json could not be read.", err.Error())
			return info, v
		}
		parsed, v := parseManifest(rc)
		_ = rc.Close()
		parsed.Type = store.TypeExtension
		if parsed.GUID == "" && v.Errors == 0 {
			v.add("warning", "missing_id", "The manifest does not contain an id.")
		}
		return parsed, v
	}
	v := newValidation()
	v.add("error", "missing_manifest", "The package does not contain manifest.json.")
	return info, v
}

func (s *Service) uploadLimit() int64 {
	return int64(s.cfg.Uploads.MaxSizeMiB) << 20
}

func (s *Service) uploadPath(id, name string) string {
	return filepath.Join(s.cfg.Uploads.Dir, strings.ReplaceAll(id, "-", "")+"_"+name)
}

// Upload stores and validates a package posted by user.
func (s *Service) Upload(ctx context.Context, user *store.User, filename string, body io.Reader) (*UploadDetail, error) {
	if err := requireUser(user, "upload"); err != nil {
		return nil, err
	}
	name := textutil.SanitizeFileName(filename)
	if name == "" {
		return nil, FormErrors{"upload": {msgRequired}}
	}
	id := uuid.NewString()
	saved, err := fileutil.SaveStream(body, s.uploadPath(id, name), s.uploadLimit())
	if errors.Is(err, fileutil.ErrTooLarge) {
		return nil, FormErrors{"upload": {fmt.Sprintf("The file is larger than %d MB.", s.cfg.Uploads.MaxSizeMiB)}}
	}
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	info, validation := validatePackage(saved.Path, name)
	return s.recordUpload(ctx, user, &store.FileUpload{
		UUID: id,
		Name: name,
		Path: saved.Path,
		Hash: saved.Hash,
		Size: saved.Size,
	}, info, validation)
}

// UploadManifestURL fetches a hosted web app manifest and validates it.
func (s *Service) UploadManifestURL(ctx context.Context, user *store.User, rawURL string) (*UploadDetail, error) {
	if err := requireUser(user, "upload manifest"); err != nil {
		return nil, err
	}
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, FormErrors{"manifest": {msgInvalidURL}}
	}
	domain := strings.ToLower(target.Hostname())
	if !s.cfg.Webapps.AllowDuplicateDomains {
		taken, err := s.store.DomainInUse(ctx, domain, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, FormErrors{"manifest": {msgDomainTaken}}
		}
	}

	id := uuid.NewString()
	upload := &store.FileUpload{UUID: id, Name: target.String(), AppDomain: domain}
	info := packageInfo{Type: store.TypeWebapp}
	validation := newValidation()
	saved, fetchErr := s.fetchManifest(ctx, target.String(), s.uploadPath(id, "manifest.webapp"))
	if fetchErr != nil {
		logging.WarnWithContext(s.log(ctx), "manifest fetch failed", "manifest_fetch_failed",
			logging.String("url", target.String()),
			logging.Error(fetchErr),
		)
		validation.add("error", "manifest_fetch", "No manifest was found at that URL. Check the address and try again.", fetchErr.Error())
	} else {
		upload.Path, upload.Hash, upload.Size = saved.Path, saved.Hash, saved.Size
		info, validation = validateManifestFile(saved.Path)
	}
	return s.recordUpload(ctx, user, upload, info, validation)
}

func (s *Service) fetchManifest(ctx context.Context, target, dst string) (fileutil.Saved, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fileutil.Saved{}, err
	}
	req.Header.Set("Accept", "application/x-web-app-manifest+json, application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return fileutil.Saved{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fileutil.Saved{}, fmt.Errorf("manifest request returned HTTP %d", resp.StatusCode)
	}
	return fileutil.SaveStream(resp.Body, dst, manifestReadLimit)
}

func (s *Service) recordUpload(ctx context.Context, user *store.User, u *store.FileUpload, info packageInfo, v *Validation) (*UploadDetail, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode validation: %w", err)
	}
	u.UserID = &user.ID
	u.PackageType = info.Type
	u.GUID = info.GUID
	u.Version = info.Version
	u.ManifestName = info.Name
	u.Valid = v.Errors == 0
	u.ValidationJSON = string(encoded)
	created, err := s.store.CreateUpload(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("upload validated",
		logging.String("upload", created.UUID),
		logging.String("name", created.Name),
		logging.Int("errors", v.Errors),
		logging.Int("warnings", v.Warnings),
	)
	return uploadDetail(created, v), nil
}

// UploadDetail returns the stored validation of one of user's uploads.
func (s *Service) UploadDetail(ctx context.Context, user *store.User, id string) (*UploadDetail, error) {
	u, err := s.ownUpload(ctx, user, id)
	if err != nil {
		return nil, err
	}
	v := newValidation()
	if u.ValidationJSON != "" {
		if err := json.Unmarshal([]byte(u.ValidationJSON), v); err != nil {
			return nil, fmt.Errorf("decode validation: %w", err)
		}
	}
	return uploadDetail(u, v), nil
}

func (s *Service) ownUpload(ctx context.Context, user *store.User, id string) (*store.FileUpload, error) {
	if err := requireUser(user, "upload"); err != nil {
		return nil, err
	}
	u, err := s.store.GetUpload(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("upload", "no upload "+id)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && (u.UserID == nil || *u.UserID != user.ID) {
		return nil, notFound("upload", "no upload "+id)
	}
	return u, nil
}

// IconUpload identifies a staged icon for the media step.
type IconUpload struct {
	Hash   string `json:"upload_hash"`
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// UploadIcon stages an icon image. Only still PNG and JPEG images are accepted.
func (s *Service) UploadIcon(ctx context.Context, user *store.User, body io.Reader) (*IconUpload, error) {
	if err := requireUser(user, "upload icon"); err != nil {
		return nil, err
	}
	hash := strings.ReplaceAll(uuid.NewString(), "-", "")
	dst := s.stagedIconPath(hash)
	saved, err := fileutil.SaveStream(body, dst, s.uploadLimit())
	if errors.Is(err, fileutil.ErrTooLarge) {
		return nil, FormErrors{"upload_image": {fmt.Sprintf("The file is larger than %d MB.", s.cfg.Uploads.MaxSizeMiB)}}
	}
	if err != nil {
		return nil, fmt.Errorf("save icon: %w", err)
	}
	icon, formErr := inspectIcon(saved.Path)
	if formErr != nil {
		s.removeFile(ctx, saved.Path)
		return nil, formErr
	}
	icon.Hash = hash
	return icon, nil
}

func (s *Service) stagedIconPath(hash string) string {
	return filepath.Join(s.cfg.Uploads.IconDir, "tmp", hash)
}

func inspectIcon(path string) (*IconUpload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open icon: %w", err)
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	contentType := http.DetectContentType(head[:n])
	if contentType != "image/png" && contentType != "image/jpeg" {
		return nil, FormErrors{"upload_image": {msgIconType}}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind icon: %w", err)
	}
	if contentType == "image/png" {
		animated, err := isAnimatedPNG(f)
		if err != nil {
			return nil, FormErrors{"upload_image": {msgIconType}}
		}
		if animated {
			return nil, FormErrors{"upload_image": {msgIconAnimated}}
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind icon: %w", err)
		}
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, FormErrors{"upload_image": {msgIconType}}
	}
	return &IconUpload{Type: contentType, Width: cfg.Width, Height: cfg.Height}, nil
}

// isAnimatedPNG reports whether an acTL chunk precedes the first IDAT chunk.
func isAnimatedPNG(r io.Reader) (bool, error) {
	sig := make([]byte, 8)
	if _, err := io.ReadFull(r, sig); err != nil {
		return false, err
	}
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return false, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		switch string(header[4:8]) {
		case "acTL":
			return true, nil
		case "IDAT", "IEND":
			return false, nil
		}
		if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
			return false, err
		}
	}
}
