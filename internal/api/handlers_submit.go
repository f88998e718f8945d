package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"marketplace/internal/devhub"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

// multipartMemory bounds the in-memory part of multipart parsing; larger
// files spill to disk and the upload size limit is enforced when saving.
const multipartMemory = 8 << 20

type stepResponse struct {
	Step  int    `json:"step"`
	Next  string `json:"next"`
	Addon *Addon `json:"addon,omitempty"`
}

func fromStep(res *devhub.StepResult) stepResponse {
	out := stepResponse{Step: res.Step, Next: res.Next}
	if res.Addon != nil {
		dto := FromAddon(res.Addon)
		out.Addon = &dto
	}
	return out
}

type createRequest struct {
	Upload    string `json:"upload"`
	Platforms []int  `json:"platforms"`
}

type detailsRequest struct {
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	Summary      string   `json:"summary"`
	Description  string   `json:"description"`
	Categories   []int64  `json:"categories"`
	Homepage     string   `json:"homepage"`
	SupportURL   string   `json:"support_url"`
	SupportEmail string   `json:"support_email"`
	DeviceTypes  []string `json:"device_types"`
}

type mediaRequest struct {
	IconType       string `json:"icon_type"`
	IconUploadHash string `json:"icon_upload_hash"`
}

type licenseRequest struct {
	Builtin int    `json:"builtin"`
	HasEULA bool   `json:"has_eula"`
	EULA    string `json:"eula"`
}

type reviewTypeRequest struct {
	ReviewType int `json:"review_type"`
}

type bumpRequest struct {
	Step int `json:"step"`
}

type manifestRequest struct {
	Manifest string `json:"manifest"`
}

func (s *Server) handleAgreement(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if r.Method == http.MethodGet {
		accepted, err := s.hub.AgreementAccepted(r.Context(), user)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
		return
	}
	res, err := s.hub.AcceptAgreement(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromStep(res))
}

func (s *Server) handleCreate(webapp bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := decodeJSON(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
		res, err := s.hub.Create(r.Context(), userFrom(r.Context()), devhub.CreateInput{
			Upload:    req.Upload,
			Platforms: req.Platforms,
			Webapp:    webapp,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, fromStep(res))
	}
}

func (s *Server) submitAddon(w http.ResponseWriter, r *http.Request, webapp bool) (*store.User, *store.Addon, int, bool) {
	vars := mux.Vars(r)
	step, _ := strconv.Atoi(vars["step"])
	user := userFrom(r.Context())
	a, err := s.hub.Addon(r.Context(), user, vars["slug"], webapp, devhub.AccessRead)
	if err != nil {
		s.fail(w, r, err)
		return nil, nil, 0, false
	}
	return user, a, step, true
}

// handleStepView checks the wizard position; step 7 also returns the summary.
func (s *Server) handleStepView(webapp bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, a, step, ok := s.submitAddon(w, r, webapp)
		if !ok {
			return
		}
		if step == devhub.StepFinish {
			res, err := s.hub.Finish(r.Context(), user, a)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
			return
		}
		if err := s.hub.StepFor(r.Context(), user, a, step); err != nil {
			s.fail(w, r, err)
			return
		}
		dto := FromAddon(a)
		writeJSON(w, http.StatusOK, stepResponse{Step: step, Next: devhub.SubmitPath(a, step), Addon: &dto})
	}
}

func (s *Server) handleStep(webapp bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, a, step, ok := s.submitAddon(w, r, webapp)
		if !ok {
			return
		}
		var (
			res *devhub.StepResult
			err error
		)
		switch step {
		case devhub.StepDetails:
			var req detailsRequest
			if err = decodeJSON(r, &req); err == nil {
				res, err = s.hub.Details(r.Context(), user, a, devhub.DetailsInput{
					Name:         req.Name,
					Slug:         req.Slug,
					Summary:      req.Summary,
					Description:  req.Description,
					Categories:   req.Categories,
					Homepage:     req.Homepage,
					SupportURL:   req.SupportURL,
					SupportEmail: req.SupportEmail,
					DeviceTypes:  req.DeviceTypes,
				})
			}
		case devhub.StepMedia:
			var req mediaRequest
			if err = decodeJSON(r, &req); err == nil {
				res, err = s.hub.Media(r.Context(), user, a, devhub.MediaInput{
					IconType:       req.IconType,
					IconUploadHash: req.IconUploadHash,
				})
			}
		case devhub.StepLicense:
			var req licenseRequest
			if err = decodeJSON(r, &req); err == nil {
				res, err = s.hub.License(r.Context(), user, a, devhub.LicenseInput{
					Builtin: req.Builtin,
					HasEULA: req.HasEULA,
					EULA:    req.EULA,
				})
			}
		case devhub.StepReview:
			var req reviewTypeRequest
			if err = decodeJSON(r, &req); err == nil {
				res, err = s.hub.ReviewType(r.Context(), user, a, store.Status(req.ReviewType))
			}
		default:
			err = services.Wrap(services.ErrNotFound, "api", "submit", "no such step", nil)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fromStep(res))
	}
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	path, err := s.hub.Resume(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{Redirect: path})
}

func (s *Server) handleBump(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req bumpRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.hub.Bump(r.Context(), user, a, req.Step)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromStep(res))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user == nil {
		s.fail(w, r, services.Wrap(services.ErrUnauthenticated, "api", "upload", "login required", nil))
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.fail(w, r, devhub.FormErrors{"upload": {"This field is required."}})
		return
	}
	file, header, err := r.FormFile("upload")
	if err != nil {
		s.fail(w, r, devhub.FormErrors{"upload": {"This field is required."}})
		return
	}
	defer file.Close()
	detail, err := s.hub.Upload(r.Context(), user, header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUploadManifest(w http.ResponseWriter, r *http.Request) {
	var req manifestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	detail, err := s.hub.UploadManifestURL(r.Context(), userFrom(r.Context()), req.Manifest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUploadDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.hub.UploadDetail(r.Context(), userFrom(r.Context()), mux.Vars(r)["uuid"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUploadIcon(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if user == nil {
		s.fail(w, r, services.Wrap(services.ErrUnauthenticated, "api", "upload icon", "login required", nil))
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.fail(w, r, devhub.FormErrors{"upload_image": {"This field is required."}})
		return
	}
	file, _, err := r.FormFile("upload_image")
	if err != nil {
		s.fail(w, r, devhub.FormErrors{"upload_image": {"This field is required."}})
		return
	}
	defer file.Close()
	icon, err := s.hub.UploadIcon(r.Context(), user, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, icon)
}
