package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"marketplace/internal/devhub"
	"marketplace/internal/store"
	"marketplace/internal/users"
)

const authorsShown = 3

type versionRequest struct {
	Upload    string `json:"upload"`
	Platforms []int  `json:"platforms"`
}

type contributionsRequest struct {
	Recipient       string `json:"recipient"`
	PaypalID        string `json:"paypal_id"`
	SuggestedAmount string `json:"suggested_amount"`
	Annoying        int    `json:"annoying"`
	EnableThankyou  bool   `json:"enable_thankyou"`
	ThankyouNote    string `json:"thankyou_note"`
	CharityName     string `json:"charity_name"`
	CharityURL      string `json:"charity_url"`
	CharityPaypal   string `json:"charity_paypal"`
	TheReason       string `json:"the_reason"`
	TheFuture       string `json:"the_future"`
}

type profileRequest struct {
	TheReason string `json:"the_reason"`
	TheFuture string `json:"the_future"`
}

type premiumRequest struct {
	PriceID      int64  `json:"price_id"`
	PaypalID     string `json:"paypal_id"`
	SupportEmail string `json:"support_email"`
	DoUpsell     bool   `json:"do_upsell"`
	FreeID       int64  `json:"free_id"`
	Text         string `json:"text"`
}

type permissionRequest struct {
	RequestToken     string `json:"request_token"`
	VerificationCode string `json:"verification_code"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

// lookup loads the addon named by the {kind}/{slug} route variables. The
// workflow methods apply their own write and owner checks.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.User, *store.Addon, bool) {
	vars := mux.Vars(r)
	user := userFrom(r.Context())
	a, err := s.hub.Addon(r.Context(), user, vars["slug"], vars["kind"] == "app", devhub.AccessRead)
	if err != nil {
		s.fail(w, r, err)
		return nil, nil, false
	}
	return user, a, true
}

func (s *Server) handleAddon(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	a, err := s.hub.Edit(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	authors, err := s.hub.Store().ListedAuthors(r.Context(), a.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddonDetail{Addon: FromAddon(a), Authors: users.UsersList(authors, authorsShown)})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	msg, err := s.hub.Delete(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	versions, err := s.hub.Versions(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromVersions(versions))
}

func (s *Server) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.hub.AddVersion(r.Context(), user, a, devhub.AddVersionInput{Upload: req.Upload, Platforms: req.Platforms})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromVersions([]*store.Version{v})[0])
}

func (s *Server) handleVersionStats(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	stats, err := s.hub.VersionStats(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRequestReview(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	target, _ := strconv.Atoi(mux.Vars(r)["status"])
	updated, err := s.hub.RequestReview(r.Context(), user, a, store.Status(target))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAddon(updated))
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	view, err := s.hub.Payments(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetContributions(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req contributionsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.hub.SetContributions(r.Context(), user, a, devhub.ContributionsInput{
		Recipient:       req.Recipient,
		PaypalID:        req.PaypalID,
		SuggestedAmount: req.SuggestedAmount,
		Annoying:        req.Annoying,
		EnableThankyou:  req.EnableThankyou,
		ThankyouNote:    req.ThankyouNote,
		CharityName:     req.CharityName,
		CharityURL:      req.CharityURL,
		CharityPaypal:   req.CharityPaypal,
		TheReason:       req.TheReason,
		TheFuture:       req.TheFuture,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAddon(updated))
}

func (s *Server) handleDisableContributions(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	updated, err := s.hub.DisableContributions(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAddon(updated))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.hub.UpdateProfile(r.Context(), user, a, devhub.ProfileInput{TheReason: req.TheReason, TheFuture: req.TheFuture})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAddon(updated))
}

func (s *Server) handleRemoveProfile(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	updated, err := s.hub.RemoveProfile(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAddon(updated))
}

func (s *Server) handlePremium(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	view, err := s.hub.Premium(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetPremium(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req premiumRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.hub.SetPremium(r.Context(), user, a, devhub.PremiumInput{
		PriceID:      req.PriceID,
		PaypalID:     req.PaypalID,
		SupportEmail: req.SupportEmail,
		DoUpsell:     req.DoUpsell,
		FreeID:       req.FreeID,
		Text:         req.Text,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromAddon(updated))
}

func (s *Server) handleRefundPermission(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	next, err := s.hub.AcquireRefundPermission(r.Context(), user, a, req.RequestToken, req.VerificationCode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{Redirect: next})
}

func (s *Server) handleFinishPremium(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	next, err := s.hub.FinishPremium(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{Redirect: next})
}

func (s *Server) handleRefunds(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	queues, err := s.hub.Refunds(r.Context(), user, a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromRefundQueues(queues))
}

func (s *Server) handleRefundContext(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rc, err := s.hub.RefundContext(r.Context(), user, a, mux.Vars(r)["txn"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleIssueRefund(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	msg, err := s.hub.IssueRefund(r.Context(), user, a, mux.Vars(r)["txn"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

func (s *Server) handleDeclineRefund(w http.ResponseWriter, r *http.Request) {
	user, a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req declineRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := s.hub.DeclineRefund(r.Context(), user, a, mux.Vars(r)["txn"], req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}
