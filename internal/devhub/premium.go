package devhub

import (
	"context"
	"errors"
	"slices"
	"strings"

	"marketplace/internal/logging"
	"marketplace/internal/paypal"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

const (
	msgCannotEnroll   = "You cannot enroll in the Marketplace"
	msgChoiceNotFound = "Select a valid choice. That choice is not one of the available choices."
	msgNoRefundToken  = "You have not set up a refund token for PayPal; refunds cannot be issued until you do."
	msgNoRefundScope  = "PayPal reports that the refund permission has not been granted."
)

// premiumStatuses may enroll in the marketplace.
var premiumStatuses = []store.Status{
	store.StatusNull, store.StatusPending, store.StatusUnreviewed,
	store.StatusNominated, store.StatusLiteAndNominated,
}

// PremiumView is the marketplace settings page.
type PremiumView struct {
	CanEnroll      bool          `json:"can_enroll"`
	Errors         []string      `json:"errors,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
	PriceID        *int64        `json:"price_id,omitempty"`
	PaypalID       string        `json:"paypal_id"`
	SupportEmail   string        `json:"support_email"`
	Upsell         *store.Upsell `json:"upsell,omitempty"`
	FreeCandidates []int64       `json:"free_candidates"`
}

// canBecomePremium reports whether a may enroll, and why not.
func (s *Service) canBecomePremium(ctx context.Context, a *store.Addon) (bool, error) {
	if a.IsPremium() {
		return true, nil
	}
	upsell, err := s.store.UpsellForFree(ctx, a.ID)
	if err != nil {
		return false, err
	}
	if upsell != nil {
		return false, nil
	}
	// Finished web apps go straight to PUBLIC and still enroll.
	if a.IsWebapp() && a.Status == store.StatusPublic {
		return true, nil
	}
	return slices.Contains(premiumStatuses, a.Status), nil
}

// Premium returns the marketplace settings of a.
func (s *Service) Premium(ctx context.Context, user *store.User, a *store.Addon) (*PremiumView, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	ok, err := s.canBecomePremium(ctx, a)
	if err != nil {
		return nil, err
	}
	view := &PremiumView{CanEnroll: ok, PaypalID: a.PaypalID, SupportEmail: a.SupportEmail, FreeCandidates: []int64{}}
	if !ok {
		view.Errors = append(view.Errors, msgCannotEnroll)
		return view, nil
	}
	premium, err := s.store.GetPremium(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if premium != nil {
		view.PriceID = premium.PriceID
	}
	if a.IsPremium() {
		warning, err := s.refundWarning(ctx, premium)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			view.Warnings = append(view.Warnings, warning)
		}
	}
	if view.Upsell, err = s.store.UpsellForPremium(ctx, a.ID); err != nil {
		return nil, err
	}
	candidates, err := s.freeCandidates(ctx, user, a)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		view.FreeCandidates = append(view.FreeCandidates, c.ID)
	}
	return view, nil
}

func (s *Service) refundWarning(ctx context.Context, premium *store.AddonPremium) (string, error) {
	if premium == nil || premium.PaypalPermissionsToken == "" {
		return msgNoRefundToken, nil
	}
	if s.paypal == nil || s.sealer == nil {
		return "", nil
	}
	token, err := s.sealer.Open(premium.PaypalPermissionsToken)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "devhub", "premium", "stored refund token cannot be opened", err)
	}
	granted, err := s.paypal.CheckPermission(ctx, token, []string{paypal.ScopeRefund})
	if err != nil {
		logging.WarnWithContext(s.log(ctx), "paypal permission check failed", "paypal_permission_failed", logging.Error(err))
		return "", nil
	}
	if !granted {
		return msgNoRefundScope, nil
	}
	return "", nil
}

// freeCandidates lists user's free addons of the same type that may upsell a.
func (s *Service) freeCandidates(ctx context.Context, user *store.User, a *store.Addon) ([]*store.Addon, error) {
	addons, _, err := s.store.AddonsForAuthor(ctx, user.ID, store.SortByName, 1000, 0)
	if err != nil {
		return nil, err
	}
	var out []*store.Addon
	for _, candidate := range addons {
		if candidate.ID != a.ID && candidate.Type == a.Type && candidate.PremiumType == store.PremiumFree {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// PremiumInput is the marketplace settings form.
type PremiumInput struct {
	PriceID      int64
	PaypalID     string
	SupportEmail string
	DoUpsell     bool
	FreeID       int64
	Text         string
}

// SetPremium enrolls a in the marketplace or updates its settings.
func (s *Service) SetPremium(ctx context.Context, user *store.User, a *store.Addon, in PremiumInput) (*store.Addon, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	ok, err := s.canBecomePremium(ctx, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, FormErrors{NonField: {msgCannotEnroll}}
	}

	errs := FormErrors{}
	price, err := s.store.GetPrice(ctx, in.PriceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		errs.Add("price", msgChoiceNotFound)
	case err != nil:
		return nil, err
	case !price.Active:
		errs.Add("price", msgChoiceNotFound)
	}
	paypalID := strings.TrimSpace(in.PaypalID)
	if paypalID == "" {
		errs.Add("paypal_id", msgRequired)
	} else if err := s.checkPayPalField(ctx, errs, "paypal_id", paypalID); err != nil {
		return nil, err
	}
	supportEmail := strings.TrimSpace(in.SupportEmail)
	if supportEmail == "" {
		errs.Add("support_email", msgRequired)
	} else {
		checkEmail(errs, "support_email", supportEmail)
	}
	text := strings.TrimSpace(in.Text)
	if in.DoUpsell {
		if err := s.checkUpsell(ctx, errs, user, a, in.FreeID); err != nil {
			return nil, err
		}
		if text == "" {
			errs.Add("text", msgRequired)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if !a.IsPremium() {
		a.PremiumType = store.PremiumPremium
	}
	a.PaypalID = paypalID
	a.SupportEmail = supportEmail
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	premium, err := s.store.GetPremium(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if premium == nil {
		premium = &store.AddonPremium{AddonID: a.ID}
	}
	premium.PriceID = &price.ID
	if err := s.store.SavePremium(ctx, premium); err != nil {
		return nil, err
	}
	if in.DoUpsell {
		err = s.store.ReplaceUpsell(ctx, store.Upsell{FreeID: in.FreeID, PremiumID: a.ID, Text: text})
	} else {
		err = s.store.DeleteUpsell(ctx, a.ID)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) checkUpsell(ctx context.Context, errs FormErrors, user *store.User, a *store.Addon, freeID int64) error {
	free, err := s.store.GetAddon(ctx, freeID)
	if errors.Is(err, store.ErrNotFound) {
		errs.Add("free", msgChoiceNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	owns, err := s.store.OwnsAddon(ctx, free.ID, user.ID)
	if err != nil {
		return err
	}
	if !owns || free.ID == a.ID || free.PremiumType != store.PremiumFree || free.Type != a.Type {
		errs.Add("free", msgChoiceNotFound)
	}
	return nil
}

// AcquireRefundPermission exchanges PayPal's callback tokens for a
// permissions token and stores it sealed. It returns the page to show next.
func (s *Service) AcquireRefundPermission(ctx context.Context, user *store.User, a *store.Addon, requestToken, verificationCode string) (string, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return "", err
	}
	if strings.TrimSpace(requestToken) == "" || strings.TrimSpace(verificationCode) == "" {
		return "", FormErrors{NonField: {"The PayPal callback is missing its tokens."}}
	}
	if s.paypal == nil {
		return "", services.Wrap(services.ErrConfiguration, "devhub", "refund permission", "paypal client not configured", nil)
	}
	if s.sealer == nil {
		return "", services.Wrap(services.ErrConfiguration, "devhub", "refund permission", "payments key not loaded", nil)
	}
	token, err := s.paypal.GetPermissionsToken(ctx, requestToken, verificationCode)
	if err != nil {
		return "", err
	}
	data, err := s.paypal.GetPersonalData(ctx, token)
	if err != nil {
		return "", err
	}
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return "", err
	}
	premium, err := s.store.GetPremium(ctx, a.ID)
	if err != nil {
		return "", err
	}
	if premium == nil {
		premium = &store.AddonPremium{AddonID: a.ID}
	}
	premium.PaypalPermissionsToken = sealed
	if err := s.store.SavePremium(ctx, premium); err != nil {
		return "", err
	}
	if email := strings.TrimSpace(data["email"]); email != "" && a.PaypalID == "" {
		a.PaypalID = email
		if err := s.store.UpdateAddon(ctx, a); err != nil {
			return "", err
		}
	}
	s.log(ctx).Info("refund permission stored", logging.Int64(logging.FieldAddonID, a.ID))
	return a.DevPath() + "/payments", nil
}

// RefundToken returns the stored PayPal permissions token of a in the clear.
func (s *Service) RefundToken(ctx context.Context, a *store.Addon) (string, error) {
	premium, err := s.store.GetPremium(ctx, a.ID)
	if err != nil || premium == nil || premium.PaypalPermissionsToken == "" {
		return "", err
	}
	if s.sealer == nil {
		return "", services.Wrap(services.ErrConfiguration, "devhub", "refund token", "payments key not loaded", nil)
	}
	return s.sealer.Open(premium.PaypalPermissionsToken)
}

// FinishPremium completes marketplace enrollment.
func (s *Service) FinishPremium(ctx context.Context, user *store.User, a *store.Addon) (string, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return "", err
	}
	ok, err := s.canBecomePremium(ctx, a)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", FormErrors{NonField: {msgCannotEnroll}}
	}
	if !a.IsPremium() {
		a.PremiumType = store.PremiumPremium
		if err := s.store.UpdateAddon(ctx, a); err != nil {
			return "", err
		}
	}
	if err := s.logActivity(ctx, store.ActionMakePremium, a, user, nil); err != nil {
		return "", err
	}
	return a.DevPath() + "/payments", nil
}
