package devhub

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"marketplace/internal/logging"
	"marketplace/internal/paypal"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

// Contribution recipients.
const (
	RecipientDev = "dev"
	RecipientMoz = "moz"
	RecipientOrg = "org"
)

const (
	msgPayPalRequired    = "PayPal ID required to accept contributions."
	msgPayPalUnchecked   = "Could not validate PayPal id."
	msgAmountPositive    = "Please enter a suggested amount greater than 0."
	msgAmountMax         = "Please enter a suggested amount less than $%d."
	msgAmountNumber      = "Enter a number."
	msgUpsellFreeSide    = "You cannot enable contributions on an add-on that is the free version of a premium add-on."
	msgPaykeyUnavailable = "Unable to get a test payment key for this PayPal account."
)

// ContributionsInput is the contributions form.
type ContributionsInput struct {
	Recipient       string
	PaypalID        string
	SuggestedAmount string
	Annoying        int
	EnableThankyou  bool
	ThankyouNote    string
	CharityName     string
	CharityURL      string
	CharityPaypal   string
	TheReason       string
	TheFuture       string
}

// PaymentsView is what the payments page shows.
type PaymentsView struct {
	Addon              *store.Addon   `json:"-"`
	WantsContributions bool           `json:"wants_contributions"`
	Recipient          string         `json:"recipient"`
	PaypalID           string         `json:"paypal_id"`
	SuggestedAmount    string         `json:"suggested_amount,omitempty"`
	Annoying           int            `json:"annoying"`
	EnableThankyou     bool           `json:"enable_thankyou"`
	ThankyouNote       string         `json:"thankyou_note,omitempty"`
	Charity            *store.Charity `json:"charity,omitempty"`
	NeedsProfile       bool           `json:"needs_profile"`
	IsUpsellFree       bool           `json:"is_upsell_free"`
}

// Payments returns the contribution settings of a.
func (s *Service) Payments(ctx context.Context, user *store.User, a *store.Addon) (*PaymentsView, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	view := &PaymentsView{
		Addon:              a,
		WantsContributions: a.WantsContributions,
		Recipient:          s.recipient(a),
		PaypalID:           a.PaypalID,
		Annoying:           a.Annoying,
		EnableThankyou:     a.EnableThankyou,
		ThankyouNote:       a.ThankyouNote,
		NeedsProfile:       !a.HasFullProfile(),
	}
	if !a.WantsContributions {
		view.Annoying = store.AnnoyingPassive
	}
	if a.SuggestedAmountCents != nil {
		view.SuggestedAmount = paypal.FormatAmount(*a.SuggestedAmountCents)
	}
	if a.CharityID != nil {
		charity, err := s.store.GetCharity(ctx, *a.CharityID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		view.Charity = charity
	}
	upsell, err := s.store.UpsellForFree(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	view.IsUpsellFree = upsell != nil
	return view, nil
}

func (s *Service) recipient(a *store.Addon) string {
	switch {
	case a.CharityID == nil:
		return RecipientDev
	case *a.CharityID == s.cfg.Payments.FoundationCharityID:
		return RecipientMoz
	default:
		return RecipientOrg
	}
}

// SetContributions validates and stores the contributions form.
func (s *Service) SetContributions(ctx context.Context, user *store.User, a *store.Addon, in ContributionsInput) (*store.Addon, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	errs := FormErrors{}
	upsell, err := s.store.UpsellForFree(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if upsell != nil {
		errs.Add(NonField, msgUpsellFreeSide)
	}

	recipient := strings.TrimSpace(in.Recipient)
	paypalID := strings.TrimSpace(in.PaypalID)
	charity := store.Charity{
		Name:   strings.TrimSpace(in.CharityName),
		URL:    strings.TrimSpace(in.CharityURL),
		Paypal: strings.TrimSpace(in.CharityPaypal),
	}
	switch recipient {
	case RecipientDev:
		if paypalID == "" {
			errs.Add("paypal_id", msgPayPalRequired)
		} else if err := s.checkPayPalField(ctx, errs, "paypal_id", paypalID); err != nil {
			return nil, err
		}
	case RecipientOrg:
		if charity.Name == "" {
			errs.Add("charity-name", msgRequired)
		}
		if charity.URL == "" {
			errs.Add("charity-url", msgRequired)
		} else {
			checkURL(errs, "charity-url", charity.URL)
		}
		if charity.Paypal == "" {
			errs.Add("charity-paypal", msgRequired)
		} else if err := s.checkPayPalField(ctx, errs, "charity-paypal", charity.Paypal); err != nil {
			return nil, err
		}
	case RecipientMoz:
	default:
		errs.Add("recipient", msgChoice, recipient)
	}

	amount, ok := s.parseSuggested(errs, in.SuggestedAmount)
	if in.Annoying < store.AnnoyingNone || in.Annoying > store.AnnoyingRoadblock {
		errs.Add("annoying", msgChoice, in.Annoying)
	}
	reason := strings.TrimSpace(in.TheReason)
	future := strings.TrimSpace(in.TheFuture)
	if !a.HasFullProfile() {
		if reason == "" && a.TheReason == "" {
			errs.Add("the_reason", msgRequired)
		}
		if future == "" && a.TheFuture == "" {
			errs.Add("the_future", msgRequired)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	switch recipient {
	case RecipientDev:
		a.PaypalID = paypalID
		a.CharityID = nil
	case RecipientMoz:
		id := s.cfg.Payments.FoundationCharityID
		if _, err := s.store.GetCharity(ctx, id); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "devhub", "contributions",
				fmt.Sprintf("foundation charity %d is not available", id), err)
		}
		a.PaypalID = ""
		a.CharityID = &id
	case RecipientOrg:
		created, err := s.store.CreateCharity(ctx, &charity)
		if err != nil {
			return nil, err
		}
		a.PaypalID = ""
		a.CharityID = &created.ID
	}
	if ok {
		a.SuggestedAmountCents = amount
	}
	a.WantsContributions = true
	a.Annoying = in.Annoying
	note := strings.TrimSpace(in.ThankyouNote)
	a.EnableThankyou = in.EnableThankyou && note != ""
	a.ThankyouNote = ""
	if a.EnableThankyou {
		a.ThankyouNote = note
	}
	if reason != "" {
		a.TheReason = reason
	}
	if future != "" {
		a.TheFuture = future
	}
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionEditContributions, a, user, map[string]any{"recipient": recipient}); err != nil {
		return nil, err
	}
	s.log(ctx).Info("contributions updated",
		logging.Int64(logging.FieldAddonID, a.ID),
		logging.String("recipient", recipient),
	)
	return a, nil
}

// parseSuggested converts a dollar amount to cents. An empty value keeps the
// stored amount and reports ok=false.
func (s *Service) parseSuggested(errs FormErrors, raw string) (*int64, bool) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if raw == "" {
		return nil, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		errs.Add("suggested_amount", msgAmountNumber)
		return nil, false
	}
	cents := int64(math.Round(value * 100))
	switch {
	case cents <= 0:
		errs.Add("suggested_amount", msgAmountPositive)
		return nil, false
	case cents > int64(s.cfg.Payments.MaxContribution)*100:
		errs.Add("suggested_amount", msgAmountMax, s.cfg.Payments.MaxContribution)
		return nil, false
	}
	return &cents, true
}

func (s *Service) checkPayPalField(ctx context.Context, errs FormErrors, field, id string) error {
	if s.paypal == nil {
		return services.Wrap(services.ErrConfiguration, "devhub", "check paypal", "paypal client not configured", nil)
	}
	valid, message, err := s.paypal.CheckPayPalID(ctx, id)
	if err != nil {
		logging.WarnWithContext(s.log(ctx), "paypal id check failed", "paypal_check_failed",
			logging.String("field", field),
			logging.Error(err),
		)
		errs.Add(field, msgPayPalUnchecked)
		return nil
	}
	if !valid {
		if message == "" {
			message = msgPayPalUnchecked
		}
		errs.Add(field, "%s", message)
	}
	return nil
}

// DisableContributions stops a from asking for contributions.
func (s *Service) DisableContributions(ctx context.Context, user *store.User, a *store.Addon) (*store.Addon, error) {
	if err := s.Authorize(ctx, user, a, AccessOwner); err != nil {
		return nil, err
	}
	a.WantsContributions = false
	if err := s.store.UpdateAddon(ctx, a); err != nil {
		return nil, err
	}
	if err := s.logActivity(ctx, store.ActionEditContributions, a, user, map[string]any{"disabled": true}); err != nil {
		return nil, err
	}
	return a, nil
}

// PayPalCheck is the result of CheckPayPal.
type PayPalCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// CheckPayPal verifies that email is a PayPal account able to receive a
// payment. It asks for a test paykey without any pre-approval.
func (s *Service) CheckPayPal(ctx context.Context, user *store.User, email string) (*PayPalCheck, error) {
	if err := requireUser(user, "check paypal"); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, notFound("check paypal", "no email given")
	}
	if s.paypal == nil {
		return nil, services.Wrap(services.ErrConfiguration, "devhub", "check paypal", "paypal client not configured", nil)
	}
	valid, message, err := s.paypal.CheckPayPalID(ctx, email)
	if err != nil {
		logging.WarnWithContext(s.log(ctx), "paypal id check failed", "paypal_check_failed", logging.Error(err))
		return &PayPalCheck{Message: msgPayPalUnchecked}, nil
	}
	if !valid {
		if message == "" {
			message = msgPayPalUnchecked
		}
		return &PayPalCheck{Message: message}, nil
	}
	if _, err := s.paypal.GetPaykey(ctx, paypal.PaykeyRequest{
		AmountCents: 100,
		Currency:    s.cfg.Payments.DefaultCurrency,
		Email:       email,
		Memo:        "Checking PayPal ID",
		UUID:        uuid.NewString(),
	}); err != nil {
		logging.WarnWithContext(s.log(ctx), "paypal test paykey failed", "paypal_paykey_failed", logging.Error(err))
		return &PayPalCheck{Message: msgPaykeyUnavailable}, nil
	}
	return &PayPalCheck{Valid: true}, nil
}

// Recipients lists the accepted recipient values.
func Recipients() []string {
	return []string{RecipientDev, RecipientMoz, RecipientOrg}
}
