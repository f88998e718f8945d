package devhub_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marketplace/internal/devhub"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/testsupport"
)

func TestSetContributionsDeveloper(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	in := devhub.ContributionsInput{
		Recipient:       devhub.RecipientDev,
		PaypalID:        "dev@example.com",
		SuggestedAmount: "2",
		Annoying:        store.AnnoyingRoadblock,
		EnableThankyou:  true,
	}
	_, err := h.svc.SetContributions(ctx, owner, a, in)
	fe := formErrors(t, err)
	if !fe.Has("the_reason") || !fe.Has("the_future") {
		t.Fatalf("profile should be required, got %v", fe)
	}
	if h.reload(t, a).WantsContributions {
		t.Fatal("failed form must not enable contributions")
	}

	in.TheReason, in.TheFuture = "fun", "more"
	if _, err := h.svc.SetContributions(ctx, owner, a, in); err != nil {
		t.Fatalf("SetContributions: %v", err)
	}
	got := h.reload(t, a)
	if !got.WantsContributions || got.PaypalID != "dev@example.com" || got.CharityID != nil {
		t.Fatalf("unexpected addon %+v", got)
	}
	if got.SuggestedAmountCents == nil || *got.SuggestedAmountCents != 200 {
		t.Fatalf("suggested amount = %v", got.SuggestedAmountCents)
	}
	if got.EnableThankyou || got.ThankyouNote != "" {
		t.Fatal("thank-you needs a note to be enabled")
	}
	if got.TheReason != "fun" || got.Annoying != store.AnnoyingRoadblock {
		t.Fatalf("unexpected profile or prompt %+v", got)
	}
	if n, _ := h.store.CountActivity(ctx, a.ID, store.ActionEditContributions); n != 1 {
		t.Fatalf("contributions activity = %d", n)
	}

	view, err := h.svc.Payments(ctx, owner, got)
	if err != nil {
		t.Fatalf("Payments: %v", err)
	}
	if view.Recipient != devhub.RecipientDev || view.SuggestedAmount != "2.00" || view.NeedsProfile {
		t.Fatalf("unexpected view %+v", view)
	}

	disabled, err := h.svc.DisableContributions(ctx, owner, got)
	if err != nil || disabled.WantsContributions {
		t.Fatalf("DisableContributions: %+v %v", disabled, err)
	}
	view, err = h.svc.Payments(ctx, owner, h.reload(t, a))
	if err != nil || view.Annoying != store.AnnoyingPassive {
		t.Fatalf("disabled contributions should show passive prompt, got %+v %v", view, err)
	}
}

func TestSetContributionsValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)

	tests := []struct {
		name   string
		setup  func(*fakePayPal)
		in     devhub.ContributionsInput
		field  string
		expect string
	}{
		{
			name:   "missing paypal id",
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientDev},
			field:  "paypal_id",
			expect: "PayPal ID required",
		},
		{
			name:   "invalid paypal id",
			setup:  func(f *fakePayPal) { f.invalid, f.message = true, "The account is not verified." },
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientDev, PaypalID: "nope@example.com"},
			field:  "paypal_id",
			expect: "The account is not verified.",
		},
		{
			name:   "paypal message kept verbatim",
			setup:  func(f *fakePayPal) { f.invalid, f.message = true, "Limit is 100%d of nothing." },
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientDev, PaypalID: "odd@example.com"},
			field:  "paypal_id",
			expect: "Limit is 100%d of nothing.",
		},
		{
			name: "paypal unreachable",
			setup: func(f *fakePayPal) {
				f.checkErr = services.Wrap(services.ErrTimeout, "paypal", "check", "timed out", nil)
			},
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientDev, PaypalID: "dev@example.com"},
			field:  "paypal_id",
			expect: "Could not validate PayPal id.",
		},
		{
			name:   "zero amount",
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientMoz, SuggestedAmount: "0"},
			field:  "suggested_amount",
			expect: "greater than 0",
		},
		{
			name:   "amount over max",
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientMoz, SuggestedAmount: "1001"},
			field:  "suggested_amount",
			expect: "less than $1000",
		},
		{
			name:   "amount not a number",
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientMoz, SuggestedAmount: "lots"},
			field:  "suggested_amount",
			expect: "Enter a number.",
		},
		{
			name:   "charity incomplete",
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientOrg, CharityName: "Good Cause"},
			field:  "charity-url",
			expect: "required",
		},
		{
			name:   "unknown recipient",
			in:     devhub.ContributionsInput{Recipient: "elsewhere"},
			field:  "recipient",
			expect: "elsewhere",
		},
		{
			name:   "annoying out of range",
			in:     devhub.ContributionsInput{Recipient: devhub.RecipientMoz, Annoying: 7},
			field:  "annoying",
			expect: "7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.paypal.reset()
			if tt.setup != nil {
				tt.setup(h.paypal)
			}
			a := testsupport.SeedAddon(t, h.store, owner, testsupport.WithProfile())
			_, err := h.svc.SetContributions(ctx, owner, a, tt.in)
			expectField(t, err, tt.field, tt.expect)
			if got := h.reload(t, a); got.WantsContributions || got.SuggestedAmountCents != nil {
				t.Fatalf("rejected form changed addon: %+v", got)
			}
		})
	}
}

func TestSetContributionsCharities(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner, testsupport.WithProfile())

	_, err := h.svc.SetContributions(ctx, owner, a, devhub.ContributionsInput{Recipient: devhub.RecipientMoz})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing foundation charity should be a configuration error, got %v", err)
	}

	foundation, err := h.store.CreateCharity(ctx, &store.Charity{Name: "Foundation", URL: "https://foundation.example.org", Paypal: "f@example.org"})
	if err != nil {
		t.Fatalf("CreateCharity: %v", err)
	}
	h.cfg.Payments.FoundationCharityID = foundation.ID

	got, err := h.svc.SetContributions(ctx, owner, a, devhub.ContributionsInput{Recipient: devhub.RecipientMoz, SuggestedAmount: "$1.50"})
	if err != nil {
		t.Fatalf("SetContributions moz: %v", err)
	}
	if got.CharityID == nil || *got.CharityID != foundation.ID || got.PaypalID != "" {
		t.Fatalf("unexpected moz recipient %+v", got)
	}
	if *got.SuggestedAmountCents != 150 {
		t.Fatalf("amount = %d", *got.SuggestedAmountCents)
	}

	got, err = h.svc.SetContributions(ctx, owner, got, devhub.ContributionsInput{
		Recipient:      devhub.RecipientOrg,
		CharityName:    "Good Cause",
		CharityURL:     "https://cause.example.org",
		CharityPaypal:  "cause@example.org",
		EnableThankyou: true,
		ThankyouNote:   "Thanks!",
	})
	if err != nil {
		t.Fatalf("SetContributions org: %v", err)
	}
	if got.CharityID == nil || *got.CharityID == foundation.ID {
		t.Fatalf("expected a new charity, got %v", got.CharityID)
	}
	charity, err := h.store.GetCharity(ctx, *got.CharityID)
	if err != nil || charity.Name != "Good Cause" {
		t.Fatalf("GetCharity: %+v %v", charity, err)
	}
	stored := h.reload(t, a)
	if *stored.SuggestedAmountCents != 150 {
		t.Fatal("empty amount should keep the stored value")
	}
	if !stored.EnableThankyou || stored.ThankyouNote != "Thanks!" {
		t.Fatalf("thank-you not stored: %+v", stored)
	}
	view, err := h.svc.Payments(ctx, owner, stored)
	if err != nil || view.Recipient != devhub.RecipientOrg || view.Charity == nil {
		t.Fatalf("Payments: %+v %v", view, err)
	}

	got, err = h.svc.SetContributions(ctx, owner, stored, devhub.ContributionsInput{Recipient: devhub.RecipientDev, PaypalID: "me@example.com"})
	if err != nil {
		t.Fatalf("SetContributions dev: %v", err)
	}
	if got.CharityID != nil {
		t.Fatal("developer recipient should clear the charity")
	}
}

func TestSetContributionsRejectsUpsellFreeSide(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	free := testsupport.SeedAddon(t, h.store, owner, testsupport.WithProfile())
	premium := testsupport.SeedAddon(t, h.store, owner, testsupport.WithPremium(store.PremiumPremium))
	if err := h.store.ReplaceUpsell(ctx, store.Upsell{FreeID: free.ID, PremiumID: premium.ID, Text: "Upgrade"}); err != nil {
		t.Fatalf("ReplaceUpsell: %v", err)
	}

	_, err := h.svc.SetContributions(ctx, owner, free, devhub.ContributionsInput{Recipient: devhub.RecipientDev, PaypalID: "dev@example.com"})
	expectField(t, err, devhub.NonField, "premium add-on")

	view, err := h.svc.Payments(ctx, owner, free)
	if err != nil || !view.IsUpsellFree {
		t.Fatalf("Payments: %+v %v", view, err)
	}
}

func TestContributionsNeedOwner(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	dev := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)
	testsupport.AddAuthor(t, h.store, a, dev, store.RoleDev)

	if _, err := h.svc.Payments(ctx, dev, a); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("dev should not see payments, got %v", err)
	}
}

func TestCheckPayPal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	user := testsupport.SeedUser(t, h.store, false)

	tests := []struct {
		name    string
		setup   func(*fakePayPal)
		valid   bool
		message string
	}{
		{name: "valid", valid: true},
		{name: "invalid", setup: func(f *fakePayPal) { f.invalid, f.message = true, "Not a PayPal account." }, message: "Not a PayPal account."},
		{name: "check error", setup: func(f *fakePayPal) { f.checkErr = errors.New("boom") }, message: "Could not validate PayPal id."},
		{name: "paykey error", setup: func(f *fakePayPal) { f.paykeyErr = errors.New("denied") }, message: "test payment key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.paypal.reset()
			if tt.setup != nil {
				tt.setup(h.paypal)
			}
			got, err := h.svc.CheckPayPal(ctx, user, "someone@example.com")
			if err != nil {
				t.Fatalf("CheckPayPal: %v", err)
			}
			if got.Valid != tt.valid || !strings.Contains(got.Message, tt.message) {
				t.Fatalf("unexpected result %+v", got)
			}
		})
	}

	h.paypal.reset()
	if _, err := h.svc.CheckPayPal(ctx, user, "someone@example.com"); err != nil {
		t.Fatalf("CheckPayPal: %v", err)
	}
	if len(h.paypal.paykeys) != 1 {
		t.Fatalf("expected one paykey request, got %d", len(h.paypal.paykeys))
	}
	req := h.paypal.paykeys[0]
	if req.Preapproval != "" || req.AmountCents != 100 || req.Email != "someone@example.com" || req.UUID == "" {
		t.Fatalf("unexpected paykey request %+v", req)
	}

	if _, err := h.svc.CheckPayPal(ctx, user, " "); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("empty email should be not found, got %v", err)
	}
	bare := devhub.NewService(h.cfg, h.store)
	if _, err := bare.CheckPayPal(ctx, user, "someone@example.com"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing client should be a configuration error, got %v", err)
	}
}

func TestProfile(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	got, err := h.svc.UpdateProfile(ctx, owner, a, devhub.ProfileInput{TheReason: "why", TheFuture: ""})
	if err != nil {
		t.Fatalf("partial profile is fine without contributions: %v", err)
	}
	if got.TheReason != "why" {
		t.Fatalf("reason = %q", got.TheReason)
	}

	got.WantsContributions = true
	if err := h.store.UpdateAddon(ctx, got); err != nil {
		t.Fatalf("UpdateAddon: %v", err)
	}
	_, err = h.svc.UpdateProfile(ctx, owner, got, devhub.ProfileInput{TheReason: "why"})
	expectField(t, err, "the_future", "required")

	got, err = h.svc.UpdateProfile(ctx, owner, got, devhub.ProfileInput{TheReason: "why", TheFuture: "next"})
	if err != nil || !got.HasFullProfile() {
		t.Fatalf("UpdateProfile: %+v %v", got, err)
	}

	got, err = h.svc.RemoveProfile(ctx, owner, got)
	if err != nil {
		t.Fatalf("RemoveProfile: %v", err)
	}
	stored := h.reload(t, a)
	if stored.TheReason != "" || stored.TheFuture != "" || stored.WantsContributions {
		t.Fatalf("profile not removed: %+v", stored)
	}
	if n, _ := h.store.CountActivity(ctx, a.ID, store.ActionEditProperties); n != 3 {
		t.Fatalf("profile activity = %d", n)
	}
}
