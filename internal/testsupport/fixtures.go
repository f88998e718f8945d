package testsupport

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"marketplace/internal/store"
)

var fixtureSeq atomic.Int64

// SeedUser creates a user with a unique username.
func SeedUser(t testing.TB, st *store.Store, admin bool) *store.User {
	t.Helper()

	n := fixtureSeq.Add(1)
	u, err := st.CreateUser(context.Background(), &store.User{
		Username:    fmt.Sprintf("user%d", n),
		DisplayName: fmt.Sprintf("User %d", n),
		Email:       fmt.Sprintf("user%d@example.com", n),
		IsAdmin:     admin,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// AddonOption customizes SeedAddon.
type AddonOption func(*store.Addon)

// AsWebapp makes the seeded addon a web app.
func AsWebapp() AddonOption {
	return func(a *store.Addon) {
		a.Type = store.TypeWebapp
		a.AppSlug = a.Slug
		a.Slug = "app-" + a.Slug
	}
}

// WithStatus sets the seeded addon status.
func WithStatus(status store.Status) AddonOption {
	return func(a *store.Addon) { a.Status = status }
}

// WithPremium sets the seeded addon premium type.
func WithPremium(pt store.PremiumType) AddonOption {
	return func(a *store.Addon) { a.PremiumType = pt }
}

// WithProfile fills the developer profile fields.
func WithProfile() AddonOption {
	return func(a *store.Addon) {
		a.TheReason = "because"
		a.TheFuture = "more features"
	}
}

// SeedAddon creates a public extension owned by owner with one version.
func SeedAddon(t testing.TB, st *store.Store, owner *store.User, opts ...AddonOption) *store.Addon {
	t.Helper()

	ctx := context.Background()
	n := fixtureSeq.Add(1)
	a := &store.Addon{
		Type:    store.TypeExtension,
		Name:    fmt.Sprintf("Addon %d", n),
		Slug:    fmt.Sprintf("addon-%d", n),
		GUID:    fmt.Sprintf("addon%d@example.com", n),
		Summary: "A test addon",
		Status:  store.StatusPublic,
	}
	for _, opt := range opts {
		opt(a)
	}
	created, err := st.CreateAddon(ctx, a)
	if err != nil {
		t.Fatalf("CreateAddon: %v", err)
	}
	if owner != nil {
		if err := st.AddAuthor(ctx, store.AddonUser{AddonID: created.ID, UserID: owner.ID, Role: store.RoleOwner, Listed: true}); err != nil {
			t.Fatalf("AddAuthor: %v", err)
		}
	}
	SeedVersion(t, st, created, "1.0")
	reloaded, err := st.GetAddon(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetAddon: %v", err)
	}
	return reloaded
}

// SeedVersion adds a version with a single all-platform file.
func SeedVersion(t testing.TB, st *store.Store, a *store.Addon, number string) *store.Version {
	t.Helper()

	v, _, err := st.CreateVersion(context.Background(), &store.Version{AddonID: a.ID, Version: number},
		[]*store.File{{Platform: store.PlatformAll, Filename: fmt.Sprintf("%s-%s.xpi", a.Slug, number), Status: a.Status}})
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	return v
}

// AddAuthor links user to addon with role.
func AddAuthor(t testing.TB, st *store.Store, a *store.Addon, u *store.User, role store.Role) {
	t.Helper()

	if err := st.AddAuthor(context.Background(), store.AddonUser{AddonID: a.ID, UserID: u.ID, Role: role, Listed: true}); err != nil {
		t.Fatalf("AddAuthor: %v", err)
	}
}

// SeedPurchase records a purchase contribution with a pending refund request.
func SeedPurchase(t testing.TB, st *store.Store, a *store.Addon, buyer *store.User, txn string, withRefund bool) *store.Contribution {
	t.Helper()

	ctx := context.Background()
	c, err := st.CreateContribution(ctx, &store.Contribution{
		AddonID:       a.ID,
		UserID:        &buyer.ID,
		Type:          store.ContribPurchase,
		AmountCents:   99,
		TransactionID: txn,
		Paykey:        "paykey-" + txn,
		UUID:          "uuid-" + txn,
	})
	if err != nil {
		t.Fatalf("CreateContribution: %v", err)
	}
	if withRefund {
		if err := st.CreateRefund(ctx, &store.Refund{ContributionID: c.ID, Status: store.RefundPending}); err != nil {
			t.Fatalf("CreateRefund: %v", err)
		}
	}
	return c
}
