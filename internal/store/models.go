package store

import (
	"fmt"
	"time"
)

// Status is the review status of an addon or file.
type Status int

const (
	StatusNull             Status = 0
	StatusUnreviewed       Status = 1
	StatusPending          Status = 2
	StatusNominated        Status = 3
	StatusPublic           Status = 4
	StatusDisabled         Status = 5
	StatusLite             Status = 8
	StatusLiteAndNominated Status = 9
	StatusPurgatory        Status = 10
	StatusDeleted          Status = 11
)

var statusLabels = map[Status]string{
	StatusNull:             "Incomplete",
	StatusUnreviewed:       "Awaiting Preliminary Review",
	StatusPending:          "Pending approval",
	StatusNominated:        "Awaiting Full Review",
	StatusPublic:           "Fully Reviewed",
	StatusDisabled:         "Disabled by Mozilla",
	StatusLite:             "Preliminarily Reviewed",
	StatusLiteAndNominated: "Preliminarily Reviewed and Awaiting Full Review",
	StatusPurgatory:        "Pending a review choice",
	StatusDeleted:          "Deleted",
}

func (s Status) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// AddonType distinguishes listed package kinds.
type AddonType int

const (
	TypeExtension AddonType = 1
	TypeTheme     AddonType = 2
	TypeDict      AddonType = 3
	TypeSearch    AddonType = 4
	TypeLPApp     AddonType = 5
	TypePersona   AddonType = 9
	TypeWebapp    AddonType = 11
)

// PremiumType describes how an addon is monetized.
type PremiumType int

const (
	PremiumFree         PremiumType = 0
	PremiumPremium      PremiumType = 1
	PremiumPremiumInapp PremiumType = 2
	PremiumFreeInapp    PremiumType = 3
)

// Role is an author's permission level on an addon.
type Role int

const (
	RoleViewer  Role = 1
	RoleDev     Role = 4
	RoleOwner   Role = 5
	RoleSupport Role = 6
)

// ContributionType classifies payment records.
type ContributionType int

const (
	ContribVoluntary  ContributionType = 0
	ContribPurchase   ContributionType = 1
	ContribRefund     ContributionType = 2
	ContribChargeback ContributionType = 3
)

// RefundStatus tracks refund processing.
type RefundStatus int

const (
	RefundPending         RefundStatus = 0
	RefundApproved        RefundStatus = 1
	RefundApprovedInstant RefundStatus = 2
	RefundDeclined        RefundStatus = 3
)

func (s RefundStatus) String() string {
	switch s {
	case RefundPending:
		return "pending"
	case RefundApproved:
		return "approved"
	case RefundApprovedInstant:
		return "instant"
	case RefundDeclined:
		return "declined"
	default:
		return fmt.Sprintf("refund(%d)", int(s))
	}
}

// Contribution prompt levels ("annoying").
const (
	AnnoyingNone      = 0
	AnnoyingPassive   = 1
	AnnoyingAfter     = 2
	AnnoyingRoadblock = 3
)

// Platform identifiers for uploaded files.
const (
	PlatformAll     = 1
	PlatformLinux   = 2
	PlatformMac     = 3
	PlatformBSD     = 4
	PlatformWin     = 5
	PlatformAndroid = 7
	PlatformMaemo   = 8
)

// Action identifies an activity log entry.
type Action int

const (
	ActionCreateAddon       Action = 1
	ActionEditProperties    Action = 2
	ActionEditDescriptions  Action = 3
	ActionEditCategories    Action = 4
	ActionChangeStatus      Action = 12
	ActionDeleteAddon       Action = 14
	ActionAddVersion        Action = 16
	ActionChangeLicense     Action = 37
	ActionEditContributions Action = 38
	ActionMakePremium       Action = 101
	ActionRefundGranted     Action = 102
	ActionRefundDeclined    Action = 103
)

// User is a marketplace account.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	Email       string
	IsAdmin     bool
	CreatedAt   time.Time
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Preapproval is a user's standing PayPal pre-authorization.
type Preapproval struct {
	UserID    int64
	PaypalKey string
	Currency  string
}

// Charity receives contributions on a developer's behalf.
type Charity struct {
	ID     int64
	Name   string
	URL    string
	Paypal string
}

// License is either a builtin license (Builtin > 0) or custom text.
type License struct {
	ID      int64
	Builtin int
	Name    string
	URL     string
	Body    string
}

// Price is a selectable marketplace price tier.
type Price struct {
	ID         int64
	PriceCents int64
	Active     bool
}

// Addon is a listed package or web app.
type Addon struct {
	ID                   int64
	GUID                 string
	Type                 AddonType
	Name                 string
	Slug                 string
	AppSlug              string
	Summary              string
	Description          string
	Homepage             string
	SupportURL           string
	SupportEmail         string
	PrivacyPolicy        string
	EULA                 string
	Status               Status
	DisabledByUser       bool
	PremiumType          PremiumType
	IconType             string
	IconHash             string
	ManifestURL          string
	AppDomain            string
	DeviceTypes          []string
	WantsContributions   bool
	PaypalID             string
	SuggestedAmountCents *int64
	Annoying             int
	EnableThankyou       bool
	ThankyouNote         string
	CharityID            *int64
	TheReason            string
	TheFuture            string
	CurrentVersionID     *int64
	NominatedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsWebapp reports whether the addon is a web app.
func (a *Addon) IsWebapp() bool { return a.Type == TypeWebapp }

// IsPremium reports whether the addon must be purchased.
func (a *Addon) IsPremium() bool {
	return a.PremiumType == PremiumPremium || a.PremiumType == PremiumPremiumInapp
}

// IsDisabled reports whether the addon is disabled by an admin or its authors.
func (a *Addon) IsDisabled() bool { return a.Status == StatusDisabled || a.DisabledByUser }

// HasFullProfile reports whether both developer profile fields are filled.
func (a *Addon) HasFullProfile() bool { return a.TheReason != "" && a.TheFuture != "" }

// URLPath is the public listing path.
func (a *Addon) URLPath() string {
	if a.IsWebapp() {
		return "/app/" + a.AppSlug + "/"
	}
	return "/addon/" + a.Slug + "/"
}

// DevPath is the developer hub path prefix for the addon.
func (a *Addon) DevPath() string {
	if a.IsWebapp() {
		return "/developers/app/" + a.AppSlug
	}
	return "/developers/addon/" + a.Slug
}

// AddonUser links an author to an addon.
type AddonUser struct {
	AddonID  int64
	UserID   int64
	Role     Role
	Listed   bool
	Position int
}

// Category groups addons of one type.
type Category struct {
	ID     int64
	Name   string
	Slug   string
	Type   AddonType
	Weight int
}

// Version is a numbered release of an addon.
type Version struct {
	ID           int64
	AddonID      int64
	Version      string
	LicenseID    *int64
	ReleaseNotes string
	CreatedAt    time.Time
}

// File is an artifact of a version for one platform.
type File struct {
	ID        int64
	VersionID int64
	Platform  int
	Filename  string
	Hash      string
	Size      int64
	Status    Status
	CreatedAt time.Time
}

// FileUpload is a validated upload awaiting use in submission.
type FileUpload struct {
	UUID           string
	UserID         *int64
	AddonID        *int64
	Name           string
	Path           string
	Hash           string
	Size           int64
	PackageType    AddonType
	GUID           string
	Version        string
	ManifestName   string
	AppDomain      string
	Valid          bool
	ValidationJSON string
	CreatedAt      time.Time
}

// Review is a user rating of an addon version.
type Review struct {
	ID        int64
	AddonID   int64
	VersionID *int64
	UserID    *int64
	Rating    int
	Body      string
	CreatedAt time.Time
}

// AddonPremium holds marketplace pricing for a premium addon.
type AddonPremium struct {
	AddonID                int64
	PriceID                *int64
	PaypalPermissionsToken string
	CreatedAt              time.Time
}

// Upsell links a free addon to its premium counterpart.
type Upsell struct {
	FreeID    int64
	PremiumID int64
	Text      string
}

// Contribution is a payment record.
type Contribution struct {
	ID            int64
	AddonID       int64
	UserID        *int64
	Type          ContributionType
	AmountCents   int64
	Currency      string
	UUID          string
	TransactionID string
	Paykey        string
	RelatedID     *int64
	CreatedAt     time.Time
}

// Refund is a buyer request to reverse a purchase.
type Refund struct {
	ContributionID  int64
	Status          RefundStatus
	RefundReason    string
	RejectionReason string
	RequestedAt     time.Time
	ApprovedAt      *time.Time
	DeclinedAt      *time.Time
}

// ActivityLog is an audit entry for developer actions.
type ActivityLog struct {
	ID          int64
	Action      Action
	AddonID     *int64
	UserID      *int64
	DetailsJSON string
	CreatedAt   time.Time
}
