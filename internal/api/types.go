package api

import (
	"encoding/json"

	"marketplace/internal/users"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Addon describes a listed addon or web app in a transport-friendly format.
type Addon struct {
	ID                 int64    `json:"id"`
	GUID               string   `json:"guid,omitempty"`
	Type               int      `json:"type"`
	Name               string   `json:"name"`
	Slug               string   `json:"slug"`
	AppSlug            string   `json:"app_slug,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Description        string   `json:"description,omitempty"`
	Homepage           string   `json:"homepage,omitempty"`
	SupportURL         string   `json:"support_url,omitempty"`
	SupportEmail       string   `json:"support_email,omitempty"`
	Status             int      `json:"status"`
	StatusLabel        string   `json:"status_label"`
	DisabledByUser     bool     `json:"disabled_by_user"`
	PremiumType        int      `json:"premium_type"`
	IconType           string   `json:"icon_type,omitempty"`
	ManifestURL        string   `json:"manifest_url,omitempty"`
	AppDomain          string   `json:"app_domain,omitempty"`
	DeviceTypes        []string `json:"device_types,omitempty"`
	WantsContributions bool     `json:"wants_contributions"`
	CurrentVersionID   *int64   `json:"current_version_id,omitempty"`
	URL                string   `json:"url"`
	DevURL             string   `json:"dev_url"`
	NominatedAt        string   `json:"nominated_at,omitempty"`
	CreatedAt          string   `json:"created_at,omitempty"`
	UpdatedAt          string   `json:"updated_at,omitempty"`
}

// AddonDetail is an addon plus its listed authors as profile links.
type AddonDetail struct {
	Addon
	Authors string `json:"authors_html"`
}

// DashboardResponse is one page of the caller's addons.
type DashboardResponse struct {
	Addons []Addon `json:"addons"`
	Sort   string  `json:"sort"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
	Total  int     `json:"total"`
}

// Version describes an addon release.
type Version struct {
	ID           int64  `json:"id"`
	Version      string `json:"version"`
	LicenseID    *int64 `json:"license_id,omitempty"`
	ReleaseNotes string `json:"release_notes,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Refund summarizes a refund request alongside its purchase.
type Refund struct {
	ContributionID  int64  `json:"contribution_id"`
	Status          string `json:"status"`
	TransactionID   string `json:"transaction_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency,omitempty"`
	Reason          string `json:"reason,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	RequestedAt     string `json:"requested_at,omitempty"`
}

// RefundQueues groups an addon's refunds by processing state.
type RefundQueues struct {
	Pending  []Refund `json:"pending"`
	Approved []Refund `json:"approved"`
	Instant  []Refund `json:"instant"`
	Declined []Refund `json:"declined"`
}

// Task describes a background task.
type Task struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// TaskListResponse wraps task list payloads.
type TaskListResponse struct {
	Items []Task `json:"items"`
}

// WorkerStatus summarizes background execution state.
type WorkerStatus struct {
	Running    bool           `json:"running"`
	QueueStats map[string]int `json:"queue_stats"`
	LastError  string         `json:"last_error,omitempty"`
	LastTask   *Task          `json:"last_task,omitempty"`
	Kinds      []KindStatus   `json:"kinds"`
	Health     []LaneHealth   `json:"health"`
}

// KindStatus counts outcomes for one task kind.
type KindStatus struct {
	Kind      string `json:"kind"`
	Lane      string `json:"lane"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// LaneHealth mirrors readiness reporting for task handlers.
type LaneHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates runtime information for the status endpoint.
type DaemonStatus struct {
	Running      bool         `json:"running"`
	PID          int          `json:"pid"`
	DatabasePath string       `json:"database_path"`
	TasksDBPath  string       `json:"tasks_db_path"`
	LockFilePath string       `json:"lock_file_path"`
	Schedules    []Schedule   `json:"schedules,omitempty"`
	Worker       WorkerStatus `json:"worker"`
}

// Schedule reports a cron entry and its next run.
type Schedule struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
	Next string `json:"next,omitempty"`
}

// ErrorResponse carries a single error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormErrorResponse carries field validation messages.
type FormErrorResponse struct {
	Errors map[string][]string `json:"errors"`
}

// RedirectResponse tells the client where a workflow continues.
type RedirectResponse struct {
	Redirect string `json:"redirect"`
}

// MessageResponse carries an informational message.
type MessageResponse struct {
	Message string `json:"message"`
}

// CurrentUser describes the caller. Anonymous callers only get Payment.
type CurrentUser struct {
	ID          int64      `json:"id,omitempty"`
	Name        string     `json:"name,omitempty"`
	ProfileURL  string     `json:"profile_url,omitempty"`
	ProfileLink string     `json:"profile_link,omitempty"`
	EmailLink   string     `json:"email_link,omitempty"`
	Payment     users.Data `json:"payment"`
}
