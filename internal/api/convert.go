package api

import (
	"sort"
	"time"

	"marketplace/internal/devhub"
	"marketplace/internal/paypal"
	"marketplace/internal/queue"
	"marketplace/internal/store"
	"marketplace/internal/worker"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromAddon converts a store addon to its API representation.
func FromAddon(a *store.Addon) Addon {
	if a == nil {
		return Addon{}
	}
	dto := Addon{
		ID:                 a.ID,
		GUID:               a.GUID,
		Type:               int(a.Type),
		Name:               a.Name,
		Slug:               a.Slug,
		AppSlug:            a.AppSlug,
		Summary:            a.Summary,
		Description:        a.Description,
		Homepage:           a.Homepage,
		SupportURL:         a.SupportURL,
		SupportEmail:       a.SupportEmail,
		Status:             int(a.Status),
		StatusLabel:        a.Status.String(),
		DisabledByUser:     a.DisabledByUser,
		PremiumType:        int(a.PremiumType),
		IconType:           a.IconType,
		ManifestURL:        a.ManifestURL,
		AppDomain:          a.AppDomain,
		DeviceTypes:        a.DeviceTypes,
		WantsContributions: a.WantsContributions,
		CurrentVersionID:   a.CurrentVersionID,
		URL:                a.URLPath(),
		DevURL:             a.DevPath(),
		CreatedAt:          formatTime(a.CreatedAt),
		UpdatedAt:          formatTime(a.UpdatedAt),
	}
	if a.NominatedAt != nil {
		dto.NominatedAt = formatTime(*a.NominatedAt)
	}
	return dto
}

// FromAddons converts a slice, never returning nil.
func FromAddons(addons []*store.Addon) []Addon {
	out := make([]Addon, 0, len(addons))
	for _, a := range addons {
		out = append(out, FromAddon(a))
	}
	return out
}

// FromDashboard converts a dashboard page.
func FromDashboard(page *devhub.DashboardPage) DashboardResponse {
	if page == nil {
		return DashboardResponse{Addons: []Addon{}}
	}
	return DashboardResponse{
		Addons: FromAddons(page.Addons),
		Sort:   string(page.Sort),
		Page:   page.Page,
		Pages:  page.Pages,
		Total:  page.Total,
	}
}

// FromVersions converts versions, never returning nil.
func FromVersions(versions []*store.Version) []Version {
	out := make([]Version, 0, len(versions))
	for _, v := range versions {
		out = append(out, Version{
			ID:           v.ID,
			Version:      v.Version,
			LicenseID:    v.LicenseID,
			ReleaseNotes: v.ReleaseNotes,
			CreatedAt:    formatTime(v.CreatedAt),
		})
	}
	return out
}

// FromRefundEntry converts a refund joined with its purchase.
func FromRefundEntry(e store.RefundEntry) Refund {
	dto := Refund{}
	if e.Refund != nil {
		dto.ContributionID = e.Refund.ContributionID
		dto.Status = e.Refund.Status.String()
		dto.Reason = e.Refund.RefundReason
		dto.RejectionReason = e.Refund.RejectionReason
		dto.RequestedAt = formatTime(e.Refund.RequestedAt)
	}
	if c := e.Contribution; c != nil {
		dto.TransactionID = c.TransactionID
		dto.Amount = paypal.FormatAmount(c.AmountCents)
		dto.Currency = c.Currency
	}
	return dto
}

func fromRefundEntries(entries []store.RefundEntry) []Refund {
	out := make([]Refund, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromRefundEntry(e))
	}
	return out
}

// FromRefundQueues converts grouped refunds.
func FromRefundQueues(q *devhub.RefundQueues) RefundQueues {
	if q == nil {
		q = &devhub.RefundQueues{}
	}
	return RefundQueues{
		Pending:  fromRefundEntries(q.Pending),
		Approved: fromRefundEntries(q.Approved),
		Instant:  fromRefundEntries(q.Instant),
		Declined: fromRefundEntries(q.Declined),
	}
}

// FromTask converts a queue task to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}
	return Task{
		ID:          task.ID,
		Kind:        string(task.Kind),
		Status:      string(task.Status),
		Attempts:    task.Attempts,
		MaxAttempts: task.MaxAttempts,
		Error:       task.ErrorMessage,
		CreatedAt:   formatTime(task.CreatedAt),
		UpdatedAt:   formatTime(task.UpdatedAt),
		Payload:     task.Payload,
	}
}

// FromTasks converts tasks, never returning nil.
func FromTasks(tasks []*queue.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// MergeQueueStats returns counts keyed by status with every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromStatusSummary converts worker diagnostics.
func FromStatusSummary(summary worker.StatusSummary) WorkerStatus {
	status := WorkerStatus{
		Running:    summary.Running,
		QueueStats: MergeQueueStats(summary.TaskStats),
		LastError:  summary.LastError,
		Kinds:      make([]KindStatus, 0, len(summary.Kinds)),
		Health:     make([]LaneHealth, 0, len(summary.Health)),
	}
	if summary.LastTask != nil {
		last := FromTask(summary.LastTask)
		last.Payload = nil
		status.LastTask = &last
	}
	for _, k := range summary.Kinds {
		status.Kinds = append(status.Kinds, KindStatus{
			Kind:      string(k.Kind),
			Lane:      k.Lane,
			Succeeded: k.Succeeded,
			Failed:    k.Failed,
		})
	}
	for _, h := range summary.Health {
		status.Health = append(status.Health, LaneHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.Slice(status.Health, func(i, j int) bool { return status.Health[i].Name < status.Health[j].Name })
	return status
}
