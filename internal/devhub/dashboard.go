package devhub

import (
	"context"

	"marketplace/internal/store"
)

// DashboardPageSize is the number of addons per dashboard page.
const DashboardPageSize = 10

// DashboardPage is one page of the user's addons.
type DashboardPage struct {
	Addons []*store.Addon
	Sort   store.AddonSort
	Page   int
	Pages  int
	Total  int
}

// Dashboard lists the addons user authors. Unknown sorts fall back to name.
func (s *Service) Dashboard(ctx context.Context, user *store.User, sort string, page int) (*DashboardPage, error) {
	if err := requireUser(user, "dashboard"); err != nil {
		return nil, err
	}
	order := store.AddonSort(sort)
	if order != store.SortByCreated {
		order = store.SortByName
	}
	if page < 1 {
		page = 1
	}
	addons, total, err := s.store.AddonsForAuthor(ctx, user.ID, order, DashboardPageSize, (page-1)*DashboardPageSize)
	if err != nil {
		return nil, err
	}
	pages := (total + DashboardPageSize - 1) / DashboardPageSize
	if pages == 0 {
		pages = 1
	}
	return &DashboardPage{Addons: addons, Sort: order, Page: page, Pages: pages, Total: total}, nil
}
