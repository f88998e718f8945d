package devhub

import (
	"context"
	"sort"
	"strings"

	"marketplace/internal/store"
	"marketplace/internal/textutil"
)

const (
	searchLimit     = 50
	suggestionLimit = 10
)

// SearchResult is one ranked app.
type SearchResult struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Slug    string  `json:"slug"`
	Summary string  `json:"summary,omitempty"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// SearchApps returns public web apps matching query, best match first.
func (s *Service) SearchApps(ctx context.Context, query string) ([]SearchResult, error) {
	return s.search(ctx, query, searchLimit)
}

// Suggestion is an autocomplete entry.
type Suggestion struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Suggestions returns the top app names for a partial query.
func (s *Service) Suggestions(ctx context.Context, query string) ([]Suggestion, error) {
	results, err := s.search(ctx, query, suggestionLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(results))
	for _, r := range results {
		out = append(out, Suggestion{Name: r.Name, URL: r.URL})
	}
	return out, nil
}

func (s *Service) search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	apps, err := s.store.SearchApps(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(apps))
	for _, a := range apps {
		results = append(results, rank(query, a))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func rank(query string, a *store.Addon) SearchResult {
	score := textutil.Relevance(query, a.Name) + textutil.Relevance(query, a.Summary)/2
	return SearchResult{
		ID:      a.ID,
		Name:    a.Name,
		Slug:    a.AppSlug,
		Summary: a.Summary,
		URL:     a.URLPath(),
		Score:   score,
	}
}
