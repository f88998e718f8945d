// Package users renders user references for API payloads and mail.
package users

import (
	"context"
	"fmt"
	"html"
	"strings"

	"marketplace/internal/store"
)

const defaultCurrency = "USD"

var entityReplacer = strings.NewReplacer("@", "&#x0040;", ".", "&#x002E;")

// EmailLink returns obfuscated e-mail markup: the address is reversed, its
// "@" and "." written as entities, and a junk span inserted midway. The
// visible link shows title when given.
func EmailLink(email, title string) string {
	if email == "" {
		return ""
	}
	first, second := obfuscate(email)
	hidden := fmt.Sprintf(`<span class="emaillink js-hidden">%s<span class="i">null</span>%s</span>`, first, second)
	if title != "" {
		return fmt.Sprintf(`<a href="#">%s</a>%s`, html.EscapeString(title), hidden)
	}
	return fmt.Sprintf(`<a href="#"><span class="emaillink">%s<span class="i">null</span>%s</span></a>%s`, first, second, hidden)
}

func obfuscate(email string) (string, string) {
	runes := []rune(email)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	mid := len(runes) / 2
	encode := func(part []rune) string {
		return entityReplacer.Replace(html.EscapeString(string(part)))
	}
	return encode(runes[:mid]), encode(runes[mid:])
}

// ProfilePath is the public profile location of a user.
func ProfilePath(u *store.User) string {
	return fmt.Sprintf("/user/%d/", u.ID)
}

// UserLink links to the user's profile using the escaped display name.
func UserLink(u *store.User) string {
	if u == nil {
		return ""
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, ProfilePath(u), html.EscapeString(u.Name()))
}

// UsersList joins user links with ", ". A size above zero keeps only the
// first size users and appends ", others" when any were dropped.
func UsersList(list []*store.User, size int) string {
	truncated := false
	if size > 0 && len(list) > size {
		list = list[:size]
		truncated = true
	}
	links := make([]string, 0, len(list))
	for _, u := range list {
		if link := UserLink(u); link != "" {
			links = append(links, link)
		}
	}
	out := strings.Join(links, ", ")
	if truncated {
		out += ", others"
	}
	return out
}

// Data summarizes payment state for a client.
type Data struct {
	Anonymous bool   `json:"anonymous"`
	PreAuth   bool   `json:"pre_auth"`
	Currency  string `json:"currency"`
}

// PreapprovalLookup loads a user's PayPal pre-authorization.
type PreapprovalLookup interface {
	GetPreapproval(ctx context.Context, userID int64) (*store.Preapproval, error)
}

// UserData reports whether u is anonymous, pre-authorized with PayPal, and
// which currency it pays in.
func UserData(ctx context.Context, lookup PreapprovalLookup, u *store.User) (Data, error) {
	data := Data{Anonymous: u == nil, Currency: defaultCurrency}
	if u == nil || lookup == nil {
		return data, nil
	}
	pre, err := lookup.GetPreapproval(ctx, u.ID)
	if err != nil {
		return data, err
	}
	if pre != nil {
		data.PreAuth = pre.PaypalKey != ""
		if pre.Currency != "" {
			data.Currency = pre.Currency
		}
	}
	return data, nil
}
