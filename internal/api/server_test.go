package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"marketplace/internal/api"
	"marketplace/internal/config"
	"marketplace/internal/devhub"
	"marketplace/internal/metrics"
	"marketplace/internal/queue"
	"marketplace/internal/store"
	"marketplace/internal/testsupport"
)

type harness struct {
	cfg     *config.Config
	store   *store.Store
	queue   *queue.Store
	metrics *metrics.Metrics
	server  *httptest.Server
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}
	st := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustOpenQueue(t, cfg)
	m := metrics.New()
	hub := devhub.NewService(cfg, st, devhub.WithMailQueue(q))
	srv := api.NewServer(cfg, hub, api.WithMetrics(m), api.WithTasks(q))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &harness{cfg: cfg, store: st, queue: q, metrics: m, server: ts}
}

func (h *harness) token(t *testing.T, u *store.User) string {
	t.Helper()
	token, err := api.IssueToken(h.cfg, u.ID, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.body, dst); err != nil {
		t.Fatalf("decode %s: %v", r.body, err)
	}
}

func (h *harness) do(t *testing.T, method, path, token string, payload any) response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(t, req, token)
}

func (h *harness) send(t *testing.T, req *http.Request, token string) response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

func (h *harness) upload(t *testing.T, token, filename, content string) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("upload", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, h.server.URL+api.Prefix+"/developers/upload", &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.send(t, req, token)
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"valid token", h.token(t, owner), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.do(t, http.MethodGet, api.Prefix+"/developers/addons", tc.token, nil)
			if resp.status != tc.status {
				t.Fatalf("status = %d, body %s", resp.status, resp.body)
			}
		})
	}

	resp := h.do(t, http.MethodGet, api.Prefix+"/developers/addons", h.token(t, owner), nil)
	var page api.DashboardResponse
	resp.decode(t, &page)
	if page.Total != 1 || page.Addons[0].Slug != a.Slug || page.Addons[0].DevURL != a.DevPath() {
		t.Fatalf("unexpected dashboard %+v", page)
	}
}

func TestAuthorizationSchemeIsCaseInsensitive(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	token := h.token(t, owner)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"lower case", "bearer " + token, http.StatusOK},
		{"upper case", "BEARER " + token, http.StatusOK},
		{"other scheme", "Basic " + token, http.StatusUnauthorized},
		{"scheme only", "Bearer", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, h.server.URL+api.Prefix+"/developers/addons", nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			req.Header.Set("Authorization", tc.header)
			resp := h.send(t, req, "")
			if resp.status != tc.status {
				t.Fatalf("status = %d, body %s", resp.status, resp.body)
			}
		})
	}
}

func TestExpiredAndForeignTokens(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)

	expired, err := api.IssueToken(h.cfg, owner.ID, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	other := *h.cfg
	other.Auth.JWTSecret = "someone-else"
	foreign, err := api.IssueToken(&other, owner.ID, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	missingUser, err := api.IssueToken(h.cfg, 9999, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	for _, token := range []string{expired, foreign, missingUser} {
		if resp := h.do(t, http.MethodGet, api.Prefix+"/developers/addons", token, nil); resp.status != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.status)
		}
	}

	blank := *h.cfg
	blank.Auth.JWTSecret = ""
	if _, err := api.IssueToken(&blank, owner.ID, time.Now()); err == nil {
		t.Fatal("expected error without a signing secret")
	}
}

func TestWizardOverHTTP(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	owner := testsupport.SeedUser(t, h.store, false)
	token := h.token(t, owner)
	cat, err := h.store.CreateCategory(ctx, &store.Category{Name: "Weather", Slug: "weather", Type: store.TypeWebapp})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	up := h.upload(t, token, "manifest.webapp", `{"name":"Weather Now","version":"1.2"}`)
	if up.status != http.StatusOK {
		t.Fatalf("upload status %d: %s", up.status, up.body)
	}
	var detail devhub.UploadDetail
	up.decode(t, &detail)
	if detail.Upload == "" || detail.Validation == nil || !detail.Validation.Success {
		t.Fatalf("unexpected upload detail %+v", detail)
	}

	resp := h.do(t, http.MethodPost, api.Prefix+"/developers/submit/app/2", token, map[string]any{"upload": detail.Upload})
	var redirect api.RedirectResponse
	resp.decode(t, &redirect)
	if resp.status != http.StatusOK || redirect.Redirect != "/developers/submit/1" {
		t.Fatalf("expected agreement redirect, got %d %s", resp.status, resp.body)
	}

	if resp := h.do(t, http.MethodPost, api.Prefix+"/developers/submit/1", token, nil); resp.status != http.StatusOK {
		t.Fatalf("agreement status %d", resp.status)
	}

	resp = h.do(t, http.MethodPost, api.Prefix+"/developers/submit/app/2", token, map[string]any{"upload": detail.Upload})
	if resp.status != http.StatusCreated {
		t.Fatalf("create status %d: %s", resp.status, resp.body)
	}
	var step struct {
		Step  int        `json:"step"`
		Next  string     `json:"next"`
		Addon *api.Addon `json:"addon"`
	}
	resp.decode(t, &step)
	if step.Next != "/developers/submit/app/3/weather-now" || step.Addon == nil {
		t.Fatalf("unexpected create response %s", resp.body)
	}

	resp = h.do(t, http.MethodGet, api.Prefix+"/developers/submit/app/5/weather-now", token, nil)
	resp.decode(t, &redirect)
	if resp.status != http.StatusOK || redirect.Redirect != "/developers/submit/app/3/weather-now" {
		t.Fatalf("expected redirect back to step 3, got %d %s", resp.status, resp.body)
	}

	resp = h.do(t, http.MethodPost, api.Prefix+step.Next, token, map[string]any{
		"name": "Weather Now", "slug": "weather-now", "summary": "Forecasts", "categories": []int64{cat.ID},
	})
	var formErrs api.FormErrorResponse
	resp.decode(t, &formErrs)
	if resp.status != http.StatusBadRequest || len(formErrs.Errors["support_email"]) == 0 {
		t.Fatalf("expected support_email error, got %d %s", resp.status, resp.body)
	}

	resp = h.do(t, http.MethodPost, api.Prefix+step.Next, token, map[string]any{
		"name": "Weather Now", "slug": "weather-now", "summary": "Forecasts", "categories": []int64{cat.ID},
		"support_email": "help@example.com",
	})
	resp.decode(t, &step)
	if resp.status != http.StatusOK || step.Step != devhub.StepMedia {
		t.Fatalf("details status %d: %s", resp.status, resp.body)
	}

	resp = h.do(t, http.MethodPost, api.Prefix+step.Next, token, map[string]any{"icon_type": "icon/webdev"})
	resp.decode(t, &step)
	if resp.status != http.StatusOK || step.Step != devhub.StepFinish {
		t.Fatalf("media status %d: %s", resp.status, resp.body)
	}

	resp = h.do(t, http.MethodGet, api.Prefix+step.Next, token, nil)
	var finish devhub.FinishResult
	resp.decode(t, &finish)
	if resp.status != http.StatusOK || finish.URL != "/app/weather-now/" {
		t.Fatalf("finish status %d: %s", resp.status, resp.body)
	}
}

func TestAccessErrors(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	viewer := testsupport.SeedUser(t, h.store, false)
	stranger := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)
	testsupport.AddAuthor(t, h.store, a, viewer, store.RoleViewer)

	cases := []struct {
		name   string
		method string
		path   string
		user   *store.User
		status int
	}{
		{"viewer reads", http.MethodGet, "/developers/addon/" + a.Slug, viewer, http.StatusOK},
		{"viewer writes", http.MethodPost, "/developers/addon/" + a.Slug + "/payments/disable", viewer, http.StatusForbidden},
		{"stranger reads", http.MethodGet, "/developers/addon/" + a.Slug, stranger, http.StatusForbidden},
		{"wrong namespace", http.MethodGet, "/developers/app/" + a.Slug, owner, http.StatusNotFound},
		{"unknown review target", http.MethodPost, "/developers/addon/" + a.Slug + "/request-review/3", owner, http.StatusNotFound},
		{"review not allowed", http.MethodPost, "/developers/addon/" + a.Slug + "/request-review/4", owner, http.StatusBadRequest},
		{"missing refund", http.MethodGet, "/developers/addon/" + a.Slug + "/refunds/nope", owner, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/developers/nowhere", owner, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.do(t, tc.method, api.Prefix+tc.path, h.token(t, tc.user), nil)
			if resp.status != tc.status {
				t.Fatalf("status = %d, body %s", resp.status, resp.body)
			}
			if tc.status >= 400 {
				var body api.ErrorResponse
				resp.decode(t, &body)
				if body.Error == "" {
					t.Fatalf("expected error message, got %s", resp.body)
				}
			}
		})
	}
}

func TestTasksAdminOnly(t *testing.T) {
	h := newHarness(t, nil)
	user := testsupport.SeedUser(t, h.store, false)
	admin := testsupport.SeedUser(t, h.store, true)
	if _, err := h.queue.Enqueue(context.Background(), queue.KindIndexStats, map[string]any{"ids": []int{1}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if resp := h.do(t, http.MethodGet, api.Prefix+"/developers/tasks", h.token(t, user), nil); resp.status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.status)
	}
	resp := h.do(t, http.MethodGet, api.Prefix+"/developers/tasks?status=pending", h.token(t, admin), nil)
	var list api.TaskListResponse
	resp.decode(t, &list)
	if resp.status != http.StatusOK || len(list.Items) != 1 || list.Items[0].Kind != string(queue.KindIndexStats) {
		t.Fatalf("unexpected tasks %d %s", resp.status, resp.body)
	}
	if resp := h.do(t, http.MethodGet, api.Prefix+"/developers/tasks?status=bogus", h.token(t, admin), nil); resp.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.status)
	}
	if resp := h.do(t, http.MethodGet, api.Prefix+"/developers/tasks/999", h.token(t, admin), nil); resp.status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing task, got %d", resp.status)
	}
}

func TestSearchIsPublic(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	testsupport.SeedAddon(t, h.store, owner, testsupport.AsWebapp())

	resp := h.do(t, http.MethodGet, api.Prefix+"/search/apps?q=addon", "", nil)
	var body struct {
		Results []devhub.SearchResult `json:"results"`
	}
	resp.decode(t, &body)
	if resp.status != http.StatusOK || len(body.Results) != 1 {
		t.Fatalf("unexpected search %d %s", resp.status, resp.body)
	}
	resp = h.do(t, http.MethodGet, api.Prefix+"/search/suggestions?q=", "", nil)
	if resp.status != http.StatusOK || !strings.Contains(string(resp.body), `"suggestions":[]`) {
		t.Fatalf("unexpected suggestions %d %s", resp.status, resp.body)
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+api.Prefix+"/developers/addon/"+a.Slug, nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp := h.send(t, req, h.token(t, owner))
	if resp.header.Get("X-Request-ID") != "req-42" {
		t.Fatalf("request id not echoed: %v", resp.header)
	}
	if resp := h.do(t, http.MethodGet, api.Prefix+"/status", "", nil); resp.header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}

	scrape := h.do(t, http.MethodGet, "/metrics", "", nil)
	want := `marketplace_http_requests_total{method="GET",route="/api/v1/developers/{kind:addon|app}/{slug}",status="200"} 1`
	if scrape.status != http.StatusOK || !strings.Contains(string(scrape.body), want) {
		t.Fatalf("metrics missing %q:\n%s", want, scrape.body)
	}
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 0.001
		cfg.Server.RateBurst = 2
	})
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if resp := h.do(t, http.MethodGet, api.Prefix+"/status", "", nil); resp.status != want {
			t.Fatalf("request %d: status %d want %d", i, resp.status, want)
		}
	}
}

func TestCurrentUser(t *testing.T) {
	h := newHarness(t, nil)
	user := testsupport.SeedUser(t, h.store, false)

	var anon api.CurrentUser
	h.do(t, http.MethodGet, api.Prefix+"/users/me", "", nil).decode(t, &anon)
	if !anon.Payment.Anonymous || anon.ID != 0 || anon.Payment.Currency != "USD" {
		t.Fatalf("unexpected anonymous payload %+v", anon)
	}

	if err := h.store.SetPreapproval(context.Background(), store.Preapproval{UserID: user.ID, PaypalKey: "PA-123", Currency: "EUR"}); err != nil {
		t.Fatalf("SetPreapproval: %v", err)
	}
	resp := h.do(t, http.MethodGet, api.Prefix+"/users/me", h.token(t, user), nil)
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.status, resp.body)
	}
	var me api.CurrentUser
	resp.decode(t, &me)
	if me.ID != user.ID || me.Payment.Anonymous || !me.Payment.PreAuth || me.Payment.Currency != "EUR" {
		t.Fatalf("unexpected payload %+v", me)
	}
	if me.ProfileURL != "/user/"+strconv.FormatInt(user.ID, 10)+"/" || !strings.Contains(me.ProfileLink, me.ProfileURL) {
		t.Fatalf("unexpected profile fields %+v", me)
	}
	if me.EmailLink == "" || strings.Contains(me.EmailLink, user.Email) {
		t.Fatalf("email link not obfuscated: %q", me.EmailLink)
	}
}

func TestAddonDetailListsAuthors(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)

	resp := h.do(t, http.MethodGet, api.Prefix+"/developers/addon/"+a.Slug, h.token(t, owner), nil)
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.status, resp.body)
	}
	var detail api.AddonDetail
	resp.decode(t, &detail)
	if detail.ID != a.ID || detail.Slug != a.Slug {
		t.Fatalf("unexpected addon %+v", detail.Addon)
	}
	want := `<a href="/user/` + strconv.FormatInt(owner.ID, 10) + `/">` + owner.Name() + `</a>`
	if detail.Authors != want {
		t.Fatalf("authors = %q, want %q", detail.Authors, want)
	}
}

func TestEditRouteResumesPendingSubmission(t *testing.T) {
	h := newHarness(t, nil)
	owner := testsupport.SeedUser(t, h.store, false)
	a := testsupport.SeedAddon(t, h.store, owner)
	token := h.token(t, owner)

	resp := h.do(t, http.MethodGet, api.Prefix+a.DevPath()+"/edit", token, nil)
	var detail api.AddonDetail
	resp.decode(t, &detail)
	if resp.status != http.StatusOK || detail.ID != a.ID {
		t.Fatalf("edit status %d: %s", resp.status, resp.body)
	}

	if err := h.store.SetSubmitStep(context.Background(), a.ID, devhub.StepMedia); err != nil {
		t.Fatalf("SetSubmitStep: %v", err)
	}
	for _, path := range []string{a.DevPath() + "/edit", a.DevPath()} {
		resp := h.do(t, http.MethodGet, api.Prefix+path, token, nil)
		var redirect api.RedirectResponse
		resp.decode(t, &redirect)
		if resp.status != http.StatusOK || redirect.Redirect != "/developers/submit/4/"+a.Slug {
			t.Fatalf("GET %s: %d %s", path, resp.status, resp.body)
		}
	}
}
