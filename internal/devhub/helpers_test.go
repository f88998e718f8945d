package devhub_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/devhub"
	"marketplace/internal/paypal"
	"marketplace/internal/queue"
	"marketplace/internal/secrets"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/testsupport"
)

type fakePayPal struct {
	mu         sync.Mutex
	invalid    bool
	message    string
	checkErr   error
	paykeyErr  error
	refundResp []paypal.RefundResult
	refundErr  error
	permission bool
	paykeys    []paypal.PaykeyRequest
	refunded   []string
	checked    []string
}

func (f *fakePayPal) CheckPayPalID(_ context.Context, id string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, id)
	if f.checkErr != nil {
		return false, "", f.checkErr
	}
	return !f.invalid, f.message, nil
}

func (f *fakePayPal) GetPaykey(_ context.Context, req paypal.PaykeyRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paykeys = append(f.paykeys, req)
	if f.paykeyErr != nil {
		return "", f.paykeyErr
	}
	return "PAYKEY-1", nil
}

func (f *fakePayPal) Refund(_ context.Context, paykey string) ([]paypal.RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunded = append(f.refunded, paykey)
	return f.refundResp, f.refundErr
}

func (f *fakePayPal) GetPermissionsToken(_ context.Context, requestToken, _ string) (string, error) {
	return strings.ToUpper(requestToken), nil
}

func (f *fakePayPal) GetPersonalData(context.Context, string) (map[string]string, error) {
	return map[string]string{"email": "dev@example.com"}, nil
}

func (f *fakePayPal) CheckPermission(context.Context, string, []string) (bool, error) {
	return f.permission, nil
}

func (f *fakePayPal) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalid, f.message = false, ""
	f.checkErr, f.paykeyErr, f.refundErr = nil, nil, nil
	f.refundResp = nil
	f.permission = true
	f.paykeys, f.refunded, f.checked = nil, nil, nil
}

type harness struct {
	cfg    *config.Config
	store  *store.Store
	queue  *queue.Store
	paypal *fakePayPal
	svc    *devhub.Service
}

func newHarness(t *testing.T, cfgOpts []testsupport.ConfigOption, opts ...devhub.Option) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, cfgOpts...)
	st := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustOpenQueue(t, cfg)
	pp := &fakePayPal{permission: true}
	sealer, err := secrets.NewSealer(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	base := []devhub.Option{
		devhub.WithPayPal(pp),
		devhub.WithMailQueue(q),
		devhub.WithSealer(sealer),
	}
	svc := devhub.NewService(cfg, st, append(base, opts...)...)
	return &harness{cfg: cfg, store: st, queue: q, paypal: pp, svc: svc}
}

func (h *harness) reload(t *testing.T, a *store.Addon) *store.Addon {
	t.Helper()
	got, err := h.store.GetAddon(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAddon: %v", err)
	}
	return got
}

func (h *harness) mails(t *testing.T) []struct{ Subject string } {
	t.Helper()
	tasks, err := h.queue.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var out []struct{ Subject string }
	for _, task := range tasks {
		if task.Kind != queue.KindSendMail {
			continue
		}
		var msg struct{ Subject string }
		if err := task.Decode(&msg); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func zipPackage(t *testing.T, manifest map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("manifest.json")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if err := json.NewEncoder(w).Encode(manifest); err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func formErrors(t *testing.T, err error) devhub.FormErrors {
	t.Helper()
	fe, ok := devhub.AsFormErrors(err)
	if !ok {
		t.Fatalf("expected form errors, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("form errors should classify as validation: %v", err)
	}
	return fe
}

func expectField(t *testing.T, err error, field, want string) {
	t.Helper()
	fe := formErrors(t, err)
	for _, msg := range fe[field] {
		if strings.Contains(msg, want) {
			return
		}
	}
	t.Fatalf("expected %q on %s, got %v", want, field, fe)
}

func zipWithout(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("readme.txt")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	_, _ = w.Write([]byte("no manifest here"))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// animatedPNG builds the chunk prefix of an APNG. Only the chunk layout
// matters to the icon checks, so CRCs are zero.
func animatedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		buf.WriteString(kind)
		buf.Write(data)
		buf.Write(make([]byte, 4))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], 2)
	binary.BigEndian.PutUint32(ihdr[4:8], 2)
	ihdr[8], ihdr[9] = 8, 6
	chunk("IHDR", ihdr)
	chunk("acTL", make([]byte, 8))
	chunk("IEND", nil)
	return buf.Bytes()
}
