package paypal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/services"
)

// RefundAlreadyIssued is the refund status PayPal reports for a payment that
// was refunded before.
const RefundAlreadyIssued = "ALREADY_REVERSED_OR_REFUNDED"

// Permission scopes required for marketplace refunds.
const (
	ScopeRefund            = "REFUND"
	ScopeAccountBalance    = "ACCOUNT_BALANCE"
	ScopeTransactionDetail = "TRANSACTION_DETAILS"
)

// Error is a failure reported by PayPal itself.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return "paypal: " + e.Message
	}
	return fmt.Sprintf("paypal %s: %s", e.Code, e.Message)
}

// Unwrap tags gateway errors as external failures.
func (e *Error) Unwrap() error { return services.ErrExternal }

// PaykeyRequest describes a payment to prepare.
type PaykeyRequest struct {
	AmountCents int64
	Currency    string
	Email       string
	Memo        string
	UUID        string
	Preapproval string
}

// RefundResult is one receiver's refund outcome.
type RefundResult struct {
	Receiver string
	Status   string
	Amount   string
}

// Client is the subset of PayPal the developer hub relies on.
type Client interface {
	CheckPayPalID(ctx context.Context, id string) (bool, string, error)
	GetPaykey(ctx context.Context, req PaykeyRequest) (string, error)
	Refund(ctx context.Context, paykey string) ([]RefundResult, error)
	GetPermissionsToken(ctx context.Context, requestToken, verificationCode string) (string, error)
	GetPersonalData(ctx context.Context, token string) (map[string]string, error)
	CheckPermission(ctx context.Context, token string, scopes []string) (bool, error)
}

// ObserveFunc receives the outcome of every gateway call.
type ObserveFunc func(operation string, elapsed time.Duration, err error)

// HTTPClient speaks the PayPal NVP protocol over HTTP.
type HTTPClient struct {
	endpoint   string
	username   string
	password   string
	signature  string
	appID      string
	httpClient *http.Client
	observe    ObserveFunc
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithObserver reports call latency and errors, typically to metrics.
func WithObserver(fn ObserveFunc) Option {
	return func(c *HTTPClient) { c.observe = fn }
}

// New builds a client from the [paypal] config section.
func New(cfg *config.Config, opts ...Option) (*HTTPClient, error) {
	if cfg == nil {
		return nil, errors.New("paypal: config required")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.PayPal.Endpoint), "/")
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "paypal", "new", "paypal.endpoint is required", nil)
	}
	client := &HTTPClient{
		endpoint:   endpoint,
		username:   cfg.PayPal.Username,
		password:   cfg.PayPal.Password,
		signature:  cfg.PayPal.Signature,
		appID:      cfg.PayPal.AppID,
		httpClient: &http.Client{Timeout: cfg.PayPalTimeout()},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CheckPayPalID verifies that id is a PayPal account able to receive money.
// An invalid account is not an error: valid is false and message explains why.
func (c *HTTPClient) CheckPayPalID(ctx context.Context, id string) (bool, string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, "PayPal ID required.", nil
	}
	params := url.Values{}
	params.Set("emailAddress", id)
	params.Set("matchCriteria", "NONE")
	resp, err := c.call(ctx, "check_paypal_id", "/AdaptiveAccounts/GetVerifiedStatus", params)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return false, perr.Message, nil
		}
		return false, "", err
	}
	if status := resp.Get("accountStatus"); status == "" {
		return false, "No PayPal account found for " + id + ".", nil
	}
	return true, "", nil
}

// GetPaykey prepares a payment and returns its pay key.
func (c *HTTPClient) GetPaykey(ctx context.Context, req PaykeyRequest) (string, error) {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	params := url.Values{}
	params.Set("actionType", "PAY")
	params.Set("currencyCode", currency)
	params.Set("receiverList.receiver(0).email", req.Email)
	params.Set("receiverList.receiver(0).amount", FormatAmount(req.AmountCents))
	params.Set("feesPayer", "EACHRECEIVER")
	if req.UUID != "" {
		params.Set("trackingId", req.UUID)
	}
	if req.Memo != "" {
		params.Set("memo", req.Memo)
	}
	if req.Preapproval != "" {
		params.Set("preapprovalKey", req.Preapproval)
	}
	resp, err := c.call(ctx, "get_paykey", "/AdaptivePayments/Pay", params)
	if err != nil {
		return "", err
	}
	key := resp.Get("payKey")
	if key == "" {
		return "", &Error{Message: "response did not include a pay key"}
	}
	return key, nil
}

// Refund reverses the payment identified by paykey.
func (c *HTTPClient) Refund(ctx context.Context, paykey string) ([]RefundResult, error) {
	if strings.TrimSpace(paykey) == "" {
		return nil, services.Wrap(services.ErrValidation, "paypal", "refund", "pay key required", nil)
	}
	params := url.Values{}
	params.Set("payKey", paykey)
	resp, err := c.call(ctx, "refund", "/AdaptivePayments/Refund", params)
	if err != nil {
		return nil, err
	}
	var results []RefundResult
	for i := 0; ; i++ {
		prefix := "refundInfoList.refundInfo(" + strconv.Itoa(i) + ")."
		status := resp.Get(prefix + "refundStatus")
		if status == "" {
			break
		}
		results = append(results, RefundResult{
			Receiver: resp.Get(prefix + "receiver.email"),
			Status:   status,
			Amount:   resp.Get(prefix + "refundGrossAmount"),
		})
	}
	return results, nil
}

// GetPermissionsToken exchanges the request token and verifier returned by
// the PayPal permissions flow for an access token.
func (c *HTTPClient) GetPermissionsToken(ctx context.Context, requestToken, verificationCode string) (string, error) {
	params := url.Values{}
	params.Set("token", requestToken)
	params.Set("verifier", verificationCode)
	resp, err := c.call(ctx, "get_permissions_token", "/Permissions/GetAccessToken", params)
	if err != nil {
		return "", err
	}
	token := resp.Get("token")
	if token == "" {
		return "", &Error{Message: "response did not include a token"}
	}
	return token, nil
}

// GetPersonalData returns the basic account data visible with token.
func (c *HTTPClient) GetPersonalData(ctx context.Context, token string) (map[string]string, error) {
	params := url.Values{}
	params.Set("token", token)
	for i, attr := range []string{
		"http://axschema.org/contact/email",
		"http://schema.openid.net/contact/fullname",
		"https://www.paypal.com/webapps/auth/schema/payerID",
	} {
		params.Set("attributeList.attribute("+strconv.Itoa(i)+")", attr)
	}
	resp, err := c.call(ctx, "get_personal_data", "/Permissions/GetBasicPersonalData", params)
	if err != nil {
		return nil, err
	}
	data := make(map[string]string)
	for i := 0; ; i++ {
		prefix := "response.personalData(" + strconv.Itoa(i) + ")."
		key := resp.Get(prefix + "personalDataKey")
		if key == "" {
			break
		}
		data[shortKey(key)] = resp.Get(prefix + "personalDataValue")
	}
	return data, nil
}

// CheckPermission reports whether token grants every scope.
func (c *HTTPClient) CheckPermission(ctx context.Context, token string, scopes []string) (bool, error) {
	params := url.Values{}
	params.Set("token", token)
	resp, err := c.call(ctx, "check_permission", "/Permissions/GetPermissions", params)
	if err != nil {
		return false, err
	}
	granted := make(map[string]bool)
	for i := 0; ; i++ {
		scope := resp.Get("scope(" + strconv.Itoa(i) + ")")
		if scope == "" {
			break
		}
		granted[scope] = true
	}
	for _, scope := range scopes {
		if !granted[scope] {
			return false, nil
		}
	}
	return true, nil
}

func (c *HTTPClient) call(ctx context.Context, operation, path string, params url.Values) (url.Values, error) {
	start := time.Now()
	resp, err := c.do(ctx, operation, path, params)
	if c.observe != nil {
		c.observe(operation, time.Since(start), err)
	}
	return resp, err
}

func (c *HTTPClient) do(ctx context.Context, operation, path string, params url.Values) (url.Values, error) {
	params.Set("requestEnvelope.errorLanguage", "en_US")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build paypal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-PAYPAL-REQUEST-DATA-FORMAT", "NV")
	req.Header.Set("X-PAYPAL-RESPONSE-DATA-FORMAT", "NV")
	req.Header.Set("X-PAYPAL-SECURITY-USERID", c.username)
	req.Header.Set("X-PAYPAL-SECURITY-PASSWORD", c.password)
	req.Header.Set("X-PAYPAL-SECURITY-SIGNATURE", c.signature)
	req.Header.Set("X-PAYPAL-APPLICATION-ID", c.appID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, services.Wrap(services.ErrTimeout, "paypal", operation, "request timed out", err)
		}
		return nil, services.Wrap(services.ErrExternal, "paypal", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return nil, services.Wrap(services.ErrTimeout, "paypal", operation, "reading response timed out", err)
		}
		return nil, fmt.Errorf("read paypal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Code: strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(body))}
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode paypal response: %w", err)
	}
	if ack := values.Get("responseEnvelope.ack"); !strings.HasPrefix(ack, "Success") {
		return nil, &Error{Code: values.Get("error(0).errorId"), Message: values.Get("error(0).message")}
	}
	return values, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func shortKey(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// FormatAmount renders cents as a decimal amount, 199 as "1.99".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
