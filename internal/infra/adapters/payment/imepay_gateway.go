// File: internal/infra/adapters/payment/imepay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*ImePayGateway)(nil)

const (
	EnvLive    = "live"
	EnvSandbox = "sandbox"

	sandboxAPIURL      = "https://stg.imepay.com.np:7979/api/"
	sandboxCheckoutURL = "https://stg.imepay.com.np:7979/WebCheckout/Checkout"

	callbackFields = 7
)

// ClientConfig holds the IMEPay credentials and routing. The first eight fields
// are required; LiveAPIURL and LiveCheckoutURL are required only for live.
type ClientConfig struct {
	APIUser        string
	APIPassword    string
	Module         string
	MerchantCode   string
	Environment    string // live | sandbox, case-insensitive
	CallbackMethod string // GET | POST
	CallbackURL    string
	CancelURL      string

	LiveAPIURL      string
	LiveCheckoutURL string

	HTTPClient *http.Client // optional; defaults to a client with a 15s timeout
}

// ImePayGateway talks to the IMEPay REST API. It holds no mutable state and
// is safe for concurrent use.
type ImePayGateway struct {
	cfg         ClientConfig
	baseURL     string
	checkoutURL string
	authHeader  string
	module      string
	client      *http.Client
}

// NewImePayGateway validates cfg and derives the endpoints for its environment.
func NewImePayGateway(cfg ClientConfig) (*ImePayGateway, error) {
	required := []struct {
		name  string
		value string
	}{
		{"apiUser", cfg.APIUser},
		{"apiPassword", cfg.APIPassword},
		{"module", cfg.Module},
		{"merchantCode", cfg.MerchantCode},
		{"environment", cfg.Environment},
		{"callbackUrl", cfg.CallbackURL},
		{"cancelUrl", cfg.CancelURL},
		{"callbackMethod", cfg.CallbackMethod},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, &domain.ConfigError{Kind: domain.ConfigMissingField, Field: f.name}
		}
	}

	g := &ImePayGateway{
		cfg:        cfg,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.APIUser+":"+cfg.APIPassword)),
		module:     base64.StdEncoding.EncodeToString([]byte(cfg.Module)),
		client:     cfg.HTTPClient,
	}

	switch strings.ToLower(cfg.Environment) {
	case EnvLive:
		// IMEPay publishes no fixed production host; the merchant must supply both.
		if cfg.LiveAPIURL == "" {
			return nil, &domain.ConfigError{Kind: domain.ConfigMissingField, Field: "liveApiUrl"}
		}
		if cfg.LiveCheckoutURL == "" {
			return nil, &domain.ConfigError{Kind: domain.ConfigMissingField, Field: "liveCheckoutUrl"}
		}
		g.baseURL = withTrailingSlash(cfg.LiveAPIURL)
		g.checkoutURL = cfg.LiveCheckoutURL
	case EnvSandbox:
		g.baseURL = sandboxAPIURL
		g.checkoutURL = sandboxCheckoutURL
	default:
		return nil, &domain.ConfigError{Kind: domain.ConfigInvalidEnvironment, Field: "environment", Value: cfg.Environment}
	}

	if g.client == nil {
		g.client = &http.Client{Timeout: 15 * time.Second}
	}
	return g, nil
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func (g *ImePayGateway) Name() string { return "imepay" }

// Sandbox reports whether the gateway targets the staging environment.
func (g *ImePayGateway) Sandbox() bool { return strings.EqualFold(g.cfg.Environment, EnvSandbox) }

func (g *ImePayGateway) endpoint(path string) string {
	return g.baseURL + path
}

// GenerateToken calls Web/GetToken and returns the TokenId from the body.
func (g *ImePayGateway) GenerateToken(ctx context.Context, amount decimal.Decimal, refID string) (string, error) {
	if !amount.IsPositive() || strings.TrimSpace(refID) == "" {
		return "", domain.ErrInvalidArgument
	}
	payload := map[string]any{
		"MerchantCode": g.cfg.MerchantCode,
		"Amount":       json.Number(amount.String()),
		"RefId":        refID,
	}
	status, body, err := g.post(ctx, "token", "Web/GetToken", payload)
	if err != nil {
		return "", err
	}

	var out struct {
		TokenID any `json:"TokenId"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &out) != nil || out.TokenID == nil {
		return "", &domain.GatewayError{Op: "token", StatusCode: status, Msg: "token generation failed, check credentials"}
	}
	token := fmt.Sprint(out.TokenID)
	if s, ok := out.TokenID.(string); ok {
		token = s
	}
	if token == "" {
		return "", &domain.GatewayError{Op: "token", StatusCode: status, Msg: "token generation failed, check credentials"}
	}
	return token, nil
}

// GenerateCheckoutURL encodes
// token|merchantCode|refId|amount|callbackMethod|callbackUrl|cancelUrl
// as base64 into the data parameter of the checkout URL.
func (g *ImePayGateway) GenerateCheckoutURL(token, refID string, amount decimal.Decimal) string {
	payload := strings.Join([]string{
		token,
		g.cfg.MerchantCode,
		refID,
		amount.String(),
		g.cfg.CallbackMethod,
		g.cfg.CallbackURL,
		g.cfg.CancelURL,
	}, "|")
	return g.checkoutURL + "?data=" + base64.StdEncoding.EncodeToString([]byte(payload))
}

// DecodeCallback decodes a GET callback's data parameter, or returns every
// request parameter unchanged for any other callback method. Only the exact
// value "GET" selects the data parameter.
func (g *ImePayGateway) DecodeCallback(r *http.Request) (*model.Callback, error) {
	if g.cfg.CallbackMethod == http.MethodGet {
		p, err := DecodeCallbackData(r.URL.Query().Get("data"))
		if err != nil {
			return nil, err
		}
		return &model.Callback{Method: http.MethodGet, Payload: p}, nil
	}

	params, err := requestParams(r)
	if err != nil {
		return nil, &domain.CallbackDecodeError{Reason: "unreadable request parameters", Err: err}
	}
	return &model.Callback{Method: r.Method, Params: params}, nil
}

// DecodeCallbackData decodes the base64 pipe-delimited callback payload:
// ResponseCode|ResponseDescription|Msisdn|TransactionId|RefId|TranAmount|TokenId.
func DecodeCallbackData(data string) (*model.CallbackPayload, error) {
	if data == "" {
		return nil, &domain.CallbackDecodeError{Reason: "missing data parameter"}
	}
	raw, err := decodeBase64(data)
	if err != nil {
		return nil, &domain.CallbackDecodeError{Reason: "data is not valid base64", Err: err}
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) < callbackFields {
		return nil, &domain.CallbackDecodeError{
			Reason: fmt.Sprintf("expected %d fields, got %d", callbackFields, len(parts)),
			Parts:  len(parts),
		}
	}
	return &model.CallbackPayload{
		ResponseCode:        parts[0],
		ResponseDescription: parts[1],
		Msisdn:              parts[2],
		TransactionID:       parts[3],
		RefID:               parts[4],
		TranAmount:          parts[5],
		TokenID:             parts[6],
	}, nil
}

// decodeBase64 accepts padded or unpadded input. Query decoding turns '+'
// into ' ', so spaces are restored first.
func decodeBase64(s string) ([]byte, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "+")
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// requestParams merges query and body parameters. JSON object bodies keep
// numbers in their literal form; nested values are re-encoded as JSON.
func requestParams(r *http.Request) (url.Values, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") && r.Body != nil {
		values := url.Values{}
		for k, vs := range r.URL.Query() {
			values[k] = append(values[k], vs...)
		}
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil && err != io.EOF {
			return nil, err
		}
		for k, v := range body {
			s, err := paramString(v)
			if err != nil {
				return nil, err
			}
			values.Set(k, s)
		}
		return values, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.Form, nil
}

func paramString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		b, err := json.Marshal(t)
		return string(b), err
	}
}

// ConfirmPayment calls Web/Confirm and returns the provider body verbatim.
func (g *ImePayGateway) ConfirmPayment(ctx context.Context, refID, tokenID, transactionID, msisdn string) (model.GatewayResponse, error) {
	payload := map[string]any{
		"MerchantCode":  g.cfg.MerchantCode,
		"RefId":         refID,
		"TokenId":       tokenID,
		"TransactionId": transactionID,
		"Msisdn":        msisdn,
	}
	return g.postJSON(ctx, "confirm", "Web/Confirm", payload)
}

// RecheckPayment calls Web/Recheck and returns the provider body verbatim.
func (g *ImePayGateway) RecheckPayment(ctx context.Context, refID, tokenID string) (model.GatewayResponse, error) {
	payload := map[string]any{
		"MerchantCode": g.cfg.MerchantCode,
		"RefId":        refID,
		"TokenId":      tokenID,
	}
	return g.postJSON(ctx, "recheck", "Web/Recheck", payload)
}

func (g *ImePayGateway) postJSON(ctx context.Context, op, path string, payload map[string]any) (model.GatewayResponse, error) {
	status, body, err := g.post(ctx, op, path, payload)
	if err != nil {
		return nil, err
	}
	var out model.GatewayResponse
	if err := json.Unmarshal(body, &out); err != nil || out == nil {
		return nil, &domain.GatewayError{Op: op, StatusCode: status, Msg: "response is not a JSON object"}
	}
	return out, nil
}

// post sends an authenticated JSON POST and returns the status and raw body.
func (g *ImePayGateway) post(ctx context.Context, op, path string, payload map[string]any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("imepay %s: marshal request: %w", op, err)
	}
	target := g.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		return 0, nil, fmt.Errorf("imepay %s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", g.authHeader)
	req.Header.Set("Module", g.module)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &domain.TransportError{Op: op, URL: target, Err: err}
	}
	return resp.StatusCode, body, nil
}
