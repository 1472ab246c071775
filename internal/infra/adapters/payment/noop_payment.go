package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway to use in tests and dev mode.
// Every issued token confirms successfully.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	tokens map[string]noopIntent // token -> intent

	MerchantCode string
	CallbackURL  string
	CancelURL    string
}

type noopIntent struct {
	refID  string
	amount decimal.Decimal
}

func NewNoopPaymentGateway(callbackURL, cancelURL string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		tokens:       make(map[string]noopIntent),
		MerchantCode: "NOOP",
		CallbackURL:  callbackURL,
		CancelURL:    cancelURL,
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopPaymentGateway) GenerateToken(ctx context.Context, amount decimal.Decimal, refID string) (string, error) {
	if !amount.IsPositive() || refID == "" {
		return "", domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	token := g.next()
	g.tokens[token] = noopIntent{refID: refID, amount: amount}
	return token, nil
}

func (g *NoopPaymentGateway) GenerateCheckoutURL(token, refID string, amount decimal.Decimal) string {
	payload := strings.Join([]string{token, g.MerchantCode, refID, amount.String(), http.MethodGet, g.CallbackURL, g.CancelURL}, "|")
	return "https://example.test/WebCheckout/Checkout?data=" + base64.StdEncoding.EncodeToString([]byte(payload))
}

// CallbackData renders the data parameter the provider would send back for token.
func (g *NoopPaymentGateway) CallbackData(token, responseCode string) string {
	g.mu.Lock()
	in := g.tokens[token]
	g.mu.Unlock()
	payload := strings.Join([]string{responseCode, "noop", "9800000000", "txn-" + token, in.refID, in.amount.String(), token}, "|")
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

func (g *NoopPaymentGateway) DecodeCallback(r *http.Request) (*model.Callback, error) {
	p, err := DecodeCallbackData(r.URL.Query().Get("data"))
	if err != nil {
		return nil, err
	}
	return &model.Callback{Method: http.MethodGet, Payload: p}, nil
}

func (g *NoopPaymentGateway) ConfirmPayment(ctx context.Context, refID, tokenID, transactionID, msisdn string) (model.GatewayResponse, error) {
	return g.lookup(refID, tokenID, transactionID, msisdn)
}

func (g *NoopPaymentGateway) RecheckPayment(ctx context.Context, refID, tokenID string) (model.GatewayResponse, error) {
	return g.lookup(refID, tokenID, "txn-"+tokenID, "9800000000")
}

func (g *NoopPaymentGateway) lookup(refID, tokenID, transactionID, msisdn string) (model.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.tokens[tokenID]
	if !ok || in.refID != refID {
		return model.GatewayResponse{"ResponseCode": float64(1), "ResponseDescription": "noop: token not found"}, nil
	}
	return model.GatewayResponse{
		"ResponseCode":        float64(0),
		"ResponseDescription": "Success",
		"RefId":               refID,
		"TokenId":             tokenID,
		"TransactionId":       transactionID,
		"Msisdn":              msisdn,
	}, nil
}
