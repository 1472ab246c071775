package adapter

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain/model"
)

// PaymentGateway is the hex port for the IMEPay wallet gateway.
type PaymentGateway interface {
	Name() string

	// GenerateToken obtains a checkout token for amount and the merchant refID.
	GenerateToken(ctx context.Context, amount decimal.Decimal, refID string) (string, error)
	// GenerateCheckoutURL builds the hosted checkout URL the user is redirected to. No network call.
	GenerateCheckoutURL(token, refID string, amount decimal.Decimal) string
	// DecodeCallback decodes the provider callback according to the configured callback method.
	DecodeCallback(r *http.Request) (*model.Callback, error)

	// ConfirmPayment and RecheckPayment return the provider body as-is; interpreting
	// its ResponseCode is up to the caller.
	ConfirmPayment(ctx context.Context, refID, tokenID, transactionID, msisdn string) (model.GatewayResponse, error)
	RecheckPayment(ctx context.Context, refID, tokenID string) (model.GatewayResponse, error)
}
