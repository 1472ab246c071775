package model

import (
	"fmt"
	"net/url"
)

// Provider response codes shared by callbacks, Web/Confirm and Web/Recheck.
const (
	ResponseCodeSuccess   = "0"
	ResponseCodeCancelled = "3"
)

// CallbackPayload is the typed form of an IMEPay callback.
type CallbackPayload struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	Msisdn              string `json:"Msisdn"`
	TransactionID       string `json:"TransactionId"`
	RefID               string `json:"RefId"`
	TranAmount          string `json:"TranAmount"`
	TokenID             string `json:"TokenId"`
}

// Callback is what the client decodes from an inbound callback request.
// GET callbacks carry Payload; any other method carries the raw Params.
type Callback struct {
	Method  string
	Payload *CallbackPayload
	Params  url.Values
}

// AsPayload returns the typed payload, mapping raw params by the provider's
// field names when the callback was not pipe-encoded.
func (c *Callback) AsPayload() CallbackPayload {
	if c.Payload != nil {
		return *c.Payload
	}
	return CallbackPayload{
		ResponseCode:        c.Params.Get("ResponseCode"),
		ResponseDescription: c.Params.Get("ResponseDescription"),
		Msisdn:              c.Params.Get("Msisdn"),
		TransactionID:       c.Params.Get("TransactionId"),
		RefID:               c.Params.Get("RefId"),
		TranAmount:          c.Params.Get("TranAmount"),
		TokenID:             c.Params.Get("TokenId"),
	}
}

// GatewayResponse is a decoded provider JSON body, passed through untouched.
type GatewayResponse map[string]any

// ResponseCode reads the provider ResponseCode whatever its JSON type.
func (r GatewayResponse) ResponseCode() string {
	return r.str("ResponseCode")
}

func (r GatewayResponse) ResponseDescription() string {
	return r.str("ResponseDescription")
}

func (r GatewayResponse) str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	// JSON numbers decode as float64; %v renders 0 as "0", not "0.000000".
	return fmt.Sprint(v)
}
