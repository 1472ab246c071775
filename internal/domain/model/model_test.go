//go:build !integration

package model

import (
	"net/url"
	"testing"
)

func TestPaymentStatus_IsFinal(t *testing.T) {
	cases := map[PaymentStatus]bool{
		PaymentStatusPending:   false,
		PaymentStatusSucceeded: true,
		PaymentStatusFailed:    true,
		PaymentStatusCancelled: true,
	}
	for s, want := range cases {
		if got := s.IsFinal(); got != want {
			t.Errorf("%s.IsFinal() = %v, want %v", s, got, want)
		}
	}
}

func TestGatewayResponse_ResponseCode(t *testing.T) {
	cases := []struct {
		name string
		resp GatewayResponse
		want string
	}{
		{"json number", GatewayResponse{"ResponseCode": float64(0)}, "0"},
		{"string", GatewayResponse{"ResponseCode": "3"}, "3"},
		{"missing", GatewayResponse{}, ""},
		{"null", GatewayResponse{"ResponseCode": nil}, ""},
		{"nil map", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.resp.ResponseCode(); got != tc.want {
				t.Errorf("ResponseCode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCallback_AsPayload(t *testing.T) {
	typed := &Callback{Payload: &CallbackPayload{RefID: "R1"}, Params: url.Values{"RefId": {"ignored"}}}
	if got := typed.AsPayload().RefID; got != "R1" {
		t.Errorf("typed payload should win, got %q", got)
	}

	raw := &Callback{Params: url.Values{
		"ResponseCode":  {"0"},
		"TransactionId": {"TX"},
		"RefId":         {"R2"},
		"TokenId":       {"T"},
		"Extra":         {"x"},
	}}
	p := raw.AsPayload()
	if p.ResponseCode != "0" || p.TransactionID != "TX" || p.RefID != "R2" || p.TokenID != "T" {
		t.Errorf("unexpected payload %+v", p)
	}
}
