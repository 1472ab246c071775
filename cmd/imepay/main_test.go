//go:build !integration

package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func setIMEPayEnv(t *testing.T, apiURL string) {
	t.Helper()
	env := map[string]string{
		"IMEPAY_API_USER":        "user",
		"IMEPAY_API_PASSWORD":    "pass",
		"IMEPAY_MODULE":          "MOD",
		"IMEPAY_MERCHANT_CODE":   "MC1",
		"IMEPAY_ENV":             "sandbox",
		"IMEPAY_CALLBACK_METHOD": "GET",
		"IMEPAY_CALLBACK_URL":    "https://x/cb",
		"IMEPAY_CANCEL_URL":      "https://x/cancel",
	}
	if apiURL != "" {
		env["IMEPAY_ENV"] = "live"
		env["IMEPAY_LIVE_API_URL"] = apiURL
		env["IMEPAY_LIVE_CHECKOUT_URL"] = apiURL + "/checkout"
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.yaml")
}

func TestRun_Decode(t *testing.T) {
	var out, errOut bytes.Buffer
	data := base64.StdEncoding.EncodeToString([]byte("0|Success|98|TX|REF1|100|TOK"))
	if code := run([]string{"decode", "-data", data}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	var got map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["RefId"] != "REF1" || got["TokenId"] != "TOK" {
		t.Errorf("unexpected output %v", got)
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"decode", "-data", "!!"}, &out, &errOut); code != 1 {
		t.Fatalf("want exit 1, got %d", code)
	}
}

func TestRun_CheckoutURL(t *testing.T) {
	setIMEPayEnv(t, "")
	var out, errOut bytes.Buffer
	code := run([]string{"-config", missingConfig(t), "checkout-url", "-token", "TOK123", "-ref", "REF1", "-amount", "100"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	var got map[string]string
	_ = json.Unmarshal(out.Bytes(), &got)
	want := base64.StdEncoding.EncodeToString([]byte("TOK123|MC1|REF1|100|GET|https://x/cb|https://x/cancel"))
	if !strings.HasSuffix(got["checkout_url"], "?data="+want) {
		t.Errorf("unexpected url %s", got["checkout_url"])
	}
}

func TestRun_Token(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"TokenId":"abc"}`))
	}))
	defer srv.Close()
	setIMEPayEnv(t, srv.URL)

	var out, errOut bytes.Buffer
	code := run([]string{"-config", missingConfig(t), "token", "-amount", "10", "-ref", "R1"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	var got map[string]string
	_ = json.Unmarshal(out.Bytes(), &got)
	if got["token_id"] != "abc" || !strings.HasPrefix(got["checkout_url"], srv.URL+"/checkout?data=") {
		t.Errorf("unexpected output %v", got)
	}
}

func TestRun_MissingConfigField(t *testing.T) {
	setIMEPayEnv(t, "")
	t.Setenv("IMEPAY_MERCHANT_CODE", "")
	var out, errOut bytes.Buffer
	code := run([]string{"-config", missingConfig(t), "recheck", "-ref", "R", "-token", "T"}, &out, &errOut)
	if code != 1 || !strings.Contains(errOut.String(), "merchantCode") {
		t.Fatalf("want exit 1 naming merchantCode, got %d: %s", code, errOut.String())
	}
}

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	for _, args := range [][]string{{}, {"nope"}, {"token", "-amount", "1"}} {
		errOut.Reset()
		if code := run(args, &out, &errOut); code != 2 {
			t.Errorf("%v: want exit 2, got %d", args, code)
		}
	}
}

func TestRun_ConfigTemplate(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"config-template"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(out.String(), "merchant_code") {
		t.Errorf("template missing keys: %s", out.String())
	}
}
