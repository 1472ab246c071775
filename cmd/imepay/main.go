// Command imepay drives the IMEPay API from the shell using the same
// configuration as the service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"imepay-gateway/internal/config"
	"imepay-gateway/internal/infra/adapters/payment"
	"imepay-gateway/internal/infra/logging"
)

const usage = `usage: imepay [-config path] <command> [flags]

commands:
  token            -amount <npr> -ref <refId>
  checkout-url     -token <tokenId> -ref <refId> -amount <npr>
  confirm          -ref <refId> -token <tokenId> -txn <transactionId> -msisdn <msisdn>
  recheck          -ref <refId> -token <tokenId>
  decode           -data <base64>
  config-template
`

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("imepay", flag.ContinueOnError)
	global.SetOutput(stderr)
	cfgPath := global.String("config", "config.yaml", "path to YAML config file")
	timeout := global.Duration("timeout", 30*time.Second, "overall deadline for API calls")
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := dispatch(ctx, *cfgPath, rest[0], rest[1:], stdout, stderr)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	case err != nil:
		fmt.Fprintf(stderr, "imepay %s: %v\n", rest[0], err)
		return 1
	}
	if out != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "imepay: write output: %v\n", err)
			return 1
		}
	}
	return 0
}

func dispatch(ctx context.Context, cfgPath, cmd string, args []string, stdout, stderr io.Writer) (any, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd {
	case "config-template":
		_, err := io.WriteString(stdout, config.Template())
		return nil, err

	case "decode":
		data := fs.String("data", "", "base64 data parameter of a GET callback")
		if err := fs.Parse(args); err != nil {
			return nil, errUsage
		}
		return payment.DecodeCallbackData(*data)

	case "token":
		amount := fs.String("amount", "", "amount in NPR")
		ref := fs.String("ref", "", "merchant reference id")
		if err := fs.Parse(args); err != nil || *amount == "" || *ref == "" {
			return nil, errUsage
		}
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		gw, err := gateway(cfgPath, stderr)
		if err != nil {
			return nil, err
		}
		token, err := gw.GenerateToken(ctx, d, *ref)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"token_id":     token,
			"ref_id":       *ref,
			"amount":       d.String(),
			"checkout_url": gw.GenerateCheckoutURL(token, *ref, d),
		}, nil

	case "checkout-url":
		token := fs.String("token", "", "token id from the token command")
		ref := fs.String("ref", "", "merchant reference id")
		amount := fs.String("amount", "", "amount in NPR")
		if err := fs.Parse(args); err != nil || *token == "" || *ref == "" || *amount == "" {
			return nil, errUsage
		}
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		gw, err := gateway(cfgPath, stderr)
		if err != nil {
			return nil, err
		}
		return map[string]string{"checkout_url": gw.GenerateCheckoutURL(*token, *ref, d)}, nil

	case "confirm":
		ref := fs.String("ref", "", "merchant reference id")
		token := fs.String("token", "", "token id")
		txn := fs.String("txn", "", "transaction id from the callback")
		msisdn := fs.String("msisdn", "", "payer msisdn from the callback")
		if err := fs.Parse(args); err != nil || *ref == "" || *token == "" {
			return nil, errUsage
		}
		gw, err := gateway(cfgPath, stderr)
		if err != nil {
			return nil, err
		}
		return gw.ConfirmPayment(ctx, *ref, *token, *txn, *msisdn)

	case "recheck":
		ref := fs.String("ref", "", "merchant reference id")
		token := fs.String("token", "", "token id")
		if err := fs.Parse(args); err != nil || *ref == "" || *token == "" {
			return nil, errUsage
		}
		gw, err := gateway(cfgPath, stderr)
		if err != nil {
			return nil, err
		}
		return gw.RecheckPayment(ctx, *ref, *token)

	default:
		return nil, errUsage
	}
}

func gateway(cfgPath string, stderr io.Writer) (*payment.ImePayGateway, error) {
	cfg, err := config.LoadConfig(cfgPath, false)
	if err != nil {
		return nil, err
	}
	gw, err := payment.NewImePayGateway(cfg.ClientConfig())
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(stderr, cfg.Log, false)
	log.Debug().
		Bool("sandbox", gw.Sandbox()).
		Str("merchant_code", cfg.IMEPay.MerchantCode).
		Str("api_user", logging.Redact(cfg.IMEPay.APIUser, false)).
		Msg("imepay client ready")
	return gw, nil
}
