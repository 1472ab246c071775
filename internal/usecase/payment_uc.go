// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/adapter"
	"imepay-gateway/internal/domain/ports/repository"
	"imepay-gateway/internal/infra/logging"
	"imepay-gateway/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Checkout issues a token and returns the saved pending payment with its checkout URL.
	// An empty refID is replaced by a new ULID.
	Checkout(ctx context.Context, amount decimal.Decimal, refID string) (*model.Payment, string, error)
	// HandleCallback decodes the provider callback, confirms it and records the outcome.
	HandleCallback(ctx context.Context, r *http.Request) (*model.Payment, error)
	// Recheck asks the provider for the current status of refID.
	Recheck(ctx context.Context, refID string) (*model.Payment, model.GatewayResponse, error)
	Get(ctx context.Context, refID string) (*model.Payment, error)
	// ListStale returns pending payments older than cutoff.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	tm       repository.TransactionManager // optional
	gateway  adapter.PaymentGateway
	locker   repository.Locker // optional
	lockTTL  time.Duration
	log      *zerolog.Logger
	now      func() time.Time
}

// NewPaymentUseCase wires the use case. tm may be nil for stores without
// transactions; locker may be nil when a single process serves callbacks.
func NewPaymentUseCase(payments repository.PaymentRepository, tm repository.TransactionManager, gateway adapter.PaymentGateway, locker repository.Locker, lockTTL time.Duration, logger *zerolog.Logger) *paymentUC {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &paymentUC{
		payments: payments,
		tm:       tm,
		gateway:  gateway,
		locker:   locker,
		lockTTL:  lockTTL,
		log:      logger,
		now:      time.Now,
	}
}

func (u *paymentUC) Checkout(ctx context.Context, amount decimal.Decimal, refID string) (*model.Payment, string, error) {
	refID = strings.TrimSpace(refID)
	if refID == "" {
		refID = ulid.Make().String()
	}
	ctx = logging.WithRefID(ctx, refID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "PaymentUC.Checkout")()

	if !amount.IsPositive() {
		return nil, "", domain.ErrInvalidArgument
	}
	if _, err := u.payments.FindByRefID(ctx, repository.NoTX, refID); err == nil {
		return nil, "", domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	start := time.Now()
	token, err := u.gateway.GenerateToken(ctx, amount, refID)
	metrics.ObserveGatewayCall("token", gatewayResult(err), start)
	if err != nil {
		log.Error().Err(err).Str("amount", amount.String()).Msg("imepay token request failed")
		return nil, "", err
	}

	now := u.now()
	p := &model.Payment{
		ID:        uuid.NewString(),
		RefID:     refID,
		TokenID:   token,
		Amount:    amount,
		Status:    model.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.payments.Create(ctx, repository.NoTX, p); err != nil {
		return nil, "", err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	checkoutURL := u.gateway.GenerateCheckoutURL(token, refID, amount)
	log.Info().Str("token_id", token).Str("amount", amount.String()).Msg("checkout created")
	return p, checkoutURL, nil
}

func (u *paymentUC) HandleCallback(ctx context.Context, r *http.Request) (*model.Payment, error) {
	cb, err := u.gateway.DecodeCallback(r)
	if err != nil {
		metrics.IncCallback(r.Method, "decode_error")
		logging.With(ctx, u.log).Warn().Err(err).Msg("imepay callback decode failed")
		return nil, err
	}
	payload := cb.AsPayload()
	if payload.RefID == "" {
		metrics.IncCallback(cb.Method, "decode_error")
		return nil, &domain.CallbackDecodeError{Reason: "callback carries no RefId"}
	}

	ctx = logging.WithRefID(ctx, payload.RefID)
	log := logging.With(ctx, u.log)

	var out *model.Payment
	err = u.withLock(ctx, payload.RefID, func() error {
		p, err := u.payments.FindByRefID(ctx, repository.NoTX, payload.RefID)
		if err != nil {
			return err
		}
		if payload.TokenID != "" && payload.TokenID != p.TokenID {
			log.Warn().Str("token_id", payload.TokenID).Msg("callback token does not match the payment")
			return domain.ErrInvalidArgument
		}
		if p.Status.IsFinal() {
			// Duplicate delivery; the first callback already settled it.
			out = p
			return nil
		}

		p.TransactionID = payload.TransactionID
		p.Msisdn = payload.Msisdn
		p.ResponseCode = payload.ResponseCode
		p.ResponseDescription = payload.ResponseDescription

		switch payload.ResponseCode {
		case model.ResponseCodeSuccess:
			start := time.Now()
			resp, err := u.gateway.ConfirmPayment(ctx, p.RefID, p.TokenID, payload.TransactionID, payload.Msisdn)
			metrics.ObserveGatewayCall("confirm", gatewayResult(err), start)
			if err != nil {
				// Leave it pending; a recheck can settle it later.
				log.Error().Err(err).Msg("imepay confirm failed")
				return err
			}
			p.ProviderResponse = resp
			u.applyResponse(p, resp)
		case model.ResponseCodeCancelled:
			p.Status = model.PaymentStatusCancelled
		default:
			p.Status = model.PaymentStatusFailed
		}

		if err := u.save(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		metrics.IncCallback(cb.Method, callbackResult(err))
		return nil, err
	}

	metrics.IncCallback(cb.Method, string(out.Status))
	log.Info().
		Str("status", string(out.Status)).
		Str("transaction_id", out.TransactionID).
		Str("msisdn", logging.Redact(out.Msisdn, false)).
		Msg("imepay callback processed")
	return out, nil
}

func (u *paymentUC) Recheck(ctx context.Context, refID string) (*model.Payment, model.GatewayResponse, error) {
	ctx = logging.WithRefID(ctx, refID)
	log := logging.With(ctx, u.log)

	var (
		out  *model.Payment
		resp model.GatewayResponse
	)
	err := u.withLock(ctx, refID, func() error {
		p, err := u.payments.FindByRefID(ctx, repository.NoTX, refID)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err = u.gateway.RecheckPayment(ctx, p.RefID, p.TokenID)
		metrics.ObserveGatewayCall("recheck", gatewayResult(err), start)
		if err != nil {
			log.Error().Err(err).Msg("imepay recheck failed")
			return err
		}

		// A settled payment keeps its status; only pending ones move.
		if p.Status == model.PaymentStatusPending {
			p.ProviderResponse = resp
			if v := respString(resp, "TransactionId"); v != "" {
				p.TransactionID = v
			}
			if v := respString(resp, "Msisdn"); v != "" {
				p.Msisdn = v
			}
			switch resp.ResponseCode() {
			case model.ResponseCodeSuccess, model.ResponseCodeCancelled:
				u.applyResponse(p, resp)
			default:
				// Not final yet; a later callback or reconcile pass settles it.
				p.ResponseCode = resp.ResponseCode()
				if d := resp.ResponseDescription(); d != "" {
					p.ResponseDescription = d
				}
			}
			if err := u.save(ctx, p); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("status", string(out.Status)).Str("response_code", resp.ResponseCode()).Msg("imepay recheck done")
	return out, resp, nil
}

func (u *paymentUC) Get(ctx context.Context, refID string) (*model.Payment, error) {
	return u.payments.FindByRefID(ctx, repository.NoTX, refID)
}

func (u *paymentUC) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	return u.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, limit)
}

// applyResponse maps a confirm/recheck ResponseCode onto the payment status.
func (u *paymentUC) applyResponse(p *model.Payment, resp model.GatewayResponse) {
	code := resp.ResponseCode()
	p.ResponseCode = code
	if d := resp.ResponseDescription(); d != "" {
		p.ResponseDescription = d
	}
	switch code {
	case model.ResponseCodeSuccess:
		now := u.now()
		p.Status = model.PaymentStatusSucceeded
		p.PaidAt = &now
	case model.ResponseCodeCancelled:
		p.Status = model.PaymentStatusCancelled
	default:
		p.Status = model.PaymentStatusFailed
	}
}

// save writes p unless the stored row was settled in the meantime, in which
// case p is replaced by the stored state.
func (u *paymentUC) save(ctx context.Context, p *model.Payment) error {
	p.UpdatedAt = u.now()
	written := false
	write := func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.payments.FindByRefID(ctx, tx, p.RefID)
		if err != nil {
			return err
		}
		if cur.Status.IsFinal() {
			logging.With(ctx, u.log).Warn().Str("status", string(cur.Status)).Msg("payment settled concurrently; keeping stored state")
			*p = *cur
			return nil
		}
		if err := u.payments.Update(ctx, tx, p); err != nil {
			return err
		}
		written = true
		return nil
	}

	var err error
	if u.tm != nil {
		err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, write)
	} else {
		err = write(ctx, repository.NoTX)
	}
	if err != nil || !written || !p.Status.IsFinal() {
		return err
	}

	metrics.IncPayment(string(p.Status))
	if p.Status == model.PaymentStatusSucceeded {
		amount, _ := p.Amount.Float64()
		metrics.AddPaymentRevenue("NPR", amount)
	}
	return nil
}

func (u *paymentUC) withLock(ctx context.Context, refID string, fn func() error) error {
	if u.locker == nil {
		return fn()
	}
	key := "imepay:lock:" + refID
	token, err := u.locker.TryLock(ctx, key, u.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		// Release on a fresh context so a cancelled request still frees the key.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := u.locker.Unlock(unlockCtx, key, token); err != nil {
			u.log.Warn().Err(err).Str("key", key).Msg("unlock failed")
		}
	}()
	return fn()
}

func respString(resp model.GatewayResponse, key string) string {
	if v, ok := resp[key].(string); ok {
		return v
	}
	return ""
}

func gatewayResult(err error) string {
	var (
		te *domain.TransportError
		ge *domain.GatewayError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &ge):
		return "gateway_error"
	default:
		return "error"
	}
}

func callbackResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLocked):
		return "locked"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "rejected"
	default:
		return "error"
	}
}
