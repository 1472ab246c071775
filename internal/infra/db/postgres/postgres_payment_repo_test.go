//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/repository"
)

func newPendingPayment(refID string) *model.Payment {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.Payment{
		ID:        uuid.NewString(),
		RefID:     refID,
		TokenID:   "TOK-" + refID,
		Amount:    decimal.RequireFromString("150.75"),
		Status:    model.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	repo := NewPaymentRepo(testPool)
	ctx := context.Background()
	cleanup(t)

	p := newPendingPayment("REF-1")

	t.Run("create and find by ref id", func(t *testing.T) {
		if err := repo.Create(ctx, repository.NoTX, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, err := repo.FindByRefID(ctx, repository.NoTX, "REF-1")
		if err != nil {
			t.Fatalf("FindByRefID: %v", err)
		}
		if !got.Amount.Equal(p.Amount) || got.TokenID != p.TokenID || got.Status != model.PaymentStatusPending {
			t.Errorf("unexpected payment: %+v", got)
		}
		if got.ProviderResponse != nil {
			t.Errorf("expected nil provider response, got %v", got.ProviderResponse)
		}
	})

	t.Run("duplicate ref id is rejected", func(t *testing.T) {
		dup := newPendingPayment("REF-1")
		if err := repo.Create(ctx, repository.NoTX, dup); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("update inside a transaction", func(t *testing.T) {
		tm := NewTxManager(testPool)
		paidAt := time.Now().UTC().Truncate(time.Millisecond)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			cur, err := repo.FindByRefID(ctx, tx, "REF-1")
			if err != nil {
				return err
			}
			cur.Status = model.PaymentStatusSucceeded
			cur.TransactionID = "TXN-9"
			cur.Msisdn = "9800000001"
			cur.ResponseCode = "0"
			cur.ProviderResponse = model.GatewayResponse{"ResponseCode": float64(0), "RefId": "REF-1"}
			cur.PaidAt = &paidAt
			cur.UpdatedAt = paidAt
			return repo.Update(ctx, tx, cur)
		})
		if err != nil {
			t.Fatalf("WithTx: %v", err)
		}
		got, err := repo.FindByRefID(ctx, repository.NoTX, "REF-1")
		if err != nil {
			t.Fatalf("FindByRefID: %v", err)
		}
		if got.Status != model.PaymentStatusSucceeded || got.TransactionID != "TXN-9" || got.PaidAt == nil {
			t.Errorf("update not persisted: %+v", got)
		}
		if got.ProviderResponse.ResponseCode() != "0" {
			t.Errorf("expected provider response to round-trip, got %v", got.ProviderResponse)
		}
	})

	t.Run("list stale pending", func(t *testing.T) {
		stale := newPendingPayment("REF-2")
		stale.CreatedAt = stale.CreatedAt.Add(-time.Hour)
		if err := repo.Create(ctx, repository.NoTX, stale); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := repo.Create(ctx, repository.NoTX, newPendingPayment("REF-3")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		pending, err := repo.ListPendingOlderThan(ctx, repository.NoTX, time.Now().Add(-30*time.Minute), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan: %v", err)
		}
		if len(pending) != 1 || pending[0].RefID != "REF-2" {
			t.Errorf("expected only REF-2 to be stale, got %d rows", len(pending))
		}
	})

	t.Run("unknown ref id", func(t *testing.T) {
		if _, err := repo.FindByRefID(ctx, repository.NoTX, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Update(ctx, repository.NoTX, newPendingPayment("nope")); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on update, got %v", err)
		}
	})
}
