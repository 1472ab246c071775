//go:build !integration

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
)

func TestPaymentRepo_CreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepo()
	p := &model.Payment{ID: "1", RefID: "R1", Amount: decimal.NewFromInt(10), Status: model.PaymentStatusPending, CreatedAt: time.Now()}

	if err := repo.Create(ctx, nil, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, nil, p); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := repo.FindByRefID(ctx, nil, "R1")
	if err != nil {
		t.Fatalf("FindByRefID: %v", err)
	}
	got.Status = model.PaymentStatusSucceeded
	if stored, _ := repo.FindByRefID(ctx, nil, "R1"); stored.Status != model.PaymentStatusPending {
		t.Fatal("mutating a returned payment must not change the stored copy")
	}
	if err := repo.Update(ctx, nil, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	pending, _ := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(time.Hour), 0)
	if len(pending) != 0 {
		t.Fatalf("expected no pending payments, got %d", len(pending))
	}
	if _, err := repo.FindByRefID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	now := time.Unix(1000, 0)
	l.clock = func() time.Time { return now }

	tok, err := l.TryLock(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if _, err := l.TryLock(ctx, "k", time.Second); !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	_ = l.Unlock(ctx, "k", "wrong-token")
	if _, err := l.TryLock(ctx, "k", time.Second); !errors.Is(err, domain.ErrLocked) {
		t.Fatal("unlock with a foreign token must not release the lock")
	}
	_ = l.Unlock(ctx, "k", tok)
	if _, err := l.TryLock(ctx, "k", time.Second); err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := l.TryLock(ctx, "k", time.Second); err != nil {
		t.Fatalf("expired lock should be reclaimable, got %v", err)
	}
}
