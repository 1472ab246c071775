package repository

import (
	"context"
	"time"

	"imepay-gateway/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Create inserts a new payment; a duplicate RefID yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	// Update persists the mutable fields of an existing payment.
	Update(ctx context.Context, tx Tx, p *model.Payment) error
	FindByRefID(ctx context.Context, tx Tx, refID string) (*model.Payment, error)
	// ListPendingOlderThan returns pending payments created before olderThan, oldest first.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
