// Package memory holds in-process stand-ins for Postgres and Redis, used in
// dev mode and tests when those services are not configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	mu    sync.RWMutex
	byRef map[string]model.Payment
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{byRef: make(map[string]model.Payment)}
}

func (r *PaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[p.RefID]; ok {
		return domain.ErrAlreadyExists
	}
	r.byRef[p.RefID] = *p
	return nil
}

func (r *PaymentRepo) Update(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[p.RefID]; !ok {
		return domain.ErrNotFound
	}
	r.byRef[p.RefID] = *p
	return nil
}

func (r *PaymentRepo) FindByRefID(ctx context.Context, tx repository.Tx, refID string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byRef[refID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *PaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Payment
	for _, p := range r.byRef {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
