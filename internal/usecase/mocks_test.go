//go:build !integration

package usecase_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/adapter"
	"imepay-gateway/internal/domain/ports/repository"
	"imepay-gateway/internal/infra/adapters/payment"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// callbackRequest builds the GET redirect the provider sends after checkout.
func callbackRequest(code, refID, tokenID string) *http.Request {
	raw := strings.Join([]string{code, "desc", "9801234567", "TXN-" + refID, refID, "100", tokenID}, "|")
	q := url.Values{"data": {base64.StdEncoding.EncodeToString([]byte(raw))}}
	return httptest.NewRequest(http.MethodGet, "/payment/callback?"+q.Encode(), nil)
}

// =============================
// Gateway
// =============================

type MockPaymentGateway struct {
	mu sync.Mutex

	GenerateTokenFunc  func(ctx context.Context, amount decimal.Decimal, refID string) (string, error)
	DecodeCallbackFunc func(r *http.Request) (*model.Callback, error)
	ConfirmFunc        func(ctx context.Context, refID, tokenID, transactionID, msisdn string) (model.GatewayResponse, error)
	RecheckFunc        func(ctx context.Context, refID, tokenID string) (model.GatewayResponse, error)

	ConfirmCalls int
	RecheckCalls int
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) GenerateToken(ctx context.Context, amount decimal.Decimal, refID string) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(ctx, amount, refID)
	}
	return "TOK-" + refID, nil
}

func (m *MockPaymentGateway) GenerateCheckoutURL(token, refID string, amount decimal.Decimal) string {
	return "https://pay.example/checkout?token=" + token + "&ref=" + refID + "&amount=" + amount.String()
}

func (m *MockPaymentGateway) DecodeCallback(r *http.Request) (*model.Callback, error) {
	if m.DecodeCallbackFunc != nil {
		return m.DecodeCallbackFunc(r)
	}
	p, err := payment.DecodeCallbackData(r.URL.Query().Get("data"))
	if err != nil {
		return nil, err
	}
	return &model.Callback{Method: http.MethodGet, Payload: p}, nil
}

func (m *MockPaymentGateway) ConfirmPayment(ctx context.Context, refID, tokenID, transactionID, msisdn string) (model.GatewayResponse, error) {
	m.mu.Lock()
	m.ConfirmCalls++
	m.mu.Unlock()
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, refID, tokenID, transactionID, msisdn)
	}
	return model.GatewayResponse{"ResponseCode": float64(0), "ResponseDescription": "Success", "RefId": refID}, nil
}

func (m *MockPaymentGateway) RecheckPayment(ctx context.Context, refID, tokenID string) (model.GatewayResponse, error) {
	m.mu.Lock()
	m.RecheckCalls++
	m.mu.Unlock()
	if m.RecheckFunc != nil {
		return m.RecheckFunc(ctx, refID, tokenID)
	}
	return model.GatewayResponse{"ResponseCode": float64(0), "TransactionId": "TXN-" + refID, "Msisdn": "9801234567"}, nil
}

// =============================
// Repositories
// =============================

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment // by ref id

	CreateFunc      func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateFunc      func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByRefIDFunc func(ctx context.Context, tx repository.Tx, refID string) (*model.Payment, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.RefID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	r.data[p.RefID] = &cp
	return nil
}

func (r *MockPaymentRepo) Update(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.RefID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	r.data[p.RefID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByRefID(ctx context.Context, tx repository.Tx, refID string) (*model.Payment, error) {
	if r.FindByRefIDFunc != nil {
		return r.FindByRefIDFunc(ctx, tx, refID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[refID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// seed stores p directly, bypassing CreateFunc.
func (r *MockPaymentRepo) seed(p *model.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.RefID] = &cp
}

// --- MockTxManager ---

type MockTxManager struct {
	mu    sync.Mutex
	calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs fn with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

func (m *MockTxManager) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// =============================
// Locker
// =============================

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	Keys        []string
	Unlocked    []string
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.TryLockFunc != nil {
		return l.TryLockFunc(ctx, key, ttl)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Keys = append(l.Keys, key)
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLocked
	}
	token := "tok-" + key
	l.held[key] = token
	return token, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	l.Unlocked = append(l.Unlocked, key)
	return nil
}
