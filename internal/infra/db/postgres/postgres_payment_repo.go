package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, ref_id, token_id, amount::text, status, transaction_id, msisdn, response_code, response_description, provider_response, created_at, updated_at, paid_at`

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	raw, err := marshalResponse(p.ProviderResponse)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO imepay_payments (
  id, ref_id, token_id, amount, status, transaction_id, msisdn, response_code, response_description, provider_response, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11,$12,$13
);`
	_, err = execSQL(ctx, r.pool, tx, q, p.ID, p.RefID, p.TokenID, p.Amount.String(), string(p.Status), p.TransactionID, p.Msisdn, p.ResponseCode, p.ResponseDescription, raw, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) Update(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	raw, err := marshalResponse(p.ProviderResponse)
	if err != nil {
		return err
	}
	const q = `
UPDATE imepay_payments SET
  token_id=$2, status=$3, transaction_id=$4, msisdn=$5, response_code=$6, response_description=$7, provider_response=$8, updated_at=$9, paid_at=$10
WHERE ref_id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, p.RefID, p.TokenID, string(p.Status), p.TransactionID, p.Msisdn, p.ResponseCode, p.ResponseDescription, raw, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) FindByRefID(ctx context.Context, tx repository.Tx, refID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM imepay_payments WHERE ref_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, refID)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM imepay_payments WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, string(model.PaymentStatusPending), olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		amount string
		status string
		raw    []byte
	)
	if err := row.Scan(&p.ID, &p.RefID, &p.TokenID, &amount, &status, &p.TransactionID, &p.Msisdn, &p.ResponseCode, &p.ResponseDescription, &raw, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = d
	p.Status = model.PaymentStatus(status)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.ProviderResponse); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func marshalResponse(r model.GatewayResponse) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}
