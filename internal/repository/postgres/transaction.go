package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"funds_tracker/internal/entity"
	"funds_tracker/internal/usecase"
)

const transactionColumns = `transaction_id, customer_id, fund_id, fund_name, type, amount, occurred_at, status, description`

type TransactionRepository struct {
	pool *pgxpool.Pool
}

var _ usecase.TransactionRepository = (*TransactionRepository)(nil)

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) AppendTransaction(ctx context.Context, t *entity.Transaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID.String(), t.CustomerID, t.FundID, t.FundName, string(t.Type), t.Amount, t.Timestamp, string(t.Status), t.Description,
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", mapWriteErr(err))
	}
	return nil
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, id string) (*entity.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, usecase.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction id=%s: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns the customer's entries, newest first
func (r *TransactionRepository) ListTransactions(ctx context.Context, customerID string) ([]*entity.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
		FROM transactions WHERE customer_id = $1
		ORDER BY occurred_at DESC, transaction_id`, customerID)
}

// FinalizeTransaction moves a Pending entry to a final status exactly once
func (r *TransactionRepository) FinalizeTransaction(ctx context.Context, id string, status entity.TransactionStatus) error {
	if !status.IsFinal() {
		return usecase.ErrConflict
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $2
		WHERE transaction_id = $1 AND status = $3`, id, string(status), string(entity.TransactionPending))
	if err != nil {
		return fmt.Errorf("finalize transaction: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check transaction id=%s: %w", id, err)
	}
	if !exists {
		return usecase.ErrTransactionNotFound
	}
	return usecase.ErrConflict
}

func (r *TransactionRepository) ListPendingBefore(ctx context.Context, before time.Time) ([]*entity.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
		FROM transactions WHERE status = 'Pending' AND occurred_at < $1
		ORDER BY occurred_at`, before)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*entity.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var (
		t               entity.Transaction
		id, typ, status string
	)
	if err := row.Scan(&id, &t.CustomerID, &t.FundID, &t.FundName, &typ, &t.Amount, &t.Timestamp, &status, &t.Description); err != nil {
		return nil, err
	}
	t.ID = strfmt.UUID(id)
	t.Type = entity.TransactionType(typ)
	t.Status = entity.TransactionStatus(status)
	t.Timestamp = t.Timestamp.UTC()
	return &t, nil
}
