package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"funds_tracker/internal/entity"
	"funds_tracker/internal/usecase"
)

type FundRepository struct {
	pool *pgxpool.Pool
}

var _ usecase.FundRepository = (*FundRepository)(nil)

func NewFundRepository(pool *pgxpool.Pool) *FundRepository {
	return &FundRepository{pool: pool}
}

func (r *FundRepository) GetFund(ctx context.Context, id string) (*entity.Fund, error) {
	var f entity.Fund
	err := r.pool.QueryRow(ctx, `
		SELECT fund_id, name, min_amount, category, is_active, created_at
		FROM funds WHERE fund_id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.MinAmount, &f.Category, &f.IsActive, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, usecase.ErrFundNotFound
		}
		return nil, fmt.Errorf("get fund id=%s: %w", id, err)
	}
	return &f, nil
}

func (r *FundRepository) ListFunds(ctx context.Context) ([]*entity.Fund, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT fund_id, name, min_amount, category, is_active, created_at
		FROM funds ORDER BY fund_id`)
	if err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Fund, 0)
	for rows.Next() {
		var f entity.Fund
		if err := rows.Scan(&f.ID, &f.Name, &f.MinAmount, &f.Category, &f.IsActive, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("list funds: %w", err)
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	return out, nil
}
