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

const subscriptionColumns = `customer_id, fund_id, fund_name, subscribed_amount, subscribed_at, status`

type SubRepository struct {
	pool *pgxpool.Pool
}

var _ usecase.SubscriptionRepository = (*SubRepository)(nil)

func NewSubRepository(pool *pgxpool.Pool) *SubRepository {
	return &SubRepository{pool: pool}
}

func (r *SubRepository) GetSubscription(ctx context.Context, customerID, fundID string) (*entity.Subscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE customer_id = $1 AND fund_id = $2`, customerID, fundID)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, usecase.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription customer=%s fund=%s: %w", customerID, fundID, err)
	}
	return s, nil
}

func (r *SubRepository) ListSubscriptions(ctx context.Context, customerID string) ([]*entity.Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE customer_id = $1 ORDER BY fund_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Subscription, 0)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

// CreateSubscription fails with usecase.ErrConflict when the (customer, fund) record already exists
func (r *SubRepository) CreateSubscription(ctx context.Context, s *entity.Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.CustomerID, s.FundID, s.FundName, s.SubscribedAmount, s.SubscribedAt, string(s.Status),
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", mapWriteErr(err))
	}
	return nil
}

// UpdateSubscription overwrites the record only while its stored state equals expected
func (r *SubRepository) UpdateSubscription(ctx context.Context, s *entity.Subscription, expected *entity.Subscription) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET fund_name = $3, subscribed_amount = $4, subscribed_at = $5, status = $6
		WHERE customer_id = $1 AND fund_id = $2
			AND status = $7 AND subscribed_amount = $8 AND subscribed_at = $9`,
		s.CustomerID, s.FundID, s.FundName, s.SubscribedAmount, s.SubscribedAt, string(s.Status),
		string(expected.Status), expected.SubscribedAmount, expected.SubscribedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", mapWriteErr(err))
	}
	if tag.RowsAffected() == 0 {
		return usecase.ErrConflict
	}
	return nil
}

func (r *SubRepository) DeleteSubscription(ctx context.Context, expected *entity.Subscription) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM subscriptions
		WHERE customer_id = $1 AND fund_id = $2
			AND status = $3 AND subscribed_amount = $4 AND subscribed_at = $5`,
		expected.CustomerID, expected.FundID,
		string(expected.Status), expected.SubscribedAmount, expected.SubscribedAt,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE customer_id = $1 AND fund_id = $2)`,
		expected.CustomerID, expected.FundID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if exists {
		return usecase.ErrConflict
	}
	return usecase.ErrSubscriptionNotFound
}

func scanSubscription(row rowScanner) (*entity.Subscription, error) {
	var (
		s      entity.Subscription
		status string
	)
	if err := row.Scan(&s.CustomerID, &s.FundID, &s.FundName, &s.SubscribedAmount, &s.SubscribedAt, &status); err != nil {
		return nil, err
	}
	s.Status = entity.SubscriptionStatus(status)
	s.SubscribedAt = s.SubscribedAt.UTC()
	return &s, nil
}
