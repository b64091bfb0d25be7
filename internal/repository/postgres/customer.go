package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
	"funds_tracker/internal/usecase"
)

const customerColumns = `customer_id, email, phone, password_hash, notification_preference, balance, role, created_at, updated_at`

type CustomerRepository struct {
	pool *pgxpool.Pool
}

var _ usecase.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) GetCustomer(ctx context.Context, id string) (*entity.Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, usecase.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer id=%s: %w", id, err)
	}
	return c, nil
}

func (r *CustomerRepository) GetCustomerByEmail(ctx context.Context, email string) (*entity.Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE lower(email) = lower($1)`, email)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, usecase.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, c *entity.Customer) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customers (customer_id, email, phone, password_hash, notification_preference, balance, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Email.String(), c.Phone, c.PasswordHash, string(c.NotificationPreference), c.Balance, c.Role, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create customer: %w", mapWriteErr(err))
	}
	return nil
}

func (r *CustomerRepository) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT balance FROM customers WHERE customer_id = $1`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, usecase.ErrCustomerNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance id=%s: %w", id, err)
	}
	return balance, nil
}

// UpdateBalance sets the balance to next only while it still equals prev
func (r *CustomerRepository) UpdateBalance(ctx context.Context, id string, prev, next decimal.Decimal) error {
	if next.IsNegative() {
		return usecase.ErrConflict
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers SET balance = $3, updated_at = now()
		WHERE customer_id = $1 AND balance = $2`, id, prev, next)
	if err != nil {
		return fmt.Errorf("update balance: %w", mapWriteErr(err))
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

func (r *CustomerRepository) UpdateNotificationPreference(ctx context.Context, id string, pref entity.NotificationPreference) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers SET notification_preference = $2, updated_at = now()
		WHERE customer_id = $1`, id, string(pref))
	if err != nil {
		return fmt.Errorf("update notification preference: %w", mapWriteErr(err))
	}
	if tag.RowsAffected() == 0 {
		return usecase.ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE customer_id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check customer id=%s: %w", id, err)
	}
	if !exists {
		return usecase.ErrCustomerNotFound
	}
	return usecase.ErrConflict
}

func scanCustomer(row rowScanner) (*entity.Customer, error) {
	var (
		c         entity.Customer
		email     string
		pref      string
		updatedAt *time.Time
	)
	if err := row.Scan(&c.ID, &email, &c.Phone, &c.PasswordHash, &pref, &c.Balance, &c.Role, &c.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Email = strfmt.Email(email)
	c.NotificationPreference = entity.NotificationPreference(pref)
	c.UpdatedAt = updatedAt
	return &c, nil
}
