package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
)

// DefaultInitialBalance is credited to every new customer
var DefaultInitialBalance = decimal.NewFromInt(500_000)

// Session - result of a successful register or login
type Session struct {
	AccessToken string
	CustomerID  string
	Email       string
	ExpiresAt   time.Time
}

// Registration - data needed to open an account
type Registration struct {
	Email      strfmt.Email
	Password   string
	Phone      string
	Preference entity.NotificationPreference
}

// Accounts coordinates registration, login and customer settings
type Accounts struct {
	Cr             CustomerRepository
	Hasher         PasswordHasher
	Tokens         TokenIssuer
	InitialBalance decimal.Decimal
	now            func() time.Time
}

// NewAccounts creates the accounts use case; a zero initialBalance falls back to DefaultInitialBalance
func NewAccounts(cr CustomerRepository, hasher PasswordHasher, tokens TokenIssuer, initialBalance decimal.Decimal) *Accounts {
	if initialBalance.IsZero() || initialBalance.IsNegative() {
		initialBalance = DefaultInitialBalance
	}
	return &Accounts{
		Cr:             cr,
		Hasher:         hasher,
		Tokens:         tokens,
		InitialBalance: initialBalance,
		now:            time.Now,
	}
}

// Register creates a customer with the initial balance and returns a session for it
func (a *Accounts) Register(ctx context.Context, r Registration) (*Session, error) {
	email := strfmt.Email(strings.ToLower(strings.TrimSpace(r.Email.String())))
	if _, err := a.Cr.GetCustomerByEmail(ctx, email.String()); err == nil {
		return nil, businessf(ErrEmailTaken, "email %s is already registered", email)
	} else if !errors.Is(err, ErrCustomerNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := a.Hasher.Hash(r.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	pref := r.Preference
	if pref == "" {
		pref = entity.NotifyEmail
	}
	c := &entity.Customer{
		ID:                     uuid.NewString(),
		Email:                  email,
		Phone:                  strings.TrimSpace(r.Phone),
		PasswordHash:           hash,
		NotificationPreference: pref,
		Balance:                a.InitialBalance,
		Role:                   entity.RoleCustomer,
		CreatedAt:              a.now().UTC(),
	}
	if err := a.Cr.CreateCustomer(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, businessf(ErrEmailTaken, "email %s is already registered", email)
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return a.session(c)
}

// Login checks the credentials and returns a fresh session
func (a *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	c, err := a.Cr.GetCustomerByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrCustomerNotFound) {
		return nil, businessf(ErrInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if err := a.Hasher.Compare(c.PasswordHash, password); err != nil {
		return nil, businessf(ErrInvalidCredentials, "invalid credentials")
	}
	return a.session(c)
}

// Authenticate resolves an access token into claims
func (a *Accounts) Authenticate(token string) (Claims, error) {
	claims, err := a.Tokens.Parse(token)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// UpdateNotificationPreference changes the channel(s) used for confirmations
func (a *Accounts) UpdateNotificationPreference(ctx context.Context, customerID string, pref entity.NotificationPreference) error {
	err := a.Cr.UpdateNotificationPreference(ctx, customerID, pref)
	if errors.Is(err, ErrCustomerNotFound) {
		return businessf(ErrCustomerNotFound, "customer %s not found", customerID)
	}
	if err != nil {
		return fmt.Errorf("update notification preference: %w", err)
	}
	return nil
}

func (a *Accounts) session(c *entity.Customer) (*Session, error) {
	token, exp, err := a.Tokens.Issue(c)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		AccessToken: token,
		CustomerID:  c.ID,
		Email:       c.Email.String(),
		ExpiresAt:   exp,
	}, nil
}
