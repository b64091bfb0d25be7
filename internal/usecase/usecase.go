package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
)

//go:generate go run github.com/golang/mock/mockgen@v1.6.0 -destination=usecase_mock.go -package=usecase funds_tracker/internal/usecase CustomerRepository,FundRepository,SubscriptionRepository,TransactionRepository,Notifier,PasswordHasher,TokenIssuer

// Store-level outcomes shared by every repository implementation.
var (
	// ErrConflict - a conditional write found a different value than the one it was conditioned on
	ErrConflict = errors.New("conditional write conflict")
)

// Business error kinds. Repositories return the *NotFound kinds bare; the use cases wrap every kind into a
// *BusinessError with a caller-facing message.
var (
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrFundNotFound           = errors.New("fund not found")
	ErrBelowMinimumAmount     = errors.New("amount below fund minimum")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAlreadySubscribed      = errors.New("already subscribed")
	ErrSubscriptionNotFound   = errors.New("active subscription not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidToken           = errors.New("invalid token")
)

// CustomerRepository - customer records and their balance
type CustomerRepository interface {
	// GetCustomer - get a customer by ID, ErrCustomerNotFound if absent
	GetCustomer(ctx context.Context, id string) (*entity.Customer, error)
	// GetCustomerByEmail - get a customer by email, ErrCustomerNotFound if absent
	GetCustomerByEmail(ctx context.Context, email string) (*entity.Customer, error)
	// CreateCustomer - insert a new customer, ErrConflict if the ID or email is taken
	CreateCustomer(ctx context.Context, c *entity.Customer) error
	// GetBalance - read the current balance
	GetBalance(ctx context.Context, id string) (decimal.Decimal, error)
	// UpdateBalance - set the balance to next only if it still equals prev, ErrConflict otherwise
	UpdateBalance(ctx context.Context, id string, prev, next decimal.Decimal) error
	// UpdateNotificationPreference - change the notification channel(s)
	UpdateNotificationPreference(ctx context.Context, id string, pref entity.NotificationPreference) error
}

// FundRepository - read-only fund catalog
type FundRepository interface {
	// GetFund - get a fund by ID, ErrFundNotFound if absent
	GetFund(ctx context.Context, id string) (*entity.Fund, error)
	// ListFunds - list every fund in the catalog
	ListFunds(ctx context.Context) ([]*entity.Fund, error)
}

// SubscriptionRepository - one subscription per (customer, fund) pair
type SubscriptionRepository interface {
	// GetSubscription - point lookup, ErrSubscriptionNotFound if the pair has no record
	GetSubscription(ctx context.Context, customerID, fundID string) (*entity.Subscription, error)
	// ListSubscriptions - every record of the customer regardless of status
	ListSubscriptions(ctx context.Context, customerID string) ([]*entity.Subscription, error)
	// CreateSubscription - insert a record for a new pair, ErrConflict if the pair already exists
	CreateSubscription(ctx context.Context, s *entity.Subscription) error
	// UpdateSubscription - overwrite the pair only while the stored record is in the same state as expected
	// (status, amount and subscribe time), ErrConflict otherwise
	UpdateSubscription(ctx context.Context, s *entity.Subscription, expected *entity.Subscription) error
	// DeleteSubscription - remove the pair only while the stored record is in the same state as expected,
	// ErrConflict if it changed, ErrSubscriptionNotFound if it is gone. Used only to undo a create.
	DeleteSubscription(ctx context.Context, expected *entity.Subscription) error
}

// TransactionRepository - append-only ledger
type TransactionRepository interface {
	// AppendTransaction - insert a new entry
	AppendTransaction(ctx context.Context, t *entity.Transaction) error
	// GetTransaction - get an entry by ID, ErrTransactionNotFound if absent
	GetTransaction(ctx context.Context, id string) (*entity.Transaction, error)
	// ListTransactions - every entry of the customer, newest first
	ListTransactions(ctx context.Context, customerID string) ([]*entity.Transaction, error)
	// FinalizeTransaction - move a Pending entry to a final status, ErrConflict if it is not Pending
	FinalizeTransaction(ctx context.Context, id string, status entity.TransactionStatus) error
	// ListPendingBefore - Pending entries written before the given instant
	ListPendingBefore(ctx context.Context, before time.Time) ([]*entity.Transaction, error)
}

// NotificationEvent - what happened to the subscription
type NotificationEvent string

const (
	EventSubscribed NotificationEvent = "subscribed"
	EventCancelled  NotificationEvent = "cancelled"
)

// Notification - confirmation sent after a subscribe or cancel
type Notification struct {
	Event      NotificationEvent
	CustomerID string
	Email      string
	Phone      string
	Preference entity.NotificationPreference
	FundName   string
	Amount     decimal.Decimal
}

// ChannelResult - outcome of one delivery channel
type ChannelResult struct {
	Channel   string
	MessageID string
	Err       error
}

// Notifier - best-effort delivery; results are only logged
type Notifier interface {
	Notify(ctx context.Context, n Notification) []ChannelResult
}

// PasswordHasher - one-way password hashing
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Claims - identity carried by an access token
type Claims struct {
	CustomerID string
	Email      string
	Role       string
	ExpiresAt  time.Time
}

// TokenIssuer - access token issuance and verification
type TokenIssuer interface {
	Issue(c *entity.Customer) (token string, expiresAt time.Time, err error)
	Parse(token string) (Claims, error)
}
