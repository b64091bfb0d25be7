package entity

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/shopspring/decimal"
)

// TransactionType - kind of ledger entry
type TransactionType string

const (
	TransactionSubscription TransactionType = "Subscription"
	TransactionCancellation TransactionType = "Cancellation"
)

// TransactionStatus - saga state of a ledger entry
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "Pending"
	TransactionCompleted TransactionStatus = "Completed"
	TransactionFailed    TransactionStatus = "Failed"
)

// IsFinal reports whether the status can no longer change
func (s TransactionStatus) IsFinal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// Transaction - append-only ledger entry. Only Status may move, once, out of Pending.
type Transaction struct {
	ID          strfmt.UUID
	CustomerID  string
	FundID      string
	FundName    string
	Type        TransactionType
	Amount      decimal.Decimal
	Timestamp   time.Time
	Status      TransactionStatus
	Description string
}
