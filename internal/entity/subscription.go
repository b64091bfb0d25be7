package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus - state of a customer's position in a fund
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "Active"
	SubscriptionCancelled SubscriptionStatus = "Cancelled"
)

// Subscription - one record per (CustomerID, FundID) pair
type Subscription struct {
	// CustomerID - owner of the subscription
	CustomerID string
	// FundID - subscribed fund
	FundID string
	// FundName - fund name captured at subscribe time
	FundName string
	// SubscribedAmount - amount committed to the fund
	SubscribedAmount decimal.Decimal
	// SubscribedAt - moment of the last successful subscribe
	SubscribedAt time.Time
	// Status - Active or Cancelled
	Status SubscriptionStatus
}

// IsActive reports whether the subscription currently holds money
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}

// SameState reports whether both records hold the same status, amount and subscribe time
func (s *Subscription) SameState(o *Subscription) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Status == o.Status &&
		s.SubscribedAmount.Equal(o.SubscribedAmount) &&
		s.SubscribedAt.Equal(o.SubscribedAt)
}
