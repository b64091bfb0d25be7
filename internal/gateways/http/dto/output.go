package dto

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
	"funds_tracker/internal/usecase"
)

// Subscription active subscription
type Subscription struct {
	FundID           string          `json:"fund_id"`
	FundName         string          `json:"fund_name"`
	SubscribedAmount decimal.Decimal `json:"subscribed_amount"`
	SubscribedAt     strfmt.DateTime `json:"subscribed_at"`
	Status           string          `json:"status"`
}

func NewSubscription(r usecase.SubscriptionResult) Subscription {
	return Subscription{
		FundID:           r.FundID,
		FundName:         r.FundName,
		SubscribedAmount: r.SubscribedAmount,
		SubscribedAt:     strfmt.DateTime(r.SubscribedAt),
		Status:           r.Status,
	}
}

// Fund catalog entry
type Fund struct {
	ID        string          `json:"fund_id"`
	Name      string          `json:"name"`
	MinAmount decimal.Decimal `json:"min_amount"`
	Category  string          `json:"category"`
}

func NewFund(f *entity.Fund) Fund {
	return Fund{ID: f.ID, Name: f.Name, MinAmount: f.MinAmount, Category: f.Category}
}

// Transaction ledger entry
type Transaction struct {
	ID          strfmt.UUID     `json:"transaction_id"`
	FundID      string          `json:"fund_id"`
	FundName    string          `json:"fund_name"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   strfmt.DateTime `json:"timestamp"`
	Status      string          `json:"status"`
	Description string          `json:"description,omitempty"`
}

func NewTransaction(t *entity.Transaction) Transaction {
	return Transaction{
		ID:          t.ID,
		FundID:      t.FundID,
		FundName:    t.FundName,
		Type:        string(t.Type),
		Amount:      t.Amount,
		Timestamp:   strfmt.DateTime(t.Timestamp),
		Status:      string(t.Status),
		Description: t.Description,
	}
}

// Balance available balance
type Balance struct {
	CustomerID string          `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// Session access token
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	CustomerID  string    `json:"customer_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func NewSession(s *usecase.Session) Session {
	return Session{
		AccessToken: s.AccessToken,
		TokenType:   "Bearer",
		CustomerID:  s.CustomerID,
		Email:       s.Email,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Error error body
type Error struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
