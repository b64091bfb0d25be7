package usecase

import (
	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
)

// Subscription rules. They see only already-fetched state and never touch a store.

// CheckAmount requires a strictly positive amount in whole cents
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return businessf(ErrInvalidAmount, "amount must be greater than zero, got %s", amount.String())
	}
	if !amount.Equal(amount.Truncate(2)) {
		return businessf(ErrInvalidAmount, "amount must have at most 2 decimal places, got %s", amount.String())
	}
	return nil
}

// CheckFundOpen rejects missing and inactive funds
func CheckFundOpen(fundID string, fund *entity.Fund) error {
	if fund == nil || !fund.IsActive {
		return businessf(ErrFundNotFound, "fund %s does not exist", fundID)
	}
	return nil
}

// CheckMinimumAmount requires amount >= fund.MinAmount
func CheckMinimumAmount(fund *entity.Fund, amount decimal.Decimal) error {
	if amount.LessThan(fund.MinAmount) {
		return businessf(ErrBelowMinimumAmount, "minimum amount for fund %s is %s", fund.Name, fund.MinAmount.StringFixed(2))
	}
	return nil
}

// CheckSufficientBalance requires balance >= amount
func CheckSufficientBalance(balance decimal.Decimal, fund *entity.Fund, amount decimal.Decimal) error {
	if balance.LessThan(amount) {
		return businessf(ErrInsufficientBalance, "not enough balance to subscribe to fund %s", fund.Name)
	}
	return nil
}

// CheckNotAlreadySubscribed rejects a second active subscription to the same fund
func CheckNotAlreadySubscribed(existing *entity.Subscription) error {
	if existing.IsActive() {
		return businessf(ErrAlreadySubscribed, "already subscribed to fund %s", existing.FundName)
	}
	return nil
}

// CheckCancellable requires an active subscription; never-subscribed and already-cancelled look the same
func CheckCancellable(fundID string, existing *entity.Subscription) error {
	if !existing.IsActive() {
		return businessf(ErrSubscriptionNotFound, "no active subscription found for fund %s", fundID)
	}
	return nil
}

// ValidateSubscribe runs the subscribe rules in order and returns the first violation.
// A nil customer means the customer does not exist.
func ValidateSubscribe(c *entity.Customer, customerID, fundID string, fund *entity.Fund, existing *entity.Subscription, amount decimal.Decimal) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	if c == nil {
		return businessf(ErrCustomerNotFound, "customer %s not found", customerID)
	}
	if err := CheckFundOpen(fundID, fund); err != nil {
		return err
	}
	if err := CheckMinimumAmount(fund, amount); err != nil {
		return err
	}
	if err := CheckSufficientBalance(c.Balance, fund, amount); err != nil {
		return err
	}
	return CheckNotAlreadySubscribed(existing)
}
