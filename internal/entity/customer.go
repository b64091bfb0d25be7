package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/shopspring/decimal"
)

// NotificationPreference - channel(s) used to confirm subscribe/cancel operations
type NotificationPreference string

const (
	NotifyEmail NotificationPreference = "Email"
	NotifySMS   NotificationPreference = "SMS"
	NotifyBoth  NotificationPreference = "Both"
)

// ParseNotificationPreference accepts the enum names case-insensitively
func ParseNotificationPreference(s string) (NotificationPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return NotifyEmail, nil
	case "sms":
		return NotifySMS, nil
	case "both":
		return NotifyBoth, nil
	}
	return "", fmt.Errorf("unknown notification preference %q", s)
}

// WantsEmail reports whether the email channel is selected
func (p NotificationPreference) WantsEmail() bool {
	return p == NotifyEmail || p == NotifyBoth
}

// WantsSMS reports whether the SMS channel is selected
func (p NotificationPreference) WantsSMS() bool {
	return p == NotifySMS || p == NotifyBoth
}

const RoleCustomer = "Customer"

// Customer - registered investor with an available cash balance
type Customer struct {
	// ID - opaque customer identifier
	ID string
	// Email - login and email notification address
	Email strfmt.Email
	// Phone - SMS notification number in E.164 format
	Phone string
	// PasswordHash - bcrypt hash of the password
	PasswordHash string
	// NotificationPreference - Email, SMS or Both
	NotificationPreference NotificationPreference
	// Balance - available, uncommitted cash; never negative
	Balance decimal.Decimal
	// Role - authorization role carried in tokens
	Role string
	// CreatedAt - registration time
	CreatedAt time.Time
	// UpdatedAt - last balance or preference change
	UpdatedAt *time.Time
}
