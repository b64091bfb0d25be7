// Package dto holds the JSON request and response bodies of the HTTP API.
package dto

import (
	"strings"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"
	"github.com/shopspring/decimal"
)

const minPasswordLength = 8

var preferenceEnum = []interface{}{"Email", "SMS", "Both"}

// SubscribeInput subscribe request
type SubscribeInput struct {

	// fund ID
	// Required: true
	FundID *string `json:"fund_id"`

	// amount in COP, JSON number or decimal string
	// Required: true
	Amount *decimal.Decimal `json:"amount"`
}

// Validate validates this subscribe input
func (m *SubscribeInput) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("fund_id", "body", strings.TrimSpace(swag.StringValue(m.FundID))); err != nil {
		res = append(res, err)
	}
	if err := m.validateAmount(); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (m *SubscribeInput) validateAmount() error {
	if err := validate.Required("amount", "body", m.Amount); err != nil {
		return err
	}
	if err := validate.Minimum("amount", "body", m.Amount.InexactFloat64(), 0, true); err != nil {
		return err
	}
	return nil
}

// RegisterInput registration request
type RegisterInput struct {

	// email
	// Required: true
	// Format: email
	Email *strfmt.Email `json:"email"`

	// password
	// Required: true
	// Min Length: 8
	Password *string `json:"password"`

	// phone in E.164 format
	Phone string `json:"phone,omitempty"`

	// notification preference
	// Enum: [Email SMS Both]
	NotificationPreference string `json:"notification_preference,omitempty"`
}

// Validate validates this register input
func (m *RegisterInput) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.validateEmail(formats); err != nil {
		res = append(res, err)
	}
	if err := m.validatePassword(); err != nil {
		res = append(res, err)
	}
	if !swag.IsZero(m.NotificationPreference) {
		if err := validate.EnumCase("notification_preference", "body", m.NotificationPreference, preferenceEnum, false); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (m *RegisterInput) validateEmail(formats strfmt.Registry) error {
	if err := validate.Required("email", "body", m.Email); err != nil {
		return err
	}
	if err := validate.FormatOf("email", "body", "email", m.Email.String(), formats); err != nil {
		return err
	}
	return nil
}

func (m *RegisterInput) validatePassword() error {
	if err := validate.Required("password", "body", m.Password); err != nil {
		return err
	}
	if err := validate.MinLength("password", "body", *m.Password, minPasswordLength); err != nil {
		return err
	}
	return nil
}

// LoginInput login request
type LoginInput struct {

	// email
	// Required: true
	Email *string `json:"email"`

	// password
	// Required: true
	Password *string `json:"password"`
}

// Validate validates this login input
func (m *LoginInput) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("email", "body", swag.StringValue(m.Email)); err != nil {
		res = append(res, err)
	}
	if err := validate.RequiredString("password", "body", swag.StringValue(m.Password)); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PreferenceInput notification preference change
type PreferenceInput struct {

	// notification preference
	// Required: true
	// Enum: [Email SMS Both]
	NotificationPreference *string `json:"notification_preference"`
}

// Validate validates this preference input
func (m *PreferenceInput) Validate(formats strfmt.Registry) error {
	if err := validate.RequiredString("notification_preference", "body", swag.StringValue(m.NotificationPreference)); err != nil {
		return errors.CompositeValidationError(err)
	}
	if err := validate.EnumCase("notification_preference", "body", *m.NotificationPreference, preferenceEnum, false); err != nil {
		return errors.CompositeValidationError(err)
	}
	return nil
}
