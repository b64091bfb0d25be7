// Package notification delivers subscribe/cancel confirmations over email and SMS.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/shopspring/decimal"

	"funds_tracker/internal/usecase"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrUnknownEvent     = errors.New("unknown notification event")
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Message - rendered confirmation
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers one message to one recipient and returns the provider message ID
type Sender interface {
	Send(ctx context.Context, to string, msg Message) (string, error)
}

// ResultRecorder counts delivery outcomes per channel
type ResultRecorder interface {
	ObserveNotification(channel, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveNotification(string, string) {}

// Dispatcher routes a notification to the channels selected by the customer's preference
type Dispatcher struct {
	email    Sender
	sms      Sender
	recorder ResultRecorder
	log      *slog.Logger
}

var _ usecase.Notifier = (*Dispatcher)(nil)

func NewDispatcher(email, sms Sender, log *slog.Logger, options ...func(*Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		email:    email,
		sms:      sms,
		recorder: nopRecorder{},
		log:      log,
	}
	for _, o := range options {
		o(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// WithRecorder sets the delivery outcome recorder
func WithRecorder(r ResultRecorder) func(*Dispatcher) {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// Notify sends to every selected channel; one channel failing never stops the other
func (d *Dispatcher) Notify(ctx context.Context, n usecase.Notification) []usecase.ChannelResult {
	msg, err := Render(n)
	if err != nil {
		d.log.Warn("notification not rendered", slog.String("customer_id", n.CustomerID), slog.String("error", err.Error()))
		return []usecase.ChannelResult{{Channel: "none", Err: err}}
	}

	results := make([]usecase.ChannelResult, 0, 2)
	if n.Preference.WantsEmail() {
		results = append(results, d.send(ctx, ChannelEmail, d.email, n.Email, msg, validEmail))
	}
	if n.Preference.WantsSMS() {
		results = append(results, d.send(ctx, ChannelSMS, d.sms, n.Phone, msg, validPhone))
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, channel string, s Sender, to string, msg Message, valid func(string) bool) usecase.ChannelResult {
	res := usecase.ChannelResult{Channel: channel}
	switch {
	case s == nil:
		res.Err = fmt.Errorf("%s channel not configured", channel)
	case !valid(to):
		res.Err = fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	default:
		res.MessageID, res.Err = s.Send(ctx, to, msg)
	}
	outcome := "sent"
	if res.Err != nil {
		outcome = "failed"
	}
	d.recorder.ObserveNotification(channel, outcome)
	return res
}

func validEmail(s string) bool {
	return strings.TrimSpace(s) != "" && strfmt.IsEmail(s)
}

func validPhone(s string) bool {
	return e164.MatchString(s)
}

// Render builds the subject and bodies for the event
func Render(n usecase.Notification) (Message, error) {
	amount := FormatCOP(n.Amount)
	var subject, text string
	switch n.Event {
	case usecase.EventSubscribed:
		subject = "Subscription confirmed"
		text = fmt.Sprintf("You have successfully subscribed to fund %s for an amount of %s.", n.FundName, amount)
	case usecase.EventCancelled:
		subject = "Subscription cancelled"
		text = fmt.Sprintf("Your subscription to fund %s has been cancelled. %s has been refunded to your available balance.",
			n.FundName, amount)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownEvent, n.Event)
	}
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">`+
		`<h2>%s</h2><p>%s</p><hr><p style="color: #999; font-size: 12px;">This is an automated message.</p>`+
		`</body></html>`, html.EscapeString(subject), html.EscapeString(text))
	return Message{Subject: subject, Text: text, HTML: body}, nil
}

// FormatCOP renders whole pesos with thousands separators, e.g. $75,000 COP
func FormatCOP(amount decimal.Decimal) string {
	digits := amount.Abs().Round(0).StringFixed(0)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "$" + b.String() + " COP"
}
