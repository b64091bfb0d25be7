package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
)

const (
	defaultMaxAttempts   = 3
	defaultNotifyTimeout = 10 * time.Second
	compensationTimeout  = 5 * time.Second

	opSubscribe = "subscribe"
	opCancel    = "cancel"
)

// OperationObserver receives the outcome of every engine operation
type OperationObserver interface {
	ObserveOperation(op, outcome string)
	ObserveRetry(op string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}
func (nopObserver) ObserveRetry(string)             {}

// SubscriptionResult - caller-visible confirmation of a subscription
type SubscriptionResult struct {
	FundID           string
	FundName         string
	SubscribedAmount decimal.Decimal
	SubscribedAt     time.Time
	Status           string
}

func toResult(s *entity.Subscription) SubscriptionResult {
	return SubscriptionResult{
		FundID:           s.FundID,
		FundName:         s.FundName,
		SubscribedAmount: s.SubscribedAmount,
		SubscribedAt:     s.SubscribedAt,
		Status:           string(s.Status),
	}
}

// Engine runs the subscribe/cancel saga across the customer, subscription and ledger stores.
//
// Each mutation writes a Pending ledger entry, then the subscription, then a conditional balance update, and
// finally marks the entry Completed. A lost compare-and-set on the subscription restarts the whole attempt from
// fresh reads, up to maxAttempts. A lost balance compare-and-set keeps the subscription write, re-reads the
// balance and repeats only the balance step. A failed step undoes the subscription write and marks the entry
// Failed; the undo is itself conditional, and when the record changed meanwhile the saga rolls forward instead.
type Engine struct {
	customers     CustomerRepository
	funds         FundRepository
	subs          SubscriptionRepository
	txs           TransactionRepository
	notifier      Notifier
	log           *slog.Logger
	observer      OperationObserver
	maxAttempts   int
	notifyTimeout time.Duration
	now           func() time.Time
	newID         func() string
	wg            sync.WaitGroup
}

// NewEngine creates the subscription engine with its collaborators
func NewEngine(
	customers CustomerRepository,
	funds FundRepository,
	subs SubscriptionRepository,
	txs TransactionRepository,
	notifier Notifier,
	options ...func(*Engine),
) *Engine {
	e := &Engine{
		customers:     customers,
		funds:         funds,
		subs:          subs,
		txs:           txs,
		notifier:      notifier,
		log:           slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
		observer:      nopObserver{},
		maxAttempts:   defaultMaxAttempts,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(log *slog.Logger) func(*Engine) {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMaxAttempts bounds optimistic-concurrency retries
func WithMaxAttempts(n int) func(*Engine) {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithNotifyTimeout bounds a single notification dispatch
func WithNotifyTimeout(d time.Duration) func(*Engine) {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(o OperationObserver) func(*Engine) {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) func(*Engine) {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the ledger entry ID generator
func WithIDGenerator(gen func() string) func(*Engine) {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// Subscribe validates and commits a subscription of amount to fundID for customerID
func (e *Engine) Subscribe(ctx context.Context, customerID, fundID string, amount decimal.Decimal) (*SubscriptionResult, error) {
	if err := CheckAmount(amount); err != nil {
		e.observer.ObserveOperation(opSubscribe, outcome(err))
		return nil, err
	}
	var (
		res *SubscriptionResult
		n   Notification
	)
	err := e.retry(ctx, opSubscribe, func() error {
		var err error
		res, n, err = e.subscribeOnce(ctx, customerID, fundID, amount)
		return err
	})
	e.observer.ObserveOperation(opSubscribe, outcome(err))
	if err != nil {
		return nil, err
	}
	e.log.Info("subscription committed",
		slog.String("customer_id", customerID),
		slog.String("fund_id", fundID),
		slog.String("amount", amount.String()),
	)
	e.dispatch(ctx, n)
	return res, nil
}

// Cancel closes the active subscription of customerID to fundID and refunds its amount
func (e *Engine) Cancel(ctx context.Context, customerID, fundID string) error {
	var n Notification
	err := e.retry(ctx, opCancel, func() error {
		var err error
		n, err = e.cancelOnce(ctx, customerID, fundID)
		return err
	})
	e.observer.ObserveOperation(opCancel, outcome(err))
	if err != nil {
		return err
	}
	e.log.Info("subscription cancelled",
		slog.String("customer_id", customerID),
		slog.String("fund_id", fundID),
		slog.String("refund", n.Amount.String()),
	)
	e.dispatch(ctx, n)
	return nil
}

// ListActiveSubscriptions returns the customer's active subscriptions ordered by subscription time
func (e *Engine) ListActiveSubscriptions(ctx context.Context, customerID string) ([]SubscriptionResult, error) {
	subs, err := e.subs.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	active := make([]*entity.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].SubscribedAt.Equal(active[j].SubscribedAt) {
			return active[i].FundID < active[j].FundID
		}
		return active[i].SubscribedAt.Before(active[j].SubscribedAt)
	})
	out := make([]SubscriptionResult, 0, len(active))
	for _, s := range active {
		out = append(out, toResult(s))
	}
	return out, nil
}

// GetBalance returns the customer's available balance
func (e *Engine) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	balance, err := e.customers.GetBalance(ctx, customerID)
	if errors.Is(err, ErrCustomerNotFound) {
		return decimal.Zero, businessf(ErrCustomerNotFound, "customer %s not found", customerID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Wait blocks until every in-flight notification has finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) retry(ctx context.Context, op string, attempt func() error) error {
	for i := 1; ; i++ {
		err := attempt()
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if i >= e.maxAttempts {
			e.log.Warn("giving up after conflicts", slog.String("op", op), slog.Int("attempts", i))
			return businessf(ErrConcurrentModification, "the account was modified concurrently, please retry")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.observer.ObserveRetry(op)
		e.log.Debug("conflict, retrying", slog.String("op", op), slog.Int("attempt", i))
	}
}

func (e *Engine) subscribeOnce(ctx context.Context, customerID, fundID string, amount decimal.Decimal) (*SubscriptionResult, Notification, error) {
	customer, err := e.loadCustomer(ctx, customerID)
	if err != nil {
		return nil, Notification{}, err
	}
	fund, err := e.loadFund(ctx, fundID, customer)
	if err != nil {
		return nil, Notification{}, err
	}
	var existing *entity.Subscription
	if customer != nil && fund != nil {
		if existing, err = e.loadSubscription(ctx, customerID, fundID); err != nil {
			return nil, Notification{}, err
		}
	}
	if err := ValidateSubscribe(customer, customerID, fundID, fund, existing, amount); err != nil {
		return nil, Notification{}, err
	}

	now := e.now().UTC().Truncate(time.Microsecond)
	tx := &entity.Transaction{
		ID:          strfmt.UUID(e.newID()),
		CustomerID:  customerID,
		FundID:      fundID,
		FundName:    fund.Name,
		Type:        entity.TransactionSubscription,
		Amount:      amount,
		Timestamp:   now,
		Status:      entity.TransactionPending,
		Description: fmt.Sprintf("Subscription to fund %s", fund.Name),
	}
	if err := e.txs.AppendTransaction(ctx, tx); err != nil {
		return nil, Notification{}, fmt.Errorf("append ledger entry: %w", err)
	}

	sub := &entity.Subscription{
		CustomerID:       customerID,
		FundID:           fundID,
		FundName:         fund.Name,
		SubscribedAmount: amount,
		SubscribedAt:     now,
		Status:           entity.SubscriptionActive,
	}
	var undo func(context.Context) error
	if existing == nil {
		err = e.subs.CreateSubscription(ctx, sub)
		undo = func(ctx context.Context) error {
			return e.subs.DeleteSubscription(ctx, sub)
		}
	} else {
		err = e.subs.UpdateSubscription(ctx, sub, existing)
		undo = func(ctx context.Context) error {
			return e.subs.UpdateSubscription(ctx, existing, sub)
		}
	}
	if err != nil {
		e.abort(ctx, tx, nil, nil)
		return nil, Notification{}, fmt.Errorf("save subscription: %w", err)
	}

	debit := func(ctx context.Context, prev decimal.Decimal) error {
		return e.settle(ctx, opSubscribe, customerID, prev, amount.Neg(), func(balance decimal.Decimal) error {
			return CheckSufficientBalance(balance, fund, amount)
		})
	}
	if err := debit(ctx, customer.Balance); err != nil {
		if !e.abort(ctx, tx, undo, e.fromCurrentBalance(customerID, debit)) {
			return nil, Notification{}, stepErr("debit balance", err)
		}
	} else {
		e.complete(ctx, tx)
	}

	res := toResult(sub)
	return &res, notificationFor(EventSubscribed, customer, fund.Name, amount), nil
}

func (e *Engine) cancelOnce(ctx context.Context, customerID, fundID string) (Notification, error) {
	existing, err := e.loadSubscription(ctx, customerID, fundID)
	if err != nil {
		return Notification{}, err
	}
	if err := CheckCancellable(fundID, existing); err != nil {
		return Notification{}, err
	}
	customer, err := e.loadCustomer(ctx, customerID)
	if err != nil {
		return Notification{}, err
	}
	if customer == nil {
		return Notification{}, businessf(ErrCustomerNotFound, "customer %s not found", customerID)
	}

	refund := existing.SubscribedAmount
	tx := &entity.Transaction{
		ID:          strfmt.UUID(e.newID()),
		CustomerID:  customerID,
		FundID:      fundID,
		FundName:    existing.FundName,
		Type:        entity.TransactionCancellation,
		Amount:      refund,
		Timestamp:   e.now().UTC(),
		Status:      entity.TransactionPending,
		Description: fmt.Sprintf("Cancellation of subscription to fund %s", existing.FundName),
	}
	if err := e.txs.AppendTransaction(ctx, tx); err != nil {
		return Notification{}, fmt.Errorf("append ledger entry: %w", err)
	}

	cancelled := *existing
	cancelled.Status = entity.SubscriptionCancelled
	if err := e.subs.UpdateSubscription(ctx, &cancelled, existing); err != nil {
		e.abort(ctx, tx, nil, nil)
		return Notification{}, fmt.Errorf("cancel subscription: %w", err)
	}
	undo := func(ctx context.Context) error {
		return e.subs.UpdateSubscription(ctx, existing, &cancelled)
	}

	credit := func(ctx context.Context, prev decimal.Decimal) error {
		return e.settle(ctx, opCancel, customerID, prev, refund, nil)
	}
	if err := credit(ctx, customer.Balance); err != nil {
		if !e.abort(ctx, tx, undo, e.fromCurrentBalance(customerID, credit)) {
			return Notification{}, stepErr("credit balance", err)
		}
	} else {
		e.complete(ctx, tx)
	}

	return notificationFor(EventCancelled, customer, existing.FundName, refund), nil
}

func (e *Engine) loadCustomer(ctx context.Context, id string) (*entity.Customer, error) {
	c, err := e.customers.GetCustomer(ctx, id)
	switch {
	case errors.Is(err, ErrCustomerNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// loadFund skips the lookup when the customer is already known to be missing
func (e *Engine) loadFund(ctx context.Context, id string, customer *entity.Customer) (*entity.Fund, error) {
	if customer == nil {
		return nil, nil
	}
	f, err := e.funds.GetFund(ctx, id)
	switch {
	case errors.Is(err, ErrFundNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get fund: %w", err)
	}
	return f, nil
}

func (e *Engine) loadSubscription(ctx context.Context, customerID, fundID string) (*entity.Subscription, error) {
	s, err := e.subs.GetSubscription(ctx, customerID, fundID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// complete finalises the ledger entry. The money has already moved, so a failure here only leaves the entry
// Pending for the reconciler.
func (e *Engine) complete(ctx context.Context, tx *entity.Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := e.txs.FinalizeTransaction(ctx, tx.ID.String(), entity.TransactionCompleted); err != nil {
		e.log.Error("finalize ledger entry",
			slog.String("transaction_id", tx.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	tx.Status = entity.TransactionCompleted
}

// settle moves the balance by delta with a compare-and-set from prev. After a lost compare-and-set it re-reads
// the balance and runs check against it before the next try.
func (e *Engine) settle(ctx context.Context, op, customerID string, prev, delta decimal.Decimal, check func(decimal.Decimal) error) error {
	for i := 1; ; i++ {
		if check != nil {
			if err := check(prev); err != nil {
				return err
			}
		}
		err := e.customers.UpdateBalance(ctx, customerID, prev, prev.Add(delta))
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if i >= e.maxAttempts {
			e.log.Warn("giving up on balance update after conflicts", slog.String("op", op), slog.Int("attempts", i))
			return businessf(ErrConcurrentModification, "the account was modified concurrently, please retry")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.observer.ObserveRetry(op)
		if prev, err = e.customers.GetBalance(ctx, customerID); err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
	}
}

func (e *Engine) fromCurrentBalance(customerID string, step func(context.Context, decimal.Decimal) error) func(context.Context) error {
	return func(ctx context.Context) error {
		balance, err := e.customers.GetBalance(ctx, customerID)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		return step(ctx, balance)
	}
}

// abort runs undo (when set) and marks the ledger entry Failed.
//
// undo only applies while the subscription is still what this attempt wrote. ErrConflict from undo means another
// operation already acted on that record, so forward finishes the balance step, the entry is Completed and abort
// reports true. Any other failure leaves the entry Pending so the reconciler reports it.
func (e *Engine) abort(ctx context.Context, tx *entity.Transaction, undo, forward func(context.Context) error) bool {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if undo != nil {
		err := undo(cctx)
		if errors.Is(err, ErrConflict) && forward != nil {
			e.log.Warn("subscription changed before undo, rolling forward",
				slog.String("transaction_id", tx.ID.String()),
				slog.String("customer_id", tx.CustomerID),
				slog.String("fund_id", tx.FundID),
			)
			if err = forward(cctx); err == nil {
				e.complete(ctx, tx)
				return true
			}
		}
		if err != nil {
			e.log.Error("compensation failed, ledger entry left pending",
				slog.String("transaction_id", tx.ID.String()),
				slog.String("customer_id", tx.CustomerID),
				slog.String("fund_id", tx.FundID),
				slog.String("error", err.Error()),
			)
			return false
		}
	}
	if err := e.txs.FinalizeTransaction(cctx, tx.ID.String(), entity.TransactionFailed); err != nil {
		e.log.Error("mark ledger entry failed",
			slog.String("transaction_id", tx.ID.String()),
			slog.String("error", err.Error()),
		)
		return false
	}
	tx.Status = entity.TransactionFailed
	return false
}

func (e *Engine) dispatch(ctx context.Context, n Notification) {
	if e.notifier == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
		defer cancel()
		for _, r := range e.notifier.Notify(ctx, n) {
			if r.Err != nil {
				e.log.Warn("notification failed",
					slog.String("event", string(n.Event)),
					slog.String("customer_id", n.CustomerID),
					slog.String("channel", r.Channel),
					slog.String("error", r.Err.Error()),
				)
				continue
			}
			e.log.Info("notification sent",
				slog.String("event", string(n.Event)),
				slog.String("customer_id", n.CustomerID),
				slog.String("channel", r.Channel),
				slog.String("message_id", r.MessageID),
			)
		}
	}()
}

func notificationFor(event NotificationEvent, c *entity.Customer, fundName string, amount decimal.Decimal) Notification {
	return Notification{
		Event:      event,
		CustomerID: c.ID,
		Email:      c.Email.String(),
		Phone:      c.Phone,
		Preference: c.NotificationPreference,
		FundName:   fundName,
		Amount:     amount,
	}
}

// stepErr keeps rule violations as they are so callers see their message unchanged
func stepErr(step string, err error) error {
	if IsBusiness(err) {
		return err
	}
	return fmt.Errorf("%s: %w", step, err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Kind.Error()
	}
	return "error"
}
