// Package memory keeps customers, funds, subscriptions and ledger entries in process memory. Conditional writes
// follow the same rules as the postgres repositories, so the engine behaves identically on both.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"funds_tracker/internal/entity"
	"funds_tracker/internal/usecase"
)

type subKey struct {
	customerID string
	fundID     string
}

// Store is safe for concurrent use. Records are copied on the way in and out.
type Store struct {
	mu        sync.RWMutex
	customers map[string]entity.Customer
	funds     map[string]entity.Fund
	subs      map[subKey]entity.Subscription
	txs       map[string]entity.Transaction
	txOrder   []string
}

var (
	_ usecase.CustomerRepository     = (*Store)(nil)
	_ usecase.FundRepository         = (*Store)(nil)
	_ usecase.SubscriptionRepository = (*Store)(nil)
	_ usecase.TransactionRepository  = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		customers: make(map[string]entity.Customer),
		funds:     make(map[string]entity.Fund),
		subs:      make(map[subKey]entity.Subscription),
		txs:       make(map[string]entity.Transaction),
	}
}

// PutFund adds or replaces a catalog entry
func (s *Store) PutFund(f entity.Fund) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funds[f.ID] = f
}

// SeedFunds loads the default catalog
func (s *Store) SeedFunds() {
	for _, f := range DefaultFunds() {
		s.PutFund(f)
	}
}

// DefaultFunds is the reference catalog, mirrored by the postgres seed migration
func DefaultFunds() []entity.Fund {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []entity.Fund{
		{ID: "1", Name: "FPV_BTG_PACTUAL_RECAUDADORA", MinAmount: decimal.NewFromInt(75_000), Category: "FPV", IsActive: true, CreatedAt: created},
		{ID: "2", Name: "FPV_BTG_PACTUAL_ECOPETROL", MinAmount: decimal.NewFromInt(125_000), Category: "FPV", IsActive: true, CreatedAt: created},
		{ID: "3", Name: "DEUDAPRIVADA", MinAmount: decimal.NewFromInt(50_000), Category: "FIC", IsActive: true, CreatedAt: created},
		{ID: "4", Name: "FDO-ACCIONES", MinAmount: decimal.NewFromInt(250_000), Category: "FIC", IsActive: true, CreatedAt: created},
		{ID: "5", Name: "FPV_BTG_PACTUAL_DINAMICA", MinAmount: decimal.NewFromInt(100_000), Category: "FPV", IsActive: true, CreatedAt: created},
	}
}

func (s *Store) GetCustomer(_ context.Context, id string) (*entity.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, usecase.ErrCustomerNotFound
	}
	return &c, nil
}

func (s *Store) GetCustomerByEmail(_ context.Context, email string) (*entity.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if strings.EqualFold(c.Email.String(), email) {
			return &c, nil
		}
	}
	return nil, usecase.ErrCustomerNotFound
}

func (s *Store) CreateCustomer(_ context.Context, c *entity.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return usecase.ErrConflict
	}
	for _, existing := range s.customers {
		if strings.EqualFold(existing.Email.String(), c.Email.String()) {
			return usecase.ErrConflict
		}
	}
	s.customers[c.ID] = *c
	return nil
}

func (s *Store) GetBalance(_ context.Context, id string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return decimal.Zero, usecase.ErrCustomerNotFound
	}
	return c.Balance, nil
}

func (s *Store) UpdateBalance(_ context.Context, id string, prev, next decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return usecase.ErrCustomerNotFound
	}
	if !c.Balance.Equal(prev) || next.IsNegative() {
		return usecase.ErrConflict
	}
	now := time.Now().UTC()
	c.Balance = next
	c.UpdatedAt = &now
	s.customers[id] = c
	return nil
}

func (s *Store) UpdateNotificationPreference(_ context.Context, id string, pref entity.NotificationPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return usecase.ErrCustomerNotFound
	}
	now := time.Now().UTC()
	c.NotificationPreference = pref
	c.UpdatedAt = &now
	s.customers[id] = c
	return nil
}

func (s *Store) GetFund(_ context.Context, id string) (*entity.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.funds[id]
	if !ok {
		return nil, usecase.ErrFundNotFound
	}
	return &f, nil
}

func (s *Store) ListFunds(_ context.Context) ([]*entity.Fund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Fund, 0, len(s.funds))
	for _, f := range s.funds {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetSubscription(_ context.Context, customerID, fundID string) (*entity.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subKey{customerID, fundID}]
	if !ok {
		return nil, usecase.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *Store) ListSubscriptions(_ context.Context, customerID string) ([]*entity.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Subscription, 0)
	for k, sub := range s.subs {
		if k.customerID == customerID {
			sub := sub
			out = append(out, &sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FundID < out[j].FundID })
	return out, nil
}

func (s *Store) CreateSubscription(_ context.Context, sub *entity.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subKey{sub.CustomerID, sub.FundID}
	if _, ok := s.subs[k]; ok {
		return usecase.ErrConflict
	}
	s.subs[k] = *sub
	return nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *entity.Subscription, expected *entity.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subKey{sub.CustomerID, sub.FundID}
	cur, ok := s.subs[k]
	if !ok || !cur.SameState(expected) {
		return usecase.ErrConflict
	}
	s.subs[k] = *sub
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, expected *entity.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subKey{expected.CustomerID, expected.FundID}
	cur, ok := s.subs[k]
	if !ok {
		return usecase.ErrSubscriptionNotFound
	}
	if !cur.SameState(expected) {
		return usecase.ErrConflict
	}
	delete(s.subs, k)
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, t *entity.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := t.ID.String()
	if _, ok := s.txs[id]; ok {
		return usecase.ErrConflict
	}
	s.txs[id] = *t
	s.txOrder = append(s.txOrder, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok {
		return nil, usecase.ErrTransactionNotFound
	}
	return &t, nil
}

func (s *Store) ListTransactions(_ context.Context, customerID string) ([]*entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Transaction, 0)
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		t := s.txs[s.txOrder[i]]
		if t.CustomerID == customerID {
			out = append(out, &t)
		}
	}
	return out, nil
}

func (s *Store) FinalizeTransaction(_ context.Context, id string, status entity.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return usecase.ErrTransactionNotFound
	}
	if t.Status != entity.TransactionPending || !status.IsFinal() {
		return usecase.ErrConflict
	}
	t.Status = status
	s.txs[id] = t
	return nil
}

func (s *Store) ListPendingBefore(_ context.Context, before time.Time) ([]*entity.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Transaction, 0)
	for _, id := range s.txOrder {
		t := s.txs[id]
		if t.Status == entity.TransactionPending && t.Timestamp.Before(before) {
			out = append(out, &t)
		}
	}
	return out, nil
}
