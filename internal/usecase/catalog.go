package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"funds_tracker/internal/entity"
)

// Catalog exposes the fund catalog to customers
type Catalog struct {
	Fr FundRepository
}

// NewCatalog creates the catalog use case
func NewCatalog(fr FundRepository) *Catalog {
	return &Catalog{Fr: fr}
}

// List returns the active funds ordered by ID
func (c *Catalog) List(ctx context.Context) ([]*entity.Fund, error) {
	funds, err := c.Fr.ListFunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	out := make([]*entity.Fund, 0, len(funds))
	for _, f := range funds {
		if f.IsActive {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one open fund; inactive funds look the same as missing ones
func (c *Catalog) Get(ctx context.Context, fundID string) (*entity.Fund, error) {
	f, err := c.Fr.GetFund(ctx, fundID)
	if errors.Is(err, ErrFundNotFound) {
		f, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fund: %w", err)
	}
	if err := CheckFundOpen(fundID, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Ledger answers transaction-history queries
type Ledger struct {
	Tr TransactionRepository
}

// NewLedger creates the ledger query use case
func NewLedger(tr TransactionRepository) *Ledger {
	return &Ledger{Tr: tr}
}

// History returns the customer's ledger entries, newest first
func (l *Ledger) History(ctx context.Context, customerID string) ([]*entity.Transaction, error) {
	txs, err := l.Tr.ListTransactions(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp.After(txs[j].Timestamp) })
	return txs, nil
}

// Get returns one ledger entry owned by the customer; entries of other customers are reported as not found
func (l *Ledger) Get(ctx context.Context, customerID, transactionID string) (*entity.Transaction, error) {
	tx, err := l.Tr.GetTransaction(ctx, transactionID)
	if errors.Is(err, ErrTransactionNotFound) || (err == nil && tx.CustomerID != customerID) {
		return nil, businessf(ErrTransactionNotFound, "transaction %s not found", transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}
