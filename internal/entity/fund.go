package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fund - investable product maintained by the catalog
type Fund struct {
	ID        string
	Name      string
	MinAmount decimal.Decimal
	Category  string
	IsActive  bool
	CreatedAt time.Time
}
