package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funds_tracker/internal/entity"
)

func Test_catalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fr := NewMockFundRepository(ctrl)
	fr.EXPECT().ListFunds(ctx).Return([]*entity.Fund{
		{ID: "3", IsActive: true},
		{ID: "2", IsActive: false},
		{ID: "1", IsActive: true},
	}, nil)
	fr.EXPECT().GetFund(ctx, "9").Return(nil, ErrFundNotFound)
	fr.EXPECT().GetFund(ctx, "2").Return(&entity.Fund{ID: "2", IsActive: false}, nil)
	fr.EXPECT().GetFund(ctx, "1").Return(&entity.Fund{ID: "1", IsActive: true}, nil)

	uc := NewCatalog(fr)
	funds, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, funds, 2)
	assert.Equal(t, "1", funds[0].ID)
	assert.Equal(t, "3", funds[1].ID)

	_, err = uc.Get(ctx, "9")
	assert.ErrorIs(t, err, ErrFundNotFound)

	_, err = uc.Get(ctx, "2")
	assert.ErrorIs(t, err, ErrFundNotFound)
	assert.True(t, IsBusiness(err))

	f, err := uc.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", f.ID)
}

func Test_ledger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	now := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)
	tr := NewMockTransactionRepository(ctrl)
	tr.EXPECT().ListTransactions(ctx, "c-1").Return([]*entity.Transaction{
		{ID: "a", CustomerID: "c-1", Timestamp: now},
		{ID: "b", CustomerID: "c-1", Timestamp: now.Add(time.Second)},
	}, nil)
	tr.EXPECT().GetTransaction(ctx, "b").Return(&entity.Transaction{ID: "b", CustomerID: "c-1"}, nil).Times(2)

	uc := NewLedger(tr)
	txs, err := uc.History(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "b", txs[0].ID.String())

	tx, err := uc.Get(ctx, "c-1", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", tx.ID.String())

	_, err = uc.Get(ctx, "c-2", "b")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
