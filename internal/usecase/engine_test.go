package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funds_tracker/internal/entity"
)

var testNow = time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)

const txID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

type decimalEq struct{ want decimal.Decimal }

func (m decimalEq) Matches(x interface{}) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string { return "equals " + m.want.String() }

func dec(v int64) gomock.Matcher { return decimalEq{decimal.NewFromInt(v)} }

type engineMocks struct {
	cr *MockCustomerRepository
	fr *MockFundRepository
	sr *MockSubscriptionRepository
	tr *MockTransactionRepository
	nt *MockNotifier
}

func newTestEngine(ctrl *gomock.Controller, withNotifier bool) (*Engine, engineMocks) {
	m := engineMocks{
		cr: NewMockCustomerRepository(ctrl),
		fr: NewMockFundRepository(ctrl),
		sr: NewMockSubscriptionRepository(ctrl),
		tr: NewMockTransactionRepository(ctrl),
	}
	var n Notifier
	if withNotifier {
		m.nt = NewMockNotifier(ctrl)
		n = m.nt
	}
	e := NewEngine(m.cr, m.fr, m.sr, m.tr, n,
		WithEngineLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return txID }),
	)
	return e, m
}

func testCustomer(balance int64) *entity.Customer {
	return &entity.Customer{
		ID:                     "c-1",
		Email:                  "ana@example.com",
		Phone:                  "+573001234567",
		NotificationPreference: entity.NotifyEmail,
		Balance:                decimal.NewFromInt(balance),
		Role:                   entity.RoleCustomer,
	}
}

func testFund(id string, min int64) *entity.Fund {
	return &entity.Fund{ID: id, Name: "FPV_BTG_PACTUAL_RECAUDADORA", MinAmount: decimal.NewFromInt(min), Category: "FPV", IsActive: true}
}

func Test_engine_Subscribe_rejections(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tests := []struct {
		name     string
		amount   int64
		customer *entity.Customer
		fund     *entity.Fund
		existing *entity.Subscription
		want     error
	}{
		{"err, zero amount", 0, nil, nil, nil, ErrInvalidAmount},
		{"err, negative amount", -10, nil, nil, nil, ErrInvalidAmount},
		{"err, unknown customer", 100_000, nil, nil, nil, ErrCustomerNotFound},
		{"err, unknown fund", 100_000, testCustomer(500_000), nil, nil, ErrFundNotFound},
		{"err, inactive fund", 100_000, testCustomer(500_000), &entity.Fund{ID: "1", Name: "X", MinAmount: decimal.NewFromInt(1)}, nil, ErrFundNotFound},
		{"err, below minimum", 74_999, testCustomer(500_000), testFund("1", 75_000), nil, ErrBelowMinimumAmount},
		{"err, insufficient balance", 100_000, testCustomer(99_999), testFund("1", 75_000), nil, ErrInsufficientBalance},
		{"err, already subscribed", 100_000, testCustomer(500_000), testFund("1", 75_000),
			&entity.Subscription{CustomerID: "c-1", FundID: "1", FundName: "X", Status: entity.SubscriptionActive}, ErrAlreadySubscribed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			e, m := newTestEngine(ctrl, false)
			if tt.amount > 0 {
				if tt.customer == nil {
					m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(nil, ErrCustomerNotFound)
				} else {
					m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(tt.customer, nil)
					if tt.fund == nil {
						m.fr.EXPECT().GetFund(ctx, "1").Return(nil, ErrFundNotFound)
					} else {
						m.fr.EXPECT().GetFund(ctx, "1").Return(tt.fund, nil)
						if tt.existing == nil {
							m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
						} else {
							m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(tt.existing, nil)
						}
					}
				}
			}
			m.tr.EXPECT().AppendTransaction(gomock.Any(), gomock.Any()).Times(0)
			m.cr.EXPECT().UpdateBalance(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			res, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(tt.amount))
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsBusiness(err))
		})
	}
}

func Test_engine_Subscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("ok, new subscription", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, true)
		gomock.InOrder(
			m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil),
			m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil),
			m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound),
			m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, tx *entity.Transaction) error {
				assert.Equal(t, entity.TransactionPending, tx.Status)
				assert.Equal(t, entity.TransactionSubscription, tx.Type)
				assert.Equal(t, txID, tx.ID.String())
				assert.True(t, decimal.NewFromInt(75_000).Equal(tx.Amount))
				assert.Equal(t, testNow, tx.Timestamp)
				return nil
			}),
			m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(nil),
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(500_000), dec(425_000)).Return(nil),
			m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionCompleted).Return(nil),
		)
		m.nt.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n Notification) []ChannelResult {
			assert.Equal(t, EventSubscribed, n.Event)
			assert.Equal(t, "ana@example.com", n.Email)
			assert.True(t, decimal.NewFromInt(75_000).Equal(n.Amount))
			return []ChannelResult{{Channel: "email", MessageID: "m-1"}}
		})

		res, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(75_000))
		e.Wait()
		require.NoError(t, err)
		assert.Equal(t, "1", res.FundID)
		assert.Equal(t, string(entity.SubscriptionActive), res.Status)
		assert.Equal(t, testNow, res.SubscribedAt)
	})

	t.Run("ok, re-subscribe overwrites a cancelled record", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		old := &entity.Subscription{CustomerID: "c-1", FundID: "1", FundName: "X", SubscribedAmount: decimal.NewFromInt(80_000), Status: entity.SubscriptionCancelled}
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(old, nil)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(gomock.Any(), gomock.Any()).Times(0)
		m.sr.EXPECT().UpdateSubscription(ctx, gomock.Any(), old).DoAndReturn(
			func(_ context.Context, s *entity.Subscription, _ *entity.Subscription) error {
				assert.Equal(t, entity.SubscriptionActive, s.Status)
				assert.True(t, decimal.NewFromInt(90_000).Equal(s.SubscribedAmount))
				return nil
			})
		m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(500_000), dec(410_000)).Return(nil)
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionCompleted).Return(nil)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(90_000))
		require.NoError(t, err)
	})

	t.Run("ok, lost balance update retries only the debit", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(nil)
		gomock.InOrder(
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(500_000), dec(400_000)).Return(ErrConflict),
			m.cr.EXPECT().GetBalance(ctx, "c-1").Return(decimal.NewFromInt(450_000), nil),
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(450_000), dec(350_000)).Return(nil),
		)
		m.sr.EXPECT().DeleteSubscription(gomock.Any(), gomock.Any()).Times(0)
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionCompleted).Return(nil)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		require.NoError(t, err)
	})

	t.Run("err, balance drained between retries undoes the subscription", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(nil)
		m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(500_000), dec(400_000)).Return(ErrConflict)
		m.cr.EXPECT().GetBalance(ctx, "c-1").Return(decimal.NewFromInt(50_000), nil)
		m.sr.EXPECT().DeleteSubscription(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *entity.Subscription) error {
			assert.Equal(t, "1", s.FundID)
			assert.Equal(t, entity.SubscriptionActive, s.Status)
			assert.True(t, decimal.NewFromInt(100_000).Equal(s.SubscribedAmount))
			return nil
		})
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionFailed).Return(nil)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.EqualError(t, err, "not enough balance to subscribe to fund FPV_BTG_PACTUAL_RECAUDADORA")
	})

	t.Run("err, conflicts exhaust the attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(nil)
		m.cr.EXPECT().UpdateBalance(ctx, "c-1", gomock.Any(), gomock.Any()).Return(ErrConflict).Times(3)
		m.cr.EXPECT().GetBalance(ctx, "c-1").Return(decimal.NewFromInt(500_000), nil).Times(2)
		m.sr.EXPECT().DeleteSubscription(gomock.Any(), gomock.Any()).Return(nil)
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionFailed).Return(nil)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("ok, record changed before the undo rolls the debit forward", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(nil)
		gomock.InOrder(
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(500_000), dec(400_000)).Return(errors.New("deadlock detected")),
			m.sr.EXPECT().DeleteSubscription(gomock.Any(), gomock.Any()).Return(ErrConflict),
			m.cr.EXPECT().GetBalance(gomock.Any(), "c-1").Return(decimal.NewFromInt(600_000), nil),
			m.cr.EXPECT().UpdateBalance(gomock.Any(), "c-1", dec(600_000), dec(500_000)).Return(nil),
			m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionCompleted).Return(nil),
		)

		res, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		require.NoError(t, err)
		assert.Equal(t, "1", res.FundID)
	})

	t.Run("err, subscription write fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		expected := errors.New("insert error")
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(expected)
		m.cr.EXPECT().UpdateBalance(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		m.sr.EXPECT().DeleteSubscription(gomock.Any(), gomock.Any()).Times(0)
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionFailed).Return(nil)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		assert.ErrorIs(t, err, expected)
		assert.False(t, IsBusiness(err))
	})

	t.Run("err, failed compensation leaves the entry pending", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		expected := errors.New("connection reset")
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(500_000), nil)
		m.fr.EXPECT().GetFund(ctx, "1").Return(testFund("1", 75_000), nil)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "1").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().CreateSubscription(ctx, gomock.Any()).Return(nil)
		m.cr.EXPECT().UpdateBalance(ctx, "c-1", gomock.Any(), gomock.Any()).Return(expected)
		m.sr.EXPECT().DeleteSubscription(gomock.Any(), gomock.Any()).Return(errors.New("still down"))
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		assert.ErrorIs(t, err, expected)
	})

	t.Run("err, customer lookup fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		expected := errors.New("timeout")
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(nil, expected)

		_, err := e.Subscribe(ctx, "c-1", "1", decimal.NewFromInt(100_000))
		assert.ErrorIs(t, err, expected)
		assert.False(t, IsBusiness(err))
	})
}

func Test_engine_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	active := func() *entity.Subscription {
		return &entity.Subscription{CustomerID: "c-1", FundID: "3", FundName: "DEUDAPRIVADA",
			SubscribedAmount: decimal.NewFromInt(60_000), SubscribedAt: testNow, Status: entity.SubscriptionActive}
	}

	t.Run("err, never subscribed", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(nil, ErrSubscriptionNotFound)
		m.tr.EXPECT().AppendTransaction(gomock.Any(), gomock.Any()).Times(0)

		err := e.Cancel(ctx, "c-1", "3")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("err, already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		s := active()
		s.Status = entity.SubscriptionCancelled
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(s, nil)

		err := e.Cancel(ctx, "c-1", "3")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("ok, refunds the subscribed amount", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, true)
		gomock.InOrder(
			m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(active(), nil),
			m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(440_000), nil),
			m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, tx *entity.Transaction) error {
				assert.Equal(t, entity.TransactionCancellation, tx.Type)
				assert.True(t, decimal.NewFromInt(60_000).Equal(tx.Amount))
				return nil
			}),
			m.sr.EXPECT().UpdateSubscription(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, s, expected *entity.Subscription) error {
					assert.Equal(t, entity.SubscriptionCancelled, s.Status)
					assert.Equal(t, entity.SubscriptionActive, expected.Status)
					return nil
				}),
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(440_000), dec(500_000)).Return(nil),
			m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionCompleted).Return(nil),
		)
		m.nt.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n Notification) []ChannelResult {
			assert.Equal(t, EventCancelled, n.Event)
			assert.Equal(t, "DEUDAPRIVADA", n.FundName)
			return []ChannelResult{{Channel: "email", Err: errors.New("bounced")}}
		})

		require.NoError(t, e.Cancel(ctx, "c-1", "3"))
		e.Wait()
	})

	t.Run("err, lost balance update restores the subscription", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		expected := errors.New("deadlock detected")
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(active(), nil)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(440_000), nil)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().UpdateSubscription(ctx, gomock.Any(), gomock.Any()).Return(nil)
		m.cr.EXPECT().UpdateBalance(ctx, "c-1", gomock.Any(), gomock.Any()).Return(expected)
		m.sr.EXPECT().UpdateSubscription(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, s, expected *entity.Subscription) error {
				assert.Equal(t, entity.SubscriptionActive, s.Status)
				assert.Equal(t, entity.SubscriptionCancelled, expected.Status)
				return nil
			})
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionFailed).Return(nil)

		err := e.Cancel(ctx, "c-1", "3")
		assert.ErrorIs(t, err, expected)
	})

	t.Run("ok, lost balance update re-reads and credits again", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(active(), nil)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(440_000), nil)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().UpdateSubscription(ctx, gomock.Any(), gomock.Any()).Return(nil).Times(1)
		gomock.InOrder(
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(440_000), dec(500_000)).Return(ErrConflict),
			m.cr.EXPECT().GetBalance(ctx, "c-1").Return(decimal.NewFromInt(290_000), nil),
			m.cr.EXPECT().UpdateBalance(ctx, "c-1", dec(290_000), dec(350_000)).Return(nil),
		)
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionCompleted).Return(nil)

		require.NoError(t, e.Cancel(ctx, "c-1", "3"))
	})

	t.Run("err, concurrent cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		cancelled := active()
		cancelled.Status = entity.SubscriptionCancelled
		gomock.InOrder(
			m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(active(), nil),
			m.sr.EXPECT().GetSubscription(ctx, "c-1", "3").Return(cancelled, nil),
		)
		m.cr.EXPECT().GetCustomer(ctx, "c-1").Return(testCustomer(440_000), nil)
		m.tr.EXPECT().AppendTransaction(ctx, gomock.Any()).Return(nil)
		m.sr.EXPECT().UpdateSubscription(ctx, gomock.Any(), gomock.Any()).Return(fmt.Errorf("%w: status", ErrConflict))
		m.tr.EXPECT().FinalizeTransaction(gomock.Any(), txID, entity.TransactionFailed).Return(nil)

		err := e.Cancel(ctx, "c-1", "3")
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func Test_engine_Queries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("ok, active subscriptions ordered by subscription time", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.sr.EXPECT().ListSubscriptions(ctx, "c-1").Return([]*entity.Subscription{
			{FundID: "5", Status: entity.SubscriptionActive, SubscribedAt: testNow.Add(time.Minute)},
			{FundID: "2", Status: entity.SubscriptionCancelled, SubscribedAt: testNow},
			{FundID: "4", Status: entity.SubscriptionActive, SubscribedAt: testNow},
			{FundID: "1", Status: entity.SubscriptionActive, SubscribedAt: testNow},
		}, nil)

		subs, err := e.ListActiveSubscriptions(ctx, "c-1")
		require.NoError(t, err)
		require.Len(t, subs, 3)
		assert.Equal(t, []string{"1", "4", "5"}, []string{subs[0].FundID, subs[1].FundID, subs[2].FundID})
	})

	t.Run("err, balance of unknown customer", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.cr.EXPECT().GetBalance(ctx, "ghost").Return(decimal.Zero, ErrCustomerNotFound)

		_, err := e.GetBalance(ctx, "ghost")
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("ok, balance", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e, m := newTestEngine(ctrl, false)
		m.cr.EXPECT().GetBalance(ctx, "c-1").Return(decimal.NewFromInt(500_000), nil)

		b, err := e.GetBalance(ctx, "c-1")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(500_000).Equal(b))
	})
}
