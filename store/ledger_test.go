package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Govind-619/SettleSphere/models"
	"github.com/Govind-619/SettleSphere/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyCreditCreditsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "buyer@example.com")
	testutil.CreateDeposit(t, db, "D1", user.ID, "100000", "ORDER-1")

	credit, err := s.ApplyCredit(ctx, "D1", decimal.NewFromInt(100000), Change{
		CaptureID: "CAP-1",
		Event:     map[string]interface{}{"status": "COMPLETED"},
	})
	require.NoError(t, err)
	assert.True(t, credit.Balance.Equal(decimal.NewFromInt(100000)), "balance %s", credit.Balance)
	assert.Equal(t, user.ID, credit.UserID)

	_, err = s.ApplyCredit(ctx, "D1", decimal.NewFromInt(100000), Change{})
	assert.ErrorIs(t, err, ErrAlreadyApplied)

	assert.True(t, testutil.WalletBalance(t, db, user.ID).Equal(decimal.NewFromInt(100000)))
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.WalletTransaction{}, "reference = ?", "DEPOSIT-D1"))

	deposit, err := s.DepositByID(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusCompleted, deposit.Status)
	assert.NotNil(t, deposit.CompletedAt)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(deposit.Payload, &payload))
	assert.Equal(t, "CAP-1", payload["capture_id"])
	assert.Len(t, payload["events"], 1)
}

func TestApplyCreditAddsToExistingWallet(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	user := testutil.CreateUser(t, db, "buyer@example.com")
	require.NoError(t, db.Create(&models.Wallet{UserID: user.ID, Balance: decimal.RequireFromString("250.50")}).Error)
	testutil.CreateDeposit(t, db, "D2", user.ID, "49.50", "")

	credit, err := s.ApplyCredit(context.Background(), "D2", decimal.RequireFromString("49.50"), Change{})
	require.NoError(t, err)

	assert.True(t, credit.Balance.Equal(decimal.NewFromInt(300)), "balance %s", credit.Balance)
	assert.EqualValues(t, 1, testutil.Count(t, db, &models.Wallet{}))
}

func TestApplyCreditUnknownDeposit(t *testing.T) {
	s := New(testutil.NewDB(t))

	_, err := s.ApplyCredit(context.Background(), "missing", decimal.NewFromInt(1), Change{})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyCreditConcurrent(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	user := testutil.CreateUser(t, db, "buyer@example.com")
	testutil.CreateDeposit(t, db, "D1", user.ID, "100000", "ORDER-1")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
		already int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyCredit(context.Background(), "D1", decimal.NewFromInt(100000), Change{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				applied++
			case errors.Is(err, ErrAlreadyApplied):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, workers-1, already)
	assert.True(t, testutil.WalletBalance(t, db, user.ID).Equal(decimal.NewFromInt(100000)))
}

func TestCompleteCheckoutMarksOrderPaid(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	order, payment := testutil.CreateCheckout(t, db, 1, "INV-1", "ORDER-1", "25.00")

	settlement, err := s.CompleteCheckout(ctx, payment.ID, Change{CaptureID: "CAP-9"})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, settlement.Payment.Status)
	assert.Equal(t, "CAP-9", settlement.Payment.CaptureID)
	require.NotNil(t, settlement.Order)
	assert.Equal(t, order.ID, settlement.Order.ID)
	assert.Equal(t, models.OrderStatusPaid, settlement.Order.Status)
	require.NotNil(t, settlement.Order.PaymentID)
	assert.Equal(t, payment.ID, *settlement.Order.PaymentID)
	assert.NotNil(t, settlement.Order.PaidAt)

	_, err = s.CompleteCheckout(ctx, payment.ID, Change{})
	assert.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestCompleteCheckoutRollsBackWhenOrderUpdateFails(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	order, payment := testutil.CreateCheckout(t, db, 1, "INV-1", "ORDER-1", "25.00")

	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_orders", func(tx *gorm.DB) {
		if tx.Statement.Table == "orders" {
			_ = tx.AddError(errors.New("orders table unavailable"))
		}
	}))

	_, err := s.CompleteCheckout(context.Background(), payment.ID, Change{CaptureID: "CAP-9"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)

	var gotPayment models.Payment
	require.NoError(t, db.First(&gotPayment, payment.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, gotPayment.Status)
	assert.Empty(t, gotPayment.CaptureID)

	var gotOrder models.Order
	require.NoError(t, db.First(&gotOrder, order.ID).Error)
	assert.Equal(t, models.OrderStatusPendingPayment, gotOrder.Status)
}

func TestFailAndRefund(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	_, denied := testutil.CreateCheckout(t, db, 1, "INV-1", "ORDER-1", "10.00")
	_, paid := testutil.CreateCheckout(t, db, 1, "INV-2", "ORDER-2", "20.00")

	settlement, err := s.FailCheckout(ctx, denied.ID, Change{Reason: "PAYMENT.CAPTURE.DENIED"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, settlement.Payment.Status)
	assert.Equal(t, models.OrderStatusPaymentFailed, settlement.Order.Status)
	assert.Equal(t, "PAYMENT.CAPTURE.DENIED", settlement.Order.FailureReason)

	_, err = s.RefundCapture(ctx, paid.ID, Change{})
	assert.ErrorIs(t, err, ErrAlreadyApplied, "refund requires a completed payment")

	_, err = s.CompleteCheckout(ctx, paid.ID, Change{})
	require.NoError(t, err)
	settlement, err = s.RefundCapture(ctx, paid.ID, Change{})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, settlement.Payment.Status)
	assert.Equal(t, models.OrderStatusRefunded, settlement.Order.Status)
	assert.NotNil(t, settlement.Order.RefundedAt)
}

func TestAttachDepositOrder(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	testutil.CreateDeposit(t, db, "D1", 1, "10", "")

	deposit, created, err := s.AttachDepositOrder(ctx, "D1", "ORDER-1", "https://pay.example/approve", Change{Fields: map[string]interface{}{"gateway_order_id": "ORDER-1"}})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ORDER-1", deposit.GatewayOrderID)
	assert.Equal(t, "https://pay.example/approve", deposit.PaymentURL)

	_, err = s.ApplyCredit(ctx, "D1", decimal.NewFromInt(10), Change{})
	require.NoError(t, err)
	_, _, err = s.AttachDepositOrder(ctx, "D1", "ORDER-2", "", Change{})
	assert.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestAttachDepositOrderKeepsFirstOrder(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	testutil.CreateDeposit(t, db, "D1", 1, "10", "")

	_, created, err := s.AttachDepositOrder(ctx, "D1", "ORDER-A", "https://pay.example/approve/A", Change{})
	require.NoError(t, err)
	require.True(t, created)

	deposit, created, err := s.AttachDepositOrder(ctx, "D1", "ORDER-B", "https://pay.example/approve/B", Change{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ORDER-A", deposit.GatewayOrderID)
	assert.Equal(t, "https://pay.example/approve/A", deposit.PaymentURL)

	var stored models.Deposit
	require.NoError(t, db.First(&stored, "id = ?", "D1").Error)
	assert.Equal(t, "ORDER-A", stored.GatewayOrderID)
	assert.Equal(t, "https://pay.example/approve/A", stored.PaymentURL)
}

func TestAnnotatePayment(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	_, payment := testutil.CreateCheckout(t, db, 1, "INV-1", "ORDER-1", "25.00")

	require.NoError(t, s.AnnotatePayment(ctx, payment.ID, Change{CaptureID: "CAP-1", Event: map[string]interface{}{"n": 1}}))
	require.NoError(t, s.AnnotatePayment(ctx, payment.ID, Change{CaptureID: "CAP-2", Event: map[string]interface{}{"n": 2}}))

	var got models.Payment
	require.NoError(t, db.First(&got, payment.ID).Error)
	assert.Equal(t, "CAP-1", got.CaptureID, "an existing capture id is never overwritten")
	assert.Equal(t, models.PaymentStatusPending, got.Status)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Payload, &doc))
	assert.Equal(t, "CAP-1", doc["capture_id"])
	assert.Len(t, doc["events"], 2)

	assert.ErrorIs(t, s.AnnotatePayment(ctx, 9999, Change{}), ErrNotFound)
}

func TestAnnotateDeposit(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)
	ctx := context.Background()
	testutil.CreateDeposit(t, db, "D1", 1, "10", "ORDER-1")

	require.NoError(t, s.AnnotateDeposit(ctx, "D1", Change{Event: map[string]interface{}{"action": "capture_deposit"}}))

	var got models.Deposit
	require.NoError(t, db.First(&got, "id = ?", "D1").Error)
	assert.Equal(t, models.DepositStatusPending, got.Status)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Payload, &doc))
	assert.Len(t, doc["events"], 1)
}

func TestMergePayloadKeepsHistory(t *testing.T) {
	first, err := mergePayload(nil, Change{
		Fields: map[string]interface{}{"payer_email": "a@example.com"},
		Event:  map[string]interface{}{"n": 1},
	})
	require.NoError(t, err)

	second, err := mergePayload(first, Change{
		Fields: map[string]interface{}{"payer_email": "b@example.com"},
		Event:  map[string]interface{}{"n": 2},
	})
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(second, &doc))
	assert.Equal(t, "a@example.com", doc["payer_email"])
	assert.Len(t, doc["events"], 2)

	legacy, err := mergePayload([]byte("not json"), Change{})
	require.NoError(t, err)
	assert.Contains(t, string(legacy), "not json")
}

func TestRecordEvent(t *testing.T) {
	db := testutil.NewDB(t)
	s := New(db)

	event := &models.GatewayEvent{Provider: "paypal", EventType: "PAYMENT.CAPTURE.COMPLETED", Intent: "checkout_completed", Outcome: "applied"}
	require.NoError(t, s.RecordEvent(context.Background(), event))

	assert.NotZero(t, event.ID)
	assert.False(t, event.ProcessedAt.IsZero())
}
