package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Govind-619/SettleSphere/models"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Credit is the result of crediting a deposit to its owner's wallet
type Credit struct {
	DepositID     string
	UserID        uint
	WalletID      uint
	TransactionID uint
	Amount        decimal.Decimal
	Balance       decimal.Decimal
}

// Settlement is a payment after a transition, with the order it moved
type Settlement struct {
	Payment models.Payment
	Order   *models.Order
}

// ApplyCredit marks a pending deposit completed and credits amount to the
// owner's wallet in one transaction. The deposit id is the idempotency key:
// a second call for the same deposit returns ErrAlreadyApplied and changes
// nothing, and the ledger line's unique reference backs this up.
func (s *Store) ApplyCredit(ctx context.Context, depositID string, amount decimal.Decimal, ch Change) (*Credit, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %s", ErrStore, amount)
	}

	var credit *Credit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deposit models.Deposit
		if err := forUpdate(tx).Where("id = ?", depositID).First(&deposit).Error; err != nil {
			return err
		}
		if deposit.Status != models.DepositStatusPending {
			return ErrAlreadyApplied
		}

		payload, err := mergePayload(deposit.Payload, ch)
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Deposit{}).
			Where("id = ? AND status = ?", depositID, models.DepositStatusPending).
			Updates(map[string]interface{}{
				"status":       models.DepositStatusCompleted,
				"completed_at": now,
				"payload":      payload,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyApplied
		}

		wallet, err := walletForUser(tx, deposit.UserID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Wallet{}).
			Where("id = ?", wallet.ID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
			return err
		}

		description := ch.Description
		if description == "" {
			description = fmt.Sprintf("Wallet top-up (deposit %s)", depositID)
		}
		line := models.WalletTransaction{
			WalletID:    wallet.ID,
			Amount:      amount,
			Type:        models.TransactionTypeCredit,
			Description: description,
			DepositID:   &deposit.ID,
			Reference:   models.DepositReference(deposit.ID),
			Status:      models.TransactionStatusCompleted,
		}
		if err := tx.Create(&line).Error; err != nil {
			return err
		}

		if err := tx.First(wallet, wallet.ID).Error; err != nil {
			return err
		}

		credit = &Credit{
			DepositID:     deposit.ID,
			UserID:        deposit.UserID,
			WalletID:      wallet.ID,
			TransactionID: line.ID,
			Amount:        amount,
			Balance:       wallet.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, translate("apply credit", err)
	}

	utils.LogInfo("Deposit %s credited: amount=%s wallet=%d balance=%s", depositID, amount, credit.WalletID, credit.Balance)
	return credit, nil
}

// walletForUser returns the user's wallet, creating an empty one if needed.
// Concurrent creators race on the unique user_id index; the loser's insert
// is a no-op.
func walletForUser(tx *gorm.DB, userID uint) (*models.Wallet, error) {
	wallet := models.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&wallet).Error; err != nil {
		return nil, err
	}

	var existing models.Wallet
	if err := forUpdate(tx).Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// CompleteCheckout moves a payment from pending to completed and marks its
// order PAID in the same transaction
func (s *Store) CompleteCheckout(ctx context.Context, paymentID uint, ch Change) (*Settlement, error) {
	now := time.Now()
	return s.transitionPayment(ctx, "complete checkout", paymentID,
		models.PaymentStatusPending, models.PaymentStatusCompleted, ch,
		map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": now,
		})
}

// FailCheckout moves a payment from pending to failed and marks its order
// PAYMENT_FAILED
func (s *Store) FailCheckout(ctx context.Context, paymentID uint, ch Change) (*Settlement, error) {
	return s.transitionPayment(ctx, "fail checkout", paymentID,
		models.PaymentStatusPending, models.PaymentStatusFailed, ch,
		map[string]interface{}{
			"status":         models.OrderStatusPaymentFailed,
			"failure_reason": ch.Reason,
		})
}

// RefundCapture moves a completed payment to refunded and marks its order
// REFUNDED
func (s *Store) RefundCapture(ctx context.Context, paymentID uint, ch Change) (*Settlement, error) {
	now := time.Now()
	return s.transitionPayment(ctx, "refund capture", paymentID,
		models.PaymentStatusCompleted, models.PaymentStatusRefunded, ch,
		map[string]interface{}{
			"status":      models.OrderStatusRefunded,
			"refunded_at": now,
		})
}

func (s *Store) transitionPayment(ctx context.Context, op string, paymentID uint, from, to string, ch Change, orderFields map[string]interface{}) (*Settlement, error) {
	var settlement Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := forUpdate(tx).Where("id = ?", paymentID).First(&payment).Error; err != nil {
			return err
		}
		if payment.Status != from {
			return ErrAlreadyApplied
		}

		payload, err := mergePayload(payment.Payload, ch)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":  to,
			"payload": payload,
		}
		if ch.CaptureID != "" && payment.CaptureID == "" {
			updates["capture_id"] = ch.CaptureID
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", paymentID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyApplied
		}

		if payment.OrderID != 0 {
			orderFields["payment_id"] = payment.ID
			res := tx.Model(&models.Order{}).Where("id = ?", payment.OrderID).Updates(orderFields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				utils.LogWarn("Payment %d references missing order %d", payment.ID, payment.OrderID)
			} else {
				var order models.Order
				if err := tx.First(&order, payment.OrderID).Error; err != nil {
					return err
				}
				settlement.Order = &order
			}
		}

		return tx.First(&settlement.Payment, paymentID).Error
	})
	if err != nil {
		return nil, translate(op, err)
	}

	utils.LogInfo("Payment %d moved %s -> %s", paymentID, from, to)
	return &settlement, nil
}

// AttachDepositOrder stores the gateway order created for a pending deposit.
// The first order attached wins: when the deposit already carries one,
// nothing is written and the stored deposit comes back with created false.
func (s *Store) AttachDepositOrder(ctx context.Context, depositID, gatewayOrderID, paymentURL string, ch Change) (*models.Deposit, bool, error) {
	var (
		deposit models.Deposit
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", depositID).First(&deposit).Error; err != nil {
			return err
		}
		if deposit.Status != models.DepositStatusPending {
			return ErrAlreadyApplied
		}
		if deposit.GatewayOrderID != "" {
			return nil
		}

		payload, err := mergePayload(deposit.Payload, ch)
		if err != nil {
			return err
		}
		res := tx.Model(&models.Deposit{}).
			Where("id = ? AND status = ? AND (gateway_order_id = '' OR gateway_order_id IS NULL)", depositID, models.DepositStatusPending).
			Updates(map[string]interface{}{
				"gateway_order_id": gatewayOrderID,
				"payment_url":      paymentURL,
				"payload":          payload,
			})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		return tx.First(&deposit, "id = ?", depositID).Error
	})
	if err != nil {
		return nil, false, translate("attach deposit order", err)
	}
	if !created && deposit.Status != models.DepositStatusPending {
		return nil, false, ErrAlreadyApplied
	}
	return &deposit, created, nil
}

// AnnotatePayment records an event that changes no status: the event is
// appended to the payload and an empty capture_id is backfilled. Replays
// still carry identifiers later events are resolved by.
func (s *Store) AnnotatePayment(ctx context.Context, paymentID uint, ch Change) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := forUpdate(tx).Where("id = ?", paymentID).First(&payment).Error; err != nil {
			return err
		}
		payload, err := mergePayload(payment.Payload, ch)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{"payload": payload}
		if ch.CaptureID != "" {
			updates["capture_id"] = gorm.Expr("COALESCE(NULLIF(capture_id, ''), ?)", ch.CaptureID)
		}
		return tx.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(updates).Error
	})
	return translate("annotate payment", err)
}

// AnnotateDeposit appends an event to a deposit's payload without touching
// its status
func (s *Store) AnnotateDeposit(ctx context.Context, depositID string, ch Change) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deposit models.Deposit
		if err := forUpdate(tx).Where("id = ?", depositID).First(&deposit).Error; err != nil {
			return err
		}
		payload, err := mergePayload(deposit.Payload, ch)
		if err != nil {
			return err
		}
		return tx.Model(&models.Deposit{}).Where("id = ?", depositID).Update("payload", payload).Error
	})
	return translate("annotate deposit", err)
}

// RecordEvent appends an inbound event to the audit trail
func (s *Store) RecordEvent(ctx context.Context, event *models.GatewayEvent) error {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return storeErr("record event", err)
	}
	return nil
}
