package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Govind-619/SettleSphere/models"
	"gorm.io/gorm"
)

const captureScanBatch = 200

var errStopScan = errors.New("stop scan")

// DepositByID loads a deposit by primary key
func (s *Store) DepositByID(ctx context.Context, id string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&deposit).Error
	if err != nil {
		return nil, translate("load deposit", err)
	}
	return &deposit, nil
}

// PaymentByGatewayOrder loads the payment for a provider's order id
func (s *Store) PaymentByGatewayOrder(ctx context.Context, provider, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("provider = ? AND gateway_order_id = ?", provider, gatewayOrderID).
		First(&payment).Error
	if err != nil {
		return nil, translate("load payment by gateway order", err)
	}
	return &payment, nil
}

// PaymentByCaptureID finds the payment a capture belongs to. The indexed
// capture_id column is tried first; rows written before it existed are
// found by scanning their audit payloads.
func (s *Store) PaymentByCaptureID(ctx context.Context, provider, captureID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("provider = ? AND capture_id = ?", provider, captureID).
		First(&payment).Error
	if err == nil {
		return &payment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr("load payment by capture", err)
	}

	var (
		batch []models.Payment
		found *models.Payment
	)
	res := s.db.WithContext(ctx).
		Where("provider = ? AND (capture_id = '' OR capture_id IS NULL)", provider).
		FindInBatches(&batch, captureScanBatch, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				if payloadHasCapture(batch[i].Payload, captureID) {
					p := batch[i]
					found = &p
					return errStopScan
				}
			}
			return nil
		})
	if res.Error != nil && !errors.Is(res.Error, errStopScan) {
		return nil, storeErr("scan payments for capture", res.Error)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// PaymentByInvoice resolves an order by invoice number, then its payment
func (s *Store) PaymentByInvoice(ctx context.Context, invoiceNumber string) (*models.Payment, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	if err := db.Where("invoice_number = ?", invoiceNumber).First(&order).Error; err != nil {
		return nil, translate("load order by invoice", err)
	}

	var payment models.Payment
	q := db.Where("order_id = ?", order.ID).Order("id DESC")
	if order.PaymentID != nil {
		q = db.Where("id = ?", *order.PaymentID)
	}
	if err := q.First(&payment).Error; err != nil {
		return nil, translate("load payment for order", err)
	}
	return &payment, nil
}

func payloadHasCapture(payload []byte, captureID string) bool {
	if len(payload) == 0 {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false
	}
	return containsCapture(doc, captureID, false)
}

// containsCapture walks a decoded payload for captureID, either under a
// capture_id key or as the id of an entry in a captures list
func containsCapture(v interface{}, captureID string, inCaptures bool) bool {
	switch t := v.(type) {
	case map[string]interface{}:
		if s, ok := t["capture_id"].(string); ok && s == captureID {
			return true
		}
		if inCaptures {
			if s, ok := t["id"].(string); ok && s == captureID {
				return true
			}
		}
		for k, child := range t {
			if containsCapture(child, captureID, k == "captures") {
				return true
			}
		}
	case []interface{}:
		for _, child := range t {
			if containsCapture(child, captureID, inCaptures) {
				return true
			}
		}
	}
	return false
}
