package store

import (
	"context"
	"time"

	"github.com/Govind-619/SettleSphere/models"
)

// Snapshot is the reconciliation state written out by the report command
type Snapshot struct {
	Payments []models.Payment
	Deposits []models.Deposit
	Events   []models.GatewayEvent
}

// Snapshot loads payments, deposits and audit events updated at or after
// since. A zero since loads everything.
func (s *Store) Snapshot(ctx context.Context, since time.Time) (*Snapshot, error) {
	db := s.db.WithContext(ctx)
	snap := &Snapshot{}

	q := db.Order("id")
	if !since.IsZero() {
		q = q.Where("updated_at >= ?", since)
	}
	if err := q.Find(&snap.Payments).Error; err != nil {
		return nil, storeErr("list payments", err)
	}

	q = db.Order("created_at")
	if !since.IsZero() {
		q = q.Where("updated_at >= ?", since)
	}
	if err := q.Find(&snap.Deposits).Error; err != nil {
		return nil, storeErr("list deposits", err)
	}

	q = db.Order("id")
	if !since.IsZero() {
		q = q.Where("processed_at >= ?", since)
	}
	if err := q.Find(&snap.Events).Error; err != nil {
		return nil, storeErr("list events", err)
	}

	return snap, nil
}
