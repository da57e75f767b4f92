// Package store is the reconciliation core's only access to the database.
// Reads resolve gateway identifiers to local records; every money-affecting
// write is a single transaction whose conditional UPDATE is the idempotency
// gate.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound means no record matches; nothing was created
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyApplied means the conditional update matched no row because
	// the record already left the expected status
	ErrAlreadyApplied = errors.New("transition already applied")
	// ErrStore wraps any database failure. Nothing was committed.
	ErrStore = errors.New("store operation failed")
)

// Store wraps a GORM handle
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Change describes what an observed event adds to a record's audit payload
type Change struct {
	CaptureID   string
	Reason      string
	Description string
	// Fields are copied into the payload only when the key is not there yet
	Fields map[string]interface{}
	// Event is appended to the payload's "events" list
	Event interface{}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// translate maps transaction errors onto the package sentinels
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyApplied):
		return ErrAlreadyApplied
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return storeErr(op, err)
	}
}

// forUpdate takes a row lock where the dialect supports it. SQLite
// serialises writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// mergePayload folds a change into an existing audit payload without
// dropping anything already recorded
func mergePayload(existing datatypes.JSON, ch Change) (datatypes.JSON, error) {
	doc := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			doc = map[string]interface{}{"legacy": string(existing)}
		}
	}

	for k, v := range ch.Fields {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	if ch.CaptureID != "" {
		if _, ok := doc["capture_id"]; !ok {
			doc["capture_id"] = ch.CaptureID
		}
	}
	if ch.Event != nil {
		events, _ := doc["events"].([]interface{})
		doc["events"] = append(events, ch.Event)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
