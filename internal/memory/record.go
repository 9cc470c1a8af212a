// Package memory provides the three typed tiers over the memory store:
// vendor mappings, correction patterns, and resolution outcomes. Each tier
// owns its key derivation, merge rule, and confidence-update rule.
package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/store"
)

// defaultPrior is the confidence assigned before the first reinforcement
// delta when no record exists yet.
const defaultPrior = 0.6

// Record is a typed view of a store.MemoryRecord.
type Record[T any] struct {
	Key        string
	Data       T
	Confidence float64
	InvoiceID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func decode[T any](rec *store.MemoryRecord) (*Record[T], error) {
	var data T
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		return nil, eris.Wrapf(err, "memory: decode %s", rec.Key)
	}
	return &Record[T]{
		Key:        rec.Key,
		Data:       data,
		Confidence: rec.Confidence,
		InvoiceID:  rec.InvoiceID,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

func upsert[T any](ctx context.Context, st store.Store, key string, typ store.MemoryType, data T, confidence float64, invoiceID string) (*Record[T], error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrapf(err, "memory: marshal %s", key)
	}

	stored, err := st.UpsertMemory(ctx, store.MemoryRecord{
		Key:        key,
		Type:       typ,
		Data:       payload,
		Confidence: confidence,
		InvoiceID:  invoiceID,
	})
	if err != nil {
		return nil, err
	}
	return decode[T](stored)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
