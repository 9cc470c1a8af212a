package memory

import (
	"context"

	"github.com/sells-group/invoice-cli/internal/store"
)

// CorrectionData is the payload of a correction-pattern record: a recurring
// discrepancy for one vendor together with the recipe that fixes it.
type CorrectionData struct {
	PatternID       string `json:"patternId"`
	Description     string `json:"description"`
	CorrectionRule  string `json:"correctionRule"`
	DiscrepancyType string `json:"discrepancyType,omitempty"`
}

func correctionKey(vendor, patternID string) string {
	return "correction:" + vendor + ":" + patternID
}

func correctionPrefix(vendor string) string {
	return "correction:" + vendor
}

// GetCorrections returns all correction patterns recorded for a vendor.
func GetCorrections(ctx context.Context, st store.Store, vendor string) ([]Record[CorrectionData], error) {
	recs, err := st.ListMemoryByPrefix(ctx, correctionPrefix(vendor), store.MemoryTypeCorrection)
	if err != nil {
		return nil, err
	}

	out := make([]Record[CorrectionData], 0, len(recs))
	for i := range recs {
		dec, err := decode[CorrectionData](&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *dec)
	}
	return out, nil
}

// UpsertCorrection reinforces a correction pattern by the given confidence
// delta (prior 0.6, clamped to [0,1]). Non-zero incoming fields overwrite
// the stored recipe.
func UpsertCorrection(ctx context.Context, st store.Store, vendor string, data CorrectionData, confidenceDelta float64, invoiceID string) (*Record[CorrectionData], error) {
	key := correctionKey(vendor, data.PatternID)

	existing, err := st.GetMemory(ctx, key, store.MemoryTypeCorrection)
	if err != nil {
		return nil, err
	}

	merged := data
	prior := defaultPrior
	if existing != nil {
		prior = existing.Confidence
		prev, err := decode[CorrectionData](existing)
		if err != nil {
			return nil, err
		}
		merged = mergeCorrectionData(prev.Data, data)
	}

	confidence := clamp(prior + confidenceDelta)
	return upsert(ctx, st, key, store.MemoryTypeCorrection, merged, confidence, invoiceID)
}

func mergeCorrectionData(existing, incoming CorrectionData) CorrectionData {
	out := existing
	if incoming.Description != "" {
		out.Description = incoming.Description
	}
	if incoming.CorrectionRule != "" {
		out.CorrectionRule = incoming.CorrectionRule
	}
	if incoming.DiscrepancyType != "" {
		out.DiscrepancyType = incoming.DiscrepancyType
	}
	return out
}
