package memory

import (
	"context"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
)

// ResolutionData is the payload of a resolution record: the running human
// approval/rejection tally for one (vendor, discrepancyType).
type ResolutionData struct {
	DiscrepancyType string         `json:"discrepancyType"`
	Approvals       int            `json:"approvals"`
	Rejections      int            `json:"rejections"`
	LastDecision    model.Decision `json:"lastDecision"`
	Notes           string         `json:"notes,omitempty"`
}

func resolutionPrefix(vendor string) string {
	return "resolution:" + vendor
}

func resolutionKey(vendor, discrepancyType string) string {
	return resolutionPrefix(vendor) + ":" + discrepancyType
}

// GetResolutions returns the resolution history for a vendor.
func GetResolutions(ctx context.Context, st store.Store, vendor string) ([]Record[ResolutionData], error) {
	recs, err := st.ListMemoryByPrefix(ctx, resolutionPrefix(vendor), store.MemoryTypeResolution)
	if err != nil {
		return nil, err
	}

	out := make([]Record[ResolutionData], 0, len(recs))
	for i := range recs {
		dec, err := decode[ResolutionData](&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *dec)
	}
	return out, nil
}

// UpsertResolution records one human decision against a discrepancy type.
// "approved" and "corrected" both count as approvals; only "rejected"
// increments the rejection tally. Confidence is not an accumulator here: it
// is recomputed from scratch as approvals/(approvals+rejections), 0.5 when
// no evidence exists yet.
func UpsertResolution(ctx context.Context, st store.Store, vendor, discrepancyType string, decision model.Decision, note string) (*Record[ResolutionData], error) {
	key := resolutionKey(vendor, discrepancyType)

	existing, err := st.GetMemory(ctx, key, store.MemoryTypeResolution)
	if err != nil {
		return nil, err
	}

	updated := ResolutionData{
		DiscrepancyType: discrepancyType,
		LastDecision:    decision,
		Notes:           note,
	}
	if existing != nil {
		prev, err := decode[ResolutionData](existing)
		if err != nil {
			return nil, err
		}
		updated.Approvals = prev.Data.Approvals
		updated.Rejections = prev.Data.Rejections
		updated.Notes = prev.Data.Notes
		if note != "" {
			if prev.Data.Notes != "" {
				updated.Notes = prev.Data.Notes + " | " + note
			} else {
				updated.Notes = note
			}
		}
	}

	if decision.IsApproval() {
		updated.Approvals++
	} else if decision == model.DecisionRejected {
		updated.Rejections++
	}

	confidence := 0.5
	if total := updated.Approvals + updated.Rejections; total > 0 {
		confidence = float64(updated.Approvals) / float64(total)
	}

	return upsert(ctx, st, key, store.MemoryTypeResolution, updated, confidence, "")
}
