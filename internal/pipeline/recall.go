package pipeline

import (
	"context"
	"fmt"

	"github.com/sells-group/invoice-cli/internal/memory"
	"github.com/sells-group/invoice-cli/internal/model"
)

// RecalledMemory is the per-vendor memory snapshot one invoice run works
// against.
type RecalledMemory struct {
	Vendor      *memory.Record[memory.VendorData]
	Corrections []memory.Record[memory.CorrectionData]
	Resolutions []memory.Record[memory.ResolutionData]
}

// Recall loads the three memory tiers for the invoice's vendor and filters
// them down to what the apply stage may trust:
//
//   - vendor memory is returned only at confidence >= the recall threshold;
//   - a correction pattern is usable only at confidence >= the threshold and
//     when its linked resolution history is absent or approval-dominant.
//
// Recall also resets context.humanApproved, marking the start of a fresh
// evaluation. This happens exactly once per run, before any correction is
// proposed.
func (p *Pipeline) Recall(ctx context.Context, inv *model.Invoice) (*RecalledMemory, error) {
	vendorRec, err := memory.GetVendorMemory(ctx, p.store, inv.Vendor)
	if err != nil {
		return nil, err
	}
	corrections, err := memory.GetCorrections(ctx, p.store, inv.Vendor)
	if err != nil {
		return nil, err
	}
	resolutions, err := memory.GetResolutions(ctx, p.store, inv.Vendor)
	if err != nil {
		return nil, err
	}

	resolutionByType := make(map[string]memory.ResolutionData, len(resolutions))
	for _, r := range resolutions {
		resolutionByType[r.Data.DiscrepancyType] = r.Data
	}

	minConf := p.cfg.Pipeline.MemoryConfidenceMin

	usable := make([]memory.Record[memory.CorrectionData], 0, len(corrections))
	for _, corr := range corrections {
		if corr.Confidence < minConf {
			continue
		}
		discrepancyType := corr.Data.DiscrepancyType
		if discrepancyType == "" {
			discrepancyType = corr.Data.PatternID
		}
		if res, ok := resolutionByType[discrepancyType]; ok && res.Approvals < res.Rejections {
			continue
		}
		usable = append(usable, corr)
	}

	if vendorRec != nil && vendorRec.Confidence < minConf {
		vendorRec = nil
	}

	inv.Context.HumanApproved = false

	return &RecalledMemory{
		Vendor:      vendorRec,
		Corrections: usable,
		Resolutions: resolutions,
	}, nil
}

func recallSummary(m *RecalledMemory) string {
	vendorState := "none"
	if m.Vendor != nil {
		vendorState = "found"
	}
	return fmt.Sprintf("Vendor memory: %s, corrections: %d, resolutions: %d",
		vendorState, len(m.Corrections), len(m.Resolutions))
}
