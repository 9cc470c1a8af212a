package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/memory"
	"github.com/sells-group/invoice-cli/internal/model"
)

func humanRunInvoice(number string) *model.Invoice {
	inv := cleanInvoice(number)
	inv.Context.FromHumanRun = true
	inv.Context.HumanApproved = true
	return inv
}

func TestLearn_DuplicateSkipsAllLearning(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	inv := humanRunInvoice("R-1")
	inv.Context.DetectedDuplicate = true

	updates, err := p.Learn(ctx, inv, &ApplyResult{}, &RecalledMemory{}, 0.9, true, model.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, []string{"Duplicate invoice detected; skipping all learning."}, updates)

	rec, err := memory.GetVendorMemory(ctx, st, inv.Vendor)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLearn_UntrustedRunSkipsLearning(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	// Not from the human correction feed.
	inv := cleanInvoice("R-2")
	updates, err := p.Learn(ctx, inv, &ApplyResult{}, &RecalledMemory{}, 0.9, true, model.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, []string{"Not a trusted human-approved run; skipping learning."}, updates)

	// Not human approved.
	inv = humanRunInvoice("R-3")
	updates, err = p.Learn(ctx, inv, &ApplyResult{}, &RecalledMemory{}, 0.9, false, model.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, []string{"Not a trusted human-approved run; skipping learning."}, updates)

	// Confidence below the learning floor.
	inv = humanRunInvoice("R-4")
	updates, err = p.Learn(ctx, inv, &ApplyResult{}, &RecalledMemory{}, 0.5, true, model.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, []string{"Not a trusted human-approved run; skipping learning."}, updates)
}

func TestLearn_ServiceDateCorrectionUpdatesVendorMemory(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	inv := humanRunInvoice("R-5")
	applyRes := &ApplyResult{
		ProposedCorrections: []string{`serviceDate auto-filled from "Leistungsdatum".`},
	}

	updates, err := p.Learn(ctx, inv, applyRes, &RecalledMemory{}, 0.9, true, model.DecisionCorrected)
	require.NoError(t, err)
	assert.Contains(t, updates, "Vendor memory updated for Supplier GmbH.")
	assert.Contains(t, updates, "Resolution memory updated from final decision.")

	rec, err := memory.GetVendorMemory(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Leistungsdatum", rec.Data.Mappings.ServiceDateField)
	assert.InDelta(t, 0.65, rec.Confidence, 1e-9)
}

func TestLearn_BootstrapPOTeachesStrategy(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	inv := humanRunInvoice("R-6")
	inv.Fields.PONumber = "PO-A-051"

	updates, err := p.Learn(ctx, inv, &ApplyResult{}, &RecalledMemory{}, 0.9, true, model.DecisionApproved)
	require.NoError(t, err)
	assert.Contains(t, updates, "PO-matching heuristic learned for Supplier GmbH.")

	rec, err := memory.GetVendorMemory(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, memory.POStrategySinglePrefer, rec.Data.POMatchingStrategy)
}

func TestLearn_VATCorrectionReinforcesPattern(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	inv := humanRunInvoice("R-7")
	applyRes := &ApplyResult{
		ProposedCorrections: []string{"VAT-inclusive totals detected; recomputed gross and tax."},
	}

	updates, err := p.Learn(ctx, inv, applyRes, &RecalledMemory{}, 0.9, true, model.DecisionCorrected)
	require.NoError(t, err)
	assert.Contains(t, updates, `Correction pattern "vat_inclusive" reinforced.`)

	corrs, err := memory.GetCorrections(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	require.Len(t, corrs, 1)
	assert.Equal(t, "vat_inclusive", corrs[0].Data.PatternID)
	assert.Equal(t, "tax_mismatch", corrs[0].Data.DiscrepancyType)
	assert.InDelta(t, 0.63, corrs[0].Confidence, 1e-9)

	// Resolution memory classified the run as a tax mismatch.
	res, err := memory.GetResolutions(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "tax_mismatch", res[0].Data.DiscrepancyType)
	assert.Equal(t, 1, res[0].Data.Approvals)
}

func TestLearn_CurrencyInferenceBecomesPattern(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	inv := humanRunInvoice("R-8")
	inv.Vendor = "Parts AG"
	inv.Fields.Currency = "EUR"
	applyRes := &ApplyResult{
		ProposedCorrections: []string{"Currency inferred from rawText as EUR."},
	}

	updates, err := p.Learn(ctx, inv, applyRes, &RecalledMemory{}, 0.9, true, model.DecisionApproved)
	require.NoError(t, err)
	assert.Contains(t, updates, `Correction pattern "currency_from_rawtext" reinforced.`)
	assert.Contains(t, updates, "Vendor memory updated for Parts AG.")

	rec, err := memory.GetVendorMemory(ctx, st, "Parts AG")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "EUR", rec.Data.Mappings.DefaultCurrency)
}

func TestLearn_RejectionStillRecordsResolution(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	inv := humanRunInvoice("R-9")
	inv.Context.HumanApproved = true

	updates, err := p.Learn(ctx, inv, &ApplyResult{}, &RecalledMemory{}, 0.9, true, model.DecisionRejected)
	require.NoError(t, err)
	assert.Contains(t, updates, "Resolution memory updated from final decision.")

	res, err := memory.GetResolutions(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].Data.Rejections)
	assert.InDelta(t, 0.0, res[0].Confidence, 1e-9)
}
