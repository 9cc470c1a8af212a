package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Vendor tier ---

func TestVendorMemory_FirstUpsertUsesPrior(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec, err := UpsertVendorMemory(ctx, st, "Supplier GmbH", VendorData{
		Mappings: VendorMappings{ServiceDateField: "Leistungsdatum"},
	}, 0.05, "inv-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, rec.Confidence, 1e-9)
	assert.Equal(t, "Supplier GmbH", rec.Data.Vendor)
	assert.Equal(t, "Leistungsdatum", rec.Data.Mappings.ServiceDateField)
}

func TestVendorMemory_ServiceDateFieldFirstWriteWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := UpsertVendorMemory(ctx, st, "Supplier GmbH", VendorData{
		Mappings: VendorMappings{ServiceDateField: "Leistungsdatum"},
	}, 0.05, "inv-1")
	require.NoError(t, err)

	rec, err := UpsertVendorMemory(ctx, st, "Supplier GmbH", VendorData{
		Mappings: VendorMappings{ServiceDateField: "Lieferdatum"},
	}, 0.05, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, "Leistungsdatum", rec.Data.Mappings.ServiceDateField)
}

func TestVendorMemory_ArrayFieldsUnionDedupSorted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := UpsertVendorMemory(ctx, st, "Parts AG", VendorData{
		Mappings: VendorMappings{VATInclusiveHints: []string{"MwSt. inkl.", "VAT included"}},
	}, 0.05, "inv-1")
	require.NoError(t, err)

	rec, err := UpsertVendorMemory(ctx, st, "Parts AG", VendorData{
		Mappings: VendorMappings{VATInclusiveHints: []string{"VAT included", "Brutto"}},
	}, 0.05, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Brutto", "MwSt. inkl.", "VAT included"}, rec.Data.Mappings.VATInclusiveHints)
}

func TestVendorMemory_NewerCurrencyAndStrategyWin(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := UpsertVendorMemory(ctx, st, "Parts AG", VendorData{
		Mappings:           VendorMappings{DefaultCurrency: "USD"},
		POMatchingStrategy: POStrategyNone,
	}, 0.05, "inv-1")
	require.NoError(t, err)

	rec, err := UpsertVendorMemory(ctx, st, "Parts AG", VendorData{
		Mappings:           VendorMappings{DefaultCurrency: "EUR"},
		POMatchingStrategy: POStrategySinglePrefer,
	}, 0.05, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, "EUR", rec.Data.Mappings.DefaultCurrency)
	assert.Equal(t, POStrategySinglePrefer, rec.Data.POMatchingStrategy)

	// Empty incoming values must not erase the stored ones.
	rec, err = UpsertVendorMemory(ctx, st, "Parts AG", VendorData{}, 0.05, "inv-3")
	require.NoError(t, err)
	assert.Equal(t, "EUR", rec.Data.Mappings.DefaultCurrency)
	assert.Equal(t, POStrategySinglePrefer, rec.Data.POMatchingStrategy)
}

func TestVendorMemory_ConfidenceClamped(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var rec *Record[VendorData]
	var err error
	for i := 0; i < 12; i++ {
		rec, err = UpsertVendorMemory(ctx, st, "Supplier GmbH", VendorData{}, 0.05, "inv-1")
		require.NoError(t, err)
	}
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)

	for i := 0; i < 30; i++ {
		rec, err = UpsertVendorMemory(ctx, st, "Supplier GmbH", VendorData{}, -0.05, "inv-1")
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.0, rec.Confidence, 1e-9)
}

// --- Correction tier ---

func TestCorrection_ReinforcementAccumulates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	data := CorrectionData{
		PatternID:       "vat_inclusive",
		Description:     "Totals arrive VAT-inclusive",
		CorrectionRule:  "recompute gross from net",
		DiscrepancyType: "tax_mismatch",
	}

	rec, err := UpsertCorrection(ctx, st, "Supplier GmbH", data, 0.03, "inv-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.63, rec.Confidence, 1e-9)

	rec, err = UpsertCorrection(ctx, st, "Supplier GmbH", data, 0.03, "inv-2")
	require.NoError(t, err)
	assert.InDelta(t, 0.66, rec.Confidence, 1e-9)

	recs, err := GetCorrections(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "vat_inclusive", recs[0].Data.PatternID)
}

func TestCorrection_NonEmptyFieldsOverwrite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := CorrectionData{PatternID: "qty_mismatch_dn", Description: "old", CorrectionRule: "old rule"}
	_, err := UpsertCorrection(ctx, st, "Parts AG", first, 0.03, "inv-1")
	require.NoError(t, err)

	second := CorrectionData{PatternID: "qty_mismatch_dn", Description: "delivered qty differs"}
	rec, err := UpsertCorrection(ctx, st, "Parts AG", second, 0.03, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, "delivered qty differs", rec.Data.Description)
	assert.Equal(t, "old rule", rec.Data.CorrectionRule)
}

func TestCorrection_VendorPrefixIsolation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := UpsertCorrection(ctx, st, "Supplier GmbH", CorrectionData{PatternID: "p1"}, 0.03, "")
	require.NoError(t, err)
	_, err = UpsertCorrection(ctx, st, "Parts AG", CorrectionData{PatternID: "p1"}, 0.03, "")
	require.NoError(t, err)

	recs, err := GetCorrections(ctx, st, "Supplier GmbH")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// --- Resolution tier ---

func TestResolution_ConfidenceIsApprovalFraction(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec, err := UpsertResolution(ctx, st, "Supplier GmbH", "tax_mismatch", model.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Data.Approvals)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)

	rec, err = UpsertResolution(ctx, st, "Supplier GmbH", "tax_mismatch", model.DecisionRejected, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Data.Rejections)
	assert.InDelta(t, 0.5, rec.Confidence, 1e-9)

	// Accepted corrections count toward approvals.
	rec, err = UpsertResolution(ctx, st, "Supplier GmbH", "tax_mismatch", model.DecisionCorrected, "")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Data.Approvals)
	assert.InDelta(t, 2.0/3.0, rec.Confidence, 1e-9)
	assert.Equal(t, model.DecisionCorrected, rec.Data.LastDecision)
}

func TestResolution_NotesAppend(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := UpsertResolution(ctx, st, "Parts AG", "qty_mismatch", model.DecisionApproved, "first note")
	require.NoError(t, err)

	rec, err := UpsertResolution(ctx, st, "Parts AG", "qty_mismatch", model.DecisionRejected, "second note")
	require.NoError(t, err)
	assert.Equal(t, "first note | second note", rec.Data.Notes)
}
