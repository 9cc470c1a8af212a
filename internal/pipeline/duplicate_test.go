package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/invoice-cli/internal/model"
)

func dupInvoice(vendor, number, date string) *model.Invoice {
	return &model.Invoice{
		Vendor: vendor,
		Fields: model.InvoiceFields{InvoiceNumber: number, InvoiceDate: date},
	}
}

func TestDuplicateDetector_FirstSightingPasses(t *testing.T) {
	d := NewDuplicateDetector(5)
	inv := dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")
	assert.False(t, d.Check(inv))
	assert.False(t, inv.Context.DetectedDuplicate)
}

func TestDuplicateDetector_RepeatWithinWindow(t *testing.T) {
	d := NewDuplicateDetector(5)
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")))

	repeat := dupInvoice("Supplier GmbH", "R-1001", "04.06.2025")
	assert.True(t, d.Check(repeat))
	assert.True(t, repeat.Context.DetectedDuplicate)
}

func TestDuplicateDetector_RepeatOutsideWindow(t *testing.T) {
	d := NewDuplicateDetector(5)
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")))

	later := dupInvoice("Supplier GmbH", "R-1001", "15.06.2025")
	assert.False(t, d.Check(later))
	assert.False(t, later.Context.DetectedDuplicate)
}

func TestDuplicateDetector_DifferentVendorsDoNotCollide(t *testing.T) {
	d := NewDuplicateDetector(5)
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")))
	assert.False(t, d.Check(dupInvoice("Parts AG", "R-1001", "01.06.2025")))
}

func TestDuplicateDetector_UnparseableDateFailsSafe(t *testing.T) {
	d := NewDuplicateDetector(5)
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1001", "not-a-date")))

	repeat := dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")
	assert.True(t, d.Check(repeat))
	assert.True(t, repeat.Context.DetectedDuplicate)
}

func TestDuplicateDetector_MissingKeyFieldsSkipped(t *testing.T) {
	d := NewDuplicateDetector(5)
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "", "01.06.2025")))
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "", "01.06.2025")))
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1", "")))
}

func TestDuplicateDetector_ResetClearsSightings(t *testing.T) {
	d := NewDuplicateDetector(5)
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")))
	d.Reset()
	assert.False(t, d.Check(dupInvoice("Supplier GmbH", "R-1001", "01.06.2025")))
}

func TestParseFlexibleDate_Formats(t *testing.T) {
	for _, value := range []string{"01.06.2025", "01-06-2025", "2025-06-01", "2025-06-01T10:00:00Z"} {
		parsed, ok := parseFlexibleDate(value)
		assert.True(t, ok, value)
		assert.Equal(t, 2025, parsed.Year(), value)
	}

	for _, value := range []string{"", "garbage", "32.13.2025"} {
		_, ok := parseFlexibleDate(value)
		assert.False(t, ok, value)
	}
}
