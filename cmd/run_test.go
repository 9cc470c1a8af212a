package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/model"
)

func TestLoadInvoices_AssignsMissingIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoices.json")
	content := `[
		{"invoiceId": "inv-1", "vendor": "Supplier GmbH", "fields": {"invoiceNumber": "R-1"}},
		{"vendor": "Parts AG", "fields": {"invoiceNumber": "R-2"}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	invoices, err := loadInvoices(path)
	require.NoError(t, err)
	require.Len(t, invoices, 2)

	assert.Equal(t, "inv-1", invoices[0].InvoiceID)
	assert.NotEmpty(t, invoices[1].InvoiceID)
	assert.NotEqual(t, invoices[0].InvoiceID, invoices[1].InvoiceID)
}

func TestLoadInvoices_MissingFile(t *testing.T) {
	_, err := loadInvoices(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadInvoices_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := loadInvoices(path)
	require.Error(t, err)
}

func TestReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.json")
	content := `[{"poNumber": "PO-1", "vendor": "Supplier GmbH", "date": "01.06.2025"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var pos []model.PurchaseOrder
	require.NoError(t, readJSONFile(path, &pos))
	require.Len(t, pos, 1)
	assert.Equal(t, "PO-1", pos[0].PONumber)
}
