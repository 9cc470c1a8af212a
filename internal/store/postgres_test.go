package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetMemory_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, type, data, confidence, invoice_id, created_at, updated_at`).
		WithArgs("vendor:Nobody", "vendor").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetMemory(context.Background(), "vendor:Nobody", MemoryTypeVendor)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMemory_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	invoiceID := "inv-1"

	mock.ExpectQuery(`SELECT key, type, data, confidence, invoice_id, created_at, updated_at`).
		WithArgs("vendor:Supplier GmbH", "vendor").
		WillReturnRows(pgxmock.NewRows([]string{"key", "type", "data", "confidence", "invoice_id", "created_at", "updated_at"}).
			AddRow("vendor:Supplier GmbH", "vendor", []byte(`{"vendor":"Supplier GmbH"}`), 0.65, &invoiceID, now, now))

	rec, err := s.GetMemory(context.Background(), "vendor:Supplier GmbH", MemoryTypeVendor)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, MemoryTypeVendor, rec.Type)
	assert.InDelta(t, 0.65, rec.Confidence, 1e-9)
	assert.Equal(t, "inv-1", rec.InvoiceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMemory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updatedAt := time.Date(2026, 6, 7, 8, 9, 10, 0, time.UTC)

	mock.ExpectQuery(`(?s)ON CONFLICT \(key, type\) DO UPDATE.*RETURNING created_at, updated_at`).
		WithArgs("vendor:Parts AG", "vendor", `{"a":1}`, 0.6, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(createdAt, updatedAt))

	rec, err := s.UpsertMemory(context.Background(), MemoryRecord{
		Key:        "vendor:Parts AG",
		Type:       MemoryTypeVendor,
		Data:       json.RawMessage(`{"a":1}`),
		Confidence: 0.6,
	})
	require.NoError(t, err)

	// The store reports the database's timestamps, so a conflict-update
	// keeps the row's original created_at.
	assert.True(t, rec.CreatedAt.Equal(createdAt))
	assert.True(t, rec.UpdatedAt.Equal(updatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProcessedInvoice_ConflictDoesNothing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(vendor, invoice_number\) DO NOTHING`).
		WithArgs("Supplier GmbH", "R-1001", "01.06.2025", "inv-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inv := model.Invoice{
		InvoiceID: "inv-1",
		Vendor:    "Supplier GmbH",
		Fields:    model.InvoiceFields{InvoiceNumber: "R-1001", InvoiceDate: "01.06.2025"},
	}
	require.NoError(t, s.SaveProcessedInvoice(context.Background(), inv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDeliveryNoteByPO_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT dn_number, po_number, vendor, date, items FROM delivery_notes`).
		WithArgs("PO-404").
		WillReturnError(pgx.ErrNoRows)

	dn, err := s.GetDeliveryNoteByPO(context.Background(), "PO-404")
	require.NoError(t, err)
	assert.Nil(t, dn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPurchaseOrdersByVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT po_number, vendor, date, items FROM purchase_orders`).
		WithArgs("Supplier GmbH").
		WillReturnRows(pgxmock.NewRows([]string{"po_number", "vendor", "date", "items"}).
			AddRow("PO-100", "Supplier GmbH", "01.06.2025", []byte(`[{"sku":"SKU-1","qty":5,"unitPrice":10}]`)))

	pos, err := s.GetPurchaseOrdersByVendor(context.Background(), "Supplier GmbH")
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, "PO-100", pos[0].PONumber)
	require.Len(t, pos[0].Items, 1)
	assert.Equal(t, "SKU-1", pos[0].Items[0].SKU)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SeedPurchaseOrders(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO purchase_orders`).
		WithArgs("PO-1", "Parts AG", "01.06.2025", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SeedPurchaseOrders(context.Background(), []model.PurchaseOrder{
		{PONumber: "PO-1", Vendor: "Parts AG", Date: "01.06.2025"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
