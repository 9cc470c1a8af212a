package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sells-group/invoice-cli/internal/model"
)

// MemoryType tags which memory tier a record belongs to.
type MemoryType string

const (
	MemoryTypeVendor     MemoryType = "vendor"
	MemoryTypeCorrection MemoryType = "correction"
	MemoryTypeResolution MemoryType = "resolution"
)

// MemoryRecord is a confidence-weighted record in the memory store.
// (Key, Type) is unique; writes are upserts, never duplicate inserts.
type MemoryRecord struct {
	Key        string          `json:"key"`
	Type       MemoryType      `json:"type"`
	Data       json.RawMessage `json:"data"`
	Confidence float64         `json:"confidence"`
	InvoiceID  string          `json:"invoiceId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// OrderLookup is the read-only order reference collaborator: purchase
// orders by vendor (case/whitespace-insensitive) and delivery notes by PO.
type OrderLookup interface {
	GetPurchaseOrdersByVendor(ctx context.Context, vendor string) ([]model.PurchaseOrder, error)
	GetDeliveryNoteByPO(ctx context.Context, poNumber string) (*model.DeliveryNote, error)
}

// Store defines the persistence interface for the validation pipeline.
type Store interface {
	OrderLookup

	// Memory records. GetMemory returns (nil, nil) when absent.
	UpsertMemory(ctx context.Context, rec MemoryRecord) (*MemoryRecord, error)
	GetMemory(ctx context.Context, key string, typ MemoryType) (*MemoryRecord, error)
	ListMemoryByPrefix(ctx context.Context, prefix string, typ MemoryType) ([]MemoryRecord, error)

	// Processed invoices. SaveProcessedInvoice is insert-if-absent keyed on
	// (vendor, invoiceNumber) and silently no-ops on conflict.
	SaveProcessedInvoice(ctx context.Context, inv model.Invoice) error
	GetInvoicesByVendor(ctx context.Context, vendor string) ([]model.Invoice, error)

	// Order reference seeding
	SeedPurchaseOrders(ctx context.Context, pos []model.PurchaseOrder) error
	SeedDeliveryNotes(ctx context.Context, dns []model.DeliveryNote) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
