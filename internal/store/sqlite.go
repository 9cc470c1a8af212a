package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/invoice-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS memories (
	key        TEXT NOT NULL,
	type       TEXT NOT NULL,
	data       TEXT NOT NULL,
	confidence REAL NOT NULL,
	invoice_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (key, type)
);

CREATE TABLE IF NOT EXISTS processed_invoices (
	vendor         TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	invoice_date   TEXT,
	invoice_id     TEXT,
	invoice_obj    TEXT NOT NULL,
	PRIMARY KEY (vendor, invoice_number)
);

CREATE TABLE IF NOT EXISTS purchase_orders (
	po_number TEXT PRIMARY KEY,
	vendor    TEXT NOT NULL,
	date      TEXT NOT NULL,
	items     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS delivery_notes (
	dn_number TEXT PRIMARY KEY,
	po_number TEXT NOT NULL,
	vendor    TEXT NOT NULL,
	date      TEXT NOT NULL,
	items     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_type ON memories (type);
CREATE INDEX IF NOT EXISTS idx_invoice_vendor ON processed_invoices (vendor);
CREATE INDEX IF NOT EXISTS idx_po_vendor ON purchase_orders (vendor);
CREATE INDEX IF NOT EXISTS idx_dn_po ON delivery_notes (po_number);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertMemory(ctx context.Context, rec MemoryRecord) (*MemoryRecord, error) {
	now := time.Now().UTC()

	// RETURNING so a conflict-update reports the original created_at, not
	// the insert attempt's timestamp.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO memories (key, type, data, confidence, invoice_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key, type) DO UPDATE SET
			data = excluded.data,
			confidence = excluded.confidence,
			invoice_id = excluded.invoice_id,
			updated_at = excluded.updated_at
		 RETURNING created_at, updated_at`,
		rec.Key, string(rec.Type), string(rec.Data), rec.Confidence, nullString(rec.InvoiceID), now, now,
	)

	stored := rec
	if err := row.Scan(&stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert memory %s/%s", rec.Key, rec.Type)
	}
	return &stored, nil
}

func (s *SQLiteStore) GetMemory(ctx context.Context, key string, typ MemoryType) (*MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, type, data, confidence, invoice_id, created_at, updated_at
		 FROM memories WHERE key = ? AND type = ? LIMIT 1`,
		key, string(typ),
	)

	rec, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get memory %s/%s", key, typ)
	}
	return rec, nil
}

func (s *SQLiteStore) ListMemoryByPrefix(ctx context.Context, prefix string, typ MemoryType) ([]MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, type, data, confidence, invoice_id, created_at, updated_at
		 FROM memories WHERE key LIKE ? AND type = ? ORDER BY key`,
		prefix+"%", string(typ),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list memory")
	}
	defer rows.Close()

	var recs []MemoryRecord
	for rows.Next() {
		rec, err := scanMemory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan memory")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list memory iterate")
}

func (s *SQLiteStore) SaveProcessedInvoice(ctx context.Context, inv model.Invoice) error {
	objJSON, err := json.Marshal(inv)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal invoice")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_invoices (vendor, invoice_number, invoice_date, invoice_id, invoice_obj)
		 VALUES (?, ?, ?, ?, ?)`,
		inv.Vendor, inv.Fields.InvoiceNumber, inv.Fields.InvoiceDate, inv.InvoiceID, string(objJSON),
	)
	return eris.Wrapf(err, "sqlite: save processed invoice %s", inv.InvoiceID)
}

func (s *SQLiteStore) GetInvoicesByVendor(ctx context.Context, vendor string) ([]model.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT invoice_obj FROM processed_invoices
		 WHERE LOWER(TRIM(vendor)) = LOWER(TRIM(?)) ORDER BY invoice_number`,
		vendor,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get invoices by vendor")
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var objJSON string
		if err := rows.Scan(&objJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invoice")
		}
		var inv model.Invoice
		if err := json.Unmarshal([]byte(objJSON), &inv); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal invoice")
		}
		invoices = append(invoices, inv)
	}
	return invoices, eris.Wrap(rows.Err(), "sqlite: get invoices iterate")
}

func (s *SQLiteStore) SeedPurchaseOrders(ctx context.Context, pos []model.PurchaseOrder) error {
	for _, po := range pos {
		itemsJSON, err := json.Marshal(po.Items)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal po items %s", po.PONumber)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO purchase_orders (po_number, vendor, date, items) VALUES (?, ?, ?, ?)
			 ON CONFLICT(po_number) DO UPDATE SET vendor = excluded.vendor, date = excluded.date, items = excluded.items`,
			po.PONumber, po.Vendor, po.Date, string(itemsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed purchase order %s", po.PONumber)
		}
	}
	return nil
}

func (s *SQLiteStore) SeedDeliveryNotes(ctx context.Context, dns []model.DeliveryNote) error {
	for _, dn := range dns {
		itemsJSON, err := json.Marshal(dn.Items)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal dn items %s", dn.DNNumber)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO delivery_notes (dn_number, po_number, vendor, date, items) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(dn_number) DO UPDATE SET po_number = excluded.po_number, vendor = excluded.vendor, date = excluded.date, items = excluded.items`,
			dn.DNNumber, dn.PONumber, dn.Vendor, dn.Date, string(itemsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed delivery note %s", dn.DNNumber)
		}
	}
	return nil
}

func (s *SQLiteStore) GetPurchaseOrdersByVendor(ctx context.Context, vendor string) ([]model.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT po_number, vendor, date, items FROM purchase_orders
		 WHERE LOWER(TRIM(vendor)) = LOWER(TRIM(?)) ORDER BY po_number`,
		vendor,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get purchase orders")
	}
	defer rows.Close()

	var pos []model.PurchaseOrder
	for rows.Next() {
		var po model.PurchaseOrder
		var itemsJSON string
		if err := rows.Scan(&po.PONumber, &po.Vendor, &po.Date, &itemsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan purchase order")
		}
		if err := json.Unmarshal([]byte(itemsJSON), &po.Items); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal po items")
		}
		pos = append(pos, po)
	}
	return pos, eris.Wrap(rows.Err(), "sqlite: get purchase orders iterate")
}

func (s *SQLiteStore) GetDeliveryNoteByPO(ctx context.Context, poNumber string) (*model.DeliveryNote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT dn_number, po_number, vendor, date, items FROM delivery_notes WHERE po_number = ? LIMIT 1`,
		poNumber,
	)

	var dn model.DeliveryNote
	var itemsJSON string
	err := row.Scan(&dn.DNNumber, &dn.PONumber, &dn.Vendor, &dn.Date, &itemsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get delivery note for %s", poNumber)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &dn.Items); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal dn items")
	}
	return &dn, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanMemory(row scannable) (*MemoryRecord, error) {
	var rec MemoryRecord
	var typ, data string
	var invoiceID sql.NullString

	err := row.Scan(&rec.Key, &typ, &data, &rec.Confidence, &invoiceID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Type = MemoryType(typ)
	rec.Data = json.RawMessage(data)
	if invoiceID.Valid {
		rec.InvoiceID = invoiceID.String
	}
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
