package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"upsert_memory": `INSERT INTO memories (key, type, data, confidence, invoice_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key, type) DO UPDATE SET
			data = excluded.data, confidence = excluded.confidence,
			invoice_id = excluded.invoice_id, updated_at = excluded.updated_at`,
	"get_memory": `SELECT key, type, data, confidence, invoice_id, created_at, updated_at
		FROM memories WHERE key = $1 AND type = $2 LIMIT 1`,
	"list_memory": `SELECT key, type, data, confidence, invoice_id, created_at, updated_at
		FROM memories WHERE key LIKE $1 AND type = $2 ORDER BY key`,
	"save_invoice": `INSERT INTO processed_invoices (vendor, invoice_number, invoice_date, invoice_id, invoice_obj)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (vendor, invoice_number) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS memories (
	key        TEXT NOT NULL,
	type       TEXT NOT NULL,
	data       JSONB NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	invoice_id TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (key, type)
);

CREATE TABLE IF NOT EXISTS processed_invoices (
	vendor         TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	invoice_date   TEXT,
	invoice_id     TEXT,
	invoice_obj    JSONB NOT NULL,
	PRIMARY KEY (vendor, invoice_number)
);

CREATE TABLE IF NOT EXISTS purchase_orders (
	po_number TEXT PRIMARY KEY,
	vendor    TEXT NOT NULL,
	date      TEXT NOT NULL,
	items     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS delivery_notes (
	dn_number TEXT PRIMARY KEY,
	po_number TEXT NOT NULL,
	vendor    TEXT NOT NULL,
	date      TEXT NOT NULL,
	items     JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
CREATE INDEX IF NOT EXISTS idx_invoice_vendor ON processed_invoices(vendor);
CREATE INDEX IF NOT EXISTS idx_po_vendor ON purchase_orders(vendor);
CREATE INDEX IF NOT EXISTS idx_dn_po ON delivery_notes(po_number);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertMemory(ctx context.Context, rec MemoryRecord) (*MemoryRecord, error) {
	now := time.Now().UTC()

	// RETURNING so a conflict-update reports the original created_at, not
	// the insert attempt's timestamp.
	row := s.pool.QueryRow(ctx,
		`INSERT INTO memories (key, type, data, confidence, invoice_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key, type) DO UPDATE SET
			data = excluded.data, confidence = excluded.confidence,
			invoice_id = excluded.invoice_id, updated_at = excluded.updated_at
		 RETURNING created_at, updated_at`,
		rec.Key, string(rec.Type), string(rec.Data), rec.Confidence, nullString(rec.InvoiceID), now, now,
	)

	stored := rec
	if err := row.Scan(&stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert memory %s/%s", rec.Key, rec.Type)
	}
	return &stored, nil
}

func (s *PostgresStore) GetMemory(ctx context.Context, key string, typ MemoryType) (*MemoryRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, type, data, confidence, invoice_id, created_at, updated_at
		 FROM memories WHERE key = $1 AND type = $2 LIMIT 1`,
		key, string(typ),
	)

	rec, err := scanMemoryPgx(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get memory %s/%s", key, typ)
	}
	return rec, nil
}

func (s *PostgresStore) ListMemoryByPrefix(ctx context.Context, prefix string, typ MemoryType) ([]MemoryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, type, data, confidence, invoice_id, created_at, updated_at
		 FROM memories WHERE key LIKE $1 AND type = $2 ORDER BY key`,
		prefix+"%", string(typ),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list memory")
	}
	defer rows.Close()

	var recs []MemoryRecord
	for rows.Next() {
		rec, err := scanMemoryPgx(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan memory")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list memory iterate")
}

func (s *PostgresStore) SaveProcessedInvoice(ctx context.Context, inv model.Invoice) error {
	objJSON, err := json.Marshal(inv)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal invoice")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO processed_invoices (vendor, invoice_number, invoice_date, invoice_id, invoice_obj)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (vendor, invoice_number) DO NOTHING`,
		inv.Vendor, inv.Fields.InvoiceNumber, inv.Fields.InvoiceDate, inv.InvoiceID, string(objJSON),
	)
	return eris.Wrapf(err, "postgres: save processed invoice %s", inv.InvoiceID)
}

func (s *PostgresStore) GetInvoicesByVendor(ctx context.Context, vendor string) ([]model.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT invoice_obj FROM processed_invoices
		 WHERE LOWER(TRIM(vendor)) = LOWER(TRIM($1)) ORDER BY invoice_number`,
		vendor,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get invoices by vendor")
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var objJSON []byte
		if err := rows.Scan(&objJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan invoice")
		}
		var inv model.Invoice
		if err := json.Unmarshal(objJSON, &inv); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal invoice")
		}
		invoices = append(invoices, inv)
	}
	return invoices, eris.Wrap(rows.Err(), "postgres: get invoices iterate")
}

func (s *PostgresStore) SeedPurchaseOrders(ctx context.Context, pos []model.PurchaseOrder) error {
	for _, po := range pos {
		itemsJSON, err := json.Marshal(po.Items)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal po items %s", po.PONumber)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO purchase_orders (po_number, vendor, date, items) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (po_number) DO UPDATE SET vendor = excluded.vendor, date = excluded.date, items = excluded.items`,
			po.PONumber, po.Vendor, po.Date, string(itemsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed purchase order %s", po.PONumber)
		}
	}
	return nil
}

func (s *PostgresStore) SeedDeliveryNotes(ctx context.Context, dns []model.DeliveryNote) error {
	for _, dn := range dns {
		itemsJSON, err := json.Marshal(dn.Items)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal dn items %s", dn.DNNumber)
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO delivery_notes (dn_number, po_number, vendor, date, items) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (dn_number) DO UPDATE SET po_number = excluded.po_number, vendor = excluded.vendor, date = excluded.date, items = excluded.items`,
			dn.DNNumber, dn.PONumber, dn.Vendor, dn.Date, string(itemsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed delivery note %s", dn.DNNumber)
		}
	}
	return nil
}

func (s *PostgresStore) GetPurchaseOrdersByVendor(ctx context.Context, vendor string) ([]model.PurchaseOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT po_number, vendor, date, items FROM purchase_orders
		 WHERE LOWER(TRIM(vendor)) = LOWER(TRIM($1)) ORDER BY po_number`,
		vendor,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get purchase orders")
	}
	defer rows.Close()

	var pos []model.PurchaseOrder
	for rows.Next() {
		var po model.PurchaseOrder
		var itemsJSON []byte
		if err := rows.Scan(&po.PONumber, &po.Vendor, &po.Date, &itemsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan purchase order")
		}
		if err := json.Unmarshal(itemsJSON, &po.Items); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal po items")
		}
		pos = append(pos, po)
	}
	return pos, eris.Wrap(rows.Err(), "postgres: get purchase orders iterate")
}

func (s *PostgresStore) GetDeliveryNoteByPO(ctx context.Context, poNumber string) (*model.DeliveryNote, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT dn_number, po_number, vendor, date, items FROM delivery_notes WHERE po_number = $1 LIMIT 1`,
		poNumber,
	)

	var dn model.DeliveryNote
	var itemsJSON []byte
	err := row.Scan(&dn.DNNumber, &dn.PONumber, &dn.Vendor, &dn.Date, &itemsJSON)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get delivery note for %s", poNumber)
	}
	if err := json.Unmarshal(itemsJSON, &dn.Items); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal dn items")
	}
	return &dn, nil
}

func scanMemoryPgx(row pgx.Row) (*MemoryRecord, error) {
	var rec MemoryRecord
	var typ string
	var data []byte
	var invoiceID *string

	err := row.Scan(&rec.Key, &typ, &data, &rec.Confidence, &invoiceID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Type = MemoryType(typ)
	rec.Data = json.RawMessage(data)
	if invoiceID != nil {
		rec.InvoiceID = *invoiceID
	}
	return &rec, nil
}
