package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/platform/db"
	"github.com/stockcore/stockcore/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const itemColumns = `id, tenant_id, sku, name, description, warehouse_id, current_stock, reserved_stock, available_stock,
reorder_level, max_stock_level, cost_price, selling_price, batch_tracking, serial_tracking, expiry_tracking, active, attributes, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.TenantID, &item.SKU, &item.Name, &item.Description, &item.WarehouseID,
		&item.CurrentStock, &item.ReservedStock, &item.AvailableStock, &item.ReorderLevel, &item.MaxStockLevel,
		&item.CostPrice, &item.SellingPrice, &item.BatchTracking, &item.SerialTracking, &item.ExpiryTracking,
		&item.Active, &item.Attributes, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: item", shared.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

func (r *Repository) GetItem(ctx context.Context, tenantID, itemID string) (*Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND id=$2`, tenantID, itemID))
}

func (r *Repository) GetItemBySKU(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND sku=$2 AND warehouse_id=$3`, tenantID, sku, warehouseID))
}

func (r *Repository) ListItems(ctx context.Context, tenantID, warehouseID string, page shared.Pagination) ([]Item, error) {
	limit := page.PerPage
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE tenant_id=$1 AND ($2='' OR warehouse_id=$2)
ORDER BY sku, warehouse_id
LIMIT $3 OFFSET $4`, tenantID, warehouseID, limit, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *Repository) CountItems(ctx context.Context, tenantID, warehouseID string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items
WHERE tenant_id=$1 AND ($2='' OR warehouse_id=$2)`, tenantID, warehouseID).Scan(&total)
	return total, err
}

func (r *Repository) ListLowStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error) {
	return r.listItemsWhere(ctx, `reorder_level > 0 AND available_stock <= reorder_level`, tenantID, warehouseID)
}

func (r *Repository) ListOverStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error) {
	return r.listItemsWhere(ctx, `max_stock_level > 0 AND current_stock > max_stock_level`, tenantID, warehouseID)
}

func (r *Repository) listItemsWhere(ctx context.Context, cond, tenantID, warehouseID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE tenant_id=$1 AND ($2='' OR warehouse_id=$2) AND active AND `+cond+`
ORDER BY sku, warehouse_id`, tenantID, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

const txnColumns = `id, tenant_id, number, tx_type, direction, reason, item_id, warehouse_id, to_warehouse_id,
quantity, balance_after, unit_cost, total_cost, batch_id, serial_numbers, reference_type, reference_id, reference_number,
txn_date, notes, performed_by, attributes, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.TenantID, &t.Number, &t.Type, &t.Direction, &t.Reason, &t.ItemID, &t.WarehouseID, &t.ToWarehouseID,
		&t.Quantity, &t.BalanceAfter, &t.UnitCost, &t.TotalCost, &t.BatchID, &t.SerialNumbers, &t.ReferenceType, &t.ReferenceID,
		&t.ReferenceNumber, &t.Date, &t.Notes, &t.PerformedBy, &t.Attributes, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction", shared.ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+txnColumns+` FROM inventory_transactions
WHERE tenant_id=$1
  AND ($2='' OR item_id::text=$2)
  AND ($3='' OR warehouse_id=$3)
  AND ($4='' OR tx_type=$4)
  AND ($5='' OR reference_type=$5)
  AND ($6='' OR reference_id=$6)
  AND txn_date BETWEEN COALESCE($7, '-infinity') AND COALESCE($8, 'infinity')
ORDER BY txn_date DESC, id DESC
LIMIT $9 OFFSET $10`,
		filter.TenantID, filter.ItemID, filter.WarehouseID, string(filter.Type), filter.ReferenceType, filter.ReferenceID,
		nullTime(filter.From), nullTime(filter.To), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txns := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

func (r *Repository) GetTransactionByNumber(ctx context.Context, tenantID, number string) (*Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM inventory_transactions WHERE tenant_id=$1 AND number=$2`, tenantID, number))
}

const batchColumns = `id, tenant_id, item_id, warehouse_id, batch_number, lot_number, total_quantity, available_quantity,
reserved_quantity, unit_cost, manufacturing_date, expiry_date, received_date, supplier_id, supplier_name,
purchase_order_number, active, attributes, created_at, updated_at`

func scanBatch(row pgx.Row) (*Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.TenantID, &b.ItemID, &b.WarehouseID, &b.BatchNumber, &b.LotNumber, &b.TotalQuantity,
		&b.AvailableQuantity, &b.ReservedQuantity, &b.UnitCost, &b.ManufacturingDate, &b.ExpiryDate, &b.ReceivedDate,
		&b.SupplierID, &b.SupplierName, &b.PurchaseOrderNumber, &b.Active, &b.Attributes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: batch", shared.ErrNotFound)
		}
		return nil, err
	}
	return &b, nil
}

func collectBatches(rows pgx.Rows) ([]*Batch, error) {
	defer rows.Close()
	batches := []*Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE tenant_id=$1
  AND ($2='' OR item_id::text=$2)
  AND ($3='' OR warehouse_id=$3)
  AND (NOT $4 OR active)
  AND ($5<=0 OR (expiry_date IS NOT NULL AND expiry_date <= NOW() + make_interval(days => $5)))
ORDER BY received_date, id
LIMIT $6`, filter.TenantID, filter.ItemID, filter.WarehouseID, filter.ActiveOnly, filter.ExpiringInDay, limit)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

const serialColumns = `id, tenant_id, item_id, warehouse_id, serial_number, status, batch_id, warranty_expiry, sold_at, reference_id, notes, created_at, updated_at`

func scanSerial(row pgx.Row) (*Serial, error) {
	var s Serial
	err := row.Scan(&s.ID, &s.TenantID, &s.ItemID, &s.WarehouseID, &s.SerialNumber, &s.Status, &s.BatchID,
		&s.WarrantyExpiry, &s.SoldAt, &s.ReferenceID, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: serial", shared.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListSerials(ctx context.Context, filter SerialFilter) ([]Serial, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+serialColumns+` FROM inventory_serials
WHERE tenant_id=$1
  AND ($2='' OR item_id::text=$2)
  AND ($3='' OR warehouse_id=$3)
  AND ($4='' OR serial_number=$4)
  AND ($5='' OR status=$5)
ORDER BY serial_number
LIMIT $6`, filter.TenantID, filter.ItemID, filter.WarehouseID, filter.SerialNumber, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	serials := []Serial{}
	for rows.Next() {
		s, err := scanSerial(rows)
		if err != nil {
			return nil, err
		}
		serials = append(serials, *s)
	}
	return serials, rows.Err()
}

func (r *Repository) GetConfig(ctx context.Context, tenantID string) (Config, error) {
	var cfg Config
	err := r.pool.QueryRow(ctx, `SELECT tenant_id, allow_negative_stock, default_strategy, expiry_alert_days FROM inventory_config WHERE tenant_id=$1`, tenantID).
		Scan(&cfg.TenantID, &cfg.AllowNegativeStock, &cfg.DefaultStrategy, &cfg.ExpiryAlertDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{}, fmt.Errorf("%w: config for tenant %s", shared.ErrNotFound, tenantID)
		}
		return Config{}, err
	}
	return cfg, nil
}

func (r *txRepository) InsertItem(ctx context.Context, item *Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_items (`+itemColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		item.ID, item.TenantID, item.SKU, item.Name, item.Description, item.WarehouseID,
		item.CurrentStock, item.ReservedStock, item.AvailableStock, item.ReorderLevel, item.MaxStockLevel,
		item.CostPrice, item.SellingPrice, item.BatchTracking, item.SerialTracking, item.ExpiryTracking,
		item.Active, item.Attributes, item.CreatedAt, item.UpdatedAt)
	return mapUniqueViolation(err, "item sku")
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, tenantID, itemID string) (*Item, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, itemID))
}

func (r *txRepository) GetItemBySKUForUpdate(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND sku=$2 AND warehouse_id=$3 FOR UPDATE`, tenantID, sku, warehouseID))
}

func (r *txRepository) UpdateItemStock(ctx context.Context, item *Item) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_items
SET current_stock=$3, reserved_stock=$4, available_stock=$5, cost_price=$6, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`,
		item.TenantID, item.ID, item.CurrentStock, item.ReservedStock, item.AvailableStock, item.CostPrice)
	return err
}

func (r *txRepository) InsertBatch(ctx context.Context, batch *Batch) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_batches (`+batchColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		batch.ID, batch.TenantID, batch.ItemID, batch.WarehouseID, batch.BatchNumber, batch.LotNumber,
		batch.TotalQuantity, batch.AvailableQuantity, batch.ReservedQuantity, batch.UnitCost,
		batch.ManufacturingDate, batch.ExpiryDate, batch.ReceivedDate, batch.SupplierID, batch.SupplierName,
		batch.PurchaseOrderNumber, batch.Active, batch.Attributes, batch.CreatedAt, batch.UpdatedAt)
	return mapUniqueViolation(err, "batch number")
}

func (r *txRepository) FindBatchForUpdate(ctx context.Context, tenantID, itemID, warehouseID, batchNumber string) (*Batch, error) {
	return scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE tenant_id=$1 AND item_id=$2 AND warehouse_id=$3 AND (id::text=$4 OR batch_number=$4) FOR UPDATE`,
		tenantID, itemID, warehouseID, batchNumber))
}

func (r *txRepository) ListBatchesForUpdate(ctx context.Context, tenantID, itemID, warehouseID string) ([]*Batch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE tenant_id=$1 AND item_id=$2 AND warehouse_id=$3 AND active
ORDER BY received_date, id FOR UPDATE`, tenantID, itemID, warehouseID)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func (r *txRepository) ListExpiredBatchesForUpdate(ctx context.Context, tenantID string, now time.Time) ([]*Batch, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE tenant_id=$1 AND active AND expiry_date IS NOT NULL AND expiry_date <= $2
ORDER BY expiry_date, id FOR UPDATE`, tenantID, now)
	if err != nil {
		return nil, err
	}
	return collectBatches(rows)
}

func (r *txRepository) UpdateBatch(ctx context.Context, batch *Batch) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_batches
SET total_quantity=$3, available_quantity=$4, reserved_quantity=$5, unit_cost=$6, active=$7, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`,
		batch.TenantID, batch.ID, batch.TotalQuantity, batch.AvailableQuantity, batch.ReservedQuantity, batch.UnitCost, batch.Active)
	return err
}

func (r *txRepository) InsertSerial(ctx context.Context, serial *Serial) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_serials (`+serialColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		serial.ID, serial.TenantID, serial.ItemID, serial.WarehouseID, serial.SerialNumber, string(serial.Status),
		serial.BatchID, serial.WarrantyExpiry, serial.SoldAt, serial.ReferenceID, serial.Notes, serial.CreatedAt, serial.UpdatedAt)
	return mapUniqueViolation(err, "serial number")
}

func (r *txRepository) GetSerialForUpdate(ctx context.Context, tenantID, itemID, serialNumber string) (*Serial, error) {
	return scanSerial(r.tx.QueryRow(ctx, `SELECT `+serialColumns+` FROM inventory_serials
WHERE tenant_id=$1 AND item_id=$2 AND serial_number=$3 FOR UPDATE`, tenantID, itemID, serialNumber))
}

func (r *txRepository) UpdateSerial(ctx context.Context, serial *Serial) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_serials
SET item_id=$3, warehouse_id=$4, status=$5, reference_id=$6, sold_at=$7, notes=$8, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`,
		serial.TenantID, serial.ID, serial.ItemID, serial.WarehouseID, string(serial.Status), serial.ReferenceID, serial.SoldAt, serial.Notes)
	return err
}

func (r *txRepository) NextTransactionNumber(ctx context.Context, tenantID string, day time.Time) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_tx_counters (tenant_id, day, seq)
VALUES ($1,$2,1)
ON CONFLICT (tenant_id, day) DO UPDATE SET seq = inventory_tx_counters.seq + 1
RETURNING seq`, tenantID, day).Scan(&seq)
	return seq, err
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn *Transaction) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions (tenant_id, number, tx_type, direction, reason, item_id, warehouse_id, to_warehouse_id,
quantity, balance_after, unit_cost, total_cost, batch_id, serial_numbers, reference_type, reference_id, reference_number, txn_date, notes, performed_by, attributes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,NOW()) RETURNING id`,
		txn.TenantID, txn.Number, string(txn.Type), string(txn.Direction), txn.Reason, txn.ItemID, txn.WarehouseID, txn.ToWarehouseID,
		txn.Quantity, txn.BalanceAfter, txn.UnitCost, txn.TotalCost, txn.BatchID, txn.SerialNumbers,
		txn.ReferenceType, txn.ReferenceID, txn.ReferenceNumber, txn.Date, txn.Notes, txn.PerformedBy, txn.Attributes).Scan(&txn.ID)
	return mapUniqueViolation(err, "transaction number")
}

func (r *Repository) ListActivePairs(ctx context.Context, tenantID string, day time.Time) ([]LedgerPair, error) {
	next := day.AddDate(0, 0, 1)
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id, warehouse_id FROM inventory_transactions
WHERE tenant_id=$1 AND txn_date >= $2 AND txn_date < $3
UNION
SELECT item_id, warehouse_id FROM inventory_ledger
WHERE tenant_id=$1 AND entry_date < $2 AND closing_stock <> 0`, tenantID, day, next)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pairs := []LedgerPair{}
	for rows.Next() {
		var p LedgerPair
		if err := rows.Scan(&p.ItemID, &p.WarehouseID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (r *Repository) ListTransactionsForDay(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) ([]Transaction, error) {
	next := day.AddDate(0, 0, 1)
	rows, err := r.pool.Query(ctx, `SELECT `+txnColumns+` FROM inventory_transactions
WHERE tenant_id=$1 AND item_id=$2 AND warehouse_id=$3 AND txn_date >= $4 AND txn_date < $5
ORDER BY txn_date, id`, tenantID, itemID, warehouseID, day, next)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txns := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

const ledgerColumns = `id, tenant_id, item_id, warehouse_id, entry_date, opening_stock, stock_in, transfer_in, adjustment_in,
stock_out, transfer_out, adjustment_out, closing_stock, average_cost, closing_value, generated_at`

func scanLedger(row pgx.Row) (*LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.ItemID, &e.WarehouseID, &e.Date, &e.OpeningStock, &e.StockIn, &e.TransferIn,
		&e.AdjustmentIn, &e.StockOut, &e.TransferOut, &e.AdjustmentOut, &e.ClosingStock, &e.AverageCost, &e.ClosingValue, &e.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: ledger entry", shared.ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) GetEntry(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error) {
	return scanLedger(r.pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM inventory_ledger
WHERE tenant_id=$1 AND item_id=$2 AND warehouse_id=$3 AND entry_date=$4`, tenantID, itemID, warehouseID, day))
}

func (r *Repository) GetLatestEntryBefore(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error) {
	return scanLedger(r.pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM inventory_ledger
WHERE tenant_id=$1 AND item_id=$2 AND warehouse_id=$3 AND entry_date < $4
ORDER BY entry_date DESC LIMIT 1`, tenantID, itemID, warehouseID, day))
}

func (r *Repository) UpsertEntry(ctx context.Context, entry *LedgerEntry) error {
	return r.pool.QueryRow(ctx, `INSERT INTO inventory_ledger (tenant_id, item_id, warehouse_id, entry_date, opening_stock, stock_in, transfer_in, adjustment_in,
stock_out, transfer_out, adjustment_out, closing_stock, average_cost, closing_value, generated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (tenant_id, item_id, warehouse_id, entry_date) DO UPDATE SET
opening_stock=EXCLUDED.opening_stock, stock_in=EXCLUDED.stock_in, transfer_in=EXCLUDED.transfer_in, adjustment_in=EXCLUDED.adjustment_in,
stock_out=EXCLUDED.stock_out, transfer_out=EXCLUDED.transfer_out, adjustment_out=EXCLUDED.adjustment_out,
closing_stock=EXCLUDED.closing_stock, average_cost=EXCLUDED.average_cost, closing_value=EXCLUDED.closing_value, generated_at=EXCLUDED.generated_at
RETURNING id`,
		entry.TenantID, entry.ItemID, entry.WarehouseID, entry.Date, entry.OpeningStock, entry.StockIn, entry.TransferIn,
		entry.AdjustmentIn, entry.StockOut, entry.TransferOut, entry.AdjustmentOut, entry.ClosingStock, entry.AverageCost,
		entry.ClosingValue, entry.GeneratedAt).Scan(&entry.ID)
}

func (r *Repository) ListEntries(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM inventory_ledger
WHERE tenant_id=$1
  AND ($2='' OR item_id::text=$2)
  AND ($3='' OR warehouse_id=$3)
  AND entry_date BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY entry_date, item_id, warehouse_id`,
		filter.TenantID, filter.ItemID, filter.WarehouseID, nullTime(filter.From), nullTime(filter.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		e, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r *Repository) WarehouseStockValue(ctx context.Context, tenantID, warehouseID string, day time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var value, qty decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(closing_value),0), COALESCE(SUM(closing_stock),0)
FROM inventory_ledger WHERE tenant_id=$1 AND warehouse_id=$2 AND entry_date=$3`, tenantID, warehouseID, day).Scan(&value, &qty)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return value, qty, nil
}

func mapUniqueViolation(err error, what string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateIdentifier, what)
	}
	return err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
