package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/shared"
)

// memoryRepo implements RepositoryPort, TxRepository and
// LedgerRepositoryPort for tests. Reads hand out copies and updates write
// copies back, so work inside a failed callback never leaks into the
// stored state, mirroring a rolled-back transaction.
type memoryRepo struct {
	mu       sync.Mutex
	items    map[string]*Item
	batches  map[string]*Batch
	serials  map[string]*Serial
	txns     []Transaction
	ledger   map[string]*LedgerEntry
	counters map[string]int
	configs  map[string]Config
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:    make(map[string]*Item),
		batches:  make(map[string]*Batch),
		serials:  make(map[string]*Serial),
		ledger:   make(map[string]*LedgerEntry),
		counters: make(map[string]int),
		configs:  make(map[string]Config),
	}
}

func itemKey(tenantID, itemID string) string          { return tenantID + "|" + itemID }
func serialKey(tenantID, itemID, sn string) string    { return tenantID + "|" + itemID + "|" + sn }
func ledgerKey(tenantID, itemID, wh string, d time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, itemID, wh, d.Format("2006-01-02"))
}

func copyItem(i *Item) *Item       { c := *i; return &c }
func copyBatch(b *Batch) *Batch    { c := *b; return &c }
func copySerial(s *Serial) *Serial { c := *s; return &c }

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetItem(ctx context.Context, tenantID, itemID string) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemKey(tenantID, itemID)]
	if !ok {
		return nil, fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	return copyItem(item), nil
}

func (r *memoryRepo) GetItemBySKU(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).findBySKU(tenantID, sku, warehouseID)
}

func (r *memoryRepo) ListItems(ctx context.Context, tenantID, warehouseID string, page shared.Pagination) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := []Item{}
	for _, i := range r.items {
		if i.TenantID == tenantID && (warehouseID == "" || i.WarehouseID == warehouseID) {
			items = append(items, *i)
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].SKU < items[b].SKU })
	if page.PerPage > 0 {
		off := page.Offset()
		if off >= len(items) {
			return []Item{}, nil
		}
		end := off + page.PerPage
		if end > len(items) {
			end = len(items)
		}
		items = items[off:end]
	}
	return items, nil
}

func (r *memoryRepo) CountItems(ctx context.Context, tenantID, warehouseID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, i := range r.items {
		if i.TenantID == tenantID && (warehouseID == "" || i.WarehouseID == warehouseID) {
			total++
		}
	}
	return total, nil
}

func (r *memoryRepo) ListLowStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error) {
	return r.listItemsIf(tenantID, warehouseID, Item.IsLowStock)
}

func (r *memoryRepo) ListOverStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error) {
	return r.listItemsIf(tenantID, warehouseID, Item.IsOverStock)
}

func (r *memoryRepo) listItemsIf(tenantID, warehouseID string, match func(Item) bool) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := []Item{}
	for _, i := range r.items {
		if i.TenantID == tenantID && (warehouseID == "" || i.WarehouseID == warehouseID) && i.Active && match(*i) {
			items = append(items, *i)
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].SKU < items[b].SKU })
	return items, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Transaction{}
	for _, t := range r.txns {
		if t.TenantID != filter.TenantID {
			continue
		}
		if filter.ItemID != "" && t.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != "" && t.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.ReferenceID != "" && t.ReferenceID != filter.ReferenceID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepo) GetTransactionByNumber(ctx context.Context, tenantID, number string) (*Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.TenantID == tenantID && t.Number == number {
			c := t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: transaction", shared.ErrNotFound)
}

func (r *memoryRepo) ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*Batch{}
	for _, b := range r.batches {
		if b.TenantID != filter.TenantID {
			continue
		}
		if filter.ItemID != "" && b.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != "" && b.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.ActiveOnly && !b.Active {
			continue
		}
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ReceivedDate.Before(out[b].ReceivedDate) })
	return out, nil
}

func (r *memoryRepo) ListSerials(ctx context.Context, filter SerialFilter) ([]Serial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Serial{}
	for _, s := range r.serials {
		if s.TenantID != filter.TenantID {
			continue
		}
		if filter.ItemID != "" && s.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != "" && s.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.SerialNumber != "" && s.SerialNumber != filter.SerialNumber {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SerialNumber < out[b].SerialNumber })
	return out, nil
}

func (r *memoryRepo) GetConfig(ctx context.Context, tenantID string) (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return Config{}, fmt.Errorf("%w: config", shared.ErrNotFound)
	}
	return cfg, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item *Item) error {
	for _, existing := range tx.repo.items {
		if existing.TenantID == item.TenantID && existing.SKU == item.SKU && existing.WarehouseID == item.WarehouseID {
			return fmt.Errorf("%w: item sku", shared.ErrDuplicateIdentifier)
		}
	}
	tx.repo.items[itemKey(item.TenantID, item.ID)] = copyItem(item)
	return nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, tenantID, itemID string) (*Item, error) {
	item, ok := tx.repo.items[itemKey(tenantID, itemID)]
	if !ok {
		return nil, fmt.Errorf("%w: item", shared.ErrNotFound)
	}
	return copyItem(item), nil
}

func (tx *memoryTx) findBySKU(tenantID, sku, warehouseID string) (*Item, error) {
	for _, i := range tx.repo.items {
		if i.TenantID == tenantID && i.SKU == sku && i.WarehouseID == warehouseID {
			return copyItem(i), nil
		}
	}
	return nil, fmt.Errorf("%w: item", shared.ErrNotFound)
}

func (tx *memoryTx) GetItemBySKUForUpdate(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error) {
	return tx.findBySKU(tenantID, sku, warehouseID)
}

func (tx *memoryTx) UpdateItemStock(ctx context.Context, item *Item) error {
	tx.repo.items[itemKey(item.TenantID, item.ID)] = copyItem(item)
	return nil
}

func (tx *memoryTx) InsertBatch(ctx context.Context, batch *Batch) error {
	for _, existing := range tx.repo.batches {
		if existing.TenantID == batch.TenantID && existing.ItemID == batch.ItemID &&
			existing.WarehouseID == batch.WarehouseID && existing.BatchNumber == batch.BatchNumber {
			return fmt.Errorf("%w: batch number", shared.ErrDuplicateIdentifier)
		}
	}
	tx.repo.batches[batch.TenantID+"|"+batch.ID] = copyBatch(batch)
	return nil
}

func (tx *memoryTx) FindBatchForUpdate(ctx context.Context, tenantID, itemID, warehouseID, batchNumber string) (*Batch, error) {
	for _, b := range tx.repo.batches {
		if b.TenantID == tenantID && b.ItemID == itemID && b.WarehouseID == warehouseID &&
			(b.ID == batchNumber || b.BatchNumber == batchNumber) {
			return copyBatch(b), nil
		}
	}
	return nil, fmt.Errorf("%w: batch", shared.ErrNotFound)
}

func (tx *memoryTx) ListBatchesForUpdate(ctx context.Context, tenantID, itemID, warehouseID string) ([]*Batch, error) {
	out := []*Batch{}
	for _, b := range tx.repo.batches {
		if b.TenantID == tenantID && b.ItemID == itemID && b.WarehouseID == warehouseID && b.Active {
			out = append(out, copyBatch(b))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ReceivedDate.Before(out[b].ReceivedDate) })
	return out, nil
}

func (tx *memoryTx) ListExpiredBatchesForUpdate(ctx context.Context, tenantID string, now time.Time) ([]*Batch, error) {
	out := []*Batch{}
	for _, b := range tx.repo.batches {
		if b.TenantID == tenantID && b.Active && b.HasExpired(now) {
			out = append(out, copyBatch(b))
		}
	}
	return out, nil
}

func (tx *memoryTx) UpdateBatch(ctx context.Context, batch *Batch) error {
	tx.repo.batches[batch.TenantID+"|"+batch.ID] = copyBatch(batch)
	return nil
}

func (tx *memoryTx) InsertSerial(ctx context.Context, serial *Serial) error {
	for _, s := range tx.repo.serials {
		if s.TenantID == serial.TenantID && s.SerialNumber == serial.SerialNumber {
			return fmt.Errorf("%w: serial number", shared.ErrDuplicateIdentifier)
		}
	}
	tx.repo.serials[serialKey(serial.TenantID, serial.ItemID, serial.SerialNumber)] = copySerial(serial)
	return nil
}

func (tx *memoryTx) GetSerialForUpdate(ctx context.Context, tenantID, itemID, serialNumber string) (*Serial, error) {
	s, ok := tx.repo.serials[serialKey(tenantID, itemID, serialNumber)]
	if !ok {
		return nil, fmt.Errorf("%w: serial", shared.ErrNotFound)
	}
	return copySerial(s), nil
}

func (tx *memoryTx) UpdateSerial(ctx context.Context, serial *Serial) error {
	for key, s := range tx.repo.serials {
		if s.ID == serial.ID {
			delete(tx.repo.serials, key)
			break
		}
	}
	tx.repo.serials[serialKey(serial.TenantID, serial.ItemID, serial.SerialNumber)] = copySerial(serial)
	return nil
}

func (tx *memoryTx) NextTransactionNumber(ctx context.Context, tenantID string, day time.Time) (int, error) {
	key := tenantID + "|" + day.Format("20060102")
	tx.repo.counters[key]++
	return tx.repo.counters[key], nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, txn *Transaction) error {
	for _, existing := range tx.repo.txns {
		if existing.TenantID == txn.TenantID && existing.Number == txn.Number {
			return fmt.Errorf("%w: transaction number", shared.ErrDuplicateIdentifier)
		}
	}
	tx.repo.nextID++
	txn.ID = tx.repo.nextID
	tx.repo.txns = append(tx.repo.txns, *txn)
	return nil
}

func (r *memoryRepo) ListActivePairs(ctx context.Context, tenantID string, day time.Time) ([]LedgerPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]LedgerPair{}
	next := day.AddDate(0, 0, 1)
	for _, t := range r.txns {
		if t.TenantID == tenantID && !t.Date.Before(day) && t.Date.Before(next) {
			seen[t.ItemID+"|"+t.WarehouseID] = LedgerPair{ItemID: t.ItemID, WarehouseID: t.WarehouseID}
		}
	}
	for _, e := range r.ledger {
		if e.TenantID == tenantID && e.Date.Before(day) && !e.ClosingStock.IsZero() {
			seen[e.ItemID+"|"+e.WarehouseID] = LedgerPair{ItemID: e.ItemID, WarehouseID: e.WarehouseID}
		}
	}
	pairs := []LedgerPair{}
	for _, p := range seen {
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func (r *memoryRepo) ListTransactionsForDay(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := day.AddDate(0, 0, 1)
	out := []Transaction{}
	for _, t := range r.txns {
		if t.TenantID == tenantID && t.ItemID == itemID && t.WarehouseID == warehouseID &&
			!t.Date.Before(day) && t.Date.Before(next) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetEntry(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.ledger[ledgerKey(tenantID, itemID, warehouseID, day)]
	if !ok {
		return nil, fmt.Errorf("%w: ledger entry", shared.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (r *memoryRepo) GetLatestEntryBefore(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *LedgerEntry
	for _, e := range r.ledger {
		if e.TenantID == tenantID && e.ItemID == itemID && e.WarehouseID == warehouseID && e.Date.Before(day) {
			if latest == nil || e.Date.After(latest.Date) {
				latest = e
			}
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: ledger entry", shared.ErrNotFound)
	}
	c := *latest
	return &c, nil
}

func (r *memoryRepo) UpsertEntry(ctx context.Context, entry *LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ledgerKey(entry.TenantID, entry.ItemID, entry.WarehouseID, entry.Date)
	if existing, ok := r.ledger[key]; ok {
		entry.ID = existing.ID
	} else {
		r.nextID++
		entry.ID = r.nextID
	}
	c := *entry
	r.ledger[key] = &c
	return nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []LedgerEntry{}
	for _, e := range r.ledger {
		if e.TenantID != filter.TenantID {
			continue
		}
		if filter.ItemID != "" && e.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != "" && e.WarehouseID != filter.WarehouseID {
			continue
		}
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out, nil
}

func (r *memoryRepo) WarehouseStockValue(ctx context.Context, tenantID, warehouseID string, day time.Time) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, qty := decimal.Zero, decimal.Zero
	for _, e := range r.ledger {
		if e.TenantID == tenantID && e.WarehouseID == warehouseID && e.Date.Equal(day) {
			value = value.Add(e.ClosingValue)
			qty = qty.Add(e.ClosingStock)
		}
	}
	return value, qty, nil
}
