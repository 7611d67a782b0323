package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/stockcore/stockcore/internal/shared"
)

// LedgerPair identifies one (item, warehouse) ledger stream.
type LedgerPair struct {
	ItemID      string
	WarehouseID string
}

// LedgerRepositoryPort abstracts ledger persistence for the generator.
type LedgerRepositoryPort interface {
	ListActivePairs(ctx context.Context, tenantID string, day time.Time) ([]LedgerPair, error)
	ListTransactionsForDay(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) ([]Transaction, error)
	GetEntry(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error)
	GetLatestEntryBefore(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error)
	UpsertEntry(ctx context.Context, entry *LedgerEntry) error
	ListEntries(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	WarehouseStockValue(ctx context.Context, tenantID, warehouseID string, day time.Time) (decimal.Decimal, decimal.Decimal, error)
}

// LedgerService generates and serves daily stock ledger entries. Entry
// generation is idempotent: regenerating a day replaces the row with the
// same computed values. In-flight generations of the same key are
// coalesced, and a redis lock keeps multiple instances from overlapping.
type LedgerService struct {
	repo  LedgerRepositoryPort
	clock shared.Clock
	lock  *shared.RedisLock
	group singleflight.Group
}

// NewLedgerService builds LedgerService.
func NewLedgerService(repo LedgerRepositoryPort, clock shared.Clock, lock *shared.RedisLock) *LedgerService {
	if clock == nil {
		clock = shared.SystemClock()
	}
	return &LedgerService{repo: repo, clock: clock, lock: lock}
}

// GenerateEntry builds (or rebuilds) the ledger row for one item,
// warehouse and day. The opening stock chains from the previous day's
// closing stock, zero when no earlier entry exists.
func (s *LedgerService) GenerateEntry(ctx context.Context, tenantID, itemID, warehouseID string, date time.Time) (*LedgerEntry, error) {
	if tenantID == "" || itemID == "" || warehouseID == "" {
		return nil, fmt.Errorf("%w: tenant, item and warehouse required", shared.ErrInvalidConfiguration)
	}
	day := LedgerDay(date)
	key := shared.LedgerLockKey(tenantID, itemID, warehouseID, day.Format("2006-01-02"))

	result, err, _ := s.group.Do(key, func() (any, error) {
		if s.lock != nil {
			ok, err := s.lock.Acquire(ctx, key)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: ledger generation already running for %s", shared.ErrConsistencyViolation, key)
			}
			defer func() { _ = s.lock.Release(ctx, key) }()
		}
		return s.buildEntry(ctx, tenantID, itemID, warehouseID, day)
	})
	if err != nil {
		return nil, err
	}
	return result.(*LedgerEntry), nil
}

func (s *LedgerService) buildEntry(ctx context.Context, tenantID, itemID, warehouseID string, day time.Time) (*LedgerEntry, error) {
	prev, err := s.repo.GetLatestEntryBefore(ctx, tenantID, itemID, warehouseID, day)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	entry := &LedgerEntry{
		TenantID:    tenantID,
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Date:        day,
		GeneratedAt: s.clock.Now(),
	}
	if prev != nil {
		entry.OpeningStock = prev.ClosingStock
		entry.AverageCost = prev.AverageCost
	}

	txns, err := s.repo.ListTransactionsForDay(ctx, tenantID, itemID, warehouseID, day)
	if err != nil {
		return nil, err
	}
	var inQty, inCost decimal.Decimal
	for _, t := range txns {
		switch {
		case t.Type == TransactionTypeStockIn:
			entry.StockIn = entry.StockIn.Add(t.Quantity)
		case t.Type == TransactionTypeStockOut:
			entry.StockOut = entry.StockOut.Add(t.Quantity)
		case t.Type == TransactionTypeTransfer && t.Direction == DirectionIn:
			entry.TransferIn = entry.TransferIn.Add(t.Quantity)
		case t.Type == TransactionTypeTransfer && t.Direction == DirectionOut:
			entry.TransferOut = entry.TransferOut.Add(t.Quantity)
		case t.Direction == DirectionIn:
			entry.AdjustmentIn = entry.AdjustmentIn.Add(t.Quantity)
		default:
			entry.AdjustmentOut = entry.AdjustmentOut.Add(t.Quantity)
		}
		if t.IsInflow() && t.UnitCost.IsPositive() {
			inQty = inQty.Add(t.Quantity)
			inCost = inCost.Add(t.Quantity.Mul(t.UnitCost))
		}
	}
	if inQty.IsPositive() {
		// a negative opening (allow-negative tenants) carries no cost
		// weight, so the blend reduces to the inflow cost alone
		base := entry.OpeningStock
		if base.IsNegative() {
			base = decimal.Zero
		}
		total := base.Mul(entry.AverageCost).Add(inCost)
		entry.AverageCost = total.Div(base.Add(inQty)).Round(4)
	}
	entry.recalculate()

	if err := s.repo.UpsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GenerateForDate builds ledger rows for every item/warehouse pair with
// journal activity on the day or an open ledger stream.
func (s *LedgerService) GenerateForDate(ctx context.Context, tenantID string, date time.Time) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	day := LedgerDay(date)
	pairs, err := s.repo.ListActivePairs(ctx, tenantID, day)
	if err != nil {
		return 0, err
	}
	generated := 0
	for _, p := range pairs {
		if _, err := s.GenerateEntry(ctx, tenantID, p.ItemID, p.WarehouseID, day); err != nil {
			return generated, fmt.Errorf("ledger for %s/%s: %w", p.ItemID, p.WarehouseID, err)
		}
		generated++
	}
	return generated, nil
}

// GenerateRange rebuilds one stream over a date range in chronological
// order so each day's opening chains from the rebuilt previous closing.
func (s *LedgerService) GenerateRange(ctx context.Context, tenantID, itemID, warehouseID string, from, to time.Time) ([]LedgerEntry, error) {
	start, end := LedgerDay(from), LedgerDay(to)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end before start", shared.ErrInvalidConfiguration)
	}
	var entries []LedgerEntry
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		entry, err := s.GenerateEntry(ctx, tenantID, itemID, warehouseID, day)
		if err != nil {
			return entries, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Entry fetches one ledger row.
func (s *LedgerService) Entry(ctx context.Context, tenantID, itemID, warehouseID string, date time.Time) (*LedgerEntry, error) {
	if tenantID == "" || itemID == "" || warehouseID == "" {
		return nil, fmt.Errorf("%w: tenant, item and warehouse required", shared.ErrInvalidConfiguration)
	}
	return s.repo.GetEntry(ctx, tenantID, itemID, warehouseID, LedgerDay(date))
}

// History lists ledger entries matching the filter in date order.
func (s *LedgerService) History(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	return s.repo.ListEntries(ctx, filter)
}

// WarehouseStockValue returns the total closing value and quantity of a
// warehouse on a day, from its ledger rows.
func (s *LedgerService) WarehouseStockValue(ctx context.Context, tenantID, warehouseID string, date time.Time) (decimal.Decimal, decimal.Decimal, error) {
	if tenantID == "" || warehouseID == "" {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: tenant and warehouse required", shared.ErrInvalidConfiguration)
	}
	return s.repo.WarehouseStockValue(ctx, tenantID, warehouseID, LedgerDay(date))
}
