package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/shared"
)

// Batch is one received lot of a batch-tracked item. TotalQuantity never
// changes after receipt; available plus reserved shrink as stock leaves,
// and the difference is the consumed quantity.
type Batch struct {
	ID                  string
	TenantID            string
	ItemID              string
	WarehouseID         string
	BatchNumber         string
	LotNumber           string
	TotalQuantity       decimal.Decimal
	AvailableQuantity   decimal.Decimal
	ReservedQuantity    decimal.Decimal
	UnitCost            decimal.Decimal
	ManufacturingDate   *time.Time
	ExpiryDate          *time.Time
	ReceivedDate        time.Time
	SupplierID          string
	SupplierName        string
	PurchaseOrderNumber string
	Active              bool
	Attributes          map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ConsumedQuantity is total minus available minus reserved.
func (b Batch) ConsumedQuantity() decimal.Decimal {
	return b.TotalQuantity.Sub(b.AvailableQuantity).Sub(b.ReservedQuantity)
}

// HasExpired reports whether the batch expiry date is on or before now.
// Batches without an expiry date never expire.
func (b Batch) HasExpired(now time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(now)
}

// IsExpiringSoon reports whether the batch expires within days from now.
func (b Batch) IsExpiringSoon(now time.Time, days int) bool {
	if b.ExpiryDate == nil {
		return false
	}
	cutoff := now.AddDate(0, 0, days)
	return b.ExpiryDate.After(now) && !b.ExpiryDate.After(cutoff)
}

// AllocatableQuantity is the stock an outbound draw may take: available
// only, or available plus reserved when fulfilling a reservation.
func (b Batch) AllocatableQuantity(fromReserved bool) decimal.Decimal {
	if fromReserved {
		return b.AvailableQuantity.Add(b.ReservedQuantity)
	}
	return b.AvailableQuantity
}

// HasAllocatableStock reports whether the batch can supply an allocation.
func (b Batch) HasAllocatableStock(now time.Time, fromReserved bool) bool {
	return b.Active && !b.HasExpired(now) && b.AllocatableQuantity(fromReserved).IsPositive()
}

// HasAvailableStock reports whether the batch has free stock on hand.
func (b Batch) HasAvailableStock(now time.Time) bool {
	return b.HasAllocatableStock(now, false)
}

// RemainingValue is (available + reserved) times unit cost.
func (b Batch) RemainingValue() decimal.Decimal {
	return b.AvailableQuantity.Add(b.ReservedQuantity).Mul(b.UnitCost).Round(2)
}

// AddStock grows both total and available quantity, for top-ups into an
// existing batch.
func (b *Batch) AddStock(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: batch add quantity must be positive", shared.ErrInvalidConfiguration)
	}
	b.TotalQuantity = b.TotalQuantity.Add(qty)
	b.AvailableQuantity = b.AvailableQuantity.Add(qty)
	return nil
}

// Reserve moves qty from available to reserved.
func (b *Batch) Reserve(qty decimal.Decimal) error {
	if b.AvailableQuantity.LessThan(qty) {
		return fmt.Errorf("%w: batch %s available %s, requested %s", shared.ErrInsufficientStock, b.BatchNumber, b.AvailableQuantity, qty)
	}
	b.AvailableQuantity = b.AvailableQuantity.Sub(qty)
	b.ReservedQuantity = b.ReservedQuantity.Add(qty)
	return nil
}

// ReleaseReserved returns up to qty from reserved back to available and
// reports how much was actually released.
func (b *Batch) ReleaseReserved(qty decimal.Decimal) decimal.Decimal {
	if qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	released := decimal.Min(qty, b.ReservedQuantity)
	b.ReservedQuantity = b.ReservedQuantity.Sub(released)
	b.AvailableQuantity = b.AvailableQuantity.Add(released)
	return released
}

// Consume removes qty from the batch. With fromReserved set it draws from
// the reserved pool first and spills into available; otherwise it draws
// from available only.
func (b *Batch) Consume(qty decimal.Decimal, fromReserved bool) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: batch consume quantity must be positive", shared.ErrInvalidConfiguration)
	}
	if fromReserved {
		fromRes := decimal.Min(qty, b.ReservedQuantity)
		rest := qty.Sub(fromRes)
		if b.AvailableQuantity.LessThan(rest) {
			return fmt.Errorf("%w: batch %s holds %s, requested %s", shared.ErrInsufficientStock, b.BatchNumber, b.AvailableQuantity.Add(b.ReservedQuantity), qty)
		}
		b.ReservedQuantity = b.ReservedQuantity.Sub(fromRes)
		b.AvailableQuantity = b.AvailableQuantity.Sub(rest)
		return nil
	}
	if b.AvailableQuantity.LessThan(qty) {
		return fmt.Errorf("%w: batch %s available %s, requested %s", shared.ErrInsufficientStock, b.BatchNumber, b.AvailableQuantity, qty)
	}
	b.AvailableQuantity = b.AvailableQuantity.Sub(qty)
	return nil
}
