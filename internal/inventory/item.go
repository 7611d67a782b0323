package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/shared"
)

// Item is one stock item at one warehouse. CurrentStock is the physical
// on-hand quantity; ReservedStock is the slice of it held for pending
// orders; AvailableStock is always derived as current minus reserved.
type Item struct {
	ID             string
	TenantID       string
	SKU            string
	Name           string
	Description    string
	WarehouseID    string
	CurrentStock   decimal.Decimal
	ReservedStock  decimal.Decimal
	AvailableStock decimal.Decimal
	ReorderLevel   decimal.Decimal
	MaxStockLevel  decimal.Decimal
	CostPrice      decimal.Decimal
	SellingPrice   decimal.Decimal
	BatchTracking  bool
	SerialTracking bool
	ExpiryTracking bool
	Active         bool
	Attributes     map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplyDelta moves CurrentStock by delta and recomputes AvailableStock.
// A move that would take CurrentStock below zero, or below ReservedStock,
// is rejected with ErrInsufficientStock.
func (i *Item) ApplyDelta(delta decimal.Decimal) error {
	next := i.CurrentStock.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: item %s stock %s, delta %s", shared.ErrInsufficientStock, i.ID, i.CurrentStock, delta)
	}
	if next.LessThan(i.ReservedStock) {
		return fmt.Errorf("%w: item %s would drop below reserved %s", shared.ErrInsufficientStock, i.ID, i.ReservedStock)
	}
	i.CurrentStock = next
	i.AvailableStock = i.CurrentStock.Sub(i.ReservedStock)
	return nil
}

// ForceDelta applies delta without the negative stock check, for tenants
// configured to allow negative balances.
func (i *Item) ForceDelta(delta decimal.Decimal) {
	i.CurrentStock = i.CurrentStock.Add(delta)
	i.AvailableStock = i.CurrentStock.Sub(i.ReservedStock)
}

// Reserve moves qty from available into reserved.
func (i *Item) Reserve(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: reserve quantity must be positive", shared.ErrInvalidConfiguration)
	}
	if i.AvailableStock.LessThan(qty) {
		return fmt.Errorf("%w: item %s available %s, requested %s", shared.ErrInsufficientStock, i.ID, i.AvailableStock, qty)
	}
	i.ReservedStock = i.ReservedStock.Add(qty)
	i.AvailableStock = i.CurrentStock.Sub(i.ReservedStock)
	return nil
}

// ReleaseReservation returns up to qty from reserved back to available.
// Releasing more than is reserved releases only what is held.
func (i *Item) ReleaseReservation(qty decimal.Decimal) decimal.Decimal {
	if qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	released := decimal.Min(qty, i.ReservedStock)
	i.ReservedStock = i.ReservedStock.Sub(released)
	i.AvailableStock = i.CurrentStock.Sub(i.ReservedStock)
	return released
}

// ConsumeReserved removes qty from both current and reserved stock, for
// outbound movements fulfilling a reservation.
func (i *Item) ConsumeReserved(qty decimal.Decimal) error {
	if i.ReservedStock.LessThan(qty) {
		return fmt.Errorf("%w: item %s reserved %s, requested %s", shared.ErrInsufficientStock, i.ID, i.ReservedStock, qty)
	}
	i.ReservedStock = i.ReservedStock.Sub(qty)
	i.CurrentStock = i.CurrentStock.Sub(qty)
	i.AvailableStock = i.CurrentStock.Sub(i.ReservedStock)
	return nil
}

// IsLowStock reports whether available stock is at or below the reorder
// level. A zero reorder level disables the check.
func (i Item) IsLowStock() bool {
	return i.ReorderLevel.IsPositive() && i.AvailableStock.LessThanOrEqual(i.ReorderLevel)
}

// IsOverStock reports whether current stock exceeds the max stock level.
// A zero max level disables the check.
func (i Item) IsOverStock() bool {
	return i.MaxStockLevel.IsPositive() && i.CurrentStock.GreaterThan(i.MaxStockLevel)
}

// StockValue is current stock times cost price.
func (i Item) StockValue() decimal.Decimal {
	return i.CurrentStock.Mul(i.CostPrice).Round(2)
}
