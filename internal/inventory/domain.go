package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TransactionTypeStockIn represents an inbound movement (purchase, return, opening stock).
	TransactionTypeStockIn TransactionType = "STOCK_IN"
	// TransactionTypeStockOut represents an outbound movement (sale, damage, loss).
	TransactionTypeStockOut TransactionType = "STOCK_OUT"
	// TransactionTypeTransfer represents a warehouse-to-warehouse move.
	TransactionTypeTransfer TransactionType = "TRANSFER"
	// TransactionTypeAdjustment represents a manual correction.
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
	// TransactionTypeCount represents a physical count reconciliation.
	TransactionTypeCount TransactionType = "COUNT"
)

// MovementDirection marks which side of the balance a transaction touches.
type MovementDirection string

const (
	// DirectionIn increases the stock balance.
	DirectionIn MovementDirection = "IN"
	// DirectionOut decreases the stock balance.
	DirectionOut MovementDirection = "OUT"
)

// Transaction reasons recorded for audit purposes.
const (
	ReasonPurchase        = "PURCHASE"
	ReasonSale            = "SALE"
	ReasonReturn          = "RETURN"
	ReasonDamage          = "DAMAGE"
	ReasonLoss            = "LOSS"
	ReasonOpening         = "OPENING"
	ReasonCorrection      = "CORRECTION"
	ReasonTransfer        = "TRANSFER"
	ReasonCountAdjustment = "COUNT_ADJUSTMENT"
)

// Transaction is one immutable stock movement record. Rows are never edited
// or deleted after commit; corrections are posted as new adjustments
// referencing the original.
type Transaction struct {
	ID              int64
	TenantID        string
	Number          string
	Type            TransactionType
	Direction       MovementDirection
	Reason          string
	ItemID          string
	WarehouseID     string
	ToWarehouseID   string
	Quantity        decimal.Decimal
	BalanceAfter    decimal.Decimal
	UnitCost        decimal.Decimal
	TotalCost       decimal.Decimal
	BatchID         string
	SerialNumbers   []string
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Date            time.Time
	Notes           string
	PerformedBy     string
	Attributes      map[string]any
	CreatedAt       time.Time
}

// IsInflow reports whether the transaction increases the balance at its
// warehouse.
func (t Transaction) IsInflow() bool {
	return t.Direction == DirectionIn
}

// LedgerEntry is one daily rollup row per item and warehouse.
type LedgerEntry struct {
	ID            int64
	TenantID      string
	ItemID        string
	WarehouseID   string
	Date          time.Time
	OpeningStock  decimal.Decimal
	StockIn       decimal.Decimal
	TransferIn    decimal.Decimal
	AdjustmentIn  decimal.Decimal
	StockOut      decimal.Decimal
	TransferOut   decimal.Decimal
	AdjustmentOut decimal.Decimal
	ClosingStock  decimal.Decimal
	AverageCost   decimal.Decimal
	ClosingValue  decimal.Decimal
	GeneratedAt   time.Time
}

// TotalInflows sums stock-in, transfer-in and adjustment-in.
func (e LedgerEntry) TotalInflows() decimal.Decimal {
	return e.StockIn.Add(e.TransferIn).Add(e.AdjustmentIn)
}

// TotalOutflows sums stock-out, transfer-out and adjustment-out.
func (e LedgerEntry) TotalOutflows() decimal.Decimal {
	return e.StockOut.Add(e.TransferOut).Add(e.AdjustmentOut)
}

// NetMovement is inflows minus outflows.
func (e LedgerEntry) NetMovement() decimal.Decimal {
	return e.TotalInflows().Sub(e.TotalOutflows())
}

func (e *LedgerEntry) recalculate() {
	e.ClosingStock = e.OpeningStock.Add(e.TotalInflows()).Sub(e.TotalOutflows())
	e.ClosingValue = e.ClosingStock.Mul(e.AverageCost).Round(2)
}

// LedgerDay truncates t to the UTC calendar day used as ledger key.
func LedgerDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Config is the tenant-level inventory policy row.
type Config struct {
	TenantID           string
	AllowNegativeStock bool
	DefaultStrategy    StrategyType
	ExpiryAlertDays    int
}

// RegisterItemInput describes a new stock item registration.
type RegisterItemInput struct {
	TenantID       string
	SKU            string
	Name           string
	Description    string
	WarehouseID    string
	ReorderLevel   decimal.Decimal
	MaxStockLevel  decimal.Decimal
	CostPrice      decimal.Decimal
	SellingPrice   decimal.Decimal
	BatchTracking  bool
	SerialTracking bool
	ExpiryTracking bool
	Attributes     map[string]any
}

// BatchInput carries batch details on stock-in for batch-tracked items.
type BatchInput struct {
	BatchNumber         string
	LotNumber           string
	ManufacturingDate   *time.Time
	ExpiryDate          *time.Time
	SupplierID          string
	SupplierName        string
	PurchaseOrderNumber string
	Attributes          map[string]any
}

// StockInInput describes an inbound movement request.
type StockInInput struct {
	TenantID        string
	ItemID          string
	WarehouseID     string
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	Reason          string
	Batch           *BatchInput
	SerialNumbers   []string
	WarrantyExpiry  *time.Time
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Notes           string
	PerformedBy     string
	Attributes      map[string]any
}

// ManualAllocation is one caller-chosen batch draw for MANUAL strategy.
type ManualAllocation struct {
	BatchID  string
	Quantity decimal.Decimal
}

// StockOutInput describes an outbound movement request.
type StockOutInput struct {
	TenantID          string
	ItemID            string
	WarehouseID       string
	Quantity          decimal.Decimal
	Reason            string
	Strategy          StrategyType
	ManualAllocations []ManualAllocation
	SerialNumbers     []string
	FromReserved      bool
	ReferenceType     string
	ReferenceID       string
	ReferenceNumber   string
	Notes             string
	PerformedBy       string
}

// TransferInput describes a move between two warehouses.
type TransferInput struct {
	TenantID        string
	ItemID          string
	FromWarehouseID string
	ToWarehouseID   string
	Quantity        decimal.Decimal
	SerialNumbers   []string
	Notes           string
	PerformedBy     string
}

// AdjustmentInput describes a signed manual correction.
type AdjustmentInput struct {
	TenantID    string
	ItemID      string
	WarehouseID string
	Delta       decimal.Decimal
	Reason      string
	BatchID     string
	ReferenceID string
	Notes       string
	PerformedBy string
}

// PhysicalCountInput describes a count reconciliation request.
type PhysicalCountInput struct {
	TenantID    string
	ItemID      string
	WarehouseID string
	CountedQty  decimal.Decimal
	Notes       string
	PerformedBy string
}

// ReserveInput describes an item-level reservation request.
type ReserveInput struct {
	TenantID    string
	ItemID      string
	WarehouseID string
	Quantity    decimal.Decimal
	Strategy    StrategyType
	PerformedBy string
}

// TransactionFilter filters journal listings.
type TransactionFilter struct {
	TenantID      string
	ItemID        string
	WarehouseID   string
	Type          TransactionType
	ReferenceType string
	ReferenceID   string
	From          time.Time
	To            time.Time
	Limit         int
	Offset        int
}

// BatchFilter filters batch listings.
type BatchFilter struct {
	TenantID      string
	ItemID        string
	WarehouseID   string
	ActiveOnly    bool
	ExpiringInDay int
	Limit         int
}

// SerialFilter filters serial listings.
type SerialFilter struct {
	TenantID     string
	ItemID       string
	WarehouseID  string
	SerialNumber string
	Status       SerialStatus
	Limit        int
}

// LedgerFilter filters ledger history listings.
type LedgerFilter struct {
	TenantID    string
	ItemID      string
	WarehouseID string
	From        time.Time
	To          time.Time
}
