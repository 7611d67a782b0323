package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StockMovementEvent is published after a movement commits.
type StockMovementEvent struct {
	Number       string
	Type         TransactionType
	Direction    MovementDirection
	TenantID     string
	ItemID       string
	WarehouseID  string
	Quantity     decimal.Decimal
	BalanceAfter decimal.Decimal
	PostedAt     time.Time
}

// LowStockEvent fires when a movement leaves an item at or below its
// reorder level.
type LowStockEvent struct {
	TenantID       string
	ItemID         string
	SKU            string
	WarehouseID    string
	AvailableStock decimal.Decimal
	ReorderLevel   decimal.Decimal
}

// IntegrationHandler receives inventory events for downstream modules.
type IntegrationHandler interface {
	HandleStockMovementPosted(ctx context.Context, evt StockMovementEvent) error
	HandleLowStock(ctx context.Context, evt LowStockEvent) error
}
