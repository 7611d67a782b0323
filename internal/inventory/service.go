package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, tenantID, itemID string) (*Item, error)
	GetItemBySKU(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error)
	ListItems(ctx context.Context, tenantID, warehouseID string, page shared.Pagination) ([]Item, error)
	CountItems(ctx context.Context, tenantID, warehouseID string) (int, error)
	ListLowStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error)
	ListOverStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	GetTransactionByNumber(ctx context.Context, tenantID, number string) (*Transaction, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error)
	ListSerials(ctx context.Context, filter SerialFilter) ([]Serial, error)
	GetConfig(ctx context.Context, tenantID string) (Config, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertItem(ctx context.Context, item *Item) error
	GetItemForUpdate(ctx context.Context, tenantID, itemID string) (*Item, error)
	GetItemBySKUForUpdate(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error)
	UpdateItemStock(ctx context.Context, item *Item) error
	InsertBatch(ctx context.Context, batch *Batch) error
	FindBatchForUpdate(ctx context.Context, tenantID, itemID, warehouseID, batchNumber string) (*Batch, error)
	ListBatchesForUpdate(ctx context.Context, tenantID, itemID, warehouseID string) ([]*Batch, error)
	ListExpiredBatchesForUpdate(ctx context.Context, tenantID string, now time.Time) ([]*Batch, error)
	UpdateBatch(ctx context.Context, batch *Batch) error
	InsertSerial(ctx context.Context, serial *Serial) error
	GetSerialForUpdate(ctx context.Context, tenantID, itemID, serialNumber string) (*Serial, error)
	UpdateSerial(ctx context.Context, serial *Serial) error
	NextTransactionNumber(ctx context.Context, tenantID string, day time.Time) (int, error)
	InsertTransaction(ctx context.Context, tx *Transaction) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts movement counters.
type MetricsPort interface {
	ObserveMovement(txType string)
	ObserveRejection(kind string)
}

// Service coordinates stock movements, reservations and the transaction
// journal. Per-key mutexes serialise concurrent movements on the same
// item/warehouse pair before the row locks inside the tx take over.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	clock       shared.Clock
	locks       *shared.KeyedMutex
	metrics     MetricsPort
	integration IntegrationHandler
	defaults    Config
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, clock shared.Clock, locks *shared.KeyedMutex, metrics MetricsPort, integration IntegrationHandler, defaults Config) *Service {
	if clock == nil {
		clock = shared.SystemClock()
	}
	if locks == nil {
		locks = shared.NewKeyedMutex()
	}
	if defaults.DefaultStrategy == "" {
		defaults.DefaultStrategy = StrategyFIFO
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		clock:       clock,
		locks:       locks,
		metrics:     metrics,
		integration: integration,
		defaults:    defaults,
	}
}

func (s *Service) configFor(ctx context.Context, tenantID string) Config {
	cfg, err := s.repo.GetConfig(ctx, tenantID)
	if err != nil {
		return s.defaults
	}
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = s.defaults.DefaultStrategy
	}
	if cfg.ExpiryAlertDays == 0 {
		cfg.ExpiryAlertDays = s.defaults.ExpiryAlertDays
	}
	return cfg
}

// RegisterItem creates a stock item at one warehouse.
func (s *Service) RegisterItem(ctx context.Context, input RegisterItemInput) (*Item, error) {
	if input.TenantID == "" || input.SKU == "" || input.WarehouseID == "" {
		return nil, fmt.Errorf("%w: tenant, sku and warehouse required", shared.ErrInvalidConfiguration)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: item name required", shared.ErrInvalidConfiguration)
	}
	if input.ReorderLevel.IsNegative() || input.MaxStockLevel.IsNegative() {
		return nil, fmt.Errorf("%w: stock levels cannot be negative", shared.ErrInvalidConfiguration)
	}
	if input.MaxStockLevel.IsPositive() && input.MaxStockLevel.LessThan(input.ReorderLevel) {
		return nil, fmt.Errorf("%w: max stock level below reorder level", shared.ErrInvalidConfiguration)
	}

	now := s.clock.Now()
	item := &Item{
		ID:             uuid.NewString(),
		TenantID:       input.TenantID,
		SKU:            input.SKU,
		Name:           input.Name,
		Description:    input.Description,
		WarehouseID:    input.WarehouseID,
		ReorderLevel:   input.ReorderLevel,
		MaxStockLevel:  input.MaxStockLevel,
		CostPrice:      input.CostPrice,
		SellingPrice:   input.SellingPrice,
		BatchTracking:  input.BatchTracking,
		SerialTracking: input.SerialTracking,
		ExpiryTracking: input.ExpiryTracking,
		Active:         true,
		Attributes:     input.Attributes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.TenantID, "", "inventory:register_item", "inventory_item", item.ID, map[string]any{
		"sku":       item.SKU,
		"warehouse": item.WarehouseID,
	})
	return item, nil
}

// StockIn posts an inbound movement. Batch-tracked items require batch
// details; serial-tracked items require one serial number per unit.
func (s *Service) StockIn(ctx context.Context, input StockInInput) (*Transaction, error) {
	if err := validateMovement(input.TenantID, input.ItemID, input.WarehouseID, input.Quantity); err != nil {
		return nil, err
	}
	if input.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit cost cannot be negative", shared.ErrInvalidConfiguration)
	}
	reason := input.Reason
	if reason == "" {
		reason = ReasonPurchase
	}

	unlock := s.locks.LockAll(shared.StockLockKey(input.TenantID, input.ItemID, input.WarehouseID))
	defer unlock()

	release, err := s.claimIdempotency(ctx, TransactionTypeStockIn, input.TenantID, input.ItemID, input.WarehouseID, input.ReferenceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var txn *Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}

		var batchID string
		if item.BatchTracking {
			if input.Batch == nil || input.Batch.BatchNumber == "" {
				return fmt.Errorf("%w: batch details required for batch-tracked item", shared.ErrInvalidConfiguration)
			}
			batch, err := s.receiveIntoBatch(ctx, tx, item, input, now)
			if err != nil {
				return err
			}
			batchID = batch.ID
		}

		if item.SerialTracking {
			if err := requireSerialCount(input.Quantity, len(input.SerialNumbers)); err != nil {
				return err
			}
			for _, sn := range input.SerialNumbers {
				serial := &Serial{
					ID:             uuid.NewString(),
					TenantID:       input.TenantID,
					ItemID:         item.ID,
					WarehouseID:    input.WarehouseID,
					SerialNumber:   sn,
					Status:         SerialStatusAvailable,
					BatchID:        batchID,
					WarrantyExpiry: input.WarrantyExpiry,
					CreatedAt:      now,
					UpdatedAt:      now,
				}
				if err := tx.InsertSerial(ctx, serial); err != nil {
					return err
				}
			}
		}

		if input.UnitCost.IsPositive() {
			item.CostPrice = weightedCost(item.CurrentStock, item.CostPrice, input.Quantity, input.UnitCost)
		}
		if err := item.ApplyDelta(input.Quantity); err != nil {
			return err
		}
		if err := tx.UpdateItemStock(ctx, item); err != nil {
			return err
		}

		txn, err = s.postTransaction(ctx, tx, movementRecord{
			Type:         TransactionTypeStockIn,
			Direction:    DirectionIn,
			Reason:       reason,
			Item:         item,
			WarehouseID:  input.WarehouseID,
			Quantity:     input.Quantity,
			UnitCost:     input.UnitCost,
			BatchID:      batchID,
			Serials:      input.SerialNumbers,
			RefType:      input.ReferenceType,
			RefID:        input.ReferenceID,
			RefNumber:    input.ReferenceNumber,
			Notes:        input.Notes,
			PerformedBy:  input.PerformedBy,
			Attributes:   input.Attributes,
			Date:         now,
		})
		return err
	})
	if err != nil {
		release()
		s.observeRejection(err)
		return nil, err
	}
	s.afterMovement(ctx, txn, nil)
	return txn, nil
}

// StockOut posts an outbound movement using the requested allocation
// strategy for batch-tracked items.
func (s *Service) StockOut(ctx context.Context, input StockOutInput) (*Transaction, error) {
	if err := validateMovement(input.TenantID, input.ItemID, input.WarehouseID, input.Quantity); err != nil {
		return nil, err
	}
	reason := input.Reason
	if reason == "" {
		reason = ReasonSale
	}
	cfg := s.configFor(ctx, input.TenantID)

	unlock := s.locks.LockAll(shared.StockLockKey(input.TenantID, input.ItemID, input.WarehouseID))
	defer unlock()

	release, err := s.claimIdempotency(ctx, TransactionTypeStockOut, input.TenantID, input.ItemID, input.WarehouseID, input.ReferenceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		txn  *Transaction
		item *Item
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}

		var (
			batchID  string
			unitCost = item.CostPrice
		)
		if item.BatchTracking {
			allocs, err := s.allocate(ctx, tx, item, input.Quantity, input.Strategy, input.ManualAllocations, cfg, now, input.FromReserved)
			if err != nil {
				return err
			}
			for _, a := range allocs {
				if err := a.Batch.Consume(a.Quantity, input.FromReserved); err != nil {
					return err
				}
				if err := tx.UpdateBatch(ctx, a.Batch); err != nil {
					return err
				}
			}
			unitCost = allocationCost(allocs, item.CostPrice)
			if len(allocs) == 1 {
				batchID = allocs[0].Batch.ID
			}
		}

		if item.SerialTracking {
			if err := requireSerialCount(input.Quantity, len(input.SerialNumbers)); err != nil {
				return err
			}
			for _, sn := range input.SerialNumbers {
				serial, err := tx.GetSerialForUpdate(ctx, input.TenantID, item.ID, sn)
				if err != nil {
					return err
				}
				if serial.WarehouseID != input.WarehouseID {
					return fmt.Errorf("%w: serial %s is at warehouse %s", shared.ErrConsistencyViolation, sn, serial.WarehouseID)
				}
				if err := serial.MarkSold(now, input.ReferenceID); err != nil {
					return err
				}
				serial.UpdatedAt = now
				if err := tx.UpdateSerial(ctx, serial); err != nil {
					return err
				}
			}
		}

		if input.FromReserved {
			if err := item.ConsumeReserved(input.Quantity); err != nil {
				return err
			}
		} else if err := item.ApplyDelta(input.Quantity.Neg()); err != nil {
			if cfg.AllowNegativeStock && !item.BatchTracking && !item.SerialTracking && errors.Is(err, shared.ErrInsufficientStock) {
				item.ForceDelta(input.Quantity.Neg())
			} else {
				return err
			}
		}
		if err := tx.UpdateItemStock(ctx, item); err != nil {
			return err
		}

		txn, err = s.postTransaction(ctx, tx, movementRecord{
			Type:        TransactionTypeStockOut,
			Direction:   DirectionOut,
			Reason:      reason,
			Item:        item,
			WarehouseID: input.WarehouseID,
			Quantity:    input.Quantity,
			UnitCost:    unitCost,
			BatchID:     batchID,
			Serials:     input.SerialNumbers,
			RefType:     input.ReferenceType,
			RefID:       input.ReferenceID,
			RefNumber:   input.ReferenceNumber,
			Notes:       input.Notes,
			PerformedBy: input.PerformedBy,
			Date:        now,
		})
		return err
	})
	if err != nil {
		release()
		s.observeRejection(err)
		return nil, err
	}
	s.afterMovement(ctx, txn, item)
	return txn, nil
}

// Transfer moves stock between warehouses as a paired OUT and IN row.
// The item must already be registered at the destination under the same
// SKU. Batches are mirrored at the destination keeping their received and
// expiry dates so allocation order survives the move.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (*Transaction, *Transaction, error) {
	if err := validateMovement(input.TenantID, input.ItemID, input.FromWarehouseID, input.Quantity); err != nil {
		return nil, nil, err
	}
	if input.ToWarehouseID == "" {
		return nil, nil, fmt.Errorf("%w: destination warehouse required", shared.ErrInvalidConfiguration)
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return nil, nil, fmt.Errorf("%w: source and destination warehouse must differ", shared.ErrInvalidConfiguration)
	}

	unlock := s.locks.LockAll(
		shared.StockLockKey(input.TenantID, input.ItemID, input.FromWarehouseID),
		shared.StockLockKey(input.TenantID, input.ItemID, input.ToWarehouseID),
	)
	defer unlock()

	now := s.clock.Now()
	var outTxn, inTxn *Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		src, err := s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.FromWarehouseID)
		if err != nil {
			return err
		}
		dst, err := tx.GetItemBySKUForUpdate(ctx, input.TenantID, src.SKU, input.ToWarehouseID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: item %s not registered at warehouse %s", shared.ErrNotFound, src.SKU, input.ToWarehouseID)
			}
			return err
		}
		if !dst.Active {
			return fmt.Errorf("%w: destination item %s is inactive", shared.ErrInvalidConfiguration, dst.ID)
		}

		if src.BatchTracking {
			batches, err := tx.ListBatchesForUpdate(ctx, input.TenantID, src.ID, input.FromWarehouseID)
			if err != nil {
				return err
			}
			strategy, err := StrategyFor(StrategyFIFO)
			if err != nil {
				return err
			}
			allocs, err := strategy.Select(input.Quantity, batches, now, false)
			if err != nil {
				return err
			}
			for _, a := range allocs {
				if err := a.Batch.Consume(a.Quantity, false); err != nil {
					return err
				}
				if err := tx.UpdateBatch(ctx, a.Batch); err != nil {
					return err
				}
				if err := s.mirrorBatch(ctx, tx, dst, a, now); err != nil {
					return err
				}
			}
		}

		for _, sn := range input.SerialNumbers {
			serial, err := tx.GetSerialForUpdate(ctx, input.TenantID, src.ID, sn)
			if err != nil {
				return err
			}
			if serial.Status != SerialStatusAvailable {
				return fmt.Errorf("%w: cannot transfer a %s serial", shared.ErrInvalidStateTransition, serial.Status)
			}
			serial.WarehouseID = input.ToWarehouseID
			serial.ItemID = dst.ID
			serial.UpdatedAt = now
			if err := tx.UpdateSerial(ctx, serial); err != nil {
				return err
			}
		}
		if src.SerialTracking {
			if err := requireSerialCount(input.Quantity, len(input.SerialNumbers)); err != nil {
				return err
			}
		}

		if err := src.ApplyDelta(input.Quantity.Neg()); err != nil {
			return err
		}
		if err := dst.ApplyDelta(input.Quantity); err != nil {
			return err
		}
		if err := tx.UpdateItemStock(ctx, src); err != nil {
			return err
		}
		if err := tx.UpdateItemStock(ctx, dst); err != nil {
			return err
		}

		outTxn, err = s.postTransaction(ctx, tx, movementRecord{
			Type:          TransactionTypeTransfer,
			Direction:     DirectionOut,
			Reason:        ReasonTransfer,
			Item:          src,
			WarehouseID:   input.FromWarehouseID,
			ToWarehouseID: input.ToWarehouseID,
			Quantity:      input.Quantity,
			UnitCost:      src.CostPrice,
			Serials:       input.SerialNumbers,
			Notes:         input.Notes,
			PerformedBy:   input.PerformedBy,
			Date:          now,
		})
		if err != nil {
			return err
		}
		inTxn, err = s.postTransaction(ctx, tx, movementRecord{
			Type:          TransactionTypeTransfer,
			Direction:     DirectionIn,
			Reason:        ReasonTransfer,
			Item:          dst,
			WarehouseID:   input.ToWarehouseID,
			ToWarehouseID: input.ToWarehouseID,
			Quantity:      input.Quantity,
			UnitCost:      src.CostPrice,
			Serials:       input.SerialNumbers,
			RefNumber:     outTxn.Number,
			Notes:         input.Notes,
			PerformedBy:   input.PerformedBy,
			Date:          now,
		})
		return err
	})
	if err != nil {
		s.observeRejection(err)
		return nil, nil, err
	}
	s.afterMovement(ctx, outTxn, nil)
	return outTxn, inTxn, nil
}

// Adjust posts a signed manual correction. Positive deltas on
// batch-tracked items require a batch to receive into.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (*Transaction, error) {
	if input.TenantID == "" || input.ItemID == "" || input.WarehouseID == "" {
		return nil, fmt.Errorf("%w: tenant, item and warehouse required", shared.ErrInvalidConfiguration)
	}
	if input.Delta.IsZero() {
		return nil, fmt.Errorf("%w: adjustment delta cannot be zero", shared.ErrInvalidConfiguration)
	}
	reason := input.Reason
	if reason == "" {
		reason = ReasonCorrection
	}
	cfg := s.configFor(ctx, input.TenantID)

	unlock := s.locks.LockAll(shared.StockLockKey(input.TenantID, input.ItemID, input.WarehouseID))
	defer unlock()

	now := s.clock.Now()
	direction := DirectionIn
	if input.Delta.IsNegative() {
		direction = DirectionOut
	}
	var txn *Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}

		if item.BatchTracking {
			if input.BatchID == "" {
				return fmt.Errorf("%w: batch required to adjust a batch-tracked item", shared.ErrInvalidConfiguration)
			}
			batch, err := tx.FindBatchForUpdate(ctx, input.TenantID, item.ID, input.WarehouseID, input.BatchID)
			if err != nil {
				return err
			}
			if input.Delta.IsPositive() {
				if err := batch.AddStock(input.Delta); err != nil {
					return err
				}
			} else if err := batch.Consume(input.Delta.Neg(), false); err != nil {
				return err
			}
			if err := tx.UpdateBatch(ctx, batch); err != nil {
				return err
			}
		}

		if err := item.ApplyDelta(input.Delta); err != nil {
			if cfg.AllowNegativeStock && !item.BatchTracking && !item.SerialTracking && errors.Is(err, shared.ErrInsufficientStock) {
				item.ForceDelta(input.Delta)
			} else {
				return err
			}
		}
		if err := tx.UpdateItemStock(ctx, item); err != nil {
			return err
		}

		txn, err = s.postTransaction(ctx, tx, movementRecord{
			Type:        TransactionTypeAdjustment,
			Direction:   direction,
			Reason:      reason,
			Item:        item,
			WarehouseID: input.WarehouseID,
			Quantity:    input.Delta.Abs(),
			UnitCost:    item.CostPrice,
			BatchID:     input.BatchID,
			RefID:       input.ReferenceID,
			Notes:       input.Notes,
			PerformedBy: input.PerformedBy,
			Date:        now,
		})
		return err
	})
	if err != nil {
		s.observeRejection(err)
		return nil, err
	}
	s.afterMovement(ctx, txn, nil)
	return txn, nil
}

// PhysicalCount reconciles system stock with a counted quantity. A
// matching count still posts a zero-quantity row so the journal shows the
// count happened. Shortages on batch-tracked items are drawn FIFO from
// batches; surpluses there must go through Adjust with a batch.
func (s *Service) PhysicalCount(ctx context.Context, input PhysicalCountInput) (*Transaction, error) {
	if input.TenantID == "" || input.ItemID == "" || input.WarehouseID == "" {
		return nil, fmt.Errorf("%w: tenant, item and warehouse required", shared.ErrInvalidConfiguration)
	}
	if input.CountedQty.IsNegative() {
		return nil, fmt.Errorf("%w: counted quantity cannot be negative", shared.ErrInvalidConfiguration)
	}

	unlock := s.locks.LockAll(shared.StockLockKey(input.TenantID, input.ItemID, input.WarehouseID))
	defer unlock()

	now := s.clock.Now()
	var txn *Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}
		delta := input.CountedQty.Sub(item.CurrentStock)
		direction := DirectionIn
		if delta.IsNegative() {
			direction = DirectionOut
		}

		if item.BatchTracking && !delta.IsZero() {
			if delta.IsPositive() {
				return fmt.Errorf("%w: counted surplus on batch-tracked item needs a batch adjustment", shared.ErrInvalidConfiguration)
			}
			batches, err := tx.ListBatchesForUpdate(ctx, input.TenantID, item.ID, input.WarehouseID)
			if err != nil {
				return err
			}
			strategy, err := StrategyFor(StrategyFIFO)
			if err != nil {
				return err
			}
			allocs, err := strategy.Select(delta.Neg(), batches, now, false)
			if err != nil {
				return err
			}
			for _, a := range allocs {
				if err := a.Batch.Consume(a.Quantity, false); err != nil {
					return err
				}
				if err := tx.UpdateBatch(ctx, a.Batch); err != nil {
					return err
				}
			}
		}

		if !delta.IsZero() {
			if err := item.ApplyDelta(delta); err != nil {
				return err
			}
			if err := tx.UpdateItemStock(ctx, item); err != nil {
				return err
			}
		}

		txn, err = s.postTransaction(ctx, tx, movementRecord{
			Type:        TransactionTypeCount,
			Direction:   direction,
			Reason:      ReasonCountAdjustment,
			Item:        item,
			WarehouseID: input.WarehouseID,
			Quantity:    delta.Abs(),
			UnitCost:    item.CostPrice,
			Notes:       input.Notes,
			PerformedBy: input.PerformedBy,
			Date:        now,
		})
		return err
	})
	if err != nil {
		s.observeRejection(err)
		return nil, err
	}
	s.afterMovement(ctx, txn, nil)
	return txn, nil
}

// ReserveStock holds quantity for a pending order at item and batch
// level. Serial-tracked items reserve through ReserveSerials instead.
func (s *Service) ReserveStock(ctx context.Context, input ReserveInput) error {
	if err := validateMovement(input.TenantID, input.ItemID, input.WarehouseID, input.Quantity); err != nil {
		return err
	}
	cfg := s.configFor(ctx, input.TenantID)

	unlock := s.locks.LockAll(shared.StockLockKey(input.TenantID, input.ItemID, input.WarehouseID))
	defer unlock()

	now := s.clock.Now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}
		if item.SerialTracking {
			return fmt.Errorf("%w: serial-tracked items reserve by serial number", shared.ErrInvalidConfiguration)
		}
		if item.BatchTracking {
			allocs, err := s.allocate(ctx, tx, item, input.Quantity, input.Strategy, nil, cfg, now, false)
			if err != nil {
				return err
			}
			for _, a := range allocs {
				if err := a.Batch.Reserve(a.Quantity); err != nil {
					return err
				}
				if err := tx.UpdateBatch(ctx, a.Batch); err != nil {
					return err
				}
			}
		}
		if err := item.Reserve(input.Quantity); err != nil {
			return err
		}
		return tx.UpdateItemStock(ctx, item)
	})
	if err != nil {
		s.observeRejection(err)
		return err
	}
	s.recordAudit(ctx, input.TenantID, input.PerformedBy, "inventory:reserve", "inventory_item", input.ItemID, map[string]any{
		"warehouse": input.WarehouseID,
		"qty":       input.Quantity.String(),
	})
	return nil
}

// ReleaseReservation returns held quantity to the available pool.
// Releasing more than is held releases only what is held.
func (s *Service) ReleaseReservation(ctx context.Context, input ReserveInput) (decimal.Decimal, error) {
	if err := validateMovement(input.TenantID, input.ItemID, input.WarehouseID, input.Quantity); err != nil {
		return decimal.Zero, err
	}

	unlock := s.locks.LockAll(shared.StockLockKey(input.TenantID, input.ItemID, input.WarehouseID))
	defer unlock()

	var released decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, input.TenantID, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}
		released = item.ReleaseReservation(input.Quantity)
		if released.IsZero() {
			return nil
		}
		if item.BatchTracking {
			batches, err := tx.ListBatchesForUpdate(ctx, input.TenantID, item.ID, input.WarehouseID)
			if err != nil {
				return err
			}
			remaining := released
			for _, b := range batches {
				if remaining.IsZero() {
					break
				}
				got := b.ReleaseReserved(remaining)
				if got.IsZero() {
					continue
				}
				remaining = remaining.Sub(got)
				if err := tx.UpdateBatch(ctx, b); err != nil {
					return err
				}
			}
		}
		return tx.UpdateItemStock(ctx, item)
	})
	if err != nil {
		s.observeRejection(err)
		return decimal.Zero, err
	}
	return released, nil
}

// ReserveSerials holds specific serial units and the matching item
// quantity.
func (s *Service) ReserveSerials(ctx context.Context, tenantID, itemID, warehouseID, referenceID string, serialNumbers []string) error {
	if tenantID == "" || itemID == "" || len(serialNumbers) == 0 {
		return fmt.Errorf("%w: tenant, item and serial numbers required", shared.ErrInvalidConfiguration)
	}

	unlock := s.locks.LockAll(shared.StockLockKey(tenantID, itemID, warehouseID))
	defer unlock()

	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, tenantID, itemID, warehouseID)
		if err != nil {
			return err
		}
		for _, sn := range serialNumbers {
			serial, err := tx.GetSerialForUpdate(ctx, tenantID, item.ID, sn)
			if err != nil {
				return err
			}
			if err := serial.Reserve(referenceID); err != nil {
				return err
			}
			serial.UpdatedAt = now
			if err := tx.UpdateSerial(ctx, serial); err != nil {
				return err
			}
		}
		if err := item.Reserve(decimal.NewFromInt(int64(len(serialNumbers)))); err != nil {
			return err
		}
		return tx.UpdateItemStock(ctx, item)
	})
}

// ReleaseSerialReservation returns reserved serial units to the available
// pool and releases the matching item quantity.
func (s *Service) ReleaseSerialReservation(ctx context.Context, tenantID, itemID, warehouseID string, serialNumbers []string) error {
	if tenantID == "" || itemID == "" || len(serialNumbers) == 0 {
		return fmt.Errorf("%w: tenant, item and serial numbers required", shared.ErrInvalidConfiguration)
	}

	unlock := s.locks.LockAll(shared.StockLockKey(tenantID, itemID, warehouseID))
	defer unlock()

	now := s.clock.Now()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := s.loadItemAt(ctx, tx, tenantID, itemID, warehouseID)
		if err != nil {
			return err
		}
		for _, sn := range serialNumbers {
			serial, err := tx.GetSerialForUpdate(ctx, tenantID, item.ID, sn)
			if err != nil {
				return err
			}
			if err := serial.ReleaseReservation(); err != nil {
				return err
			}
			serial.UpdatedAt = now
			if err := tx.UpdateSerial(ctx, serial); err != nil {
				return err
			}
		}
		item.ReleaseReservation(decimal.NewFromInt(int64(len(serialNumbers))))
		return tx.UpdateItemStock(ctx, item)
	})
}

// MarkSerialDamaged flags one serial unit as damaged. Status-only: stock
// levels are corrected separately through Adjust.
func (s *Service) MarkSerialDamaged(ctx context.Context, tenantID, itemID, serialNumber, notes string) error {
	return s.updateSerialStatus(ctx, tenantID, itemID, serialNumber, func(serial *Serial) error {
		return serial.MarkDamaged(notes)
	})
}

// MarkSerialReturned records a customer return of a sold unit.
func (s *Service) MarkSerialReturned(ctx context.Context, tenantID, itemID, serialNumber string) error {
	return s.updateSerialStatus(ctx, tenantID, itemID, serialNumber, func(serial *Serial) error {
		return serial.MarkReturned()
	})
}

// MakeSerialAvailable restores a unit to the available pool.
func (s *Service) MakeSerialAvailable(ctx context.Context, tenantID, itemID, serialNumber string) error {
	return s.updateSerialStatus(ctx, tenantID, itemID, serialNumber, func(serial *Serial) error {
		return serial.MakeAvailable()
	})
}

func (s *Service) updateSerialStatus(ctx context.Context, tenantID, itemID, serialNumber string, mutate func(*Serial) error) error {
	if tenantID == "" || itemID == "" || serialNumber == "" {
		return fmt.Errorf("%w: tenant, item and serial number required", shared.ErrInvalidConfiguration)
	}
	now := s.clock.Now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		serial, err := tx.GetSerialForUpdate(ctx, tenantID, itemID, serialNumber)
		if err != nil {
			return err
		}
		if err := mutate(serial); err != nil {
			return err
		}
		serial.UpdatedAt = now
		return tx.UpdateSerial(ctx, serial)
	})
	if err != nil {
		s.observeRejection(err)
	}
	return err
}

// MarkExpiredBatches deactivates batches past their expiry date and
// returns their reservations to the available pool. Stock stays on hand
// until disposed of through Adjust.
func (s *Service) MarkExpiredBatches(ctx context.Context, tenantID string) (int, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	now := s.clock.Now()
	var swept int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batches, err := tx.ListExpiredBatchesForUpdate(ctx, tenantID, now)
		if err != nil {
			return err
		}
		for _, b := range batches {
			if reserved := b.ReservedQuantity; reserved.IsPositive() {
				b.ReleaseReserved(reserved)
				item, err := tx.GetItemForUpdate(ctx, tenantID, b.ItemID)
				if err != nil {
					return err
				}
				item.ReleaseReservation(reserved)
				if err := tx.UpdateItemStock(ctx, item); err != nil {
					return err
				}
			}
			b.Active = false
			b.UpdatedAt = now
			if err := tx.UpdateBatch(ctx, b); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.recordAudit(ctx, tenantID, "", "inventory:expiry_sweep", "tenant", tenantID, map[string]any{
			"deactivated": swept,
		})
	}
	return swept, nil
}

// GetItem fetches one item.
func (s *Service) GetItem(ctx context.Context, tenantID, itemID string) (*Item, error) {
	if tenantID == "" || itemID == "" {
		return nil, fmt.Errorf("%w: tenant and item required", shared.ErrInvalidConfiguration)
	}
	return s.repo.GetItem(ctx, tenantID, itemID)
}

// ListItems lists items, optionally scoped to one warehouse, with
// pagination metadata computed from the total match count.
func (s *Service) ListItems(ctx context.Context, tenantID, warehouseID string, page shared.Pagination) ([]Item, shared.Pagination, error) {
	if tenantID == "" {
		return nil, shared.Pagination{}, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	total, err := s.repo.CountItems(ctx, tenantID, warehouseID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(page.Page, page.PerPage, total)
	items, err := s.repo.ListItems(ctx, tenantID, warehouseID, meta)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, meta, nil
}

// GetItemBySKU fetches one item by its SKU and warehouse pair.
func (s *Service) GetItemBySKU(ctx context.Context, tenantID, sku, warehouseID string) (*Item, error) {
	if tenantID == "" || sku == "" || warehouseID == "" {
		return nil, fmt.Errorf("%w: tenant, sku and warehouse required", shared.ErrInvalidConfiguration)
	}
	return s.repo.GetItemBySKU(ctx, tenantID, sku, warehouseID)
}

// ListLowStockItems lists items at or below their reorder level.
func (s *Service) ListLowStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	return s.repo.ListLowStockItems(ctx, tenantID, warehouseID)
}

// ListOverStockItems lists items above their maximum stock level.
func (s *Service) ListOverStockItems(ctx context.Context, tenantID, warehouseID string) ([]Item, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	return s.repo.ListOverStockItems(ctx, tenantID, warehouseID)
}

// ListTransactions lists journal rows matching the filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	return s.repo.ListTransactions(ctx, filter)
}

// GetTransaction fetches one journal row by number.
func (s *Service) GetTransaction(ctx context.Context, tenantID, number string) (*Transaction, error) {
	if tenantID == "" || number == "" {
		return nil, fmt.Errorf("%w: tenant and number required", shared.ErrInvalidConfiguration)
	}
	return s.repo.GetTransactionByNumber(ctx, tenantID, number)
}

// ListBatches lists batches matching the filter.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]*Batch, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	return s.repo.ListBatches(ctx, filter)
}

// ListSerials lists serial units matching the filter.
func (s *Service) ListSerials(ctx context.Context, filter SerialFilter) ([]Serial, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrInvalidConfiguration)
	}
	return s.repo.ListSerials(ctx, filter)
}

type movementRecord struct {
	Type          TransactionType
	Direction     MovementDirection
	Reason        string
	Item          *Item
	WarehouseID   string
	ToWarehouseID string
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	BatchID       string
	Serials       []string
	RefType       string
	RefID         string
	RefNumber     string
	Notes         string
	PerformedBy   string
	Attributes    map[string]any
	Date          time.Time
}

func (s *Service) postTransaction(ctx context.Context, tx TxRepository, rec movementRecord) (*Transaction, error) {
	seq, err := tx.NextTransactionNumber(ctx, rec.Item.TenantID, LedgerDay(rec.Date))
	if err != nil {
		return nil, err
	}
	txn := &Transaction{
		TenantID:        rec.Item.TenantID,
		Number:          fmt.Sprintf("TXN-%s-%04d", rec.Date.UTC().Format("20060102"), seq),
		Type:            rec.Type,
		Direction:       rec.Direction,
		Reason:          rec.Reason,
		ItemID:          rec.Item.ID,
		WarehouseID:     rec.WarehouseID,
		ToWarehouseID:   rec.ToWarehouseID,
		Quantity:        rec.Quantity,
		BalanceAfter:    rec.Item.CurrentStock,
		UnitCost:        rec.UnitCost,
		TotalCost:       rec.Quantity.Mul(rec.UnitCost).Round(2),
		BatchID:         rec.BatchID,
		SerialNumbers:   rec.Serials,
		ReferenceType:   rec.RefType,
		ReferenceID:     rec.RefID,
		ReferenceNumber: rec.RefNumber,
		Date:            rec.Date,
		Notes:           rec.Notes,
		PerformedBy:     rec.PerformedBy,
		Attributes:      rec.Attributes,
		CreatedAt:       rec.Date,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) loadItemAt(ctx context.Context, tx TxRepository, tenantID, itemID, warehouseID string) (*Item, error) {
	item, err := tx.GetItemForUpdate(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if item.WarehouseID != warehouseID {
		return nil, fmt.Errorf("%w: item %s is registered at warehouse %s", shared.ErrNotFound, itemID, item.WarehouseID)
	}
	if !item.Active {
		return nil, fmt.Errorf("%w: item %s is inactive", shared.ErrInvalidConfiguration, itemID)
	}
	return item, nil
}

func (s *Service) allocate(ctx context.Context, tx TxRepository, item *Item, qty decimal.Decimal, st StrategyType, manual []ManualAllocation, cfg Config, now time.Time, fromReserved bool) ([]Allocation, error) {
	batches, err := tx.ListBatchesForUpdate(ctx, item.TenantID, item.ID, item.WarehouseID)
	if err != nil {
		return nil, err
	}
	if st == "" {
		st = cfg.DefaultStrategy
	}
	if st == StrategyManual {
		return ResolveManual(qty, manual, batches, now, fromReserved)
	}
	strategy, err := StrategyFor(st)
	if err != nil {
		return nil, err
	}
	return strategy.Select(qty, batches, now, fromReserved)
}

func (s *Service) receiveIntoBatch(ctx context.Context, tx TxRepository, item *Item, input StockInInput, now time.Time) (*Batch, error) {
	batch, err := tx.FindBatchForUpdate(ctx, input.TenantID, item.ID, input.WarehouseID, input.Batch.BatchNumber)
	if err == nil {
		if err := batch.AddStock(input.Quantity); err != nil {
			return nil, err
		}
		if input.UnitCost.IsPositive() {
			batch.UnitCost = input.UnitCost
		}
		batch.UpdatedAt = now
		if err := tx.UpdateBatch(ctx, batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if item.ExpiryTracking && input.Batch.ExpiryDate == nil {
		return nil, fmt.Errorf("%w: expiry date required for expiry-tracked item", shared.ErrInvalidConfiguration)
	}
	batch = &Batch{
		ID:                  uuid.NewString(),
		TenantID:            input.TenantID,
		ItemID:              item.ID,
		WarehouseID:         input.WarehouseID,
		BatchNumber:         input.Batch.BatchNumber,
		LotNumber:           input.Batch.LotNumber,
		TotalQuantity:       input.Quantity,
		AvailableQuantity:   input.Quantity,
		UnitCost:            input.UnitCost,
		ManufacturingDate:   input.Batch.ManufacturingDate,
		ExpiryDate:          input.Batch.ExpiryDate,
		ReceivedDate:        now,
		SupplierID:          input.Batch.SupplierID,
		SupplierName:        input.Batch.SupplierName,
		PurchaseOrderNumber: input.Batch.PurchaseOrderNumber,
		Active:              true,
		Attributes:          input.Batch.Attributes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := tx.InsertBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// mirrorBatch lands a transfer allocation at the destination, merging
// into an existing batch of the same number when present.
func (s *Service) mirrorBatch(ctx context.Context, tx TxRepository, dst *Item, a Allocation, now time.Time) error {
	existing, err := tx.FindBatchForUpdate(ctx, dst.TenantID, dst.ID, dst.WarehouseID, a.Batch.BatchNumber)
	if err == nil {
		if err := existing.AddStock(a.Quantity); err != nil {
			return err
		}
		existing.UpdatedAt = now
		return tx.UpdateBatch(ctx, existing)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	mirror := &Batch{
		ID:                uuid.NewString(),
		TenantID:          dst.TenantID,
		ItemID:            dst.ID,
		WarehouseID:       dst.WarehouseID,
		BatchNumber:       a.Batch.BatchNumber,
		LotNumber:         a.Batch.LotNumber,
		TotalQuantity:     a.Quantity,
		AvailableQuantity: a.Quantity,
		UnitCost:          a.Batch.UnitCost,
		ManufacturingDate: a.Batch.ManufacturingDate,
		ExpiryDate:        a.Batch.ExpiryDate,
		ReceivedDate:      a.Batch.ReceivedDate,
		SupplierID:        a.Batch.SupplierID,
		SupplierName:      a.Batch.SupplierName,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return tx.InsertBatch(ctx, mirror)
}

func (s *Service) claimIdempotency(ctx context.Context, t TransactionType, tenantID, itemID, warehouseID, refID string) (func(), error) {
	if s.idempotency == nil || refID == "" {
		return func() {}, nil
	}
	key := fmt.Sprintf("%s:%s:%s:%s:%s", t, tenantID, itemID, warehouseID, refID)
	if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
		return nil, err
	}
	return func() { _ = s.idempotency.Delete(ctx, key) }, nil
}

func (s *Service) afterMovement(ctx context.Context, txn *Transaction, item *Item) {
	if txn == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveMovement(string(txn.Type))
	}
	s.recordAudit(ctx, txn.TenantID, txn.PerformedBy, fmt.Sprintf("inventory:%s", txn.Type), "inventory_txn", txn.Number, map[string]any{
		"item":      txn.ItemID,
		"warehouse": txn.WarehouseID,
		"qty":       txn.Quantity.String(),
		"balance":   txn.BalanceAfter.String(),
	})
	if s.integration == nil {
		return
	}
	_ = s.integration.HandleStockMovementPosted(ctx, StockMovementEvent{
		Number:       txn.Number,
		Type:         txn.Type,
		Direction:    txn.Direction,
		TenantID:     txn.TenantID,
		ItemID:       txn.ItemID,
		WarehouseID:  txn.WarehouseID,
		Quantity:     txn.Quantity,
		BalanceAfter: txn.BalanceAfter,
		PostedAt:     txn.Date,
	})
	if item != nil && item.IsLowStock() {
		_ = s.integration.HandleLowStock(ctx, LowStockEvent{
			TenantID:       item.TenantID,
			ItemID:         item.ID,
			SKU:            item.SKU,
			WarehouseID:    item.WarehouseID,
			AvailableStock: item.AvailableStock,
			ReorderLevel:   item.ReorderLevel,
		})
	}
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}

func (s *Service) observeRejection(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, shared.ErrInsufficientStock):
		s.metrics.ObserveRejection("insufficient_stock")
	case errors.Is(err, shared.ErrInvalidStateTransition):
		s.metrics.ObserveRejection("invalid_transition")
	case errors.Is(err, shared.ErrDuplicateIdentifier):
		s.metrics.ObserveRejection("duplicate")
	}
}

func validateMovement(tenantID, itemID, warehouseID string, qty decimal.Decimal) error {
	if tenantID == "" || itemID == "" || warehouseID == "" {
		return fmt.Errorf("%w: tenant, item and warehouse required", shared.ErrInvalidConfiguration)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidConfiguration)
	}
	return nil
}

// requireSerialCount checks that the serial list covers the whole moved
// quantity, which must be a whole number for serial-tracked items.
func requireSerialCount(qty decimal.Decimal, count int) error {
	if !qty.IsInteger() {
		return fmt.Errorf("%w: serial-tracked quantity must be whole units", shared.ErrInvalidConfiguration)
	}
	if int64(count) != qty.IntPart() {
		return fmt.Errorf("%w: %d serial numbers for quantity %s", shared.ErrInvalidConfiguration, count, qty)
	}
	return nil
}

func weightedCost(curQty, curCost, inQty, inCost decimal.Decimal) decimal.Decimal {
	newQty := curQty.Add(inQty)
	if !newQty.IsPositive() {
		return inCost
	}
	total := curQty.Mul(curCost).Add(inQty.Mul(inCost))
	return total.Div(newQty).Round(4)
}

// allocationCost is the quantity-weighted unit cost over the allocated
// batches, falling back to the item cost when batches carry none.
func allocationCost(allocs []Allocation, fallback decimal.Decimal) decimal.Decimal {
	var qty, total decimal.Decimal
	for _, a := range allocs {
		qty = qty.Add(a.Quantity)
		total = total.Add(a.Quantity.Mul(a.Batch.UnitCost))
	}
	if !qty.IsPositive() || total.IsZero() {
		return fallback
	}
	return total.Div(qty).Round(4)
}
