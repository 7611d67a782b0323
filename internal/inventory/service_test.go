package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/shared"
)

const testTenant = "acme"

func newTestService(repo *memoryRepo, at time.Time) *Service {
	return NewService(repo, nil, nil, shared.FixedClock(at), shared.NewKeyedMutex(), nil, nil, Config{})
}

func registerPlainItem(t *testing.T, svc *Service, sku, warehouseID string) *Item {
	t.Helper()
	item, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		TenantID:    testTenant,
		SKU:         sku,
		Name:        "Widget " + sku,
		WarehouseID: warehouseID,
	})
	require.NoError(t, err)
	return item
}

func TestStockInPostsJournalRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	txn, err := svc.StockIn(ctx, StockInInput{
		TenantID:    testTenant,
		ItemID:      item.ID,
		WarehouseID: "WH-A",
		Quantity:    dec("10"),
		UnitCost:    dec("100"),
	})
	require.NoError(t, err)
	require.Equal(t, "TXN-20250410-0001", txn.Number)
	require.Equal(t, TransactionTypeStockIn, txn.Type)
	require.Equal(t, DirectionIn, txn.Direction)
	require.Equal(t, ReasonPurchase, txn.Reason)
	require.True(t, txn.BalanceAfter.Equal(dec("10")))
	require.True(t, txn.TotalCost.Equal(dec("1000")))

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(dec("10")))
	require.True(t, got.CostPrice.Equal(dec("100")))
}

func TestStockInWeightedCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("10"), UnitCost: dec("100")})
	require.NoError(t, err)
	_, err = svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("5"), UnitCost: dec("130")})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CostPrice.Equal(dec("110")), "got %s", got.CostPrice)
}

func TestTransactionNumbersSequencePerDay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	for i := 1; i <= 3; i++ {
		txn, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("1")})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("TXN-20250410-%04d", i), txn.Number)
	}
}

func TestStockOutRejectsInsufficient(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("5")})
	require.NoError(t, err)

	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("6")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(dec("5")), "rejected movement must not change stock")

	txns, err := svc.ListTransactions(ctx, TransactionFilter{TenantID: testTenant, ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1, "no journal row for the rejected movement")
}

func TestConcurrentStockOutExactlyOneWins(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("10")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("6")})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, shared.ErrInsufficientStock)
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one of the two competing withdrawals must fail")

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(dec("4")))
}

func registerBatchItem(t *testing.T, svc *Service, sku string) *Item {
	t.Helper()
	item, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		TenantID:      testTenant,
		SKU:           sku,
		Name:          "Batch " + sku,
		WarehouseID:   "WH-A",
		BatchTracking: true,
	})
	require.NoError(t, err)
	return item
}

func TestBatchStockOutFEFO(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerBatchItem(t, svc, "B-1")

	in := func(batchNumber, expiry, qty string) {
		t.Helper()
		_, err := svc.StockIn(ctx, StockInInput{
			TenantID:    testTenant,
			ItemID:      item.ID,
			WarehouseID: "WH-A",
			Quantity:    dec(qty),
			UnitCost:    dec("10"),
			Batch:       &BatchInput{BatchNumber: batchNumber, ExpiryDate: datePtr(expiry)},
		})
		require.NoError(t, err)
	}
	in("LOT-MAR", "2026-03-01", "10")
	in("LOT-JAN", "2026-01-01", "10")
	in("LOT-FEB", "2026-02-01", "10")

	_, err := svc.StockOut(ctx, StockOutInput{
		TenantID:    testTenant,
		ItemID:      item.ID,
		WarehouseID: "WH-A",
		Quantity:    dec("15"),
		Strategy:    StrategyFEFO,
	})
	require.NoError(t, err)

	batches, err := svc.ListBatches(ctx, BatchFilter{TenantID: testTenant, ItemID: item.ID})
	require.NoError(t, err)
	remaining := map[string]string{}
	for _, b := range batches {
		remaining[b.BatchNumber] = b.AvailableQuantity.String()
	}
	require.Equal(t, "0", remaining["LOT-JAN"])
	require.Equal(t, "5", remaining["LOT-FEB"])
	require.Equal(t, "10", remaining["LOT-MAR"])
}

func TestBatchStockOutAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerBatchItem(t, svc, "B-1")

	_, err := svc.StockIn(ctx, StockInInput{
		TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A",
		Quantity: dec("8"), Batch: &BatchInput{BatchNumber: "LOT-1"},
	})
	require.NoError(t, err)

	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("9")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	batches, err := svc.ListBatches(ctx, BatchFilter{TenantID: testTenant, ItemID: item.ID})
	require.NoError(t, err)
	require.True(t, batches[0].AvailableQuantity.Equal(dec("8")), "failed allocation must not drain batches")
}

func TestBatchStockInRequiresBatchDetails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	item := registerBatchItem(t, svc, "B-1")

	_, err := svc.StockIn(context.Background(), StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("5")})
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)
}

func registerSerialItem(t *testing.T, svc *Service, sku string) *Item {
	t.Helper()
	item, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		TenantID:       testTenant,
		SKU:            sku,
		Name:           "Serial " + sku,
		WarehouseID:    "WH-A",
		SerialTracking: true,
	})
	require.NoError(t, err)
	return item
}

func TestSerialStockInAndOut(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerSerialItem(t, svc, "S-1")

	_, err := svc.StockIn(ctx, StockInInput{
		TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A",
		Quantity: dec("3"), SerialNumbers: []string{"SN-1", "SN-2", "SN-3"},
	})
	require.NoError(t, err)

	// count mismatch rejected
	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("2"), SerialNumbers: []string{"SN-1"}})
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)

	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("2"), SerialNumbers: []string{"SN-1", "SN-2"}})
	require.NoError(t, err)

	serials, err := svc.ListSerials(ctx, SerialFilter{TenantID: testTenant, ItemID: item.ID, Status: SerialStatusSold})
	require.NoError(t, err)
	require.Len(t, serials, 2)

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(dec("1")))
}

func TestSerialDuplicateRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerSerialItem(t, svc, "S-1")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("1"), SerialNumbers: []string{"SN-1"}})
	require.NoError(t, err)

	_, err = svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("1"), SerialNumbers: []string{"SN-1"}})
	require.ErrorIs(t, err, shared.ErrDuplicateIdentifier)

	// serial numbers are unique across the whole tenant, not per item
	other := registerSerialItem(t, svc, "S-2")
	_, err = svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: other.ID, WarehouseID: "WH-A", Quantity: dec("1"), SerialNumbers: []string{"SN-1"}})
	require.ErrorIs(t, err, shared.ErrDuplicateIdentifier)
}

func TestTransferPairsJournalRows(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	src := registerPlainItem(t, svc, "W-1", "WH-A")
	dst := registerPlainItem(t, svc, "W-1", "WH-B")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: src.ID, WarehouseID: "WH-A", Quantity: dec("20"), UnitCost: dec("50")})
	require.NoError(t, err)

	out, in, err := svc.Transfer(ctx, TransferInput{
		TenantID: testTenant, ItemID: src.ID,
		FromWarehouseID: "WH-A", ToWarehouseID: "WH-B", Quantity: dec("5"),
	})
	require.NoError(t, err)
	require.Equal(t, DirectionOut, out.Direction)
	require.Equal(t, DirectionIn, in.Direction)
	require.Equal(t, out.Number, in.ReferenceNumber, "inbound row references its outbound pair")
	require.True(t, out.BalanceAfter.Equal(dec("15")))
	require.True(t, in.BalanceAfter.Equal(dec("5")))

	gotDst, err := svc.GetItem(ctx, testTenant, dst.ID)
	require.NoError(t, err)
	require.True(t, gotDst.CurrentStock.Equal(dec("5")))
}

func TestTransferRequiresDestinationItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	src := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: src.ID, WarehouseID: "WH-A", Quantity: dec("20")})
	require.NoError(t, err)

	_, _, err = svc.Transfer(ctx, TransferInput{
		TenantID: testTenant, ItemID: src.ID,
		FromWarehouseID: "WH-A", ToWarehouseID: "WH-B", Quantity: dec("5"),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, err := svc.GetItem(ctx, testTenant, src.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(dec("20")), "failed transfer must not move stock")
}

func TestTransferSameWarehouseRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	src := registerPlainItem(t, svc, "W-1", "WH-A")

	_, _, err := svc.Transfer(context.Background(), TransferInput{
		TenantID: testTenant, ItemID: src.ID,
		FromWarehouseID: "WH-A", ToWarehouseID: "WH-A", Quantity: dec("5"),
	})
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)
}

func TestTransferMirrorsBatches(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	src := registerBatchItem(t, svc, "B-1")
	dst, err := svc.RegisterItem(ctx, RegisterItemInput{
		TenantID: testTenant, SKU: "B-1", Name: "Batch B-1", WarehouseID: "WH-B", BatchTracking: true,
	})
	require.NoError(t, err)

	_, err = svc.StockIn(ctx, StockInInput{
		TenantID: testTenant, ItemID: src.ID, WarehouseID: "WH-A",
		Quantity: dec("10"), UnitCost: dec("7"),
		Batch: &BatchInput{BatchNumber: "LOT-1", ExpiryDate: datePtr("2026-01-01")},
	})
	require.NoError(t, err)

	_, _, err = svc.Transfer(ctx, TransferInput{
		TenantID: testTenant, ItemID: src.ID,
		FromWarehouseID: "WH-A", ToWarehouseID: "WH-B", Quantity: dec("4"),
	})
	require.NoError(t, err)

	dstBatches, err := svc.ListBatches(ctx, BatchFilter{TenantID: testTenant, ItemID: dst.ID, WarehouseID: "WH-B"})
	require.NoError(t, err)
	require.Len(t, dstBatches, 1)
	require.Equal(t, "LOT-1", dstBatches[0].BatchNumber)
	require.True(t, dstBatches[0].AvailableQuantity.Equal(dec("4")))
	require.NotNil(t, dstBatches[0].ExpiryDate)
}

func TestAdjustment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.Adjust(ctx, AdjustmentInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Delta: decimal.Zero})
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)

	txn, err := svc.Adjust(ctx, AdjustmentInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Delta: dec("10")})
	require.NoError(t, err)
	require.Equal(t, DirectionIn, txn.Direction)
	require.Equal(t, ReasonCorrection, txn.Reason)

	txn, err = svc.Adjust(ctx, AdjustmentInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Delta: dec("-4"), Reason: ReasonDamage})
	require.NoError(t, err)
	require.Equal(t, DirectionOut, txn.Direction)
	require.True(t, txn.Quantity.Equal(dec("4")), "journal quantity is always positive")
	require.True(t, txn.BalanceAfter.Equal(dec("6")))

	_, err = svc.Adjust(ctx, AdjustmentInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Delta: dec("-7")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestPhysicalCountShortage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("100")})
	require.NoError(t, err)

	txn, err := svc.PhysicalCount(ctx, PhysicalCountInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", CountedQty: dec("92")})
	require.NoError(t, err)
	require.Equal(t, TransactionTypeCount, txn.Type)
	require.Equal(t, DirectionOut, txn.Direction)
	require.Equal(t, ReasonCountAdjustment, txn.Reason)
	require.True(t, txn.Quantity.Equal(dec("8")))
	require.True(t, txn.BalanceAfter.Equal(dec("92")))
}

func TestPhysicalCountMatchPostsZeroRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("50")})
	require.NoError(t, err)

	txn, err := svc.PhysicalCount(ctx, PhysicalCountInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", CountedQty: dec("50")})
	require.NoError(t, err)
	require.True(t, txn.Quantity.IsZero())
	require.True(t, txn.BalanceAfter.Equal(dec("50")))
}

func TestReserveAndConsumeFromReserved(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("10")})
	require.NoError(t, err)

	require.NoError(t, svc.ReserveStock(ctx, ReserveInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("6")}))

	err = svc.ReserveStock(ctx, ReserveInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("5")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// available stock cannot be taken below the reserved slice
	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("5")})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("6"), FromReserved: true})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(dec("4")))
	require.True(t, got.ReservedStock.IsZero())
}

func TestBatchConsumeFullyReservedStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerBatchItem(t, svc, "B-1")

	_, err := svc.StockIn(ctx, StockInInput{
		TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A",
		Quantity: dec("10"), UnitCost: dec("10"), Batch: &BatchInput{BatchNumber: "LOT-1"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.ReserveStock(ctx, ReserveInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("10")}))

	// fulfilling the reservation draws the batch stock even though none
	// of it sits in the available pool
	_, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("10"), FromReserved: true})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.IsZero())
	require.True(t, got.ReservedStock.IsZero())

	batches, err := svc.ListBatches(ctx, BatchFilter{TenantID: testTenant, ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.True(t, batches[0].AvailableQuantity.IsZero())
	require.True(t, batches[0].ReservedQuantity.IsZero())
	require.True(t, batches[0].ConsumedQuantity().Equal(dec("10")))
}

func TestReleaseReservationCapped(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	_, err := svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("10")})
	require.NoError(t, err)
	require.NoError(t, svc.ReserveStock(ctx, ReserveInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("4")}))

	released, err := svc.ReleaseReservation(ctx, ReserveInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec("9")})
	require.NoError(t, err)
	require.True(t, released.Equal(dec("4")))
}

// recordingAudit applies the same required-field guard as the pg-backed
// audit logger so tests catch records it would reject.
type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return fmt.Errorf("audit log requires action/entity/entity_id")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func TestMarkExpiredBatches(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit, nil, shared.FixedClock(date("2025-04-10")), shared.NewKeyedMutex(), nil, nil, Config{})
	ctx := context.Background()
	item := registerBatchItem(t, svc, "B-1")

	_, err := svc.StockIn(ctx, StockInInput{
		TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A",
		Quantity: dec("10"), Batch: &BatchInput{BatchNumber: "OLD", ExpiryDate: datePtr("2025-04-01")},
	})
	require.NoError(t, err)
	_, err = svc.StockIn(ctx, StockInInput{
		TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A",
		Quantity: dec("10"), Batch: &BatchInput{BatchNumber: "FRESH", ExpiryDate: datePtr("2026-04-01")},
	})
	require.NoError(t, err)

	swept, err := svc.MarkExpiredBatches(ctx, testTenant)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	batches, err := svc.ListBatches(ctx, BatchFilter{TenantID: testTenant, ItemID: item.ID})
	require.NoError(t, err)
	for _, b := range batches {
		if b.BatchNumber == "OLD" {
			require.False(t, b.Active)
		} else {
			require.True(t, b.Active)
		}
	}

	var sweep *shared.AuditLog
	for i := range audit.logs {
		if audit.logs[i].Action == "inventory:expiry_sweep" {
			sweep = &audit.logs[i]
		}
	}
	require.NotNil(t, sweep, "sweep writes an audit record")
	require.Equal(t, "tenant", sweep.Entity)
	require.Equal(t, testTenant, sweep.EntityID)
}

func TestJournalBalancesChain(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()
	item := registerPlainItem(t, svc, "W-1", "WH-A")

	moves := []struct {
		in  bool
		qty string
	}{
		{true, "10"}, {true, "7"}, {false, "3"}, {true, "2"}, {false, "9"},
	}
	running := decimal.Zero
	for _, m := range moves {
		var txn *Transaction
		var err error
		if m.in {
			txn, err = svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec(m.qty)})
			running = running.Add(dec(m.qty))
		} else {
			txn, err = svc.StockOut(ctx, StockOutInput{TenantID: testTenant, ItemID: item.ID, WarehouseID: "WH-A", Quantity: dec(m.qty)})
			running = running.Sub(dec(m.qty))
		}
		require.NoError(t, err)
		require.True(t, txn.BalanceAfter.Equal(running), "balance after %s movement", m.qty)
	}

	got, err := svc.GetItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.True(t, got.CurrentStock.Equal(running))
}

func TestStockLevelListings(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, date("2025-04-10"))
	ctx := context.Background()

	low, err := svc.RegisterItem(ctx, RegisterItemInput{
		TenantID: testTenant, SKU: "LOW-1", Name: "Low", WarehouseID: "WH-A",
		ReorderLevel: dec("10"), MaxStockLevel: dec("100"),
	})
	require.NoError(t, err)
	over, err := svc.RegisterItem(ctx, RegisterItemInput{
		TenantID: testTenant, SKU: "OVER-1", Name: "Over", WarehouseID: "WH-A",
		ReorderLevel: dec("10"), MaxStockLevel: dec("100"),
	})
	require.NoError(t, err)

	_, err = svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: low.ID, WarehouseID: "WH-A", Quantity: dec("5")})
	require.NoError(t, err)
	_, err = svc.StockIn(ctx, StockInInput{TenantID: testTenant, ItemID: over.ID, WarehouseID: "WH-A", Quantity: dec("150")})
	require.NoError(t, err)

	lows, err := svc.ListLowStockItems(ctx, testTenant, "WH-A")
	require.NoError(t, err)
	require.Len(t, lows, 1)
	require.Equal(t, "LOW-1", lows[0].SKU)

	overs, err := svc.ListOverStockItems(ctx, testTenant, "")
	require.NoError(t, err)
	require.Len(t, overs, 1)
	require.Equal(t, "OVER-1", overs[0].SKU)

	bySKU, err := svc.GetItemBySKU(ctx, testTenant, "OVER-1", "WH-A")
	require.NoError(t, err)
	require.Equal(t, over.ID, bySKU.ID)

	_, err = svc.GetItemBySKU(ctx, testTenant, "", "WH-A")
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)

	items, meta, err := svc.ListItems(ctx, testTenant, "", shared.Pagination{Page: 1, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, meta.Total)
	require.Equal(t, 2, meta.TotalPages)
}
