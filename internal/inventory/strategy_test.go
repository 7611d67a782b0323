package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/shared"
)

func testBatch(id string, received string, expiry *time.Time, available string) *Batch {
	return &Batch{
		ID:                id,
		BatchNumber:       id,
		ReceivedDate:      date(received),
		ExpiryDate:        expiry,
		AvailableQuantity: dec(available),
		Active:            true,
	}
}

func allocatedIDs(allocs []Allocation) []string {
	ids := make([]string, 0, len(allocs))
	for _, a := range allocs {
		ids = append(ids, a.Batch.ID)
	}
	return ids
}

func TestFIFOOrdersByReceivedDate(t *testing.T) {
	now := date("2025-06-01")
	batches := []*Batch{
		testBatch("B3", "2025-03-01", nil, "10"),
		testBatch("B1", "2025-01-01", nil, "10"),
		testBatch("B2", "2025-02-01", nil, "10"),
	}

	strategy, err := StrategyFor(StrategyFIFO)
	require.NoError(t, err)
	allocs, err := strategy.Select(dec("15"), batches, now, false)
	require.NoError(t, err)
	require.Equal(t, []string{"B1", "B2"}, allocatedIDs(allocs))
	require.True(t, allocs[0].Quantity.Equal(dec("10")))
	require.True(t, allocs[1].Quantity.Equal(dec("5")))
}

func TestLIFOOrdersNewestFirst(t *testing.T) {
	now := date("2025-06-01")
	batches := []*Batch{
		testBatch("B1", "2025-01-01", nil, "10"),
		testBatch("B2", "2025-02-01", nil, "10"),
	}

	strategy, err := StrategyFor(StrategyLIFO)
	require.NoError(t, err)
	allocs, err := strategy.Select(dec("12"), batches, now, false)
	require.NoError(t, err)
	require.Equal(t, []string{"B2", "B1"}, allocatedIDs(allocs))
}

func TestFEFOOrdersByExpiryNullsLast(t *testing.T) {
	now := date("2025-01-01")
	batches := []*Batch{
		testBatch("B1", "2024-01-01", datePtr("2025-03-01"), "5"),
		testBatch("B2", "2024-02-01", datePtr("2025-01-15"), "5"),
		testBatch("B3", "2024-03-01", datePtr("2025-02-01"), "5"),
		testBatch("B4", "2024-01-01", nil, "5"),
	}

	strategy, err := StrategyFor(StrategyFEFO)
	require.NoError(t, err)
	allocs, err := strategy.Select(dec("20"), batches, now, false)
	require.NoError(t, err)
	require.Equal(t, []string{"B2", "B3", "B1", "B4"}, allocatedIDs(allocs))
}

func TestFEFOBreaksExpiryTiesByReceivedDate(t *testing.T) {
	now := date("2025-01-01")
	batches := []*Batch{
		testBatch("B2", "2024-02-01", datePtr("2025-06-01"), "5"),
		testBatch("B1", "2024-01-01", datePtr("2025-06-01"), "5"),
	}

	strategy, err := StrategyFor(StrategyFEFO)
	require.NoError(t, err)
	allocs, err := strategy.Select(dec("6"), batches, now, false)
	require.NoError(t, err)
	require.Equal(t, []string{"B1", "B2"}, allocatedIDs(allocs))
}

func TestSelectSkipsIneligibleBatches(t *testing.T) {
	now := date("2025-06-01")
	inactive := testBatch("B1", "2025-01-01", nil, "10")
	inactive.Active = false
	expired := testBatch("B2", "2025-02-01", datePtr("2025-05-01"), "10")
	empty := testBatch("B3", "2025-03-01", nil, "0")
	good := testBatch("B4", "2025-04-01", nil, "10")

	strategy, err := StrategyFor(StrategyFIFO)
	require.NoError(t, err)
	allocs, err := strategy.Select(dec("5"), []*Batch{inactive, expired, empty, good}, now, false)
	require.NoError(t, err)
	require.Equal(t, []string{"B4"}, allocatedIDs(allocs))
}

func TestSelectAllOrNothing(t *testing.T) {
	now := date("2025-06-01")
	batches := []*Batch{
		testBatch("B1", "2025-01-01", nil, "4"),
		testBatch("B2", "2025-02-01", nil, "4"),
	}

	strategy, err := StrategyFor(StrategyFIFO)
	require.NoError(t, err)
	_, err = strategy.Select(dec("9"), batches, now, false)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// batches are untouched on failure
	require.True(t, batches[0].AvailableQuantity.Equal(dec("4")))
	require.True(t, batches[1].AvailableQuantity.Equal(dec("4")))
}

func TestSelectDrawsReservedWhenConsumingReservation(t *testing.T) {
	now := date("2025-06-01")
	held := testBatch("B1", "2025-01-01", nil, "0")
	held.ReservedQuantity = dec("10")

	strategy, err := StrategyFor(StrategyFIFO)
	require.NoError(t, err)

	// a fully reserved batch is invisible to a plain outbound draw
	_, err = strategy.Select(dec("10"), []*Batch{held}, now, false)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	allocs, err := strategy.Select(dec("10"), []*Batch{held}, now, true)
	require.NoError(t, err)
	require.Equal(t, []string{"B1"}, allocatedIDs(allocs))
	require.True(t, allocs[0].Quantity.Equal(dec("10")))
}

func TestResolveManualFromReserved(t *testing.T) {
	now := date("2025-06-01")
	held := testBatch("B1", "2025-01-01", nil, "2")
	held.ReservedQuantity = dec("8")

	_, err := ResolveManual(dec("10"), []ManualAllocation{{BatchID: "B1", Quantity: dec("10")}}, []*Batch{held}, now, false)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	allocs, err := ResolveManual(dec("10"), []ManualAllocation{{BatchID: "B1", Quantity: dec("10")}}, []*Batch{held}, now, true)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
}

func TestStrategyForRejectsManualAndUnknown(t *testing.T) {
	_, err := StrategyFor(StrategyManual)
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)

	_, err = StrategyFor(StrategyType("RANDOM"))
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)
}

func TestResolveManual(t *testing.T) {
	now := date("2025-06-01")
	batches := []*Batch{
		testBatch("B1", "2025-01-01", nil, "10"),
		testBatch("B2", "2025-02-01", nil, "10"),
	}

	allocs, err := ResolveManual(dec("12"), []ManualAllocation{
		{BatchID: "B1", Quantity: dec("10")},
		{BatchID: "B2", Quantity: dec("2")},
	}, batches, now, false)
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	_, err = ResolveManual(dec("12"), []ManualAllocation{{BatchID: "B1", Quantity: dec("10")}}, batches, now, false)
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration, "sum mismatch")

	_, err = ResolveManual(dec("5"), []ManualAllocation{{BatchID: "B9", Quantity: dec("5")}}, batches, now, false)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = ResolveManual(dec("11"), []ManualAllocation{{BatchID: "B1", Quantity: dec("11")}}, batches, now, false)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = ResolveManual(dec("5"), nil, batches, now, false)
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)

	_, err = ResolveManual(dec("0"), []ManualAllocation{{BatchID: "B1", Quantity: decimal.Zero}}, batches, now, false)
	require.ErrorIs(t, err, shared.ErrInvalidConfiguration)
}
