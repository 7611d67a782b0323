package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockcore/stockcore/internal/shared"
)

// StrategyType selects how outbound quantity is split across batches.
type StrategyType string

const (
	// StrategyFIFO consumes oldest receipts first.
	StrategyFIFO StrategyType = "FIFO"
	// StrategyFEFO consumes soonest-expiring batches first.
	StrategyFEFO StrategyType = "FEFO"
	// StrategyLIFO consumes newest receipts first.
	StrategyLIFO StrategyType = "LIFO"
	// StrategyManual uses caller-provided batch allocations.
	StrategyManual StrategyType = "MANUAL"
)

// Allocation is one (batch, quantity) draw produced by a strategy.
type Allocation struct {
	Batch    *Batch
	Quantity decimal.Decimal
}

// Strategy picks batches to satisfy an outbound quantity. Select is
// all-or-nothing: either the full quantity is covered or an
// ErrInsufficientStock error is returned and nothing is allocated.
// With fromReserved set, reserved batch stock counts toward the draw so
// held reservations can be consumed.
type Strategy interface {
	Select(qty decimal.Decimal, batches []*Batch, now time.Time, fromReserved bool) ([]Allocation, error)
}

// StrategyFor returns the named strategy. Manual allocations are supplied
// at call time, so a MANUAL strategy here is a configuration error.
func StrategyFor(t StrategyType) (Strategy, error) {
	switch t {
	case StrategyFIFO:
		return orderedStrategy{less: byReceivedAsc}, nil
	case StrategyFEFO:
		return orderedStrategy{less: byExpiryAsc}, nil
	case StrategyLIFO:
		return orderedStrategy{less: byReceivedDesc}, nil
	case StrategyManual:
		return nil, fmt.Errorf("%w: manual strategy requires explicit allocations", shared.ErrInvalidConfiguration)
	default:
		return nil, fmt.Errorf("%w: unknown allocation strategy %q", shared.ErrInvalidConfiguration, t)
	}
}

func byReceivedAsc(a, b *Batch) bool { return a.ReceivedDate.Before(b.ReceivedDate) }
func byReceivedDesc(a, b *Batch) bool { return a.ReceivedDate.After(b.ReceivedDate) }

// byExpiryAsc orders soonest expiry first, batches without expiry last,
// ties broken by received date.
func byExpiryAsc(a, b *Batch) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return a.ReceivedDate.Before(b.ReceivedDate)
	case a.ExpiryDate == nil:
		return false
	case b.ExpiryDate == nil:
		return true
	case a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ReceivedDate.Before(b.ReceivedDate)
	default:
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
}

type orderedStrategy struct {
	less func(a, b *Batch) bool
}

func (s orderedStrategy) Select(qty decimal.Decimal, batches []*Batch, now time.Time, fromReserved bool) ([]Allocation, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: allocation quantity must be positive", shared.ErrInvalidConfiguration)
	}
	eligible := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.HasAllocatableStock(now, fromReserved) {
			eligible = append(eligible, b)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return s.less(eligible[i], eligible[j]) })

	var allocs []Allocation
	remaining := qty
	for _, b := range eligible {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, b.AllocatableQuantity(fromReserved))
		allocs = append(allocs, Allocation{Batch: b, Quantity: take})
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return nil, fmt.Errorf("%w: batches cover %s of requested %s", shared.ErrInsufficientStock, qty.Sub(remaining), qty)
	}
	return allocs, nil
}

// ResolveManual validates caller-chosen allocations against the batch set
// and the requested quantity.
func ResolveManual(qty decimal.Decimal, picks []ManualAllocation, batches []*Batch, now time.Time, fromReserved bool) ([]Allocation, error) {
	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: manual strategy requires at least one allocation", shared.ErrInvalidConfiguration)
	}
	byID := make(map[string]*Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}
	var (
		allocs []Allocation
		total  decimal.Decimal
	)
	for _, p := range picks {
		b, ok := byID[p.BatchID]
		if !ok {
			return nil, fmt.Errorf("%w: batch %s", shared.ErrNotFound, p.BatchID)
		}
		if p.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: allocation for batch %s must be positive", shared.ErrInvalidConfiguration, b.BatchNumber)
		}
		if !b.HasAllocatableStock(now, fromReserved) {
			return nil, fmt.Errorf("%w: batch %s is inactive, expired or empty", shared.ErrInsufficientStock, b.BatchNumber)
		}
		if b.AllocatableQuantity(fromReserved).LessThan(p.Quantity) {
			return nil, fmt.Errorf("%w: batch %s available %s, requested %s", shared.ErrInsufficientStock, b.BatchNumber, b.AllocatableQuantity(fromReserved), p.Quantity)
		}
		allocs = append(allocs, Allocation{Batch: b, Quantity: p.Quantity})
		total = total.Add(p.Quantity)
	}
	if !total.Equal(qty) {
		return nil, fmt.Errorf("%w: manual allocations sum to %s, requested %s", shared.ErrInvalidConfiguration, total, qty)
	}
	return allocs, nil
}
