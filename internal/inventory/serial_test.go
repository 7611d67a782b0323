package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockcore/stockcore/internal/shared"
)

func TestSerialLifecycle(t *testing.T) {
	now := time.Now().UTC()
	s := &Serial{Status: SerialStatusAvailable}

	require.NoError(t, s.Reserve("SO-1"))
	require.Equal(t, SerialStatusReserved, s.Status)
	require.Equal(t, "SO-1", s.ReferenceID)

	require.NoError(t, s.ReleaseReservation())
	require.Equal(t, SerialStatusAvailable, s.Status)
	require.Empty(t, s.ReferenceID)

	require.NoError(t, s.MarkSold(now, "SO-2"))
	require.Equal(t, SerialStatusSold, s.Status)
	require.NotNil(t, s.SoldAt)

	require.NoError(t, s.MarkReturned())
	require.Equal(t, SerialStatusReturned, s.Status)

	require.NoError(t, s.MakeAvailable())
	require.Equal(t, SerialStatusAvailable, s.Status)
	require.Nil(t, s.SoldAt)
}

func TestSerialInvalidTransitions(t *testing.T) {
	now := time.Now().UTC()

	sold := &Serial{Status: SerialStatusSold}
	require.ErrorIs(t, sold.Reserve("x"), shared.ErrInvalidStateTransition)
	require.ErrorIs(t, sold.MakeAvailable(), shared.ErrInvalidStateTransition)
	require.ErrorIs(t, sold.MarkSold(now, ""), shared.ErrInvalidStateTransition)

	available := &Serial{Status: SerialStatusAvailable}
	require.ErrorIs(t, available.ReleaseReservation(), shared.ErrInvalidStateTransition)
	require.ErrorIs(t, available.MarkReturned(), shared.ErrInvalidStateTransition)
}

func TestSerialDamageAllowedFromAnyState(t *testing.T) {
	for _, status := range []SerialStatus{SerialStatusAvailable, SerialStatusReserved, SerialStatusSold, SerialStatusDamaged, SerialStatusReturned} {
		s := &Serial{Status: status}
		require.NoError(t, s.MarkDamaged("dropped"), "from %s", status)
		require.Equal(t, SerialStatusDamaged, s.Status)
	}

	// re-inspecting a damaged unit keeps it damaged and refreshes the notes
	reinspected := &Serial{Status: SerialStatusDamaged, Notes: "dropped"}
	require.NoError(t, reinspected.MarkDamaged("write-off after inspection"))
	require.Equal(t, SerialStatusDamaged, reinspected.Status)
	require.Equal(t, "write-off after inspection", reinspected.Notes)

	damaged := &Serial{Status: SerialStatusDamaged}
	require.NoError(t, damaged.MakeAvailable())
	require.Equal(t, SerialStatusAvailable, damaged.Status)
}

func TestSerialSellFromReserved(t *testing.T) {
	s := &Serial{Status: SerialStatusReserved, ReferenceID: "SO-9"}
	require.NoError(t, s.MarkSold(time.Now().UTC(), ""))
	require.Equal(t, SerialStatusSold, s.Status)
	require.Equal(t, "SO-9", s.ReferenceID, "reference kept when sale does not override")
}

func TestSerialWarranty(t *testing.T) {
	now := date("2025-06-15")

	s := Serial{WarrantyExpiry: datePtr("2025-06-25")}
	require.True(t, s.IsUnderWarranty(now))
	require.Equal(t, 10, s.WarrantyDaysLeft(now))

	expired := Serial{WarrantyExpiry: datePtr("2025-06-01")}
	require.False(t, expired.IsUnderWarranty(now))
	require.Zero(t, expired.WarrantyDaysLeft(now))

	untracked := Serial{}
	require.False(t, untracked.IsUnderWarranty(now))
}
