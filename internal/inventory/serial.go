package inventory

import (
	"fmt"
	"time"

	"github.com/stockcore/stockcore/internal/shared"
)

// SerialStatus is the lifecycle state of one serial-tracked unit.
type SerialStatus string

const (
	SerialStatusAvailable SerialStatus = "AVAILABLE"
	SerialStatusReserved  SerialStatus = "RESERVED"
	SerialStatusSold      SerialStatus = "SOLD"
	SerialStatusDamaged   SerialStatus = "DAMAGED"
	SerialStatusReturned  SerialStatus = "RETURNED"
)

type serialEvent string

const (
	eventReserve       serialEvent = "reserve"
	eventRelease       serialEvent = "release"
	eventSell          serialEvent = "sell"
	eventDamage        serialEvent = "damage"
	eventReturn        serialEvent = "return"
	eventMakeAvailable serialEvent = "make_available"
)

// serialTransitions is the full state machine. Damage is allowed from any
// state; makeAvailable restores reserved, damaged or returned units but
// never sold ones.
var serialTransitions = map[SerialStatus]map[serialEvent]SerialStatus{
	SerialStatusAvailable: {
		eventReserve: SerialStatusReserved,
		eventSell:    SerialStatusSold,
		eventDamage:  SerialStatusDamaged,
	},
	SerialStatusReserved: {
		eventRelease:       SerialStatusAvailable,
		eventSell:          SerialStatusSold,
		eventDamage:        SerialStatusDamaged,
		eventMakeAvailable: SerialStatusAvailable,
	},
	SerialStatusSold: {
		eventReturn: SerialStatusReturned,
		eventDamage: SerialStatusDamaged,
	},
	SerialStatusDamaged: {
		eventDamage:        SerialStatusDamaged,
		eventMakeAvailable: SerialStatusAvailable,
	},
	SerialStatusReturned: {
		eventMakeAvailable: SerialStatusAvailable,
		eventDamage:        SerialStatusDamaged,
	},
}

func transition(from SerialStatus, ev serialEvent) (SerialStatus, error) {
	if next, ok := serialTransitions[from][ev]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: cannot %s a %s serial", shared.ErrInvalidStateTransition, ev, from)
}

// Serial is one individually tracked unit of a serial-tracked item.
type Serial struct {
	ID             string
	TenantID       string
	ItemID         string
	WarehouseID    string
	SerialNumber   string
	Status         SerialStatus
	BatchID        string
	WarrantyExpiry *time.Time
	SoldAt         *time.Time
	ReferenceID    string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reserve holds an available unit for a pending order.
func (s *Serial) Reserve(referenceID string) error {
	next, err := transition(s.Status, eventReserve)
	if err != nil {
		return err
	}
	s.Status = next
	s.ReferenceID = referenceID
	return nil
}

// ReleaseReservation returns a reserved unit to the available pool.
func (s *Serial) ReleaseReservation() error {
	next, err := transition(s.Status, eventRelease)
	if err != nil {
		return err
	}
	s.Status = next
	s.ReferenceID = ""
	return nil
}

// MarkSold records the sale of an available or reserved unit.
func (s *Serial) MarkSold(at time.Time, referenceID string) error {
	next, err := transition(s.Status, eventSell)
	if err != nil {
		return err
	}
	s.Status = next
	s.SoldAt = &at
	if referenceID != "" {
		s.ReferenceID = referenceID
	}
	return nil
}

// MarkDamaged flags a unit as damaged regardless of its current state.
func (s *Serial) MarkDamaged(notes string) error {
	next, err := transition(s.Status, eventDamage)
	if err != nil {
		return err
	}
	s.Status = next
	if notes != "" {
		s.Notes = notes
	}
	return nil
}

// MarkReturned records a customer return of a sold unit.
func (s *Serial) MarkReturned() error {
	next, err := transition(s.Status, eventReturn)
	if err != nil {
		return err
	}
	s.Status = next
	return nil
}

// MakeAvailable restores a unit to the available pool. Sold units must be
// returned first.
func (s *Serial) MakeAvailable() error {
	next, err := transition(s.Status, eventMakeAvailable)
	if err != nil {
		return err
	}
	s.Status = next
	s.ReferenceID = ""
	s.SoldAt = nil
	return nil
}

// IsUnderWarranty reports whether the unit's warranty covers now.
func (s Serial) IsUnderWarranty(now time.Time) bool {
	return s.WarrantyExpiry != nil && s.WarrantyExpiry.After(now)
}

// WarrantyDaysLeft is the whole days of warranty remaining, zero when
// expired or untracked.
func (s Serial) WarrantyDaysLeft(now time.Time) int {
	if !s.IsUnderWarranty(now) {
		return 0
	}
	return int(s.WarrantyExpiry.Sub(now).Hours() / 24)
}
