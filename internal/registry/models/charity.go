package models

import (
	"math"
	"time"

	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
)

// Charity is one registered payout destination. A record is live while
// Destination is non-zero; removal clears Destination and keeps the slot.
type Charity struct {
	Name             string
	Destination      domain.Address
	Active           bool
	LifetimeReceived uint64
	DonationCount    uint64
	RegisteredAt     time.Time
	// Slot is the record's position in the enumeration index.
	Slot int
}

// NewCharity builds an active record with zero counters.
func NewCharity(name string, destination domain.Address, registeredAt time.Time) (*Charity, error) {
	if destination.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidDestination, "destination is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeEmptyName, "name is required")
	}
	return &Charity{
		Name:         name,
		Destination:  destination,
		Active:       true,
		RegisteredAt: registeredAt,
	}, nil
}

// IsLive reports whether the record has not been removed.
func (c *Charity) IsLive() bool {
	return !c.Destination.IsZero()
}

// CanReceive reports whether donations may be routed to the record.
func (c *Charity) CanReceive() error {
	if !c.IsLive() {
		return dErrors.New(dErrors.CodeNotFound, "charity not found")
	}
	if !c.Active {
		return dErrors.New(dErrors.CodeInactive, "charity is inactive")
	}
	return nil
}

// CanCredit fails with Overflow when adding amount would wrap a counter.
func (c *Charity) CanCredit(amount uint64) error {
	if c.LifetimeReceived > math.MaxUint64-amount || c.DonationCount == math.MaxUint64 {
		return dErrors.New(dErrors.CodeOverflow, "charity counters would overflow")
	}
	return nil
}

func (c *Charity) ApplyCredit(amount uint64) {
	c.LifetimeReceived += amount
	c.DonationCount++
}

// ApplyDebit undoes ApplyCredit.
func (c *Charity) ApplyDebit(amount uint64) {
	c.LifetimeReceived -= amount
	c.DonationCount--
}

func (c *Charity) ApplyRemoval() {
	c.Destination = domain.ZeroAddress
	c.Active = false
}
