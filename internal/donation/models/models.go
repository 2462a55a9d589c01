package models

import (
	"math"
	"time"

	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
)

// Receipt describes one routed donation.
type Receipt struct {
	DonationID  uint64
	Donor       domain.Address
	Destination domain.Address
	Name        string
	Amount      uint64
	RoutedAt    time.Time
}

// Counters is the router's donation ledger. Only successful donations move
// it; NextDonationID starts at 1.
type Counters struct {
	TotalDonations uint64
	TotalRouted    uint64
	NextDonationID uint64
}

func NewCounters() Counters {
	return Counters{NextDonationID: 1}
}

// CanRecord fails with Overflow when recording amount would wrap a counter.
func (c Counters) CanRecord(amount uint64) error {
	if c.TotalRouted > math.MaxUint64-amount || c.TotalDonations == math.MaxUint64 || c.NextDonationID == math.MaxUint64 {
		return dErrors.New(dErrors.CodeOverflow, "donation ledger would overflow")
	}
	return nil
}

// Record returns the counters after one donation of amount and the id
// assigned to it.
func (c Counters) Record(amount uint64) (Counters, uint64) {
	id := c.NextDonationID
	return Counters{
		TotalDonations: c.TotalDonations + 1,
		TotalRouted:    c.TotalRouted + amount,
		NextDonationID: id + 1,
	}, id
}

// Average is floor(TotalRouted / TotalDonations), or 0 with no donations.
func (c Counters) Average() uint64 {
	if c.TotalDonations == 0 {
		return 0
	}
	return c.TotalRouted / c.TotalDonations
}

type TotalStats struct {
	TotalCharities  int
	ActiveCharities int
	TotalDonations  uint64
	TotalRouted     uint64
	AverageDonation uint64
}

// Ranking is one leaderboard row.
type Ranking struct {
	Destination domain.Address
	Received    uint64
}
