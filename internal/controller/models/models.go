package models

import "giveroute/pkg/domain"

// State is the two-phase controller handover state. Pending is the zero
// Address when no handover is in flight.
type State struct {
	Current domain.Address
	Pending domain.Address
}

// HasPending reports whether a handover awaits acceptance.
func (s State) HasPending() bool {
	return !s.Pending.IsZero()
}
