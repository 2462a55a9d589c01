package audit

import (
	"context"
	"time"

	"giveroute/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention and routing.
type EventCategory string

const (
	// CategoryRegistry covers changes to the set of approved charities.
	CategoryRegistry EventCategory = "registry"

	// CategoryDonation covers value routed to a charity.
	CategoryDonation EventCategory = "donation"

	// CategoryAccess covers controller handover.
	CategoryAccess EventCategory = "access"
)

// Event is one immutable fact emitted by the core. Fields that do not apply
// to an action are left zero.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	Action       string
	Destination  domain.Address
	ActorID      domain.Address // caller that triggered the action
	Name         string
	PreviousName string
	Active       *bool
	DonationID   uint64
	Amount       uint64
	RequestID    string
}

type AuditEvent string

const (
	EventRegistered    AuditEvent = "Registered"
	EventRenamed       AuditEvent = "Renamed"
	EventRemoved       AuditEvent = "Removed"
	EventStatusChanged AuditEvent = "StatusChanged"

	EventDonationRouted AuditEvent = "DonationRouted"

	EventControllerProposed AuditEvent = "ControllerProposed"
	EventControllerChanged  AuditEvent = "ControllerChanged"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRegistered:         CategoryRegistry,
	EventRenamed:            CategoryRegistry,
	EventRemoved:            CategoryRegistry,
	EventStatusChanged:      CategoryRegistry,
	EventDonationRouted:     CategoryDonation,
	EventControllerProposed: CategoryAccess,
	EventControllerChanged:  CategoryAccess,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryRegistry.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryRegistry
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDestination(ctx context.Context, destination domain.Address) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
