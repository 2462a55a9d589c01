package handler

import (
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
)

// RegisterRequest is the body of POST /admin/charities.
type RegisterRequest struct {
	Name        string `json:"name"`
	Destination string `json:"destination"`

	parsedDestination domain.Address
}

// Validate parses the destination. Empty and zero destinations are left to
// the service, which rejects them with invalid_destination.
func (r *RegisterRequest) Validate() error {
	dest, err := domain.ParseOptionalAddress(r.Destination)
	if err != nil {
		return err
	}
	r.parsedDestination = dest
	return nil
}

// BatchRequest is the body of POST /admin/charities/batch.
type BatchRequest struct {
	Names        []string `json:"names"`
	Destinations []string `json:"destinations"`

	parsedDestinations []domain.Address
}

func (r *BatchRequest) Validate() error {
	r.parsedDestinations = make([]domain.Address, len(r.Destinations))
	for i, raw := range r.Destinations {
		dest, err := domain.ParseOptionalAddress(raw)
		if err != nil {
			return dErrors.Newf(dErrors.CodeBadRequest, "destinations[%d]: invalid address", i)
		}
		r.parsedDestinations[i] = dest
	}
	return nil
}

// RenameRequest is the body of PUT /admin/charities/{destination}/name.
type RenameRequest struct {
	Name string `json:"name"`
}

// StatusRequest is the body of PUT /admin/charities/{destination}/status.
type StatusRequest struct {
	Active *bool `json:"active"`
}

func (r *StatusRequest) Validate() error {
	if r.Active == nil {
		return dErrors.New(dErrors.CodeBadRequest, "active is required")
	}
	return nil
}
