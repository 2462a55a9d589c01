package handler

import (
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
)

// DonateRequest is the body of POST /donations. Exactly one of Destination
// and Name selects the charity.
type DonateRequest struct {
	Destination string `json:"destination"`
	Name        string `json:"name"`
	Amount      uint64 `json:"amount"`

	parsedDestination domain.Address
}

// Validate checks the amount first so an empty donation is reported as such
// whatever the target.
func (r *DonateRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeEmptyDonation, "amount must be greater than zero")
	}
	switch {
	case r.Destination != "" && r.Name != "":
		return dErrors.New(dErrors.CodeBadRequest, "destination and name are mutually exclusive")
	case r.Destination == "" && r.Name == "":
		return dErrors.New(dErrors.CodeBadRequest, "destination or name is required")
	case r.Destination != "":
		dest, err := domain.ParseAddress(r.Destination)
		if err != nil {
			return err
		}
		r.parsedDestination = dest
	}
	return nil
}
