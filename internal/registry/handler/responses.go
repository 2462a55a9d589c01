package handler

import (
	"time"

	"giveroute/internal/registry/models"
	"giveroute/pkg/domain"
)

// CharityResponse renders a record. Destination is empty once removed.
type CharityResponse struct {
	Name             string    `json:"name"`
	Destination      string    `json:"destination"`
	Active           bool      `json:"active"`
	LifetimeReceived uint64    `json:"lifetime_received"`
	DonationCount    uint64    `json:"donation_count"`
	RegisteredAt     time.Time `json:"registered_at"`
	Slot             int       `json:"slot"`
}

func FromCharity(c models.Charity) *CharityResponse {
	return &CharityResponse{
		Name:             c.Name,
		Destination:      addressString(c.Destination),
		Active:           c.Active,
		LifetimeReceived: c.LifetimeReceived,
		DonationCount:    c.DonationCount,
		RegisteredAt:     c.RegisteredAt,
		Slot:             c.Slot,
	}
}

type CountResponse struct {
	Count  int `json:"count"`
	Active int `json:"active"`
}

type EnumerateResponse struct {
	Destinations []string `json:"destinations"`
}

type ValidResponse struct {
	Valid bool `json:"valid"`
}

func addressString(a domain.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}
