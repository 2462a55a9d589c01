package handler

import (
	"time"

	"giveroute/internal/donation/models"
)

type ReceiptResponse struct {
	DonationID  uint64    `json:"donation_id"`
	Donor       string    `json:"donor"`
	Destination string    `json:"destination"`
	Name        string    `json:"name"`
	Amount      uint64    `json:"amount"`
	RoutedAt    time.Time `json:"routed_at"`
}

func FromReceipt(r *models.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		DonationID:  r.DonationID,
		Donor:       r.Donor.String(),
		Destination: r.Destination.String(),
		Name:        r.Name,
		Amount:      r.Amount,
		RoutedAt:    r.RoutedAt,
	}
}

type DonationStatsResponse struct {
	TotalDonations uint64 `json:"total_donations"`
	TotalRouted    uint64 `json:"total_routed"`
	NextDonationID uint64 `json:"next_donation_id"`
}

type TotalStatsResponse struct {
	TotalCharities  int    `json:"total_charities"`
	ActiveCharities int    `json:"active_charities"`
	TotalDonations  uint64 `json:"total_donations"`
	TotalRouted     uint64 `json:"total_routed"`
	AverageDonation uint64 `json:"average_donation"`
}

type RankingResponse struct {
	Destination string `json:"destination"`
	Received    uint64 `json:"received"`
}

type RankingsResponse struct {
	Rankings []RankingResponse `json:"rankings"`
}
