// Package receipt prices registrations and renders their PDF receipts.
package receipt

import (
	"strings"

	"github.com/iliyamo/munreg/internal/model"
)

// Prices in the primary currency.
const (
	IndividualSeatPrice    = 15.0
	PairedSeatPrice        = 30.0
	SmallDelegationFee     = 20.0
	LargeDelegationFee     = 30.0
	IndependentDelegateFee = 0.0
)

// PriceTable maps committee name to whether its seats are paired seats.
type PriceTable map[string]bool

// Summary is the computed charge of a registration.
type Summary struct {
	IndividualSeats int     `json:"individualSeats"`
	PairedSeats     int     `json:"pairedSeats"`
	IndividualCost  float64 `json:"individualCost"`
	PairedCost      float64 `json:"pairedCost"`
	SeatsCost       float64 `json:"seatsCost"`
	DelegationFee   float64 `json:"delegationFee"`
	Total           float64 `json:"total"`
	Rate            float64 `json:"rate"`
	SecondaryTotal  float64 `json:"secondaryTotal"`
}

// CommitteeOf recovers the committee name of a "Committee - Seat" label.
func CommitteeOf(label string) string {
	name, _, _ := strings.Cut(label, " - ")
	return name
}

// Quote prices the requested seats of reg. Backup seats are not charged.
// Seats of unknown committees price as individual seats.
func Quote(reg model.Registration, table PriceTable, rate float64) Summary {
	var s Summary
	for _, label := range reg.SeatsRequested {
		if table[CommitteeOf(label)] {
			s.PairedSeats++
		} else {
			s.IndividualSeats++
		}
	}
	s.IndividualCost = float64(s.IndividualSeats) * IndividualSeatPrice
	s.PairedCost = float64(s.PairedSeats) * PairedSeatPrice
	s.SeatsCost = s.IndividualCost + s.PairedCost
	s.DelegationFee = DelegationFee(reg)
	s.Total = s.SeatsCost + s.DelegationFee
	s.Rate = rate
	s.SecondaryTotal = s.Total * rate
	return s
}

// DelegationFee is zero for independent delegates, otherwise it depends on
// the delegation size.
func DelegationFee(reg model.Registration) float64 {
	switch {
	case reg.IndependentDelegate:
		return IndependentDelegateFee
	case reg.IsBigGroup:
		return LargeDelegationFee
	default:
		return SmallDelegationFee
	}
}

// DelegationLabel describes the registration type.
func DelegationLabel(reg model.Registration) string {
	switch {
	case reg.IndependentDelegate:
		return "Independent delegate"
	case reg.IsBigGroup:
		return "Large delegation (13+ seats)"
	default:
		return "Small delegation (1-12 seats)"
	}
}
