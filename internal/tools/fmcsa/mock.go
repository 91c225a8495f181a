package fmcsa

import (
	"fmt"
	"strings"
)

// Built-in dataset used when no web key is configured.
var mockCarriers = []*Carrier{
	{
		DOTNumber:       "1234567",
		MCNumber:        "MC-987654",
		LegalName:       "ACME TRUCKING LLC",
		DBAName:         "Acme Freight",
		PhysicalState:   "TX",
		PhysicalCity:    "Dallas",
		OperatingStatus: "ACTIVE",
		PowerUnits:      42,
		Drivers:         55,
		SafetyRating:    "Satisfactory",
		RatingDate:      "2023-06-14",
	},
	{
		DOTNumber:       "7654321",
		MCNumber:        "MC-123450",
		LegalName:       "BLUE RIDGE HAULERS INC",
		PhysicalState:   "NC",
		PhysicalCity:    "Asheville",
		OperatingStatus: "ACTIVE",
		PowerUnits:      12,
		Drivers:         15,
		SafetyRating:    "None",
	},
	{
		DOTNumber:       "5550123",
		MCNumber:        "MC-555012",
		LegalName:       "SUNSET LOGISTICS CORP",
		PhysicalState:   "AZ",
		PhysicalCity:    "Phoenix",
		OperatingStatus: "INACTIVE",
		PowerUnits:      8,
		Drivers:         9,
		SafetyRating:    "Conditional",
		RatingDate:      "2022-11-02",
	},
}

func mockByDOT(dotNumber string) (*Carrier, error) {
	for _, c := range mockCarriers {
		if c.DOTNumber == dotNumber {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no carrier found for DOT %s", dotNumber)
}

func mockByMC(mcNumber string) (*Carrier, error) {
	normalized := mcNumber
	if !strings.HasPrefix(strings.ToUpper(normalized), "MC-") {
		normalized = "MC-" + normalized
	}
	for _, c := range mockCarriers {
		if strings.EqualFold(c.MCNumber, normalized) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no carrier found for MC %s", mcNumber)
}

func mockByName(name string) []*Carrier {
	needle := strings.ToLower(name)
	var matches []*Carrier
	for _, c := range mockCarriers {
		if strings.Contains(strings.ToLower(c.LegalName), needle) ||
			strings.Contains(strings.ToLower(c.DBAName), needle) {
			matches = append(matches, c)
		}
	}
	return matches
}
