package nowcerts

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// mockAMS is an in-memory stand-in used when no credentials are
// configured.
type mockAMS struct {
	mu       sync.Mutex
	nextID   int
	insureds []*Insured
	policies []*Policy
}

func newMockAMS() *mockAMS {
	soon := time.Now().AddDate(0, 0, 21).Format("2006-01-02")
	far := time.Now().AddDate(0, 11, 0).Format("2006-01-02")
	return &mockAMS{
		nextID: 500,
		insureds: []*Insured{
			{
				ID:             "ins_acme",
				CommercialName: "Acme Trucking LLC",
				FirstName:      "Rosa",
				LastName:       "Delgado",
				Email:          "rosa@acmetrucking.example",
				Phone:          "+12145550142",
				State:          "TX",
				City:           "Dallas",
				Type:           "Insured",
			},
			{
				ID:             "ins_blueridge",
				CommercialName: "Blue Ridge Haulers Inc",
				FirstName:      "Sam",
				LastName:       "Whitfield",
				Phone:          "+18285550177",
				State:          "NC",
				City:           "Asheville",
				Type:           "Insured",
			},
		},
		policies: []*Policy{
			{
				ID:             "pol_acme_al",
				Number:         "CA-2025-88311",
				InsuredID:      "ins_acme",
				LineOfBusiness: "Commercial Auto Liability",
				Carrier:        "Progressive Commercial",
				Premium:        84000,
				EffectiveDate:  time.Now().AddDate(-1, 0, 21).Format("2006-01-02"),
				ExpirationDate: soon,
				Status:         "Active",
			},
			{
				ID:             "pol_acme_cargo",
				Number:         "MTC-2025-10442",
				InsuredID:      "ins_acme",
				LineOfBusiness: "Motor Truck Cargo",
				Carrier:        "Great West",
				Premium:        12500,
				EffectiveDate:  time.Now().AddDate(0, -1, 0).Format("2006-01-02"),
				ExpirationDate: far,
				Status:         "Active",
			},
			{
				ID:             "pol_blueridge_gl",
				Number:         "GL-2024-55209",
				InsuredID:      "ins_blueridge",
				LineOfBusiness: "General Liability",
				Carrier:        "Hartford",
				Premium:        6200,
				EffectiveDate:  time.Now().AddDate(0, -10, 0).Format("2006-01-02"),
				ExpirationDate: far,
				Status:         "Active",
			},
		},
	}
}

func (m *mockAMS) findInsured(name string) []*Insured {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(name)
	var matches []*Insured
	for _, ins := range m.insureds {
		full := strings.ToLower(ins.CommercialName + " " + ins.FirstName + " " + ins.LastName)
		if strings.Contains(full, needle) {
			matches = append(matches, ins)
		}
	}
	return matches
}

func (m *mockAMS) getPolicies(insuredID string) []*Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*Policy
	for _, p := range m.policies {
		if p.InsuredID == insuredID {
			matches = append(matches, p)
		}
	}
	return matches
}

func (m *mockAMS) getPolicy(policyID string) (*Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.policies {
		if p.ID == policyID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("policy not found: %s", policyID)
}

func (m *mockAMS) createProspect(commercialName, first, last, email, phone string) *Insured {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ins := &Insured{
		ID:             fmt.Sprintf("ins_%d", m.nextID),
		CommercialName: commercialName,
		FirstName:      first,
		LastName:       last,
		Email:          email,
		Phone:          phone,
		Type:           "Prospect",
	}
	m.insureds = append(m.insureds, ins)
	return ins
}

func (m *mockAMS) expiringPolicies(within time.Duration) []*Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(within)
	var matches []*Policy
	for _, p := range m.policies {
		if p.Status != "Active" {
			continue
		}
		exp, err := time.Parse("2006-01-02", p.ExpirationDate)
		if err != nil {
			continue
		}
		if exp.Before(cutoff) {
			matches = append(matches, p)
		}
	}
	return matches
}
