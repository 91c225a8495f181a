package closecrm

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// mockCRM is an in-memory stand-in used when no API key is configured.
type mockCRM struct {
	mu     sync.Mutex
	nextID int
	leads  []*Lead
	opps   []*Opportunity
	notes  map[string][]string
}

func newMockCRM() *mockCRM {
	return &mockCRM{
		nextID: 100,
		leads: []*Lead{
			{
				ID:          "lead_acme",
				Name:        "Acme Trucking LLC",
				Description: "Fleet of 42 power units, Dallas TX. Current auto liability with Progressive.",
				StatusLabel: "Qualified",
				Contacts: []Contact{
					{
						Name:   "Rosa Delgado",
						Title:  "Operations Manager",
						Phones: []Phone{{Phone: "+12145550142", Type: "office"}},
						Emails: []Email{{Email: "rosa@acmetrucking.example", Type: "office"}},
					},
				},
				CreatedAt: "2025-04-12T09:30:00+00:00",
			},
			{
				ID:          "lead_blueridge",
				Name:        "Blue Ridge Haulers Inc",
				Description: "Regional hauler, 12 trucks, renewal coming up.",
				StatusLabel: "Potential",
				Contacts: []Contact{
					{
						Name:   "Sam Whitfield",
						Phones: []Phone{{Phone: "+18285550177", Type: "mobile"}},
					},
				},
				CreatedAt: "2025-06-03T14:05:00+00:00",
			},
		},
		opps: []*Opportunity{
			{
				ID:          "oppo_acme_al",
				LeadName:    "Acme Trucking LLC",
				StatusLabel: "Active",
				Value:       84000,
				ValuePeriod: "annual",
				Note:        "Auto liability renewal quote",
			},
			{
				ID:          "oppo_blueridge_cargo",
				LeadName:    "Blue Ridge Haulers Inc",
				StatusLabel: "Active",
				Value:       18500,
				ValuePeriod: "annual",
				Note:        "Motor truck cargo",
			},
		},
		notes: make(map[string][]string),
	}
}

func (m *mockCRM) searchLeads(query string) []*Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(query)
	var matches []*Lead
	for _, l := range m.leads {
		if strings.Contains(strings.ToLower(l.Name), needle) ||
			strings.Contains(strings.ToLower(l.Description), needle) {
			matches = append(matches, l)
		}
	}
	return matches
}

func (m *mockCRM) getLead(id string) (*Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("lead not found: %s", id)
}

func (m *mockCRM) createLead(name, description, contactName, contactPhone, contactEmail string) *Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	lead := &Lead{
		ID:          fmt.Sprintf("lead_%d", m.nextID),
		Name:        name,
		Description: description,
		StatusLabel: "Potential",
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if contactName != "" || contactPhone != "" || contactEmail != "" {
		contact := Contact{Name: contactName}
		if contactPhone != "" {
			contact.Phones = []Phone{{Phone: contactPhone, Type: "office"}}
		}
		if contactEmail != "" {
			contact.Emails = []Email{{Email: contactEmail, Type: "office"}}
		}
		lead.Contacts = []Contact{contact}
	}
	m.leads = append(m.leads, lead)
	return lead
}

func (m *mockCRM) addNote(leadID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.ID == leadID {
			m.notes[leadID] = append(m.notes[leadID], note)
			return nil
		}
	}
	return fmt.Errorf("lead not found: %s", leadID)
}

func (m *mockCRM) listOpportunities(leadID string) []*Opportunity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if leadID == "" {
		return append([]*Opportunity(nil), m.opps...)
	}
	lead, err := m.getLeadLocked(leadID)
	if err != nil {
		return nil
	}
	var matches []*Opportunity
	for _, o := range m.opps {
		if o.LeadName == lead.Name {
			matches = append(matches, o)
		}
	}
	return matches
}

func (m *mockCRM) getLeadLocked(id string) (*Lead, error) {
	for _, l := range m.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("lead not found: %s", id)
}

func (m *mockCRM) logActivity(leadID, kind, summary string) error {
	if kind != "call" && kind != "email" {
		return fmt.Errorf("unsupported activity type: %s", kind)
	}
	return m.addNote(leadID, fmt.Sprintf("[%s] %s", kind, summary))
}
