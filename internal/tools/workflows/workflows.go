// Package workflows composes the registry, CRM, and AMS clients into
// multi-step agency routines the agent can run as one tool call.
package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coverbridge/coverbridge/internal/tools/closecrm"
	"github.com/coverbridge/coverbridge/internal/tools/fmcsa"
	"github.com/coverbridge/coverbridge/internal/tools/nowcerts"
)

// Runner executes the composite workflows.
type Runner struct {
	registry *fmcsa.Client
	crm      *closecrm.Client
	ams      *nowcerts.Client
}

// NewRunner creates a workflow runner over the typed clients.
func NewRunner(registry *fmcsa.Client, crm *closecrm.Client, ams *nowcerts.Client) *Runner {
	return &Runner{registry: registry, crm: crm, ams: ams}
}

// CarrierSnapshot pulls a carrier's registry record and any CRM and
// AMS records that mention it, into one briefing.
func (r *Runner) CarrierSnapshot(ctx context.Context, dotNumber string) (string, error) {
	carrier, err := r.registry.CarrierByDOT(ctx, dotNumber)
	if err != nil {
		return "", fmt.Errorf("registry lookup failed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Carrier snapshot for %s (DOT %s)\n", carrier.LegalName, carrier.DOTNumber)
	fmt.Fprintf(&b, "Registry: %s, %s/%s, %d power units, %d drivers",
		carrier.OperatingStatus, carrier.PhysicalCity, carrier.PhysicalState, carrier.PowerUnits, carrier.Drivers)
	if carrier.SafetyRating != "" && carrier.SafetyRating != "None" {
		fmt.Fprintf(&b, ", safety rating %s", carrier.SafetyRating)
	}
	b.WriteString("\n")

	leads, err := r.crm.SearchLeads(ctx, carrier.LegalName)
	if err != nil {
		fmt.Fprintf(&b, "CRM: lookup failed (%v)\n", err)
	} else if len(leads) == 0 {
		b.WriteString("CRM: no matching leads\n")
	} else {
		for _, l := range leads {
			fmt.Fprintf(&b, "CRM: lead %s [%s] (id: %s)\n", l.Name, l.StatusLabel, l.ID)
		}
	}

	insureds, err := r.ams.FindInsured(ctx, carrier.LegalName)
	if err != nil {
		fmt.Fprintf(&b, "AMS: lookup failed (%v)\n", err)
	} else if len(insureds) == 0 {
		b.WriteString("AMS: not a current insured\n")
	} else {
		for _, ins := range insureds {
			policies, err := r.ams.GetPolicies(ctx, ins.ID)
			if err != nil {
				fmt.Fprintf(&b, "AMS: %s, policy lookup failed (%v)\n", ins.CommercialName, err)
				continue
			}
			fmt.Fprintf(&b, "AMS: %s holds %d polic(ies)\n", ins.CommercialName, len(policies))
			for _, pol := range policies {
				fmt.Fprintf(&b, "  - %s %s with %s, expires %s\n", pol.Number, pol.LineOfBusiness, pol.Carrier, pol.ExpirationDate)
			}
		}
	}
	return b.String(), nil
}

// NewProspectInput names the carrier and contact for intake.
type NewProspectInput struct {
	DOTNumber    string
	ContactName  string
	ContactPhone string
	ContactEmail string
}

// NewProspect verifies a carrier in the registry, then creates
// matching CRM lead and AMS prospect records.
func (r *Runner) NewProspect(ctx context.Context, in NewProspectInput) (string, error) {
	carrier, err := r.registry.CarrierByDOT(ctx, in.DOTNumber)
	if err != nil {
		return "", fmt.Errorf("registry verification failed: %w", err)
	}
	if carrier.OperatingStatus != "ACTIVE" {
		return "", fmt.Errorf("carrier %s is %s in the registry, not creating records", carrier.LegalName, carrier.OperatingStatus)
	}

	description := fmt.Sprintf("DOT %s, %d power units, %s/%s. Added via intake workflow.",
		carrier.DOTNumber, carrier.PowerUnits, carrier.PhysicalCity, carrier.PhysicalState)
	lead, err := r.crm.CreateLead(ctx, carrier.LegalName, description, in.ContactName, in.ContactPhone, in.ContactEmail)
	if err != nil {
		return "", fmt.Errorf("CRM lead creation failed: %w", err)
	}

	first, last := splitName(in.ContactName)
	prospect, err := r.ams.CreateProspect(ctx, carrier.LegalName, first, last, in.ContactEmail, in.ContactPhone)
	if err != nil {
		return "", fmt.Errorf("AMS prospect creation failed (CRM lead %s already created): %w", lead.ID, err)
	}

	return fmt.Sprintf("Verified %s (DOT %s, ACTIVE). Created CRM lead %s and AMS prospect %s.",
		carrier.LegalName, carrier.DOTNumber, lead.ID, prospect.ID), nil
}

// RenewalCheck lists active policies expiring within the window and
// the safety standing of any carrier among them.
func (r *Runner) RenewalCheck(ctx context.Context, within time.Duration) (string, error) {
	policies, err := r.ams.ExpiringPolicies(ctx, within)
	if err != nil {
		return "", fmt.Errorf("expiring policy lookup failed: %w", err)
	}
	if len(policies) == 0 {
		return fmt.Sprintf("No policies expire within %d days.", int(within.Hours()/24)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d polic(ies) expire within %d days:\n", len(policies), int(within.Hours()/24))
	for _, pol := range policies {
		fmt.Fprintf(&b, "- %s %s with %s, expires %s (insured %s)\n",
			pol.Number, pol.LineOfBusiness, pol.Carrier, pol.ExpirationDate, pol.InsuredID)
	}
	return b.String(), nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
