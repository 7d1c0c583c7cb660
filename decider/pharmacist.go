package decider

import (
	"context"
	"fmt"
	"strings"

	"github.com/careloop/icumesh/core"
)

// Pharmacist is the rule-based pharmacist decider: reviews medication changes
// and medication orders against a drug-interaction table and warns the
// physician on matches.
type Pharmacist struct {
	// interactions maps a lowercase drug name to the lowercase names it
	// interacts with. The table is symmetric at lookup time.
	interactions map[string][]string
}

// NewPharmacist constructs the built-in pharmacist decider with the default
// interaction table.
func NewPharmacist() *Pharmacist {
	return &Pharmacist{
		interactions: map[string][]string{
			"warfarin": {"aspirin", "heparin"},
			"digoxin":  {"furosemide"},
		},
	}
}

// Role implements Decider.
func (p *Pharmacist) Role() core.Role { return core.RolePharmacist }

// Decide implements Decider.
func (p *Pharmacist) Decide(_ context.Context, ev core.Event, snapshot *core.Patient) (Outcome, error) {
	var med core.Medication
	var patientID string

	switch e := ev.(type) {
	case core.MedicationChangeEvent:
		if e.Change.Action != core.MedicationStart {
			return Outcome{}, nil
		}
		med, patientID = e.Change.Medication, e.Patient
	case core.DecisionEvent:
		if e.Decision.Kind != core.KindMedicationOrder || e.Decision.Medication == nil ||
			e.Decision.Role == core.RolePharmacist {
			return Outcome{}, nil
		}
		med, patientID = *e.Decision.Medication, e.Decision.PatientID
	default:
		return Outcome{}, nil
	}

	partner := p.findInteraction(med.Name, snapshot)
	if partner == "" {
		return Outcome{}, nil
	}

	d, err := core.NewDecision(patientID, core.RolePharmacist, core.KindDrugInteractionAlert, core.UrgencyHigh, 0.95,
		fmt.Sprintf("potential interaction: %s with active %s", med.Name, partner))
	if err != nil {
		return Outcome{}, err
	}
	d.Reasoning = "drug interaction table match"

	m, err := core.NewMessage(core.RolePharmacist, core.RolePhysician, core.MsgInteractionWarning, patientID,
		fmt.Sprintf("%s interacts with active %s, recommend review before administration", med.Name, partner))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Decision: &d, Message: &m}, nil
}

// findInteraction returns the name of an active medication the candidate
// interacts with, or "".
func (p *Pharmacist) findInteraction(candidate string, snapshot *core.Patient) string {
	if snapshot == nil {
		return ""
	}
	lc := strings.ToLower(candidate)
	for active := range snapshot.Medications {
		if strings.EqualFold(active, candidate) {
			continue
		}
		la := strings.ToLower(active)
		for _, partner := range p.interactions[lc] {
			if partner == la {
				return active
			}
		}
		for _, partner := range p.interactions[la] {
			if partner == lc {
				return active
			}
		}
	}
	return ""
}

// Defaults returns the three built-in rule-based deciders keyed by role.
func Defaults() map[core.Role]Decider {
	return map[core.Role]Decider{
		core.RolePhysician:  NewPhysician(),
		core.RoleNurse:      NewNurse(),
		core.RolePharmacist: NewPharmacist(),
	}
}
