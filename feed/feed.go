// Package feed defines the data-feed collaborator producing patient
// admissions, vital refreshes, lab results and medication changes, plus the
// built-in Synthetic implementation used when no external feed is attached.
package feed

import (
	"time"

	"github.com/careloop/icumesh/core"
)

// Feed produces the clinical data driving a simulation run. The clock calls
// it from a single goroutine; implementations only need to be safe for that.
type Feed interface {
	// GeneratePatient produces one admission-ready patient.
	GeneratePatient() *core.Patient

	// GenerateVitals produces the next complete vitals record for a patient,
	// typically drifting from the previous one.
	GenerateVitals(p *core.Patient, now time.Time) core.Vitals

	// GenerateLab produces one lab result for a patient.
	GenerateLab(p *core.Patient, now time.Time) core.LabResult

	// GenerateMedication produces the next medication change for a patient,
	// or nil when there is nothing to change.
	GenerateMedication(p *core.Patient, now time.Time) *core.MedicationChange
}
