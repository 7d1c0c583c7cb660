package core

import (
	"fmt"
	"time"
)

// Urgency is the totally ordered classification shared by decisions and
// alerts: routine < elevated < high < critical. The ordering drives conflict
// arbitration and alert sorting, so values must stay comparable with <.
type Urgency int

const (
	// UrgencyRoutine is scheduled, non-time-critical work.
	UrgencyRoutine Urgency = iota
	// UrgencyElevated needs attention within the current shift.
	UrgencyElevated
	// UrgencyHigh needs prompt attention.
	UrgencyHigh
	// UrgencyCritical needs immediate intervention.
	UrgencyCritical
)

// String returns the lowercase wire name of the urgency level.
func (u Urgency) String() string {
	switch u {
	case UrgencyRoutine:
		return "routine"
	case UrgencyElevated:
		return "elevated"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether u is one of the four defined levels.
func (u Urgency) Valid() bool { return u >= UrgencyRoutine && u <= UrgencyCritical }

// ParseUrgency converts a wire name back into an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	switch s {
	case "routine":
		return UrgencyRoutine, nil
	case "elevated":
		return UrgencyElevated, nil
	case "high":
		return UrgencyHigh, nil
	case "critical":
		return UrgencyCritical, nil
	}
	return 0, fmt.Errorf("unknown urgency %q", s)
}

// DecisionKind enumerates the tagged decision variants. The set mirrors the
// recommendation types of the clinical roles.
type DecisionKind string

const (
	// KindClinicalAssessment is a physician assessment of patient state.
	KindClinicalAssessment DecisionKind = "clinical_assessment"
	// KindMedicationOrder starts or stops a medication. Requires Medication.
	KindMedicationOrder DecisionKind = "medication_order"
	// KindEscalation requests immediate intervention for a deteriorating patient.
	KindEscalation DecisionKind = "escalation"
	// KindNursingIntervention is a bedside care action (e.g. fever management).
	KindNursingIntervention DecisionKind = "nursing_intervention"
	// KindDrugInteractionAlert flags a potential interaction in the active set.
	KindDrugInteractionAlert DecisionKind = "drug_interaction_alert"
)

// Valid reports whether the kind is a known variant.
func (k DecisionKind) Valid() bool {
	switch k {
	case KindClinicalAssessment, KindMedicationOrder, KindEscalation,
		KindNursingIntervention, KindDrugInteractionAlert:
		return true
	}
	return false
}

// Directive reports whether the kind prescribes an action on the patient
// rather than recording an observation. Two directive decisions for the same
// patient in the same tick window conflict and go through arbitration.
func (k DecisionKind) Directive() bool {
	return k == KindMedicationOrder || k == KindEscalation
}

// ConflictsWith reports whether two decision kinds are mutually conflicting
// when targeting the same patient within one tick window.
func (k DecisionKind) ConflictsWith(other DecisionKind) bool {
	return k.Directive() && other.Directive()
}

// Decision is one clinical decision emitted by an agent role. Decisions are
// immutable values; once committed to the coordinator's log they are never
// mutated or deleted, only flagged by arbitration metadata held alongside.
type Decision struct {
	ID         string       `json:"id"`
	PatientID  string       `json:"patient_id"`
	Role       Role         `json:"role"`
	Kind       DecisionKind `json:"kind"`
	Urgency    Urgency      `json:"urgency"`
	Confidence float64      `json:"confidence"`
	Summary    string       `json:"summary"`
	Reasoning  string       `json:"reasoning,omitempty"`
	Medication *Medication  `json:"medication,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// NewDecision constructs a validated Decision. Construction is the only
// gate: a Decision that exists is well formed. Required fields per variant:
// every kind needs a patient, role, valid urgency, confidence in [0,1] and a
// summary; medication orders additionally need the medication payload.
func NewDecision(patientID string, role Role, kind DecisionKind, urgency Urgency, confidence float64, summary string) (Decision, error) {
	d := Decision{
		ID:         NewID(),
		PatientID:  patientID,
		Role:       role,
		Kind:       kind,
		Urgency:    urgency,
		Confidence: confidence,
		Summary:    summary,
		Timestamp:  time.Now().UTC(),
	}
	return d, d.validate()
}

// WithMedication attaches the medication payload required by medication
// orders. Returns a copy; the receiver is unchanged.
func (d Decision) WithMedication(m Medication) Decision {
	d.Medication = &m
	return d
}

// Validate re-checks the variant invariants, including the per-kind required
// fields. The agent runtime calls this before publishing decisions produced
// by external deciders, which are not trusted to use the constructor.
func (d Decision) Validate() error { return d.validate() }

func (d Decision) validate() error {
	if d.PatientID == "" {
		return fmt.Errorf("decision: patient id is required")
	}
	if !d.Role.Valid() {
		return fmt.Errorf("decision: invalid role %q", d.Role)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("decision: invalid kind %q", d.Kind)
	}
	if !d.Urgency.Valid() {
		return fmt.Errorf("decision: invalid urgency %d", d.Urgency)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("decision: confidence %.3f outside [0,1]", d.Confidence)
	}
	if d.Summary == "" {
		return fmt.Errorf("decision: summary is required")
	}
	if d.Kind == KindMedicationOrder && d.Medication == nil {
		return fmt.Errorf("decision: medication order requires a medication")
	}
	return nil
}
