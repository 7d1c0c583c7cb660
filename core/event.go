package core

import "time"

// EventKind discriminates the typed events carried on the bus.
type EventKind string

const (
	// EventVitalUpdate is one per-tick vitals refresh for one patient.
	EventVitalUpdate EventKind = "vital_update"
	// EventLabResult is a new laboratory result for one patient.
	EventLabResult EventKind = "lab_result"
	// EventMedicationChange is a mutation of a patient's active medications.
	EventMedicationChange EventKind = "medication_change"
	// EventMessage is an inter-agent communication.
	EventMessage EventKind = "message"
	// EventDecision is a clinical decision emitted by an agent role.
	EventDecision EventKind = "decision"
	// EventAlert is a threshold breach emitted by the alert engine.
	EventAlert EventKind = "alert"
)

// Event is the unit of communication on the bus. Events are immutable once
// published. Concrete types are small value structs so subscribers receive
// independent copies; only Patient snapshots are shared, and those are deep
// copies handed out by the store.
type Event interface {
	// EventKind discriminates the concrete type.
	EventKind() EventKind
	// PatientID is the subject patient, or "" for broadcast messages with no
	// patient context.
	PatientID() string
	// OccurredAt is the event's own timestamp (not delivery time).
	OccurredAt() time.Time
}

// VitalUpdateEvent is produced exactly once per tick per patient by the
// clock after the store applied the feed's refresh.
type VitalUpdateEvent struct {
	Patient   string
	Vitals    Vitals
	Tick      int
	Timestamp time.Time
}

// EventKind implements Event.
func (e VitalUpdateEvent) EventKind() EventKind { return EventVitalUpdate }

// PatientID implements Event.
func (e VitalUpdateEvent) PatientID() string { return e.Patient }

// OccurredAt implements Event.
func (e VitalUpdateEvent) OccurredAt() time.Time { return e.Timestamp }

// LabResultEvent carries one new lab result.
type LabResultEvent struct {
	Patient   string
	Result    LabResult
	Tick      int
	Timestamp time.Time
}

// EventKind implements Event.
func (e LabResultEvent) EventKind() EventKind { return EventLabResult }

// PatientID implements Event.
func (e LabResultEvent) PatientID() string { return e.Patient }

// OccurredAt implements Event.
func (e LabResultEvent) OccurredAt() time.Time { return e.Timestamp }

// MedicationChangeEvent carries one applied medication change.
type MedicationChangeEvent struct {
	Patient   string
	Change    MedicationChange
	Tick      int
	Timestamp time.Time
}

// EventKind implements Event.
func (e MedicationChangeEvent) EventKind() EventKind { return EventMedicationChange }

// PatientID implements Event.
func (e MedicationChangeEvent) PatientID() string { return e.Patient }

// OccurredAt implements Event.
func (e MedicationChangeEvent) OccurredAt() time.Time { return e.Timestamp }

// MessageEvent wraps an inter-agent Message for bus delivery.
type MessageEvent struct {
	Message Message
}

// EventKind implements Event.
func (e MessageEvent) EventKind() EventKind { return EventMessage }

// PatientID implements Event.
func (e MessageEvent) PatientID() string { return e.Message.PatientID }

// OccurredAt implements Event.
func (e MessageEvent) OccurredAt() time.Time { return e.Message.Timestamp }

// DecisionEvent wraps an agent Decision for bus delivery.
type DecisionEvent struct {
	Decision Decision
}

// EventKind implements Event.
func (e DecisionEvent) EventKind() EventKind { return EventDecision }

// PatientID implements Event.
func (e DecisionEvent) PatientID() string { return e.Decision.PatientID }

// OccurredAt implements Event.
func (e DecisionEvent) OccurredAt() time.Time { return e.Decision.Timestamp }

// AlertEvent wraps an Alert for bus delivery.
type AlertEvent struct {
	Alert Alert
}

// EventKind implements Event.
func (e AlertEvent) EventKind() EventKind { return EventAlert }

// PatientID implements Event.
func (e AlertEvent) PatientID() string { return e.Alert.PatientID }

// OccurredAt implements Event.
func (e AlertEvent) OccurredAt() time.Time { return e.Alert.Timestamp }
