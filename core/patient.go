package core

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for patients, decisions, messages and
// alerts.
func NewID() string { return uuid.NewString() }

// Measurement is a single timestamped vital-sign reading.
type Measurement struct {
	Value float64   `json:"value"`
	Unit  string    `json:"unit"`
	Taken time.Time `json:"taken"`
}

// Vitals is one complete vitals record for a patient. All fields are refreshed
// together once per tick by the data feed; agents only ever see copies.
type Vitals struct {
	HeartRate       Measurement `json:"heart_rate"`
	SystolicBP      Measurement `json:"systolic_bp"`
	DiastolicBP     Measurement `json:"diastolic_bp"`
	RespiratoryRate Measurement `json:"respiratory_rate"`
	SpO2            Measurement `json:"spo2"`
	Temperature     Measurement `json:"temperature"`
}

// Value returns the reading for a named vital signal. The names match the
// rule configuration vocabulary ("heart_rate", "systolic_bp", ...).
func (v Vitals) Value(signal string) (Measurement, bool) {
	switch signal {
	case "heart_rate":
		return v.HeartRate, true
	case "systolic_bp":
		return v.SystolicBP, true
	case "diastolic_bp":
		return v.DiastolicBP, true
	case "respiratory_rate":
		return v.RespiratoryRate, true
	case "spo2":
		return v.SpO2, true
	case "temperature":
		return v.Temperature, true
	}
	return Measurement{}, false
}

// VitalSignals lists the signal names understood by Vitals.Value, in a stable
// order used for rule evaluation.
func VitalSignals() []string {
	return []string{"heart_rate", "systolic_bp", "diastolic_bp", "respiratory_rate", "spo2", "temperature"}
}

// LabResult is a single laboratory test result. Flag carries the abnormality
// marker used on lab reports: "" (normal), "L" (low) or "H" (high).
type LabResult struct {
	TestName       string    `json:"test_name"`
	Value          float64   `json:"value"`
	Unit           string    `json:"unit"`
	ReferenceRange string    `json:"reference_range"`
	Flag           string    `json:"flag,omitempty"`
	Taken          time.Time `json:"taken"`
}

// Abnormal reports whether the result fell outside its reference range.
func (l LabResult) Abnormal() bool { return l.Flag != "" }

// Medication is an active medication order for a patient.
type Medication struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Class      string    `json:"class"`
	Dose       float64   `json:"dose"`
	DoseUnit   string    `json:"dose_unit"`
	Route      string    `json:"route"`
	Frequency  string    `json:"frequency"`
	Started    time.Time `json:"started"`
	Prescriber string    `json:"prescriber,omitempty"`
}

// MedicationAction distinguishes the two state transitions a medication
// change can apply.
type MedicationAction string

const (
	// MedicationStart adds a medication to the patient's active set.
	MedicationStart MedicationAction = "start"
	// MedicationStop removes a medication from the patient's active set.
	MedicationStop MedicationAction = "stop"
)

// MedicationChange describes one mutation of a patient's active-medication
// set, produced either by the data feed or by an authoritative medication
// order committed by the coordinator.
type MedicationChange struct {
	Action     MedicationAction `json:"action"`
	Medication Medication       `json:"medication"`
}

// Demographics is the immutable admission snapshot of a patient. It is set
// once at admission and never mutated afterwards.
type Demographics struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Age       int       `json:"age"`
	Sex       string    `json:"sex"`
	WeightKG  float64   `json:"weight_kg"`
	HeightCM  int       `json:"height_cm"`
	Admitted  time.Time `json:"admitted"`
	Diagnosis string    `json:"diagnosis"`
	Severity  string    `json:"severity"`
	Allergies []string  `json:"allergies,omitempty"`
	History   []string  `json:"history,omitempty"`
}

// Patient holds the full clinical state for one ICU patient. The patient
// store owns the single mutable instance; every read hands out a Clone so a
// reader can never observe a half-applied update.
type Patient struct {
	ID           string                `json:"id"`
	MRN          string                `json:"mrn"`
	Demographics Demographics          `json:"demographics"`
	Vitals       Vitals                `json:"vitals"`
	Labs         map[string]LabResult  `json:"labs"`
	Medications  map[string]Medication `json:"medications"`
	Updated      time.Time             `json:"updated"`
}

// Clone returns a deep copy safe for independent use by agents and queries.
func (p *Patient) Clone() *Patient {
	clone := *p
	clone.Labs = make(map[string]LabResult, len(p.Labs))
	for k, v := range p.Labs {
		clone.Labs[k] = v
	}
	clone.Medications = make(map[string]Medication, len(p.Medications))
	for k, v := range p.Medications {
		clone.Medications[k] = v
	}
	clone.Demographics.Allergies = append([]string(nil), p.Demographics.Allergies...)
	clone.Demographics.History = append([]string(nil), p.Demographics.History...)
	return &clone
}

// OnMedication reports whether a medication with the given name is active.
// Matching is by exact name as stored by the feed or coordinator.
func (p *Patient) OnMedication(name string) bool {
	_, ok := p.Medications[name]
	return ok
}
