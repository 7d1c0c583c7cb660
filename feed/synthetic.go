package feed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/careloop/icumesh/core"
)

// signalRange is the normal band a synthetic vital drifts around.
type signalRange struct {
	min, max float64
	unit     string
	decimals int
}

var vitalRanges = map[string]signalRange{
	"heart_rate":       {min: 60, max: 100, unit: "bpm"},
	"systolic_bp":      {min: 90, max: 140, unit: "mmHg"},
	"diastolic_bp":     {min: 60, max: 90, unit: "mmHg"},
	"respiratory_rate": {min: 12, max: 20, unit: "/min"},
	"spo2":             {min: 95, max: 100, unit: "%"},
	"temperature":      {min: 36.1, max: 37.2, unit: "°C", decimals: 1},
}

var labRanges = map[string]signalRange{
	"glucose":    {min: 70, max: 140, unit: "mg/dL", decimals: 1},
	"sodium":     {min: 135, max: 145, unit: "mEq/L"},
	"potassium":  {min: 3.5, max: 5.0, unit: "mEq/L", decimals: 1},
	"creatinine": {min: 0.6, max: 1.3, unit: "mg/dL", decimals: 1},
	"hemoglobin": {min: 12.0, max: 16.0, unit: "g/dL", decimals: 1},
}

// catalogEntry is one medication the feed can start on a patient.
type catalogEntry struct {
	name     string
	class    string
	doseMin  float64
	doseMax  float64
	doseUnit string
}

var medicationCatalog = []catalogEntry{
	{name: "Norepinephrine", class: "vasopressor", doseMin: 0.1, doseMax: 2.0, doseUnit: "mcg/kg/min"},
	{name: "Propofol", class: "sedative", doseMin: 10, doseMax: 50, doseUnit: "mcg/kg/min"},
	{name: "Fentanyl", class: "analgesic", doseMin: 0.5, doseMax: 5.0, doseUnit: "mcg/kg/hr"},
	{name: "Midazolam", class: "sedative", doseMin: 0.02, doseMax: 0.1, doseUnit: "mg/kg/hr"},
	{name: "Furosemide", class: "diuretic", doseMin: 20, doseMax: 80, doseUnit: "mg"},
}

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Carol", "David", "Emma", "Frank"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller"}
	diagnoses  = []string{
		"Sepsis", "Pneumonia", "ARDS", "Heart Failure", "Diabetic Ketoacidosis",
		"Post-operative monitoring", "Trauma", "Stroke", "Myocardial Infarction",
	}
	severities = []string{"stable", "moderate", "critical"}
	allergies  = [][]string{nil, {"Penicillin"}, {"Latex"}, {"Contrast"}}
	histories  = [][]string{{"Hypertension"}, {"Diabetes", "Hypertension"}, {"COPD"}, nil}
)

// Synthetic generates plausible ICU data without external sources. Vitals
// drift from the previous reading inside a widened band; critical patients
// get wider, threshold-crossing variance. Labs are normal 80% of the time and
// flagged L/H otherwise. Not safe for concurrent use; the clock is the only
// caller.
type Synthetic struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last map[string]map[string]float64
}

// NewSynthetic constructs a Synthetic feed. The seed fixes the random stream
// so runs are reproducible.
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{
		rng:  rand.New(rand.NewSource(seed)),
		last: make(map[string]map[string]float64),
	}
}

// GeneratePatient implements Feed.
func (s *Synthetic) GeneratePatient() *core.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "PATIENT_" + strings.ToUpper(core.NewID()[:8])
	now := time.Now().UTC()

	return &core.Patient{
		ID:  id,
		MRN: fmt.Sprintf("MRN%06d", 100000+s.rng.Intn(900000)),
		Demographics: core.Demographics{
			FirstName: firstNames[s.rng.Intn(len(firstNames))],
			LastName:  lastNames[s.rng.Intn(len(lastNames))],
			Age:       18 + s.rng.Intn(73),
			Sex:       []string{"male", "female"}[s.rng.Intn(2)],
			WeightKG:  round(50+s.rng.Float64()*70, 1),
			HeightCM:  150 + s.rng.Intn(51),
			Admitted:  now.Add(-time.Duration(1+s.rng.Intn(72)) * time.Hour),
			Diagnosis: diagnoses[s.rng.Intn(len(diagnoses))],
			Severity:  severities[s.rng.Intn(len(severities))],
			Allergies: allergies[s.rng.Intn(len(allergies))],
			History:   histories[s.rng.Intn(len(histories))],
		},
		Labs:        make(map[string]core.LabResult),
		Medications: make(map[string]core.Medication),
		Updated:     now,
	}
}

// GenerateVitals implements Feed.
func (s *Synthetic) GenerateVitals(p *core.Patient, now time.Time) core.Vitals {
	s.mu.Lock()
	defer s.mu.Unlock()

	critical := p.Demographics.Severity == "critical"
	values := make(map[string]float64, len(vitalRanges))

	// Iterate in the stable signal order so a fixed seed replays the same
	// vitals stream.
	for _, signal := range core.VitalSignals() {
		r := vitalRanges[signal]
		var v float64
		if critical {
			v = s.criticalValue(signal, r)
		} else {
			v = s.driftedValue(p.ID, signal, r)
		}
		v = round(v, r.decimals)
		values[signal] = v
	}

	if s.last[p.ID] == nil {
		s.last[p.ID] = make(map[string]float64, len(vitalRanges))
	}
	for signal, v := range values {
		s.last[p.ID][signal] = v
	}

	m := func(signal string) core.Measurement {
		return core.Measurement{Value: values[signal], Unit: vitalRanges[signal].unit, Taken: now}
	}
	return core.Vitals{
		HeartRate:       m("heart_rate"),
		SystolicBP:      m("systolic_bp"),
		DiastolicBP:     m("diastolic_bp"),
		RespiratoryRate: m("respiratory_rate"),
		SpO2:            m("spo2"),
		Temperature:     m("temperature"),
	}
}

// criticalValue samples wide, possibly threshold-crossing bands for unstable
// patients.
func (s *Synthetic) criticalValue(signal string, r signalRange) float64 {
	switch signal {
	case "heart_rate":
		return s.uniform(50, 150)
	case "systolic_bp":
		return s.uniform(70, 180)
	case "spo2":
		return s.uniform(88, 98)
	default:
		return s.uniform(r.min*0.8, r.max*1.2)
	}
}

// driftedValue moves a stable patient's signal a bounded step from its last
// reading, clamped to 0.7x..1.3x the normal band.
func (s *Synthetic) driftedValue(patientID, signal string, r signalRange) float64 {
	last, ok := s.last[patientID][signal]
	if !ok {
		return s.uniform(r.min, r.max)
	}
	step := (s.rng.Float64()*0.2 - 0.1) * (r.max - r.min)
	v := last + step
	return math.Max(r.min*0.7, math.Min(r.max*1.3, v))
}

// GenerateLab implements Feed. Results are normal 80% of the time; abnormal
// ones split evenly between low (0.5x..0.9x min) and high (1.1x..1.5x max)
// with the matching report flag.
func (s *Synthetic) GenerateLab(p *core.Patient, now time.Time) core.LabResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := labNames()
	name := names[s.rng.Intn(len(names))]
	r := labRanges[name]

	var value float64
	var flag string
	switch {
	case s.rng.Float64() < 0.8:
		value = s.uniform(r.min, r.max)
	case s.rng.Float64() < 0.5:
		value = s.uniform(r.min*0.5, r.min*0.9)
		flag = "L"
	default:
		value = s.uniform(r.max*1.1, r.max*1.5)
		flag = "H"
	}

	return core.LabResult{
		TestName:       name,
		Value:          round(value, r.decimals),
		Unit:           r.unit,
		ReferenceRange: fmt.Sprintf("%g-%g", r.min, r.max),
		Flag:           flag,
		Taken:          now,
	}
}

// GenerateMedication implements Feed. Patients with room start a catalog
// medication they are not already on; occasionally an active one is stopped.
func (s *Synthetic) GenerateMedication(p *core.Patient, now time.Time) *core.MedicationChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p.Medications) > 0 && s.rng.Float64() < 0.3 {
		for name := range p.Medications {
			med := p.Medications[name]
			return &core.MedicationChange{Action: core.MedicationStop, Medication: med}
		}
	}

	var available []catalogEntry
	for _, entry := range medicationCatalog {
		if !p.OnMedication(entry.name) {
			available = append(available, entry)
		}
	}
	if len(available) == 0 {
		return nil
	}

	entry := available[s.rng.Intn(len(available))]
	med := core.Medication{
		ID:         "MED_" + strings.ToUpper(core.NewID()[:8]),
		Name:       entry.name,
		Class:      entry.class,
		Dose:       round(s.uniform(entry.doseMin, entry.doseMax), 2),
		DoseUnit:   entry.doseUnit,
		Route:      []string{"IV", "PO"}[s.rng.Intn(2)],
		Frequency:  []string{"continuous", "q4h", "q6h"}[s.rng.Intn(3)],
		Started:    now,
		Prescriber: fmt.Sprintf("DR_%04d", 1000+s.rng.Intn(9000)),
	}
	return &core.MedicationChange{Action: core.MedicationStart, Medication: med}
}

func (s *Synthetic) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func labNames() []string {
	return []string{"glucose", "sodium", "potassium", "creatinine", "hemoglobin"}
}

func round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
