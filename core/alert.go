package core

import (
	"fmt"
	"time"
)

// Alert is a threshold breach detected by the alert engine. Severity reuses
// the Urgency ordering. Alerts are immutable once published; suppression of
// repeats happens before emission via the dedup key and cooldown table.
type Alert struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Rule      string    `json:"rule"`
	Signal    string    `json:"signal"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Bucket    float64   `json:"bucket"`
	Severity  Urgency   `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// DedupKey identifies "the same alert" for cooldown suppression: same
// patient, same rule, same value bucket. Two breaches mapping to one key
// within the cooldown window emit a single alert.
func (a Alert) DedupKey() string {
	return fmt.Sprintf("%s|%s|%g", a.PatientID, a.Rule, a.Bucket)
}
