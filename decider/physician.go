package decider

import (
	"context"
	"fmt"

	"github.com/careloop/icumesh/core"
)

// physician thresholds for urgent intervention: readings outside these bands
// trigger an escalation without waiting for the alert engine.
var physicianThresholds = map[string]struct{ low, high float64 }{
	"heart_rate":  {low: 50, high: 120},
	"systolic_bp": {low: 90, high: 180},
	"spo2":        {low: 92, high: 100},
}

// Physician is the rule-based physician decider: escalates on critical vitals
// and high-severity alerts, issues assessments on abnormal labs.
type Physician struct{}

// NewPhysician constructs the built-in physician decider.
func NewPhysician() *Physician { return &Physician{} }

// Role implements Decider.
func (p *Physician) Role() core.Role { return core.RolePhysician }

// Decide implements Decider.
func (p *Physician) Decide(_ context.Context, ev core.Event, snapshot *core.Patient) (Outcome, error) {
	switch e := ev.(type) {
	case core.VitalUpdateEvent:
		return p.reviewVitals(e)
	case core.AlertEvent:
		return p.reviewAlert(e)
	case core.LabResultEvent:
		return p.reviewLab(e)
	case core.MessageEvent:
		return p.reviewMessage(e, snapshot)
	}
	return Outcome{}, nil
}

func (p *Physician) reviewVitals(e core.VitalUpdateEvent) (Outcome, error) {
	for _, signal := range core.VitalSignals() {
		bounds, ok := physicianThresholds[signal]
		if !ok {
			continue
		}
		m, _ := e.Vitals.Value(signal)
		if m.Value >= bounds.low && m.Value <= bounds.high {
			continue
		}
		urgency := core.UrgencyHigh
		// Readings far outside the band are immediately life-threatening.
		if m.Value < bounds.low*0.8 || m.Value > bounds.high*1.25 {
			urgency = core.UrgencyCritical
		}
		d, err := core.NewDecision(e.Patient, core.RolePhysician, core.KindEscalation, urgency, 0.85,
			fmt.Sprintf("critical vital %s=%.0f %s, immediate review", signal, m.Value, m.Unit))
		if err != nil {
			return Outcome{}, err
		}
		d.Reasoning = "vital sign outside critical threshold band"
		return Outcome{Decision: &d}, nil
	}
	return Outcome{}, nil
}

func (p *Physician) reviewAlert(e core.AlertEvent) (Outcome, error) {
	if e.Alert.Severity < core.UrgencyHigh {
		return Outcome{}, nil
	}
	d, err := core.NewDecision(e.Alert.PatientID, core.RolePhysician, core.KindEscalation, e.Alert.Severity, 0.85,
		fmt.Sprintf("alert %s (%s=%.1f), immediate bedside review", e.Alert.Rule, e.Alert.Signal, e.Alert.Value))
	if err != nil {
		return Outcome{}, err
	}
	d.Reasoning = "high-severity alert from monitoring"
	return Outcome{Decision: &d}, nil
}

func (p *Physician) reviewLab(e core.LabResultEvent) (Outcome, error) {
	if !e.Result.Abnormal() {
		return Outcome{}, nil
	}
	d, err := core.NewDecision(e.Patient, core.RolePhysician, core.KindClinicalAssessment, core.UrgencyElevated, 0.82,
		fmt.Sprintf("abnormal %s %.1f %s (%s), repeat in 6h and correct if indicated",
			e.Result.TestName, e.Result.Value, e.Result.Unit, e.Result.Flag))
	if err != nil {
		return Outcome{}, err
	}
	d.Reasoning = "lab value outside reference range"
	return Outcome{Decision: &d}, nil
}

func (p *Physician) reviewMessage(e core.MessageEvent, _ *core.Patient) (Outcome, error) {
	// Peer escalations and interaction warnings become assessments so the
	// response is on the record.
	switch e.Message.Kind {
	case core.MsgEscalationNotice, core.MsgInteractionWarning:
		d, err := core.NewDecision(e.Message.PatientID, core.RolePhysician, core.KindClinicalAssessment, core.UrgencyHigh, 0.80,
			fmt.Sprintf("reviewing %s from %s: %s", e.Message.Kind, e.Message.Sender, e.Message.Text))
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Decision: &d}, nil
	}
	return Outcome{}, nil
}
