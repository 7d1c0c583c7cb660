package decider

import (
	"context"
	"fmt"

	"github.com/careloop/icumesh/core"
)

// Fever thresholds for the nursing protocol. Above feverEscalationC the nurse
// additionally notifies the physician.
const (
	feverInterventionC = 38.0
	feverEscalationC   = 39.0
)

// Nurse is the rule-based nursing decider: monitors vitals for bedside
// interventions and escalates persistent deterioration to the physician.
type Nurse struct{}

// NewNurse constructs the built-in nurse decider.
func NewNurse() *Nurse { return &Nurse{} }

// Role implements Decider.
func (n *Nurse) Role() core.Role { return core.RoleNurse }

// Decide implements Decider.
func (n *Nurse) Decide(_ context.Context, ev core.Event, _ *core.Patient) (Outcome, error) {
	e, ok := ev.(core.VitalUpdateEvent)
	if !ok {
		return Outcome{}, nil
	}
	temp := e.Vitals.Temperature.Value
	if temp <= feverInterventionC {
		return Outcome{}, nil
	}

	d, err := core.NewDecision(e.Patient, core.RoleNurse, core.KindNursingIntervention, core.UrgencyElevated, 0.90,
		fmt.Sprintf("fever management at %.1f°C: administer antipyretic, cooling measures", temp))
	if err != nil {
		return Outcome{}, err
	}
	d.Reasoning = "standard nursing fever protocol"
	out := Outcome{Decision: &d}

	if temp > feverEscalationC {
		m, err := core.NewMessage(core.RoleNurse, core.RolePhysician, core.MsgEscalationNotice, e.Patient,
			fmt.Sprintf("temperature %.1f°C despite cooling, please review", temp))
		if err != nil {
			return Outcome{}, err
		}
		out.Message = &m
	}
	return out, nil
}
