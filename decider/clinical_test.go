package decider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/icumesh/core"
)

func vitalUpdate(patient string, hr, sbp, spo2, temp float64) core.VitalUpdateEvent {
	return core.VitalUpdateEvent{
		Patient: patient,
		Vitals: core.Vitals{
			HeartRate:   core.Measurement{Value: hr, Unit: "bpm"},
			SystolicBP:  core.Measurement{Value: sbp, Unit: "mmHg"},
			SpO2:        core.Measurement{Value: spo2, Unit: "%"},
			Temperature: core.Measurement{Value: temp, Unit: "°C"},
		},
		Timestamp: time.Now(),
	}
}

func TestPhysicianEscalatesOnCriticalVital(t *testing.T) {
	p := NewPhysician()

	out, err := p.Decide(context.Background(), vitalUpdate("p1", 135, 120, 97, 37.0), nil)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.KindEscalation, out.Decision.Kind)
	assert.Equal(t, core.UrgencyHigh, out.Decision.Urgency)
	assert.Equal(t, core.RolePhysician, out.Decision.Role)

	// Far outside the band is critical.
	out, err = p.Decide(context.Background(), vitalUpdate("p1", 175, 120, 97, 37.0), nil)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.UrgencyCritical, out.Decision.Urgency)

	// Normal vitals produce no action.
	out, err = p.Decide(context.Background(), vitalUpdate("p1", 82, 120, 98, 36.9), nil)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestPhysicianRespondsToHighSeverityAlertsOnly(t *testing.T) {
	p := NewPhysician()

	high := core.AlertEvent{Alert: core.Alert{PatientID: "p1", Rule: "spo2_low", Signal: "spo2", Value: 86, Severity: core.UrgencyCritical, Timestamp: time.Now()}}
	out, err := p.Decide(context.Background(), high, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.UrgencyCritical, out.Decision.Urgency)

	routine := core.AlertEvent{Alert: core.Alert{PatientID: "p1", Rule: "mild", Severity: core.UrgencyElevated, Timestamp: time.Now()}}
	out, err = p.Decide(context.Background(), routine, nil)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestPhysicianAssessesAbnormalLabs(t *testing.T) {
	p := NewPhysician()

	abnormal := core.LabResultEvent{Patient: "p1", Result: core.LabResult{TestName: "potassium", Value: 2.9, Unit: "mEq/L", Flag: "L"}, Timestamp: time.Now()}
	out, err := p.Decide(context.Background(), abnormal, nil)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.KindClinicalAssessment, out.Decision.Kind)

	normal := core.LabResultEvent{Patient: "p1", Result: core.LabResult{TestName: "potassium", Value: 4.0}, Timestamp: time.Now()}
	out, err = p.Decide(context.Background(), normal, nil)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestNurseFeverProtocol(t *testing.T) {
	n := NewNurse()

	out, err := n.Decide(context.Background(), vitalUpdate("p1", 80, 120, 98, 38.4), nil)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.KindNursingIntervention, out.Decision.Kind)
	assert.Nil(t, out.Message, "moderate fever is handled at the bedside")

	out, err = n.Decide(context.Background(), vitalUpdate("p1", 80, 120, 98, 39.4), nil)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	require.NotNil(t, out.Message, "high fever additionally notifies the physician")
	assert.Equal(t, core.RolePhysician, out.Message.Recipient)
	assert.Equal(t, core.MsgEscalationNotice, out.Message.Kind)

	out, err = n.Decide(context.Background(), vitalUpdate("p1", 80, 120, 98, 36.8), nil)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestPharmacistFlagsInteractionOnMedicationStart(t *testing.T) {
	ph := NewPharmacist()
	snapshot := &core.Patient{
		ID:          "p1",
		Medications: map[string]core.Medication{"Warfarin": {Name: "Warfarin"}},
	}

	start := core.MedicationChangeEvent{
		Patient:   "p1",
		Change:    core.MedicationChange{Action: core.MedicationStart, Medication: core.Medication{Name: "Aspirin"}},
		Timestamp: time.Now(),
	}
	out, err := ph.Decide(context.Background(), start, snapshot)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.KindDrugInteractionAlert, out.Decision.Kind)
	assert.Equal(t, core.UrgencyHigh, out.Decision.Urgency)
	require.NotNil(t, out.Message)
	assert.Equal(t, core.MsgInteractionWarning, out.Message.Kind)

	// No interaction partner active: nothing.
	safe := core.MedicationChangeEvent{
		Patient:   "p1",
		Change:    core.MedicationChange{Action: core.MedicationStart, Medication: core.Medication{Name: "Propofol"}},
		Timestamp: time.Now(),
	}
	out, err = ph.Decide(context.Background(), safe, snapshot)
	require.NoError(t, err)
	assert.True(t, out.Empty())

	// Stops never warn.
	stop := core.MedicationChangeEvent{
		Patient:   "p1",
		Change:    core.MedicationChange{Action: core.MedicationStop, Medication: core.Medication{Name: "Aspirin"}},
		Timestamp: time.Now(),
	}
	out, err = ph.Decide(context.Background(), stop, snapshot)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestPharmacistReviewsPeerMedicationOrders(t *testing.T) {
	ph := NewPharmacist()
	snapshot := &core.Patient{
		ID:          "p1",
		Medications: map[string]core.Medication{"Digoxin": {Name: "Digoxin"}},
	}

	order, err := core.NewDecision("p1", core.RolePhysician, core.KindClinicalAssessment, core.UrgencyElevated, 0.8, "start diuresis")
	require.NoError(t, err)
	order.Kind = core.KindMedicationOrder
	order = order.WithMedication(core.Medication{Name: "Furosemide"})
	require.NoError(t, order.Validate())

	out, err := ph.Decide(context.Background(), core.DecisionEvent{Decision: order}, snapshot)
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Contains(t, out.Decision.Summary, "Furosemide")
	assert.Contains(t, out.Decision.Summary, "Digoxin")

	// Pharmacist ignores its own decisions to avoid feedback loops.
	own := order
	own.Role = core.RolePharmacist
	out, err = ph.Decide(context.Background(), core.DecisionEvent{Decision: own}, snapshot)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestMockDeciderScriptAndObservation(t *testing.T) {
	d, err := core.NewDecision("p1", core.RoleNurse, core.KindNursingIntervention, core.UrgencyRoutine, 0.9, "reposition")
	require.NoError(t, err)

	m := NewMockDecider(core.RoleNurse).Queue(Outcome{Decision: &d})

	out, err := m.Decide(context.Background(), vitalUpdate("p1", 80, 120, 98, 37.0), nil)
	require.NoError(t, err)
	assert.Equal(t, &d, out.Decision)

	out, err = m.Decide(context.Background(), vitalUpdate("p1", 80, 120, 98, 37.0), nil)
	require.NoError(t, err)
	assert.True(t, out.Empty(), "exhausted script yields no action")

	assert.Len(t, m.Observed(), 2)
}

func TestDefaultsCoversAllRoles(t *testing.T) {
	defaults := Defaults()
	require.Len(t, defaults, 3)
	for _, role := range core.Roles() {
		require.Contains(t, defaults, role)
		assert.Equal(t, role, defaults[role].Role())
	}
}
