package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/patient"
)

func newStoreWithPatient(t *testing.T, id string) *patient.Store {
	t.Helper()
	store := patient.NewStore()
	require.NoError(t, store.Admit(&core.Patient{ID: id}))
	return store
}

func directive(t *testing.T, patientID string, role core.Role, urgency core.Urgency, ts time.Time) core.Decision {
	t.Helper()
	d, err := core.NewDecision(patientID, role, core.KindEscalation, urgency, 0.8, "escalate care")
	require.NoError(t, err)
	d.Timestamp = ts
	return d
}

func order(t *testing.T, patientID string, role core.Role, urgency core.Urgency, med string, ts time.Time) core.Decision {
	t.Helper()
	d, err := core.NewDecision(patientID, role, core.KindMedicationOrder, urgency, 0.8, "start "+med)
	require.NoError(t, err)
	d = d.WithMedication(core.Medication{ID: core.NewID(), Name: med, Class: "vasopressor"})
	d.Timestamp = ts
	return d
}

func TestArbitrationPicksHigherUrgency(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	high := directive(t, "p1", core.RoleNurse, core.UrgencyHigh, base.Add(10*time.Millisecond))
	critical := directive(t, "p1", core.RolePhysician, core.UrgencyCritical, base.Add(12*time.Millisecond))

	// Arrival order must not matter.
	for name, arrival := range map[string][]core.Decision{
		"high first":     {high, critical},
		"critical first": {critical, high},
	} {
		t.Run(name, func(t *testing.T) {
			store := newStoreWithPatient(t, "p1")
			c, err := New(store, bus.New(16))
			require.NoError(t, err)

			for _, d := range arrival {
				c.Submit(d)
			}
			c.FlushAll()

			entries := c.PatientLog("p1")
			require.Len(t, entries, 2)

			byID := map[string]Entry{}
			for _, e := range entries {
				byID[e.Decision.ID] = e
			}
			assert.True(t, byID[critical.ID].Authoritative)
			assert.False(t, byID[critical.ID].Superseded)
			assert.True(t, byID[high.ID].Superseded)
			assert.Equal(t, critical.ID, byID[high.ID].SupersededBy)
		})
	}
}

func TestArbitrationTieBreaks(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("earlier timestamp wins at equal urgency", func(t *testing.T) {
		store := newStoreWithPatient(t, "p1")
		c, err := New(store, bus.New(16))
		require.NoError(t, err)

		early := directive(t, "p1", core.RoleNurse, core.UrgencyHigh, base.Add(time.Millisecond))
		late := directive(t, "p1", core.RolePhysician, core.UrgencyHigh, base.Add(50*time.Millisecond))
		c.Submit(late)
		c.Submit(early)
		c.FlushAll()

		for _, e := range c.PatientLog("p1") {
			if e.Decision.ID == early.ID {
				assert.True(t, e.Authoritative)
			} else {
				assert.True(t, e.Superseded)
			}
		}
	})

	t.Run("role priority breaks exact ties", func(t *testing.T) {
		store := newStoreWithPatient(t, "p1")
		c, err := New(store, bus.New(16))
		require.NoError(t, err)

		ts := base.Add(time.Millisecond)
		nurse := directive(t, "p1", core.RoleNurse, core.UrgencyHigh, ts)
		physician := directive(t, "p1", core.RolePhysician, core.UrgencyHigh, ts)
		c.Submit(nurse)
		c.Submit(physician)
		c.FlushAll()

		for _, e := range c.PatientLog("p1") {
			if e.Decision.Role == core.RolePhysician {
				assert.True(t, e.Authoritative)
			} else {
				assert.True(t, e.Superseded)
			}
		}
	})

	t.Run("configured priority overrides default", func(t *testing.T) {
		store := newStoreWithPatient(t, "p1")
		c, err := New(store, bus.New(16), func(o *Options) {
			o.RolePriority = []core.Role{core.RoleNurse, core.RolePhysician, core.RolePharmacist}
		})
		require.NoError(t, err)

		ts := base.Add(time.Millisecond)
		c.Submit(directive(t, "p1", core.RoleNurse, core.UrgencyHigh, ts))
		c.Submit(directive(t, "p1", core.RolePhysician, core.UrgencyHigh, ts))
		c.FlushAll()

		for _, e := range c.PatientLog("p1") {
			if e.Decision.Role == core.RoleNurse {
				assert.True(t, e.Authoritative)
			}
		}
	})
}

func TestNonDirectiveDecisionsNeverConflict(t *testing.T) {
	store := newStoreWithPatient(t, "p1")
	c, err := New(store, bus.New(16))
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, err := core.NewDecision("p1", core.RoleNurse, core.KindNursingIntervention, core.UrgencyElevated, 0.9, "cooling measures")
	require.NoError(t, err)
	a.Timestamp = ts
	b, err := core.NewDecision("p1", core.RolePhysician, core.KindClinicalAssessment, core.UrgencyRoutine, 0.7, "stable overnight")
	require.NoError(t, err)
	b.Timestamp = ts

	c.Submit(a)
	c.Submit(b)

	entries := c.PatientLog("p1")
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, e.Authoritative)
		assert.False(t, e.Superseded)
	}
}

func TestSeparateWindowsDoNotConflict(t *testing.T) {
	store := newStoreWithPatient(t, "p1")
	c, err := New(store, bus.New(16), func(o *Options) {
		o.Window = time.Second
	})
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := directive(t, "p1", core.RoleNurse, core.UrgencyHigh, base.Add(100*time.Millisecond))
	second := directive(t, "p1", core.RolePhysician, core.UrgencyCritical, base.Add(1500*time.Millisecond))

	c.Submit(first)
	c.Submit(second) // rolls the window, committing first
	c.FlushAll()

	for _, e := range c.PatientLog("p1") {
		assert.True(t, e.Authoritative)
		assert.False(t, e.Superseded)
	}
}

func TestSeparatePatientsDoNotConflict(t *testing.T) {
	store := patient.NewStore()
	require.NoError(t, store.Admit(&core.Patient{ID: "p1"}))
	require.NoError(t, store.Admit(&core.Patient{ID: "p2"}))
	c, err := New(store, bus.New(16))
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Submit(directive(t, "p1", core.RoleNurse, core.UrgencyHigh, ts))
	c.Submit(directive(t, "p2", core.RolePhysician, core.UrgencyHigh, ts))
	c.FlushAll()

	assert.True(t, c.PatientLog("p1")[0].Authoritative)
	assert.True(t, c.PatientLog("p2")[0].Authoritative)
}

func TestAuthoritativeOrderAppliedToStore(t *testing.T) {
	store := newStoreWithPatient(t, "p1")
	b := bus.New(16)
	sink := b.Subscribe("sink", bus.MatchKinds(core.EventMedicationChange))

	c, err := New(store, b)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	losing := order(t, "p1", core.RoleNurse, core.UrgencyElevated, "Furosemide", ts)
	winning := order(t, "p1", core.RolePhysician, core.UrgencyCritical, "Norepinephrine", ts.Add(time.Millisecond))
	c.Submit(losing)
	c.Submit(winning)
	c.FlushAll()

	p, err := store.Get("p1")
	require.NoError(t, err)
	assert.True(t, p.OnMedication("Norepinephrine"))
	assert.False(t, p.OnMedication("Furosemide"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := sink.Next(ctx)
	require.NoError(t, err)
	mc, ok := ev.(core.MedicationChangeEvent)
	require.True(t, ok)
	assert.Equal(t, "Norepinephrine", mc.Change.Medication.Name)
	assert.Equal(t, "physician", mc.Change.Medication.Prescriber)
}

func TestLogIsAppendOnly(t *testing.T) {
	store := newStoreWithPatient(t, "p1")
	c, err := New(store, bus.New(16))
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Submit(directive(t, "p1", core.RoleNurse, core.UrgencyHigh, ts))
	c.Submit(directive(t, "p1", core.RolePhysician, core.UrgencyCritical, ts))
	c.FlushAll()

	before := c.Count()
	tail := c.Tail(0)
	require.Len(t, tail, before)

	// Mutating the returned slice must not affect the log.
	tail[0].Superseded = !tail[0].Superseded
	fresh := c.Tail(0)
	assert.NotEqual(t, tail[0].Superseded, fresh[0].Superseded)

	c.Submit(directive(t, "p1", core.RoleNurse, core.UrgencyRoutine, ts.Add(time.Hour)))
	c.FlushAll()
	assert.Equal(t, before+1, c.Count())
}

func TestRunConsumesDecisionEvents(t *testing.T) {
	store := newStoreWithPatient(t, "p1")
	b := bus.New(16)
	c, err := New(store, b)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Run(context.Background()))
	}()

	d, err := core.NewDecision("p1", core.RoleNurse, core.KindNursingIntervention, core.UrgencyElevated, 0.9, "reposition")
	require.NoError(t, err)
	require.NoError(t, b.Publish(core.DecisionEvent{Decision: d}))

	require.Eventually(t, func() bool {
		return c.Count() == 1
	}, time.Second, 5*time.Millisecond)

	b.Close()
	wg.Wait()
	assert.True(t, c.Tail(1)[0].Authoritative)
}

func TestTailWindowAccessors(t *testing.T) {
	store := newStoreWithPatient(t, "p1")
	c, err := New(store, bus.New(16))
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d, err := core.NewDecision("p1", core.RoleNurse, core.KindNursingIntervention, core.UrgencyRoutine, 0.9, "turn patient")
		require.NoError(t, err)
		d.Timestamp = ts.Add(time.Duration(i) * time.Minute)
		c.Submit(d)
	}

	assert.Len(t, c.Tail(3), 3)
	assert.Len(t, c.Tail(100), 5)
	assert.Len(t, c.PatientLog("p1"), 5)
	assert.Empty(t, c.PatientLog("ghost"))
}
