package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/core"
)

func TestAggregatorCountsEvents(t *testing.T) {
	b := bus.New(64)
	a := New(b)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, a.Run(context.Background()))
	}()

	d, err := core.NewDecision("p1", core.RoleNurse, core.KindNursingIntervention, core.UrgencyElevated, 0.9, "cooling measures")
	require.NoError(t, err)
	msg, err := core.NewMessage(core.RoleNurse, core.RolePhysician, core.MsgEscalationNotice, "p1", "fever above 39")
	require.NoError(t, err)

	require.NoError(t, b.Publish(core.DecisionEvent{Decision: d}))
	require.NoError(t, b.Publish(core.DecisionEvent{Decision: d}))
	require.NoError(t, b.Publish(core.MessageEvent{Message: msg}))
	require.NoError(t, b.Publish(core.AlertEvent{Alert: core.Alert{PatientID: "p1", Rule: "spo2_low"}}))
	require.NoError(t, b.Publish(core.VitalUpdateEvent{Patient: "p1", Tick: 1, Timestamp: time.Now()}))
	require.NoError(t, b.Publish(core.LabResultEvent{Patient: "p1", Timestamp: time.Now()}))

	a.RecordTick()
	a.RecordTick()

	require.Eventually(t, func() bool {
		return a.Snapshot().LabResults == 1
	}, time.Second, 5*time.Millisecond)

	b.Close()
	wg.Wait()

	s := a.Finalize()
	assert.Equal(t, 2, s.Decisions)
	assert.Equal(t, 1, s.Messages)
	assert.Equal(t, 1, s.Alerts)
	assert.Equal(t, 1, s.VitalUpdates)
	assert.Equal(t, 1, s.LabResults)
	assert.Equal(t, 2, s.Ticks)
	assert.Greater(t, s.Elapsed, time.Duration(0))
}

func TestFinalizeFreezesSummary(t *testing.T) {
	b := bus.New(16)
	a := New(b)
	b.Close()

	first := a.Finalize()
	time.Sleep(10 * time.Millisecond)
	second := a.Finalize()
	assert.Equal(t, first.Elapsed, second.Elapsed)
}

func TestDecisionsPerMinute(t *testing.T) {
	assert.InDelta(t, 12.0, perMinute(6, 30*time.Second), 1e-9)
	assert.InDelta(t, 5.0, perMinute(5, time.Minute), 1e-9)
	assert.Zero(t, perMinute(5, 0))
}
