package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/icumesh/config"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/engine"
)

func TestServiceViews(t *testing.T) {
	cfg := config.Default()
	cfg.Patients = 2
	cfg.TickInterval = config.Duration(20 * time.Millisecond)
	cfg.Duration = config.Duration(60 * time.Millisecond)
	cfg.Bus.BacklogThreshold = 0

	e, err := engine.New(cfg)
	require.NoError(t, err)
	svc := NewService(e)

	// Before the run: idle status, empty census.
	status := svc.Status()
	assert.Equal(t, engine.StateIdle, status.State)
	assert.Equal(t, 0, status.Tick)
	assert.Empty(t, svc.Patients())

	require.NoError(t, e.Run(context.Background()))

	status = svc.Status()
	assert.Equal(t, engine.StateCompleted, status.State)
	assert.Equal(t, 3, status.Tick)
	assert.Equal(t, e.RunID(), status.RunID)
	assert.False(t, status.AsOf.IsZero())

	patients := svc.Patients()
	require.Len(t, patients, 2)

	p, err := svc.Patient(patients[0].ID)
	require.NoError(t, err)
	assert.Equal(t, patients[0].ID, p.ID)

	_, err = svc.Patient("ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	roster := svc.Roster()
	assert.Len(t, roster, 3)

	tail := svc.DecisionTail(5)
	for _, entry := range tail {
		assert.NotEmpty(t, entry.Decision.ID)
	}
	if len(tail) > 0 {
		byPatient := svc.PatientDecisions(tail[len(tail)-1].Decision.PatientID)
		assert.NotEmpty(t, byPatient)
	}
}
