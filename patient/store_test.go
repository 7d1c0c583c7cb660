package patient

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/icumesh/core"
)

func admitted(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.Admit(&core.Patient{ID: id, Demographics: core.Demographics{Severity: "stable"}}))
}

func TestAdmitAndGetReturnsSnapshot(t *testing.T) {
	s := NewStore()
	admitted(t, s, "p1")

	snap, err := s.Get("p1")
	require.NoError(t, err)

	// Mutating the snapshot must not reach the store.
	snap.Medications["Propofol"] = core.Medication{Name: "Propofol"}
	snap.Vitals.HeartRate.Value = 999

	again, err := s.Get("p1")
	require.NoError(t, err)
	assert.Empty(t, again.Medications)
	assert.Zero(t, again.Vitals.HeartRate.Value)
}

func TestAdmitRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	s := NewStore()
	admitted(t, s, "p1")
	assert.Error(t, s.Admit(&core.Patient{ID: "p1"}))
	assert.Error(t, s.Admit(&core.Patient{}))
	assert.Error(t, s.Admit(nil))
}

func TestUnknownPatientIsNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Get("ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.ApplyVitalUpdate("ghost", core.Vitals{}), core.ErrNotFound)
	assert.ErrorIs(t, s.ApplyLabResult("ghost", core.LabResult{TestName: "glucose"}), core.ErrNotFound)
	assert.ErrorIs(t, s.ApplyMedicationChange("ghost", core.MedicationChange{
		Action:     core.MedicationStart,
		Medication: core.Medication{Name: "Fentanyl"},
	}), core.ErrNotFound)
}

func TestApplyVitalUpdateIsAtomic(t *testing.T) {
	s := NewStore()
	admitted(t, s, "p1")

	// Writers repeatedly apply an internally consistent record; readers must
	// never observe a torn one.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(i)
			_ = s.ApplyVitalUpdate("p1", core.Vitals{
				HeartRate:  core.Measurement{Value: v, Unit: "bpm"},
				SystolicBP: core.Measurement{Value: v, Unit: "mmHg"},
			})
		}
	}()

	for i := 0; i < 500; i++ {
		snap, err := s.Get("p1")
		require.NoError(t, err)
		assert.Equal(t, snap.Vitals.HeartRate.Value, snap.Vitals.SystolicBP.Value,
			"observed a half-applied vitals update")
	}
	close(stop)
	wg.Wait()
}

func TestMedicationChangeStartAndStop(t *testing.T) {
	s := NewStore()
	admitted(t, s, "p1")

	med := core.Medication{ID: core.NewID(), Name: "Norepinephrine", Class: "vasopressor", Dose: 0.3, DoseUnit: "mcg/kg/min", Started: time.Now()}
	require.NoError(t, s.ApplyMedicationChange("p1", core.MedicationChange{Action: core.MedicationStart, Medication: med}))

	snap, err := s.Get("p1")
	require.NoError(t, err)
	assert.True(t, snap.OnMedication("Norepinephrine"))

	require.NoError(t, s.ApplyMedicationChange("p1", core.MedicationChange{Action: core.MedicationStop, Medication: med}))
	// Stopping again is a benign no-op.
	require.NoError(t, s.ApplyMedicationChange("p1", core.MedicationChange{Action: core.MedicationStop, Medication: med}))

	snap, err = s.Get("p1")
	require.NoError(t, err)
	assert.False(t, snap.OnMedication("Norepinephrine"))

	assert.Error(t, s.ApplyMedicationChange("p1", core.MedicationChange{Action: "pause", Medication: med}))
	assert.Error(t, s.ApplyMedicationChange("p1", core.MedicationChange{Action: core.MedicationStart}))
}

func TestLabResultReplacesPreviousForSameTest(t *testing.T) {
	s := NewStore()
	admitted(t, s, "p1")

	require.NoError(t, s.ApplyLabResult("p1", core.LabResult{TestName: "potassium", Value: 3.1, Flag: "L"}))
	require.NoError(t, s.ApplyLabResult("p1", core.LabResult{TestName: "potassium", Value: 4.2}))

	snap, err := s.Get("p1")
	require.NoError(t, err)
	require.Len(t, snap.Labs, 1)
	assert.Equal(t, 4.2, snap.Labs["potassium"].Value)
	assert.False(t, snap.Labs["potassium"].Abnormal())
}

func TestConcurrentMutationAcrossPatients(t *testing.T) {
	s := NewStore()
	const patients = 8
	for i := 0; i < patients; i++ {
		admitted(t, s, fmt.Sprintf("p%d", i))
	}

	// Feed-style vitals writer and coordinator-style medication writer hit
	// every patient concurrently; the store must stay consistent.
	var wg sync.WaitGroup
	for i := 0; i < patients; i++ {
		id := fmt.Sprintf("p%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				require.NoError(t, s.ApplyVitalUpdate(id, core.Vitals{HeartRate: core.Measurement{Value: float64(n)}}))
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				med := core.Medication{Name: fmt.Sprintf("med-%d", n%3)}
				action := core.MedicationStart
				if n%2 == 1 {
					action = core.MedicationStop
				}
				require.NoError(t, s.ApplyMedicationChange(id, core.MedicationChange{Action: action, Medication: med}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, patients, s.Count())
	assert.Len(t, s.List(), patients)
}

func TestListOrderedByID(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"p3", "p1", "p2"} {
		admitted(t, s, id)
	}
	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)
	assert.Equal(t, "p3", list[2].ID)
}

func TestNotFoundIsRecoverable(t *testing.T) {
	s := NewStore()
	_, err := s.Get("ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "ghost")
}
