// Package query exposes read-only views over a running or finished
// simulation: patient census, decision log, agent roster and run status.
// Queries never mutate state and never block the clock.
package query

import (
	"time"

	"github.com/careloop/icumesh/agent"
	"github.com/careloop/icumesh/coordinator"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/engine"
	"github.com/careloop/icumesh/metrics"
)

// RunStatus is the point-in-time view of one run.
type RunStatus struct {
	RunID   string          `json:"run_id"`
	State   engine.State    `json:"state"`
	Tick    int             `json:"tick"`
	Metrics metrics.Summary `json:"metrics"`
	AsOf    time.Time       `json:"as_of"`
}

// Service answers queries against one engine. All methods return snapshots
// or copies; callers can hold results indefinitely.
type Service struct {
	engine *engine.Engine
}

// NewService constructs a Service over an engine.
func NewService(e *engine.Engine) *Service {
	return &Service{engine: e}
}

// Patients returns a snapshot of every admitted patient, ordered by ID.
func (s *Service) Patients() []*core.Patient {
	return s.engine.Store().List()
}

// Patient returns a snapshot of one patient, or core.ErrNotFound.
func (s *Service) Patient(id string) (*core.Patient, error) {
	return s.engine.Store().Get(id)
}

// Roster returns the status of every agent runtime.
func (s *Service) Roster() []agent.Status {
	return s.engine.Roster()
}

// DecisionTail returns the most recent n committed decisions.
func (s *Service) DecisionTail(n int) []coordinator.Entry {
	return s.engine.Coordinator().Tail(n)
}

// PatientDecisions returns the full decision log for one patient.
func (s *Service) PatientDecisions(patientID string) []coordinator.Entry {
	return s.engine.Coordinator().PatientLog(patientID)
}

// Status returns the current run status with live metrics.
func (s *Service) Status() RunStatus {
	return RunStatus{
		RunID:   s.engine.RunID(),
		State:   s.engine.State(),
		Tick:    s.engine.Tick(),
		Metrics: s.engine.Snapshot(),
		AsOf:    time.Now().UTC(),
	}
}
