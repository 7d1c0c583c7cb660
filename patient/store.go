package patient

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/careloop/icumesh/core"
)

// Store is the in-memory patient state store. The registry map is guarded by
// a RWMutex; each patient carries its own lock so updates to different
// patients proceed in parallel while updates to one patient are atomic.
type Store struct {
	mu       sync.RWMutex
	patients map[string]*entry
}

type entry struct {
	mu sync.Mutex
	p  *core.Patient
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{patients: make(map[string]*entry)}
}

// Admit registers a patient. The demographics snapshot is immutable from this
// point on. Admitting an already-known id fails.
func (s *Store) Admit(p *core.Patient) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("admit: patient id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[p.ID]; ok {
		return fmt.Errorf("admit: patient %s already admitted", p.ID)
	}
	clone := p.Clone()
	if clone.Labs == nil {
		clone.Labs = make(map[string]core.LabResult)
	}
	if clone.Medications == nil {
		clone.Medications = make(map[string]core.Medication)
	}
	s.patients[p.ID] = &entry{p: clone}
	return nil
}

// Get returns a read-only deep copy of the patient, or core.ErrNotFound.
func (s *Store) Get(id string) (*core.Patient, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Clone(), nil
}

// List returns snapshots of all patients ordered by id.
func (s *Store) List() []*core.Patient {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.patients))
	for _, e := range s.patients {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*core.Patient, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.p.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of admitted patients.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients)
}

// ApplyVitalUpdate atomically replaces the patient's vitals record.
func (s *Store) ApplyVitalUpdate(id string, v core.Vitals) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.p.Vitals = v
	e.p.Updated = time.Now().UTC()
	return nil
}

// ApplyLabResult records a lab result, replacing any previous result for the
// same test.
func (s *Store) ApplyLabResult(id string, lab core.LabResult) error {
	if lab.TestName == "" {
		return fmt.Errorf("lab result: test name is required")
	}
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.p.Labs[lab.TestName] = lab
	e.p.Updated = time.Now().UTC()
	return nil
}

// ApplyMedicationChange starts or stops a medication. Stopping an inactive
// medication is a no-op rather than an error: the feed and the coordinator
// race benignly on discontinuations.
func (s *Store) ApplyMedicationChange(id string, change core.MedicationChange) error {
	if change.Medication.Name == "" {
		return fmt.Errorf("medication change: medication name is required")
	}
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch change.Action {
	case core.MedicationStart:
		e.p.Medications[change.Medication.Name] = change.Medication
	case core.MedicationStop:
		delete(e.p.Medications, change.Medication.Name)
	default:
		return fmt.Errorf("medication change: unknown action %q", change.Action)
	}
	e.p.Updated = time.Now().UTC()
	return nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}
