// Package metrics aggregates run statistics. The Aggregator is one bus
// subscriber counting decisions, messages, alerts and data events as they
// flow; the clock records ticks and finalizes the counters into an immutable
// Summary when the run ends.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/core"
)

// Summary is the read-only result of one simulation run.
type Summary struct {
	Decisions          int           `json:"decisions"`
	Messages           int           `json:"messages"`
	Alerts             int           `json:"alerts"`
	VitalUpdates       int           `json:"vital_updates"`
	LabResults         int           `json:"lab_results"`
	MedicationChanges  int           `json:"medication_changes"`
	Ticks              int           `json:"ticks"`
	Elapsed            time.Duration `json:"elapsed"`
	DecisionsPerMinute float64       `json:"decisions_per_minute"`
}

// Aggregator counts events as they cross the bus. Safe for concurrent use;
// the Run loop is the only writer of the event counters, but RecordTick and
// Finalize are called from the clock goroutine.
type Aggregator struct {
	sub *bus.Subscription

	mu        sync.Mutex
	counts    Summary
	started   time.Time
	finalized bool
}

// New constructs an Aggregator subscribed to every event on the bus.
func New(b *bus.Bus) *Aggregator {
	return &Aggregator{
		sub:     b.Subscribe("metrics", bus.MatchAll()),
		started: time.Now(),
	}
}

// Run tallies events until the bus closes.
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		ev, err := a.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrBusClosed) {
				return nil
			}
			return err
		}
		a.record(ev)
	}
}

func (a *Aggregator) record(ev core.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.EventKind() {
	case core.EventDecision:
		a.counts.Decisions++
	case core.EventMessage:
		a.counts.Messages++
	case core.EventAlert:
		a.counts.Alerts++
	case core.EventVitalUpdate:
		a.counts.VitalUpdates++
	case core.EventLabResult:
		a.counts.LabResults++
	case core.EventMedicationChange:
		a.counts.MedicationChanges++
	}
}

// RecordTick notes one completed clock tick.
func (a *Aggregator) RecordTick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts.Ticks++
}

// Snapshot returns the counters accumulated so far without finalizing.
func (a *Aggregator) Snapshot() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.counts
	s.Elapsed = time.Since(a.started)
	s.DecisionsPerMinute = perMinute(s.Decisions, s.Elapsed)
	return s
}

// Finalize freezes the counters into the run Summary. Subsequent calls return
// the same Summary.
func (a *Aggregator) Finalize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finalized {
		a.counts.Elapsed = time.Since(a.started)
		a.counts.DecisionsPerMinute = perMinute(a.counts.Decisions, a.counts.Elapsed)
		a.finalized = true
	}
	return a.counts
}

func perMinute(count int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Minutes()
}
