// Package alert implements the threshold alerting subsystem. The engine is
// rule-agnostic: it consumes vital updates, evaluates whatever rules it was
// configured with, suppresses repeats through a cooldown table keyed by
// dedup key, and publishes the survivors back onto the bus.
package alert

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/logging"
)

// Rule is one enumerated threshold on a vital signal. A breach fires when the
// reading falls below Min or above Max (either bound may be absent).
// BucketWidth quantizes the breaching value into the dedup key so small
// oscillations around one level collapse into a single alert per cooldown.
type Rule struct {
	Name        string
	Signal      string
	Min         *float64
	Max         *float64
	Severity    core.Urgency
	BucketWidth float64
}

// Breached reports whether the measurement violates the rule.
func (r Rule) Breached(m core.Measurement) bool {
	if r.Min != nil && m.Value < *r.Min {
		return true
	}
	if r.Max != nil && m.Value > *r.Max {
		return true
	}
	return false
}

// Bucket quantizes a breaching value for the dedup key.
func (r Rule) Bucket(value float64) float64 {
	width := r.BucketWidth
	if width <= 0 {
		width = 1
	}
	return math.Floor(value/width) * width
}

// Engine evaluates rules against incoming vital updates and emits
// deduplicated alerts. One Engine runs as a single bus-subscriber unit;
// Evaluate is additionally safe for direct concurrent use in tests.
type Engine struct {
	rules    []Rule
	cooldown time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time

	bus    *bus.Bus
	sub    *bus.Subscription
	logger logging.Logger
}

// New constructs an Engine subscribed to vital updates on b.
func New(b *bus.Bus, rules []Rule, cooldown time.Duration, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Engine{
		rules:     rules,
		cooldown:  cooldown,
		lastFired: make(map[string]time.Time),
		bus:       b,
		sub:       b.Subscribe("alert-engine", bus.MatchKinds(core.EventVitalUpdate)),
		logger:    logger,
	}
}

// Run processes vital updates until the bus closes or the context is
// cancelled. Bus closure is the normal exit, returned as nil.
func (e *Engine) Run(ctx context.Context) error {
	for {
		ev, err := e.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrBusClosed) {
				return nil
			}
			return err
		}
		vu, ok := ev.(core.VitalUpdateEvent)
		if !ok {
			continue
		}
		for _, a := range e.Evaluate(vu.Patient, vu.Vitals, vu.Timestamp) {
			if err := e.bus.Publish(core.AlertEvent{Alert: a}); err != nil {
				if errors.Is(err, core.ErrBusClosed) {
					return nil
				}
				return err
			}
			e.logger.Warn("alert emitted",
				"patient_id", a.PatientID, "rule", a.Rule,
				"severity", a.Severity.String(), "value", a.Value)
		}
	}
}

// Evaluate runs every rule against one vitals record and returns the alerts
// that survive dedup, sorted by descending severity. Simultaneous breaches of
// different rules produce independent alerts; they are never merged.
func (e *Engine) Evaluate(patientID string, v core.Vitals, now time.Time) []core.Alert {
	var alerts []core.Alert
	for _, r := range e.rules {
		m, ok := v.Value(r.Signal)
		if !ok || !r.Breached(m) {
			continue
		}
		a := core.Alert{
			ID:        core.NewID(),
			PatientID: patientID,
			Rule:      r.Name,
			Signal:    r.Signal,
			Value:     m.Value,
			Unit:      m.Unit,
			Bucket:    r.Bucket(m.Value),
			Severity:  r.Severity,
			Timestamp: now,
		}
		if e.suppressed(a.DedupKey(), now) {
			continue
		}
		alerts = append(alerts, a)
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].Severity > alerts[j].Severity })
	return alerts
}

// suppressed consults and updates the cooldown table for one dedup key.
func (e *Engine) suppressed(key string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
		return true
	}
	e.lastFired[key] = now
	return false
}
