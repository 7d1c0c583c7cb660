package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/decider"
	"github.com/careloop/icumesh/logging"
	"github.com/careloop/icumesh/patient"
)

// DefaultDecisionTimeout bounds one Decide call when no timeout is configured.
const DefaultDecisionTimeout = 5 * time.Second

// Options configures a Runtime.
type Options struct {
	// DecisionTimeout is the hard bound on a single Decide call. Calls that
	// outlive it are abandoned and counted as skipped.
	DecisionTimeout time.Duration

	// Logger receives runtime diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Runtime drives the perceive-reason-act cycle for one clinical role. Each
// Runtime owns exactly one bus subscription and one consuming goroutine, so
// events are processed strictly in arrival order.
type Runtime struct {
	role    core.Role
	decider decider.Decider
	store   *patient.Store
	bus     *bus.Bus
	sub     *bus.Subscription
	opts    Options

	seq atomic.Uint64

	mu            sync.Mutex
	decisions     int
	messages      int
	skipped       int
	confidenceSum float64
	lastDecision  time.Time
}

// Status is a point-in-time snapshot of one runtime, surfaced through the
// agent roster query.
type Status struct {
	Role          core.Role `json:"role"`
	Decisions     int       `json:"decisions"`
	Messages      int       `json:"messages"`
	Skipped       int       `json:"skipped"`
	AvgConfidence float64   `json:"avg_confidence"`
	LastDecision  time.Time `json:"last_decision,omitempty"`
}

// New constructs a Runtime for the decider's role and subscribes it to the
// events that role reacts to, plus its message inbox.
func New(d decider.Decider, store *patient.Store, b *bus.Bus, optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{
		DecisionTimeout: DefaultDecisionTimeout,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if d == nil {
		return nil, fmt.Errorf("agent: decider is required")
	}
	role := d.Role()
	if !role.Valid() {
		return nil, fmt.Errorf("agent: invalid role %q", role)
	}
	if store == nil || b == nil {
		return nil, fmt.Errorf("agent: store and bus are required")
	}
	if opts.DecisionTimeout <= 0 {
		opts.DecisionTimeout = DefaultDecisionTimeout
	}

	r := &Runtime{
		role:    role,
		decider: d,
		store:   store,
		bus:     b,
		opts:    opts,
	}
	r.sub = b.Subscribe("agent:"+string(role), interestsFor(role))
	return r, nil
}

// interestsFor returns the subscription filter for a role: the event kinds
// that role reasons over, plus messages addressed to it.
func interestsFor(role core.Role) bus.Filter {
	var kinds []core.EventKind
	switch role {
	case core.RolePhysician:
		kinds = []core.EventKind{core.EventVitalUpdate, core.EventLabResult, core.EventAlert}
	case core.RoleNurse:
		kinds = []core.EventKind{core.EventVitalUpdate}
	case core.RolePharmacist:
		kinds = []core.EventKind{core.EventMedicationChange, core.EventDecision}
	}
	return bus.Any(bus.MatchKinds(kinds...), bus.MatchInbox(role))
}

// Role returns the clinical role this runtime acts for.
func (r *Runtime) Role() core.Role { return r.role }

// Run consumes events until the bus closes or ctx is cancelled. Bus closure
// is the normal end of a simulation and returns nil.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		ev, err := r.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, core.ErrBusClosed) {
				return nil
			}
			return err
		}
		r.process(ctx, ev)
	}
}

// process runs one perceive-reason-act cycle for a single event. Every
// failure path logs and returns so the next event is unaffected.
func (r *Runtime) process(ctx context.Context, ev core.Event) {
	var snapshot *core.Patient
	if id := ev.PatientID(); id != "" {
		var err error
		snapshot, err = r.store.Get(id)
		if err != nil {
			r.opts.Logger.Warn("snapshot unavailable, skipping event",
				"role", string(r.role), "patient_id", id, "error", err)
			r.countSkip()
			return
		}
	}

	out, err := r.decide(ctx, ev, snapshot)
	if err != nil {
		if errors.Is(err, core.ErrDecisionTimeout) {
			r.opts.Logger.Warn("decider timed out, skipping event",
				"role", string(r.role), "event_kind", string(ev.EventKind()),
				"timeout", r.opts.DecisionTimeout)
		} else {
			r.opts.Logger.Warn("decider failed, skipping event",
				"role", string(r.role), "event_kind", string(ev.EventKind()), "error", err)
		}
		r.countSkip()
		return
	}
	if out.Empty() {
		return
	}

	if out.Decision != nil {
		r.publishDecision(*out.Decision)
	}
	if out.Message != nil {
		r.publishMessage(*out.Message)
	}
}

// decide invokes the decider in its own goroutine so a call that ignores
// context cancellation can still be abandoned at the deadline.
func (r *Runtime) decide(ctx context.Context, ev core.Event, snapshot *core.Patient) (decider.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.DecisionTimeout)
	defer cancel()

	type result struct {
		out decider.Outcome
		err error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{err: fmt.Errorf("decider panic: %v", rec)}
			}
		}()
		out, err := r.decider.Decide(ctx, ev, snapshot)
		ch <- result{out: out, err: err}
	}()

	select {
	case res := <-ch:
		return res.out, res.err
	case <-ctx.Done():
		return decider.Outcome{}, fmt.Errorf("%w after %s", core.ErrDecisionTimeout, r.opts.DecisionTimeout)
	}
}

func (r *Runtime) publishDecision(d core.Decision) {
	d.Role = r.role
	if d.ID == "" {
		d.ID = core.NewID()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	if err := d.Validate(); err != nil {
		r.opts.Logger.Warn("invalid decision discarded",
			"role", string(r.role), "error", err)
		r.countSkip()
		return
	}

	if err := r.bus.Publish(core.DecisionEvent{Decision: d}); err != nil {
		return
	}

	r.mu.Lock()
	r.decisions++
	r.confidenceSum += d.Confidence
	r.lastDecision = d.Timestamp
	r.mu.Unlock()
}

func (r *Runtime) publishMessage(m core.Message) {
	m.Sender = r.role
	if m.ID == "" {
		m.ID = core.NewID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := m.Validate(); err != nil {
		r.opts.Logger.Warn("invalid message discarded",
			"role", string(r.role), "error", err)
		r.countSkip()
		return
	}
	m.Sequence = r.seq.Add(1)

	if err := r.bus.Publish(core.MessageEvent{Message: m}); err != nil {
		return
	}

	r.mu.Lock()
	r.messages++
	r.mu.Unlock()
}

func (r *Runtime) countSkip() {
	r.mu.Lock()
	r.skipped++
	r.mu.Unlock()
}

// Status returns a snapshot of the runtime's counters.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		Role:         r.role,
		Decisions:    r.decisions,
		Messages:     r.messages,
		Skipped:      r.skipped,
		LastDecision: r.lastDecision,
	}
	if r.decisions > 0 {
		s.AvgConfidence = r.confidenceSum / float64(r.decisions)
	}
	return s
}
