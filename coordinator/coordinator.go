// Package coordinator implements the single-writer decision log and conflict
// arbitration. Every decision emitted by an agent is committed append-only;
// directive decisions (medication orders, escalations) targeting the same
// patient within one tick window are arbitrated and the losers flagged
// superseded. Authoritative medication orders are applied back to the patient
// store, so an order visibly changes the state later events are reasoned
// over.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/logging"
	"github.com/careloop/icumesh/patient"
)

// DefaultWindow is the arbitration window when none is configured. It should
// match the simulation tick interval.
const DefaultWindow = 5 * time.Second

// Entry is one committed decision plus its arbitration metadata. The decision
// itself is immutable; only the metadata records the arbitration outcome.
type Entry struct {
	Decision      core.Decision `json:"decision"`
	Window        int64         `json:"window"`
	Authoritative bool          `json:"authoritative"`
	Superseded    bool          `json:"superseded"`
	SupersededBy  string        `json:"superseded_by,omitempty"`
	CommittedAt   time.Time     `json:"committed_at"`
}

// Options configures a Coordinator.
type Options struct {
	// Window is the arbitration window width. Directive decisions for one
	// patient whose timestamps fall into the same window are arbitrated
	// against each other.
	Window time.Duration

	// RolePriority is the final arbitration tie-break, highest priority
	// first. Defaults to core.Roles().
	RolePriority []core.Role

	// Logger receives commit diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Coordinator is the single writer of the decision log. All mutation flows
// through Submit (called by the Run loop); readers get copies.
type Coordinator struct {
	store *patient.Store
	bus   *bus.Bus
	sub   *bus.Subscription
	opts  Options

	priority map[core.Role]int

	mu        sync.Mutex
	log       []Entry
	byPatient map[string][]int
	pending   map[string]*window // patient id -> open arbitration window
}

// window is one patient's open arbitration window of directive decisions.
type window struct {
	index     int64
	decisions []core.Decision
}

// New constructs a Coordinator subscribed to decision events.
func New(store *patient.Store, b *bus.Bus, optFns ...func(o *Options)) (*Coordinator, error) {
	opts := Options{
		Window: DefaultWindow,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if store == nil || b == nil {
		return nil, fmt.Errorf("coordinator: store and bus are required")
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if len(opts.RolePriority) == 0 {
		opts.RolePriority = core.Roles()
	}

	priority := make(map[core.Role]int, len(opts.RolePriority))
	for i, role := range opts.RolePriority {
		if !role.Valid() {
			return nil, fmt.Errorf("coordinator: invalid role %q in priority order", role)
		}
		if _, dup := priority[role]; dup {
			return nil, fmt.Errorf("coordinator: duplicate role %q in priority order", role)
		}
		priority[role] = i
	}
	for _, role := range core.Roles() {
		if _, ok := priority[role]; !ok {
			priority[role] = len(priority)
		}
	}

	c := &Coordinator{
		store:     store,
		bus:       b,
		opts:      opts,
		priority:  priority,
		byPatient: make(map[string][]int),
		pending:   make(map[string]*window),
	}
	c.sub = b.Subscribe("coordinator", bus.MatchKinds(core.EventDecision))
	return c, nil
}

// Run consumes decision events until the bus closes, then flushes every open
// window so no submitted decision is lost at shutdown.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		ev, err := c.sub.Next(ctx)
		if err != nil {
			c.FlushAll()
			if errors.Is(err, core.ErrBusClosed) {
				return nil
			}
			return err
		}
		de, ok := ev.(core.DecisionEvent)
		if !ok {
			continue
		}
		c.Submit(de.Decision)
	}
}

// Submit routes one decision. Non-directive decisions commit immediately as
// authoritative; directive decisions join their patient's open window and are
// arbitrated when the window rolls over or is flushed.
func (c *Coordinator) Submit(d core.Decision) {
	idx := c.windowIndex(d.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !d.Kind.Directive() {
		c.commit(Entry{Decision: d, Window: idx, Authoritative: true})
		return
	}

	w := c.pending[d.PatientID]
	if w != nil && w.index != idx {
		c.arbitrate(d.PatientID, w)
		w = nil
	}
	if w == nil {
		w = &window{index: idx}
		c.pending[d.PatientID] = w
	}
	w.decisions = append(w.decisions, d)
}

// FlushAll arbitrates and commits every open window. Called at shutdown and
// by the clock after its per-tick drain barrier.
func (c *Coordinator) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, w := range c.pending {
		c.arbitrate(id, w)
	}
}

// windowIndex maps a timestamp onto its arbitration window.
func (c *Coordinator) windowIndex(ts time.Time) int64 {
	return ts.UnixNano() / int64(c.opts.Window)
}

// arbitrate resolves one patient's window: the winner by urgency, then
// earliest timestamp, then role priority becomes authoritative; every other
// directive in the window is committed superseded. Caller holds c.mu.
func (c *Coordinator) arbitrate(patientID string, w *window) {
	delete(c.pending, patientID)
	if len(w.decisions) == 0 {
		return
	}

	ranked := make([]core.Decision, len(w.decisions))
	copy(ranked, w.decisions)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Urgency != ranked[j].Urgency {
			return ranked[i].Urgency > ranked[j].Urgency
		}
		if !ranked[i].Timestamp.Equal(ranked[j].Timestamp) {
			return ranked[i].Timestamp.Before(ranked[j].Timestamp)
		}
		return c.priority[ranked[i].Role] < c.priority[ranked[j].Role]
	})

	winner := ranked[0]
	c.commit(Entry{Decision: winner, Window: w.index, Authoritative: true})
	for _, loser := range ranked[1:] {
		c.commit(Entry{
			Decision:     loser,
			Window:       w.index,
			Superseded:   true,
			SupersededBy: winner.ID,
		})
	}

	if winner.Kind == core.KindMedicationOrder {
		c.applyOrder(winner)
	}
}

// applyOrder writes an authoritative medication order back to the patient
// store and announces the change on the bus. Caller holds c.mu.
func (c *Coordinator) applyOrder(d core.Decision) {
	med := *d.Medication
	if med.Started.IsZero() {
		med.Started = d.Timestamp
	}
	if med.Prescriber == "" {
		med.Prescriber = string(d.Role)
	}
	change := core.MedicationChange{Action: core.MedicationStart, Medication: med}

	if err := c.store.ApplyMedicationChange(d.PatientID, change); err != nil {
		c.opts.Logger.Warn("medication order not applied",
			"patient_id", d.PatientID, "medication", med.Name, "error", err)
		return
	}

	err := c.bus.Publish(core.MedicationChangeEvent{
		Patient:   d.PatientID,
		Change:    change,
		Timestamp: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, core.ErrBusClosed) {
		c.opts.Logger.Warn("medication change not announced",
			"patient_id", d.PatientID, "error", err)
	}
}

// commit appends one entry to the log. Caller holds c.mu.
func (c *Coordinator) commit(e Entry) {
	e.CommittedAt = time.Now().UTC()
	c.log = append(c.log, e)
	c.byPatient[e.Decision.PatientID] = append(c.byPatient[e.Decision.PatientID], len(c.log)-1)

	if sl, ok := c.opts.Logger.(*logging.SimLogger); ok {
		sl.LogDecision(string(e.Decision.Role), e.Decision.PatientID,
			string(e.Decision.Kind), e.Decision.Urgency.String(), e.Authoritative)
		return
	}
	c.opts.Logger.Info("decision committed",
		"role", string(e.Decision.Role),
		"patient_id", e.Decision.PatientID,
		"kind", string(e.Decision.Kind),
		"urgency", e.Decision.Urgency.String(),
		"authoritative", e.Authoritative,
	)
}

// Count returns the number of committed entries.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.log)
}

// Tail returns the most recent n entries in commit order.
func (c *Coordinator) Tail(n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.log) {
		n = len(c.log)
	}
	out := make([]Entry, n)
	copy(out, c.log[len(c.log)-n:])
	return out
}

// PatientLog returns every committed entry for one patient in commit order.
func (c *Coordinator) PatientLog(patientID string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	idxs := c.byPatient[patientID]
	out := make([]Entry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.log[i])
	}
	return out
}
