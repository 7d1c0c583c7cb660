package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/careloop/icumesh/agent"
	"github.com/careloop/icumesh/alert"
	"github.com/careloop/icumesh/bus"
	"github.com/careloop/icumesh/config"
	"github.com/careloop/icumesh/coordinator"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/decider"
	"github.com/careloop/icumesh/feed"
	"github.com/careloop/icumesh/logging"
	"github.com/careloop/icumesh/metrics"
	"github.com/careloop/icumesh/patient"
)

// State is the run lifecycle phase. Transitions are one-way:
// Idle -> Running -> Completed or Failed.
type State string

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = "idle"
	// StateRunning means the tick loop is active.
	StateRunning State = "running"
	// StateCompleted means the run finished its configured duration (or was
	// cancelled) and shut down cleanly.
	StateCompleted State = "completed"
	// StateFailed means setup failed before the first tick.
	StateFailed State = "failed"
)

// Options configures an Engine. All collaborators have working defaults so
// a run needs nothing beyond a Config.
type Options struct {
	// Logger receives run diagnostics. Defaults to a no-op logger.
	Logger logging.Logger

	// Feed supplies patients, vitals, labs and medication changes. Defaults
	// to the built-in synthetic feed seeded from the config.
	Feed feed.Feed

	// Deciders maps each role to its decision function. Defaults to the
	// built-in heuristic deciders. A role mapped to nil runs no agent.
	Deciders map[core.Role]decider.Decider
}

// Engine owns one simulation run.
type Engine struct {
	cfg  *config.Config
	opts Options

	runID     string
	store     *patient.Store
	bus       *bus.Bus
	feed      feed.Feed
	alerts    *alert.Engine
	coord     *coordinator.Coordinator
	aggregate *metrics.Aggregator
	runtimes  []*agent.Runtime

	mu       sync.Mutex
	state    State
	tick     int
	started  time.Time
	finished time.Time
	runErr   error
}

// New wires an Engine from a validated config. Construction never touches
// the feed; admission and setup failures surface from Run.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Feed == nil {
		opts.Feed = feed.NewSynthetic(cfg.Seed)
	}
	if opts.Deciders == nil {
		opts.Deciders = decider.Defaults()
	}

	e := &Engine{
		cfg:   cfg,
		opts:  opts,
		runID: core.NewID(),
		store: patient.NewStore(),
		bus:   bus.New(cfg.Bus.QueueCapacity),
		feed:  opts.Feed,
		state: StateIdle,
	}

	e.alerts = alert.New(e.bus, rulesFromConfig(cfg), cfg.Alerts.Cooldown.Std(), opts.Logger)

	coord, err := coordinator.New(e.store, e.bus,
		func(o *coordinator.Options) {
			o.Window = cfg.TickInterval.Std()
			o.RolePriority = cfg.Priority()
			o.Logger = opts.Logger
		})
	if err != nil {
		return nil, err
	}
	e.coord = coord

	e.aggregate = metrics.New(e.bus)

	for _, d := range opts.Deciders {
		if d == nil {
			continue
		}
		rt, err := agent.New(d, e.store, e.bus, func(o *agent.Options) {
			o.DecisionTimeout = cfg.DecisionTimeout.Std()
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		e.runtimes = append(e.runtimes, rt)
	}

	return e, nil
}

// rulesFromConfig converts configured alert rules into engine rules.
func rulesFromConfig(cfg *config.Config) []alert.Rule {
	rules := make([]alert.Rule, 0, len(cfg.Alerts.Rules))
	for _, r := range cfg.Alerts.Rules {
		severity, _ := core.ParseUrgency(r.Severity)
		rules = append(rules, alert.Rule{
			Name:        r.Name,
			Signal:      r.Signal,
			Min:         r.Min,
			Max:         r.Max,
			Severity:    severity,
			BucketWidth: r.BucketWidth,
		})
	}
	return rules
}

// RunID returns the unique identifier of this run.
func (e *Engine) RunID() string { return e.runID }

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tick returns the number of completed ticks.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Err returns the fatal error of a failed run, or nil.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// Store exposes the patient store for queries.
func (e *Engine) Store() *patient.Store { return e.store }

// Coordinator exposes the decision log for queries.
func (e *Engine) Coordinator() *coordinator.Coordinator { return e.coord }

// Roster returns the status of every agent runtime.
func (e *Engine) Roster() []agent.Status {
	out := make([]agent.Status, 0, len(e.runtimes))
	for _, rt := range e.runtimes {
		out = append(out, rt.Status())
	}
	return out
}

// Snapshot returns the metrics accumulated so far.
func (e *Engine) Snapshot() metrics.Summary { return e.aggregate.Snapshot() }

// Summary returns the finalized run summary. Before the run ends it reflects
// whatever has been counted so far.
func (e *Engine) Summary() metrics.Summary {
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	if st == StateCompleted || st == StateFailed {
		return e.aggregate.Finalize()
	}
	return e.aggregate.Snapshot()
}

// Run executes the simulation: admit patients, start every processing unit,
// drive the tick loop for the configured duration, then drain and shut down.
// It blocks until shutdown finishes. A second call returns an error. Context
// cancellation stops the run early but still shuts down cleanly.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("engine: run already started (state %s)", e.state)
	}
	e.state = StateRunning
	e.started = time.Now()
	e.mu.Unlock()

	e.opts.Logger.Info("run starting",
		"run_id", e.runID,
		"patients", e.cfg.Patients,
		"tick_interval", e.cfg.TickInterval.Std().String(),
		"duration", e.cfg.Duration.Std().String(),
	)

	if err := e.setup(); err != nil {
		e.fail(err)
		return err
	}

	var wg sync.WaitGroup
	e.launch(ctx, &wg, "alert-engine", e.alerts.Run)
	e.launch(ctx, &wg, "coordinator", e.coord.Run)
	e.launch(ctx, &wg, "metrics", e.aggregate.Run)
	for _, rt := range e.runtimes {
		e.launch(ctx, &wg, "agent:"+string(rt.Role()), rt.Run)
	}

	runErr := e.loop(ctx)

	// Final barrier: let in-flight events settle before closing the bus so
	// the last tick's decisions make it into the log and the summary.
	e.drain(ctx)
	e.bus.Close()
	wg.Wait()

	summary := e.aggregate.Finalize()

	e.mu.Lock()
	e.state = StateCompleted
	e.finished = time.Now()
	e.mu.Unlock()

	e.opts.Logger.Info("run completed",
		"run_id", e.runID,
		"ticks", summary.Ticks,
		"decisions", summary.Decisions,
		"alerts", summary.Alerts,
		"decisions_per_minute", summary.DecisionsPerMinute,
	)
	return runErr
}

// setup admits the configured number of patients. Any failure here is fatal:
// the run must not start with a partial census.
func (e *Engine) setup() error {
	for i := 0; i < e.cfg.Patients; i++ {
		p := e.feed.GeneratePatient()
		if p == nil {
			return &core.SetupError{Stage: "admission", Err: fmt.Errorf("feed produced no patient")}
		}
		if err := e.store.Admit(p); err != nil {
			return &core.SetupError{Stage: "admission", Err: err}
		}
	}
	return nil
}

// fail records a setup failure. No tick ever ran, so the summary reports
// zero activity.
func (e *Engine) fail(err error) {
	e.aggregate.Finalize()
	e.mu.Lock()
	e.state = StateFailed
	e.runErr = err
	e.finished = time.Now()
	e.mu.Unlock()
	e.opts.Logger.Error("run failed during setup", "run_id", e.runID, "error", err)
}

// launch starts one processing unit under the shared WaitGroup.
func (e *Engine) launch(ctx context.Context, wg *sync.WaitGroup, name string, run func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.opts.Logger.Warn("unit exited with error", "unit", name, "error", err)
		}
	}()
}

// loop drives the fixed-interval ticks until the configured duration elapses
// or ctx is cancelled.
func (e *Engine) loop(ctx context.Context) error {
	interval := e.cfg.TickInterval.Std()
	totalTicks := int(e.cfg.Duration.Std() / interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for t := 1; t <= totalTicks; t++ {
		select {
		case <-ctx.Done():
			e.opts.Logger.Info("run cancelled", "run_id", e.runID, "tick", t-1)
			return ctx.Err()
		case <-ticker.C:
		}
		e.runTick(ctx, t)
	}
	return nil
}

// runTick refreshes every patient from the feed, publishes the resulting
// events, then holds the soft barrier until the backlog drains below the
// configured threshold so agents reason over current state. Per-patient feed
// failures are logged and skipped; the tick goes on.
func (e *Engine) runTick(ctx context.Context, tick int) {
	start := time.Now()
	now := start.UTC()
	patients := e.store.List()

	for _, p := range patients {
		vitals := e.feed.GenerateVitals(p, now)
		if err := e.store.ApplyVitalUpdate(p.ID, vitals); err != nil {
			e.opts.Logger.Warn("vital update not applied", "patient_id", p.ID, "error", err)
			continue
		}
		if err := e.publish(core.VitalUpdateEvent{Patient: p.ID, Vitals: vitals, Tick: tick, Timestamp: now}); err != nil {
			return
		}
	}

	if e.cfg.LabEveryTicks > 0 && tick%e.cfg.LabEveryTicks == 0 {
		for _, p := range patients {
			lab := e.feed.GenerateLab(p, now)
			if err := e.store.ApplyLabResult(p.ID, lab); err != nil {
				e.opts.Logger.Warn("lab result not applied", "patient_id", p.ID, "error", err)
				continue
			}
			if err := e.publish(core.LabResultEvent{Patient: p.ID, Result: lab, Tick: tick, Timestamp: now}); err != nil {
				return
			}
		}
	}

	if e.cfg.MedicationEveryTicks > 0 && tick%e.cfg.MedicationEveryTicks == 0 {
		for _, p := range patients {
			change := e.feed.GenerateMedication(p, now)
			if change == nil {
				continue
			}
			if err := e.store.ApplyMedicationChange(p.ID, *change); err != nil {
				e.opts.Logger.Warn("medication change not applied", "patient_id", p.ID, "error", err)
				continue
			}
			if err := e.publish(core.MedicationChangeEvent{Patient: p.ID, Change: *change, Tick: tick, Timestamp: now}); err != nil {
				return
			}
		}
	}

	e.drain(ctx)
	e.coord.FlushAll()
	e.aggregate.RecordTick()

	e.mu.Lock()
	e.tick = tick
	e.mu.Unlock()

	if sl, ok := e.opts.Logger.(*logging.SimLogger); ok {
		sl.LogTick(tick, len(patients), e.bus.Backlog(), time.Since(start))
	}
}

// publish forwards one event to the bus. A non-nil return means the bus
// closed underneath the clock and the tick should stop producing.
func (e *Engine) publish(ev core.Event) error {
	return e.bus.Publish(ev)
}

// drain is the soft tick barrier: wait until the bus backlog falls to the
// configured threshold or most of the tick interval is spent, whichever
// comes first. The backlog must hold at the threshold across two consecutive
// polls before the barrier releases, so events an agent is just about to
// publish are not mistaken for quiescence. The barrier never deadlocks the
// clock on a slow agent.
func (e *Engine) drain(ctx context.Context) {
	threshold := e.cfg.Bus.BacklogThreshold
	deadline := time.Now().Add(e.cfg.TickInterval.Std() * 8 / 10)

	settled := 0
	for settled < 2 {
		if e.bus.Backlog() <= threshold {
			settled++
		} else {
			settled = 0
		}
		if time.Now().After(deadline) {
			e.opts.Logger.Debug("tick barrier released with backlog",
				"backlog", e.bus.Backlog(), "threshold", threshold)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}
