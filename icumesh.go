// Package icumesh provides a high-level façade over the simulation engine
// and its collaborators (patient store, event bus, agents, coordinator,
// metrics). Most applications interact with this package by:
//  1. Creating a Simulation via New() (optionally overriding config, feed,
//     deciders or logger)
//  2. Running it with Run()
//  3. Reading results through Summary() and Query()
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing: the built-in synthetic feed and heuristic clinical deciders
// need no external services or API keys.
package icumesh

import (
	"context"

	"github.com/careloop/icumesh/config"
	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/decider"
	"github.com/careloop/icumesh/engine"
	"github.com/careloop/icumesh/feed"
	"github.com/careloop/icumesh/logging"
	"github.com/careloop/icumesh/metrics"
	"github.com/careloop/icumesh/query"
)

// Options configures a Simulation.
type Options struct {
	// Config holds the simulation parameters. Defaults to config.Default().
	Config *config.Config

	// Feed supplies clinical data. Defaults to the built-in synthetic feed.
	Feed feed.Feed

	// Deciders maps roles to decision functions. Defaults to the built-in
	// heuristic deciders for all three roles.
	Deciders map[core.Role]decider.Decider

	// Logger receives run diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Simulation is the high-level façade aggregating the engine and its query
// surface.
type Simulation struct {
	engine *engine.Engine
	query  *query.Service
}

// New creates a Simulation with optional overrides. Any unset collaborator
// is initialized with a working in-process default.
func New(optFns ...func(o *Options)) (*Simulation, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e, err := engine.New(opts.Config, func(o *engine.Options) {
		o.Logger = opts.Logger
		o.Feed = opts.Feed
		o.Deciders = opts.Deciders
	})
	if err != nil {
		return nil, err
	}

	return &Simulation{
		engine: e,
		query:  query.NewService(e),
	}, nil
}

// Run executes the simulation to completion (or cancellation) and blocks
// until shutdown finishes.
func (s *Simulation) Run(ctx context.Context) error {
	return s.engine.Run(ctx)
}

// Summary returns the run summary: finalized counters after the run ends,
// a live snapshot before that.
func (s *Simulation) Summary() metrics.Summary {
	return s.engine.Summary()
}

// Query returns the read-only query surface over this simulation.
func (s *Simulation) Query() *query.Service {
	return s.query
}

// State returns the engine lifecycle phase.
func (s *Simulation) State() engine.State {
	return s.engine.State()
}
