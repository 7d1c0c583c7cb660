// Package engine implements the simulation clock and run lifecycle. The
// Engine wires the patient store, event bus, data feed, agent runtimes,
// alert engine, coordinator and metrics aggregator together, drives the
// fixed-interval tick loop, and owns the Idle -> Running -> Completed|Failed
// state machine.
package engine
