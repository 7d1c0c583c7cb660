// Package agent implements the generic role runtime driving the
// perceive-reason-act cycle. One Runtime per clinical role pulls matching
// events from the bus in strict arrival order, asks its Decider for an
// outcome under a hard timeout, and publishes the resulting decision and
// message events. Decider errors, panics and timeouts are logged and skipped
// so a misbehaving decision function never halts the simulation.
package agent
