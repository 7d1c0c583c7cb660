// Package decider defines the pluggable decision-function boundary between
// the agent runtime and clinical reasoning. A Decider receives one event plus
// a read-only patient snapshot and optionally returns a Decision and/or a
// Message. Deciders may be slow or unreliable; the runtime bounds every call
// with a timeout and treats failure as "no action this cycle".
//
// Built-in rule-based deciders for the three clinical roles live in this
// package; LLM-backed implementations live in the anthropic and openai
// sub-packages.
package decider

import (
	"context"
	"sync"

	"github.com/careloop/icumesh/core"
)

// Outcome is what a decider produced for one cycle. Either or both fields may
// be nil ("no action").
type Outcome struct {
	Decision *core.Decision
	Message  *core.Message
}

// Empty reports whether the cycle produced nothing.
func (o Outcome) Empty() bool { return o.Decision == nil && o.Message == nil }

// Decider is the external-collaborator reasoning function for one role.
// Implementations should honor ctx cancellation; the runtime abandons calls
// that outlive their deadline either way.
type Decider interface {
	// Role identifies the clinical role this decider reasons for.
	Role() core.Role
	// Decide reasons over one event and the subject patient's snapshot.
	// snapshot is nil for events without patient context.
	Decide(ctx context.Context, ev core.Event, snapshot *core.Patient) (Outcome, error)
}

// Func adapts a plain function into a Decider.
type Func struct {
	ForRole core.Role
	Fn      func(ctx context.Context, ev core.Event, snapshot *core.Patient) (Outcome, error)
}

// Role implements Decider.
func (f Func) Role() core.Role { return f.ForRole }

// Decide implements Decider.
func (f Func) Decide(ctx context.Context, ev core.Event, snapshot *core.Patient) (Outcome, error) {
	return f.Fn(ctx, ev, snapshot)
}

// MockDecider is a scriptable in-memory Decider for tests. It records every
// event it sees and replays queued outcomes in order, returning an empty
// outcome once the script is exhausted.
type MockDecider struct {
	mu       sync.Mutex
	role     core.Role
	script   []Outcome
	err      error
	delay    func(ctx context.Context) error
	observed []core.Event
}

// NewMockDecider constructs a MockDecider for the given role.
func NewMockDecider(role core.Role) *MockDecider {
	return &MockDecider{role: role}
}

// Queue appends outcomes to the replay script.
func (m *MockDecider) Queue(outcomes ...Outcome) *MockDecider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, outcomes...)
	return m
}

// FailWith makes every Decide call return err.
func (m *MockDecider) FailWith(err error) *MockDecider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// BlockUntilCancelled makes every Decide call block until its context ends,
// simulating a decision function that always exceeds its timeout.
func (m *MockDecider) BlockUntilCancelled() *MockDecider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	return m
}

// Observed returns a copy of every event passed to Decide, in order.
func (m *MockDecider) Observed() []core.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Event, len(m.observed))
	copy(out, m.observed)
	return out
}

// Role implements Decider.
func (m *MockDecider) Role() core.Role { return m.role }

// Decide implements Decider.
func (m *MockDecider) Decide(ctx context.Context, ev core.Event, _ *core.Patient) (Outcome, error) {
	m.mu.Lock()
	m.observed = append(m.observed, ev)
	err := m.err
	delay := m.delay
	var out Outcome
	if err == nil && delay == nil && len(m.script) > 0 {
		out = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return Outcome{}, derr
		}
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}
