// Package anthropic provides an LLM-backed clinical decider using the
// Anthropic Messages API. It renders the incoming event and patient snapshot
// into a prompt, asks the model for a single JSON decision object, and parses
// the reply into a decider.Outcome.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/decider"
)

// Options configures the Anthropic-backed decider.
type Options struct {
	// Model is the Anthropic model identifier.
	Model anthropic.Model

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens bounds the completion length.
	MaxTokens int64

	// APIKey authenticates against the Anthropic API. When empty the SDK
	// falls back to the ANTHROPIC_API_KEY environment variable.
	APIKey string
}

// Decider is an LLM-backed decider for a single clinical role.
type Decider struct {
	client *anthropic.Client
	role   core.Role
	opts   Options
}

var _ decider.Decider = (*Decider)(nil)

// New creates an Anthropic-backed decider for the given role.
func New(role core.Role, optFns ...func(o *Options)) (*Decider, error) {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var requestOpts []option.RequestOption
	if opts.APIKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(requestOpts...)

	return NewFromClient(&client, role, optFns...)
}

// NewFromClient creates an Anthropic-backed decider using a preconfigured
// client. Useful for custom transports or test doubles.
func NewFromClient(client *anthropic.Client, role core.Role, optFns ...func(o *Options)) (*Decider, error) {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	return &Decider{
		client: client,
		role:   role,
		opts:   opts,
	}, nil
}

// Role returns the clinical role this decider acts as.
func (d *Decider) Role() core.Role {
	return d.role
}

// Decide sends the event and snapshot to the model and parses the JSON reply.
// A reply of {"action":"none"} yields an empty outcome.
func (d *Decider) Decide(ctx context.Context, ev core.Event, snapshot *core.Patient) (decider.Outcome, error) {
	params := anthropic.MessageNewParams{
		Model: d.opts.Model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(decider.EventPrompt(ev, snapshot))),
		},
		MaxTokens:   d.opts.MaxTokens,
		Temperature: anthropic.Float(d.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: decider.SystemPrompt(d.role)},
		},
	}

	resp, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return decider.Outcome{}, fmt.Errorf("anthropic message request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return decider.Outcome{}, fmt.Errorf("anthropic reply contained no text content")
	}

	return decider.ParseOutcome(d.role, ev.PatientID(), text)
}
