// Package openai provides an LLM-backed clinical decider using the OpenAI
// Chat Completions API. It mirrors the Anthropic adapter: one event plus
// patient snapshot in, one parsed JSON decision object out.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/careloop/icumesh/core"
	"github.com/careloop/icumesh/decider"
)

// Options configures the OpenAI-backed decider.
type Options struct {
	// Model is the chat model identifier.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxCompletionTokens bounds the completion length.
	MaxCompletionTokens int64

	// APIKey authenticates against the OpenAI API. When empty the SDK falls
	// back to the OPENAI_API_KEY environment variable.
	APIKey string
}

// Decider is an LLM-backed decider for a single clinical role.
type Decider struct {
	client *openai.Client
	role   core.Role
	opts   Options
}

var _ decider.Decider = (*Decider)(nil)

// New creates an OpenAI-backed decider for the given role.
func New(role core.Role, optFns ...func(o *Options)) (*Decider, error) {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var requestOpts []option.RequestOption
	if opts.APIKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(requestOpts...)

	return NewFromClient(&client, role, optFns...)
}

// NewFromClient creates an OpenAI-backed decider using a preconfigured
// client.
func NewFromClient(client *openai.Client, role core.Role, optFns ...func(o *Options)) (*Decider, error) {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
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
func (d *Decider) Decide(ctx context.Context, ev core.Event, snapshot *core.Patient) (decider.Outcome, error) {
	params := openai.ChatCompletionNewParams{
		Model: d.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(decider.SystemPrompt(d.role)),
			openai.UserMessage(decider.EventPrompt(ev, snapshot)),
		},
		Temperature:         openai.Float(d.opts.Temperature),
		MaxCompletionTokens: openai.Int(d.opts.MaxCompletionTokens),
	}

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return decider.Outcome{}, fmt.Errorf("openai chat completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return decider.Outcome{}, fmt.Errorf("openai reply contained no choices")
	}

	return decider.ParseOutcome(d.role, ev.PatientID(), resp.Choices[0].Message.Content)
}
