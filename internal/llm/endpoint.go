package llm

import (
	"context"
)

// Endpoint binds a model reference and sampling settings to a registry.
// It is the caller used by probes and the orchestrator.
type Endpoint struct {
	registry    *Registry
	ModelRef    string
	Temperature float64
	MaxTokens   int
	// OnUsage, when set, receives the usage block of every reply
	OnUsage func(Usage)
}

// NewEndpoint creates an endpoint for modelRef
func NewEndpoint(registry *Registry, modelRef string, temperature float64, maxTokens int) *Endpoint {
	return &Endpoint{
		registry:    registry,
		ModelRef:    modelRef,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// Call sends the conversation and returns the reply text
func (e *Endpoint) Call(ctx context.Context, messages []Message, tools []ToolDefinition) (string, error) {
	resp, err := e.registry.Chat(ctx, e.ModelRef, messages, Options{
		Temperature: e.Temperature,
		MaxTokens:   e.MaxTokens,
		Tools:       tools,
	})
	if err != nil {
		return "", err
	}

	if e.OnUsage != nil {
		e.OnUsage(resp.Usage)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Text(), nil
}
