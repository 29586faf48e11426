package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/s33g/omni-probe/internal/config"
)

// Options carries per-call sampling settings
type Options struct {
	Temperature float64
	MaxTokens   int
	Tools       []ToolDefinition
}

// Registry manages providers and their clients
type Registry struct {
	clients map[string]*Client // key: provider name
	mu      sync.RWMutex
	config  *config.Config
}

// NewRegistry creates a new provider registry
func NewRegistry(cfg *config.Config) (*Registry, error) {
	clients, err := buildClients(cfg)
	if err != nil {
		return nil, err
	}
	return &Registry{clients: clients, config: cfg}, nil
}

func buildClients(cfg *config.Config) (map[string]*Client, error) {
	clients := make(map[string]*Client, len(cfg.Providers))
	for i := range cfg.Providers {
		client, err := NewClient(&cfg.Providers[i])
		if err != nil {
			return nil, fmt.Errorf("failed to create client for provider %s: %w", cfg.Providers[i].Name, err)
		}
		clients[cfg.Providers[i].Name] = client
	}
	return clients, nil
}

// GetClient returns the client for a provider
func (r *Registry) GetClient(providerName string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}
	return client, nil
}

// Resolve returns the client and the server-side model ID for a model reference
func (r *Registry) Resolve(modelRef string) (*Client, *config.Model, error) {
	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	provider, model, err := cfg.ResolveModel(modelRef)
	if err != nil {
		return nil, nil, err
	}

	client, err := r.GetClient(provider.Name)
	if err != nil {
		return nil, nil, err
	}
	return client, model, nil
}

// Chat sends a chat request to the provider serving modelRef
func (r *Registry) Chat(ctx context.Context, modelRef string, messages []Message, opts Options) (*ChatResponse, error) {
	client, model, err := r.Resolve(modelRef)
	if err != nil {
		return nil, err
	}

	return client.Chat(ctx, ChatRequest{
		Model:       model.ID,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Tools:       opts.Tools,
	})
}

// Reload reinitializes clients after config reload
func (r *Registry) Reload(cfg *config.Config) error {
	clients, err := buildClients(cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = clients
	r.config = cfg
	return nil
}
