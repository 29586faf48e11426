package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/s33g/omni-probe/internal/config"
)

// ErrEmptyResponse is returned when the server replies without any choice
var ErrEmptyResponse = errors.New("response contained no choices")

// Client handles communication with one OpenAI-compatible server
type Client struct {
	httpClient *http.Client
	provider   *config.Provider
	apiKey     string
}

// NewClient creates a new client for a provider
func NewClient(provider *config.Provider) (*Client, error) {
	if provider.BaseURL == "" {
		return nil, fmt.Errorf("provider %s has no base_url", provider.Name)
	}

	// API key is optional for local servers
	apiKey := ""
	if provider.APIKeyEnv != "" {
		apiKey = os.Getenv(provider.APIKeyEnv)
	}

	return &Client{
		httpClient: &http.Client{Timeout: provider.Timeout()},
		provider:   provider,
		apiKey:     apiKey,
	}, nil
}

// Provider returns the provider configuration backing this client
func (c *Client) Provider() *config.Provider {
	return c.provider
}

// Chat sends a chat completion request
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &chatResp, nil
}

// Complete sends a request and returns the text content of the first choice
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, *Usage, error) {
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", &resp.Usage, ErrEmptyResponse
	}
	return resp.Choices[0].Message.Text(), &resp.Usage, nil
}

// Models lists the models the server reports
func (c *Client) Models(ctx context.Context) ([]ModelInfo, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	var models ModelsResponse
	if err := json.Unmarshal(respBody, &models); err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}
	return models.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := strings.TrimRight(c.provider.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	// llama.cpp reports some failures in a 200 body
	var errResp ErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
		return nil, fmt.Errorf("API error: %s", errResp.Error.Message)
	}

	return respBody, nil
}
