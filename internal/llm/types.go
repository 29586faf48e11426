package llm

import (
	"strings"
)

// Request types for OpenAI-compatible API

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content part types
const (
	PartText  = "text"
	PartImage = "image_url"
	PartAudio = "audio_url"
	PartVideo = "video_url"
)

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	// Temperature is always sent; probes rely on an explicit 0
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Stream      bool             `json:"stream"`
}

// Message represents a chat message. Content is either a string or a []ContentPart.
type Message struct {
	Role      string     `json:"role"` // system, user, assistant, tool
	Content   any        `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Text returns the textual content of the message, joining text parts
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []ContentPart:
		var texts []string
		for _, p := range c {
			if p.Type == PartText {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	case []any:
		var texts []string
		for _, raw := range c {
			p, ok := raw.(map[string]any)
			if !ok || p["type"] != PartText {
				continue
			}
			if s, ok := p["text"].(string); ok {
				texts = append(texts, s)
			}
		}
		return strings.Join(texts, "\n")
	default:
		return ""
	}
}

// ContentPart is one element of a multimodal message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *MediaURL `json:"image_url,omitempty"`
	AudioURL *MediaURL `json:"audio_url,omitempty"`
	VideoURL *MediaURL `json:"video_url,omitempty"`
	// Pixel bounds understood by Qwen-VL style servers
	MinPixels int `json:"min_pixels,omitempty"`
	MaxPixels int `json:"max_pixels,omitempty"`
}

// MediaURL wraps a remote URL or a data URL
type MediaURL struct {
	URL string `json:"url"`
}

// TextPart builds a text content part
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ToolDefinition describes a tool the model may call
type ToolDefinition struct {
	Type     string      `json:"type"` // always "function"
	Function FunctionDef `json:"function"`
}

// FunctionDef describes the function signature
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// ToolCall is a structured tool call, for servers that emit native tool_calls
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ModelInfo is an entry of the /models listing
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ModelsResponse represents the /models listing
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}
