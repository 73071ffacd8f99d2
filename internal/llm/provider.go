package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider generates tutor turns and structured analyses.
type Provider interface {
	// Generate sends req to the model. With a Schema the Content is
	// validated JSON; without one it is the reply text encoded as a JSON
	// string (see Text).
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes one model call.
type Request struct {
	System   string
	Messages []Message

	// Schema requests structured output. Nil means free text.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// Message is one turn of conversation history.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the model.
type Schema struct {
	// Name identifies the schema to providers and the validation cache.
	// Kebab-case, e.g. "dialogue-analysis".
	Name        string
	Description string
	Definition  map[string]any
}

// Response holds the model output.
type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Text decodes a free-text response. Content that is not a JSON string
// is returned verbatim.
func (r *Response) Text() string {
	var s string
	if err := json.Unmarshal(r.Content, &s); err == nil {
		return s
	}
	return string(r.Content)
}

// Decode unmarshals a structured response into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Content, v); err != nil {
		return &ErrInvalidResponse{Content: r.Content, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// finish turns raw model text into response content: validated JSON when
// a schema was requested, a JSON string otherwise.
func finish(req Request, raw string) (json.RawMessage, error) {
	if req.Schema == nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encode text: %w", err)
		}
		return b, nil
	}
	content := json.RawMessage(raw)
	if err := validateResponse(req.Schema, content); err != nil {
		return nil, err
	}
	return content, nil
}
