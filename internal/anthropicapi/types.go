// Package anthropicapi defines the Anthropic Messages wire format the proxy
// speaks to Vertex's :rawPredict / :streamRawPredict surface: the request
// body, the non-streaming response, and the typed SSE event union.
package anthropicapi

import "encoding/json"

// AnthropicVersion is the header/body tag Vertex requires for Claude models.
const AnthropicVersion = "vertex-2023-10-16"

// Role values on a Request message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StopReason values on a non-streaming Response or a MessageDelta event.
const (
	StopReasonEndTurn      = "end_turn"
	StopReasonMaxTokens    = "max_tokens"
	StopReasonStopSequence = "stop_sequence"
	StopReasonToolUse      = "tool_use"
)

// Request is the Anthropic Messages request body.
type Request struct {
	Model         string          `json:"model,omitempty"`
	AnthropicVer  string          `json:"anthropic_version,omitempty"`
	System        string          `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Messages      []Message       `json:"messages"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

// Message is one turn; Content is an ordered sequence of typed blocks.
type Message struct {
	Role    string  `json:"role"`
	Content []Block `json:"content"`
}

// Block is one content block. Exactly one of the type-specific fields is
// populated, selected by Type.
type Block struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ImageSource carries either an inline base64 payload or a remote URL.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Tool is a function tool declaration.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoice selects auto/none/a specific tool; Type is "auto", "any",
// "tool", or "none".
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Response is the non-streaming Anthropic Messages response.
type Response struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Role       string  `json:"role"`
	Model      string  `json:"model"`
	Content    []Block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      Usage   `json:"usage"`
}

// Usage reports token accounting on both the non-streaming response and the
// streaming MessageDelta event.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Event-type discriminators of the Anthropic SSE stream.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta-kind discriminators within a content_block_delta event.
const (
	DeltaTypeText       = "text_delta"
	DeltaTypeInputJSON  = "input_json_delta"
)

// Event is one decoded SSE frame; only the fields relevant to its Type are
// populated, mirroring the discriminated-union shape of the upstream
// schema. A single flat struct (rather than per-type structs plus a
// discriminator-driven union) matches the trivial per-event branching the
// stream transformer performs and avoids a second parse pass.
type Event struct {
	Type string `json:"type"`

	// message_start
	Message *Response `json:"message,omitempty"`

	// content_block_start / content_block_stop
	Index        int    `json:"index"`
	ContentBlock *Block `json:"content_block,omitempty"`

	// content_block_delta
	Delta *EventDelta `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`

	// error
	Error *ErrorPayload `json:"error,omitempty"`
}

// EventDelta is the payload of a content_block_delta or message_delta event;
// which fields apply depends on the enclosing event's context (block-delta
// kind vs. message-delta stop_reason).
type EventDelta struct {
	Type string `json:"type"`

	// content_block_delta / text_delta
	Text string `json:"text,omitempty"`

	// content_block_delta / input_json_delta
	PartialJSON string `json:"partial_json,omitempty"`

	// message_delta
	StopReason string `json:"stop_reason,omitempty"`
}

// ErrorPayload is the payload of an "error" event.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
