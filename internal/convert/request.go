// Package convert implements the bidirectional translation between the
// OpenAI chat completion wire format and the Anthropic Messages wire format:
// the Request Converter (OpenAI -> Anthropic) and the Response Converter
// (Anthropic -> OpenAI, non-streaming). Both are pure data transformations;
// neither performs I/O.
package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/apperrors"
	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

// DefaultMaxTokens is substituted when the OpenAI request omits max_tokens,
// which Anthropic requires.
const DefaultMaxTokens = 4096

// MaxRequestBytes bounds the encoded Anthropic request body; requests that
// would exceed it fail with KindInvalidRequest.
const MaxRequestBytes = 8 << 20 // 8 MiB

// RequestResult is the output of Request: the translated body (whose Model
// is the upstream-bound model id) and any non-fatal warnings recorded along
// the way (e.g. unparseable tool-call arguments).
type RequestResult struct {
	Body     *anthropicapi.Request
	Warnings []string
}

// Request translates an OpenAI chat completion request into an Anthropic
// Messages request. upstreamModel is the Vertex-side model identifier to
// place in the translated body, independent of whatever model name the
// client sent.
func Request(req openaiapi.ChatRequest, upstreamModel string) (*RequestResult, error) {
	if len(req.Messages) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "messages array must not be empty")
	}

	result := &RequestResult{}

	bucket, err := bucketMessages(req.Messages, result)
	if err != nil {
		return nil, err
	}

	system := systemText(bucket)
	messages := mergeAlternating(bucket)

	out := &anthropicapi.Request{
		Model:        upstreamModel,
		AnthropicVer: anthropicapi.AnthropicVersion,
		System:       system,
		MaxTokens:    DefaultMaxTokens,
		Messages:     messages,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Stop != nil {
		out.StopSequences = req.Stop.Sequences
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		out.Tools = tools
	}

	if req.ToolChoice != nil {
		choice, err := convertToolChoice(*req.ToolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolChoice = choice
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConversion, "encode anthropic request", err)
	}
	if len(encoded) > MaxRequestBytes {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "request exceeds maximum encoded size")
	}

	result.Body = out
	return result, nil
}

// bucketedMessage is an intermediate representation: Role is the Anthropic
// bucket ("user" or "assistant") a non-system message merges under, or
// "system" for hoisted text.
type bucketedMessage struct {
	role   string
	blocks []anthropicapi.Block
}

// bucketMessages walks the OpenAI message list in order, converting each
// into Anthropic content blocks and assigning it to the bucket role it will
// merge under. System messages are kept separate (role "system") for the
// caller to hoist and newline-join.
func bucketMessages(messages []openaiapi.Message, result *RequestResult) ([]bucketedMessage, error) {
	bucketed := make([]bucketedMessage, 0, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case openaiapi.RoleSystem:
			text, err := textFromRawContent(msg.RawContent)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindInvalidRequest, fmt.Sprintf("message %d: system content", i), err)
			}
			if text == "" {
				continue
			}
			bucketed = append(bucketed, bucketedMessage{role: "system", blocks: []anthropicapi.Block{{Type: "text", Text: text}}})

		case openaiapi.RoleUser:
			blocks, err := blocksFromRawContent(msg.RawContent)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindInvalidRequest, fmt.Sprintf("message %d: user content", i), err)
			}
			if len(blocks) == 0 {
				continue
			}
			bucketed = append(bucketed, bucketedMessage{role: anthropicapi.RoleUser, blocks: blocks})

		case openaiapi.RoleAssistant:
			blocks, err := blocksFromRawContent(msg.RawContent)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindInvalidRequest, fmt.Sprintf("message %d: assistant content", i), err)
			}
			for _, tc := range msg.ToolCalls {
				block, warn := toolCallToBlock(tc)
				if warn != "" {
					result.Warnings = append(result.Warnings, fmt.Sprintf("message %d: %s", i, warn))
				}
				blocks = append(blocks, block)
			}
			if len(blocks) == 0 {
				continue
			}
			bucketed = append(bucketed, bucketedMessage{role: anthropicapi.RoleAssistant, blocks: blocks})

		case openaiapi.RoleTool:
			text, err := textFromRawContent(msg.RawContent)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindInvalidRequest, fmt.Sprintf("message %d: tool content", i), err)
			}
			content, err := json.Marshal(text)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindConversion, "marshal tool result content", err)
			}
			block := anthropicapi.Block{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   content,
			}
			// Tool results bucket under "user" (Anthropic requires them in a
			// user turn) and pack contiguously via the general merge step.
			bucketed = append(bucketed, bucketedMessage{role: anthropicapi.RoleUser, blocks: []anthropicapi.Block{block}})

		default:
			return nil, apperrors.New(apperrors.KindInvalidRequest, fmt.Sprintf("message %d: unknown role %q", i, msg.Role))
		}
	}

	return bucketed, nil
}

// systemText concatenates every "system"-bucketed message's text,
// newline-joined in order, and returns it. The system entries are excluded
// from the returned bucket list by mergeAlternating.
func systemText(bucket []bucketedMessage) string {
	var parts []string
	for _, b := range bucket {
		if b.role != "system" {
			continue
		}
		for _, blk := range b.blocks {
			parts = append(parts, blk.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// mergeAlternating drops system entries and merges consecutive same-role
// entries into a single Anthropic message, satisfying the strict user/
// assistant alternation Anthropic requires without otherwise reordering or
// splitting content.
func mergeAlternating(bucket []bucketedMessage) []anthropicapi.Message {
	var out []anthropicapi.Message
	for _, b := range bucket {
		if b.role == "system" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == b.role {
			out[n-1].Content = append(out[n-1].Content, b.blocks...)
			continue
		}
		out = append(out, anthropicapi.Message{Role: b.role, Content: append([]anthropicapi.Block(nil), b.blocks...)})
	}
	return out
}

// textFromRawContent extracts plain text from an OpenAI content field that
// may be a bare string or a content-part array (text parts only contribute).
func textFromRawContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var parts []openaiapi.ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("content is neither a string nor a part array: %w", err)
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// blocksFromRawContent converts an OpenAI content field into Anthropic
// content blocks, preserving part order. A bare string becomes one text
// block.
func blocksFromRawContent(raw json.RawMessage) ([]anthropicapi.Block, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []anthropicapi.Block{{Type: "text", Text: asString}}, nil
	}

	var parts []openaiapi.ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("content is neither a string nor a part array: %w", err)
	}

	blocks := make([]anthropicapi.Block, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case "text":
			blocks = append(blocks, anthropicapi.Block{Type: "text", Text: p.Text})
		case "image_url":
			if p.ImageURL == nil {
				continue
			}
			blocks = append(blocks, imageBlock(p.ImageURL.URL))
		}
	}
	return blocks, nil
}

// imageBlock converts an OpenAI image_url value (remote URL or data: URI)
// into an Anthropic image block.
func imageBlock(url string) anthropicapi.Block {
	if mediaType, data, ok := strings.Cut(url, ";base64,"); ok {
		mediaType = strings.TrimPrefix(mediaType, "data:")
		return anthropicapi.Block{
			Type: "image",
			Source: &anthropicapi.ImageSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      data,
			},
		}
	}
	return anthropicapi.Block{
		Type: "image",
		Source: &anthropicapi.ImageSource{
			Type: "url",
			URL:  url,
		},
	}
}

// toolCallToBlock converts one OpenAI assistant tool_call into an Anthropic
// tool_use block. If the arguments string fails to parse as JSON, it is
// wrapped as {"_raw": <original string>} and a warning is returned rather
// than failing the whole request.
func toolCallToBlock(tc openaiapi.ToolCall) (anthropicapi.Block, string) {
	input := json.RawMessage(tc.Function.Arguments)
	warning := ""
	if !json.Valid(input) {
		raw, err := json.Marshal(map[string]string{"_raw": tc.Function.Arguments})
		if err != nil {
			raw = []byte(`{}`)
		}
		input = raw
		warning = fmt.Sprintf("tool call %s: arguments did not parse as JSON, wrapped as _raw", tc.ID)
	}
	return anthropicapi.Block{
		Type:  "tool_use",
		ID:    tc.ID,
		Name:  tc.Function.Name,
		Input: input,
	}, warning
}

// convertTools maps OpenAI function-tool declarations onto Anthropic tools.
func convertTools(tools []openaiapi.Tool) ([]anthropicapi.Tool, error) {
	out := make([]anthropicapi.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Type != "" && t.Type != "function" {
			continue
		}
		out = append(out, anthropicapi.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	return out, nil
}

// convertToolChoice maps OpenAI's tool_choice onto Anthropic's tool_choice.
// "auto" is represented by a nil result (the field is omitted, which is
// Anthropic's default).
func convertToolChoice(tc openaiapi.ToolChoice) (*anthropicapi.ToolChoice, error) {
	switch tc.Mode {
	case "", "auto":
		return nil, nil
	case "none":
		return &anthropicapi.ToolChoice{Type: "none"}, nil
	case "function":
		if tc.Function == nil {
			return nil, apperrors.New(apperrors.KindInvalidRequest, "tool_choice function mode missing function name")
		}
		return &anthropicapi.ToolChoice{Type: "tool", Name: tc.Function.Name}, nil
	default:
		return nil, apperrors.New(apperrors.KindInvalidRequest, fmt.Sprintf("unsupported tool_choice mode %q", tc.Mode))
	}
}

// NewChatCompletionID generates a stable chatcmpl-<uuid> identifier, used
// both for non-streaming responses and as the chunk_id shared across all
// chunks of one streaming call.
func NewChatCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}
