package convert

import (
	"encoding/json"
	"strings"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/apperrors"
	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

// FinishReason maps an Anthropic stop_reason onto an OpenAI finish_reason.
// Total over the documented domain; unknown values fall back to "stop".
func FinishReason(stopReason string) string {
	switch stopReason {
	case anthropicapi.StopReasonEndTurn:
		return openaiapi.FinishStop
	case anthropicapi.StopReasonMaxTokens:
		return openaiapi.FinishLength
	case anthropicapi.StopReasonStopSequence:
		return openaiapi.FinishStop
	case anthropicapi.StopReasonToolUse:
		return openaiapi.FinishToolCalls
	default:
		return openaiapi.FinishStop
	}
}

// Response translates a non-streaming Anthropic Messages response into an
// OpenAI chat completion response. clientModel is echoed back verbatim
// (the client's requested model name, not the upstream Vertex id).
func Response(resp anthropicapi.Response, clientModel string, created int64) (*openaiapi.ChatResponse, error) {
	var text strings.Builder
	var sawText bool
	var toolCalls []openaiapi.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			sawText = true
			text.WriteString(block.Text)
		case "tool_use":
			args, err := reserializeInput(block.Input)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.KindConversion, "serialize tool_use input", err)
			}
			toolCalls = append(toolCalls, openaiapi.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: openaiapi.ToolCallFunc{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}

	// Text blocks concatenate directly, without a join separator, so the
	// result equals what a client would get by concatenating streamed
	// delta.content fragments of the same events.
	var content *string
	if sawText {
		joined := text.String()
		content = &joined
	}

	usage := &openaiapi.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}

	return &openaiapi.ChatResponse{
		ID:      NewChatCompletionID(),
		Object:  "chat.completion",
		Created: created,
		Model:   clientModel,
		Choices: []openaiapi.Choice{{
			Index: 0,
			Message: openaiapi.ResponseMessage{
				Role:      openaiapi.RoleAssistant,
				Content:   content,
				ToolCalls: toolCalls,
			},
			FinishReason: FinishReason(resp.StopReason),
		}},
		Usage: usage,
	}, nil
}

// reserializeInput round-trips a tool_use block's parsed JSON input back
// into a canonical JSON string for OpenAI's function.arguments field. Input
// that is not valid JSON (a truncated stream accumulator) is passed through
// verbatim; no repair is attempted.
func reserializeInput(input json.RawMessage) (string, error) {
	if len(input) == 0 {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return string(input), nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
