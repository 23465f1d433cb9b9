package stream

import (
	"strings"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/convert"
	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

// blockState tracks one Anthropic content block's accumulator across the
// events that build it.
type blockState struct {
	kind string // anthropic content_block.Type: "text", "tool_use", ...

	textAccum strings.Builder // kept for validation only, never re-emitted

	toolID       string
	toolName     string
	toolOpenAIIx int
	jsonAccum    strings.Builder
}

// Transformer holds the per-call streaming state machine: it consumes one
// Anthropic event at a time and returns zero or more OpenAI chunks to
// emit, plus whether the call has reached its terminal event.
type Transformer struct {
	chunkID string
	model   string
	created int64

	roleEmitted    bool
	blocks         map[int]*blockState
	toolIndexNext  int
	stopReasonOut  string
	usage          *openaiapi.Usage
}

// NewTransformer starts a fresh per-call state machine. clientModel is the
// model name echoed to the client (not necessarily the upstream model id).
// created is frozen at construction and shared by every chunk of the call.
func NewTransformer(clientModel string, created int64) *Transformer {
	return &Transformer{
		chunkID: convert.NewChatCompletionID(),
		model:   clientModel,
		created: created,
		blocks:  make(map[int]*blockState),
	}
}

// Handle advances the state machine by one upstream event, returning the
// OpenAI chunks it produces (zero, one, or — for message_stop, which also
// flips done — one) and whether the call has reached its terminal event.
// A non-nil error means the upstream "error" event fired; the caller is
// responsible for translating it into a final SSE error frame and [DONE].
func (t *Transformer) Handle(ev anthropicapi.Event) (chunks []*openaiapi.ChatChunk, done bool, err *anthropicapi.ErrorPayload) {
	switch ev.Type {
	case anthropicapi.EventMessageStart:
		if ev.Message != nil {
			in, out := ev.Message.Usage.InputTokens, ev.Message.Usage.OutputTokens
			t.usage = &openaiapi.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
		}
		return []*openaiapi.ChatChunk{t.emitRole()}, false, nil

	case anthropicapi.EventContentBlockStart:
		return t.handleBlockStart(ev), false, nil

	case anthropicapi.EventContentBlockDelta:
		return t.handleBlockDelta(ev), false, nil

	case anthropicapi.EventContentBlockStop:
		return nil, false, nil

	case anthropicapi.EventMessageDelta:
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			t.stopReasonOut = convert.FinishReason(ev.Delta.StopReason)
		}
		if ev.Usage != nil {
			prompt := ev.Usage.InputTokens
			if prompt == 0 && t.usage != nil {
				prompt = t.usage.PromptTokens
			}
			t.usage = &openaiapi.Usage{
				PromptTokens:     prompt,
				CompletionTokens: ev.Usage.OutputTokens,
				TotalTokens:      prompt + ev.Usage.OutputTokens,
			}
		}
		return nil, false, nil

	case anthropicapi.EventMessageStop:
		return []*openaiapi.ChatChunk{t.emitTerminal()}, true, nil

	case anthropicapi.EventPing:
		return nil, false, nil

	case anthropicapi.EventError:
		return nil, true, ev.Error

	default:
		return nil, false, nil
	}
}

// emitRole produces the obligatory first chunk carrying delta.role, which
// must precede any other chunk in the call.
func (t *Transformer) emitRole() *openaiapi.ChatChunk {
	t.roleEmitted = true
	return t.chunk(openaiapi.Delta{Role: openaiapi.RoleAssistant}, nil, nil)
}

func (t *Transformer) handleBlockStart(ev anthropicapi.Event) []*openaiapi.ChatChunk {
	if ev.ContentBlock == nil {
		return nil
	}
	switch ev.ContentBlock.Type {
	case "tool_use":
		ix := t.toolIndexNext
		t.toolIndexNext++
		t.blocks[ev.Index] = &blockState{
			kind:         "tool_use",
			toolID:       ev.ContentBlock.ID,
			toolName:     ev.ContentBlock.Name,
			toolOpenAIIx: ix,
		}
		args := ""
		return []*openaiapi.ChatChunk{t.chunk(openaiapi.Delta{
			ToolCalls: []openaiapi.ToolCall{{
				ID:    ev.ContentBlock.ID,
				Type:  "function",
				Index: &ix,
				Function: openaiapi.ToolCallFunc{
					Name:      ev.ContentBlock.Name,
					Arguments: args,
				},
			}},
		}, nil, nil)}
	default:
		t.blocks[ev.Index] = &blockState{kind: ev.ContentBlock.Type}
		return nil
	}
}

func (t *Transformer) handleBlockDelta(ev anthropicapi.Event) []*openaiapi.ChatChunk {
	if ev.Delta == nil {
		return nil
	}
	block := t.blocks[ev.Index]

	switch ev.Delta.Type {
	case anthropicapi.DeltaTypeText:
		if block != nil {
			block.textAccum.WriteString(ev.Delta.Text)
		}
		text := ev.Delta.Text
		return []*openaiapi.ChatChunk{t.chunk(openaiapi.Delta{Content: &text}, nil, nil)}

	case anthropicapi.DeltaTypeInputJSON:
		if block == nil {
			return nil
		}
		block.jsonAccum.WriteString(ev.Delta.PartialJSON)
		args := ev.Delta.PartialJSON
		return []*openaiapi.ChatChunk{t.chunk(openaiapi.Delta{
			ToolCalls: []openaiapi.ToolCall{{
				Index: &block.toolOpenAIIx,
				Function: openaiapi.ToolCallFunc{
					Arguments: args,
				},
			}},
		}, nil, nil)}

	default:
		return nil
	}
}

// emitTerminal produces the final chunk: empty delta, finish_reason
// (defaulting to "stop" if no message_delta ever arrived), and whatever
// usage was accumulated.
func (t *Transformer) emitTerminal() *openaiapi.ChatChunk {
	reason := t.stopReasonOut
	if reason == "" {
		reason = openaiapi.FinishStop
	}
	return t.chunk(openaiapi.Delta{}, &reason, t.usage)
}

func (t *Transformer) chunk(delta openaiapi.Delta, finishReason *string, usage *openaiapi.Usage) *openaiapi.ChatChunk {
	return &openaiapi.ChatChunk{
		ID:      t.chunkID,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []openaiapi.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
		Usage: usage,
	}
}
