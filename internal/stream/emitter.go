package stream

import (
	"strings"

	"github.com/corvidlabs/vertexpass/internal/openaiapi"
)

// BufferedThreshold is the fixed buffered-SSE flush threshold; it is not
// externally configurable.
const BufferedThreshold = 64

// sentenceTerminators are the characters that force an early flush in
// buffered mode.
const sentenceTerminators = ".!?\n"

// Emitter is the per-mode delivery strategy a stream call writes its
// OpenAI chunks through.
type Emitter interface {
	// Emit delivers one chunk produced by the Transformer.
	Emit(chunk *openaiapi.ChatChunk) error
	// Flush forces out any buffered-but-undelivered content; a no-op for
	// modes that never buffer. Called on content_block_stop.
	Flush() error
	// Done drains any buffered content and writes the terminal [DONE]
	// sentinel.
	Done() error
}

// StandardEmitter flushes every chunk to the client immediately.
type StandardEmitter struct{ w *Writer }

func NewStandardEmitter(w *Writer) *StandardEmitter { return &StandardEmitter{w: w} }

func (e *StandardEmitter) Emit(chunk *openaiapi.ChatChunk) error { return e.w.WriteJSON(chunk) }
func (e *StandardEmitter) Flush() error                          { return nil }
func (e *StandardEmitter) Done() error                           { return e.w.WriteDone() }

// ClassicChunk is the simplified OpenAI-legacy SSE envelope some older
// clients require: the same delta objects, without the id/object/model
// wrapping fields modern clients expect.
type ClassicChunk struct {
	Choices []openaiapi.ChunkChoice `json:"choices"`
}

// ClassicEmitter writes the same framing as StandardEmitter but wraps each
// chunk's choices in the legacy envelope.
type ClassicEmitter struct{ w *Writer }

func NewClassicEmitter(w *Writer) *ClassicEmitter { return &ClassicEmitter{w: w} }

func (e *ClassicEmitter) Emit(chunk *openaiapi.ChatChunk) error {
	return e.w.WriteJSON(ClassicChunk{Choices: chunk.Choices})
}
func (e *ClassicEmitter) Flush() error { return nil }
func (e *ClassicEmitter) Done() error  { return e.w.WriteDone() }

// BufferedEmitter coalesces consecutive text deltas into fewer frames,
// flushing at BufferedThreshold characters, at a sentence terminator, or
// on an explicit Flush/terminal chunk. Tool-call deltas and the initial
// role chunk are never buffered — they flush immediately, after first
// flushing any pending text so frame order is preserved.
type BufferedEmitter struct {
	w       *Writer
	buf     strings.Builder
	pending *openaiapi.ChatChunk // template (id/model/index) for the buffered content chunk
}

func NewBufferedEmitter(w *Writer) *BufferedEmitter { return &BufferedEmitter{w: w} }

func (e *BufferedEmitter) Emit(chunk *openaiapi.ChatChunk) error {
	if len(chunk.Choices) != 1 {
		return e.flushThenWrite(chunk)
	}
	choice := chunk.Choices[0]

	// Terminal chunk (finish_reason set) and usage-bearing chunks always
	// flush immediately, after draining any buffered text first.
	if choice.FinishReason != nil {
		return e.flushThenWrite(chunk)
	}

	// Role chunk or tool-call delta: never buffered.
	if choice.Delta.Role != "" || len(choice.Delta.ToolCalls) > 0 {
		return e.flushThenWrite(chunk)
	}

	if choice.Delta.Content == nil {
		return e.flushThenWrite(chunk)
	}

	e.pending = chunk
	e.buf.WriteString(*choice.Delta.Content)

	if e.buf.Len() >= BufferedThreshold || strings.ContainsAny(*choice.Delta.Content, sentenceTerminators) {
		return e.Flush()
	}
	return nil
}

// Flush drains any buffered text as a single content chunk.
func (e *BufferedEmitter) Flush() error {
	if e.buf.Len() == 0 {
		return nil
	}
	text := e.buf.String()
	e.buf.Reset()
	chunk := *e.pending
	chunk.Choices = append([]openaiapi.ChunkChoice(nil), e.pending.Choices...)
	chunk.Choices[0].Delta = openaiapi.Delta{Content: &text}
	e.pending = nil
	return e.w.WriteJSON(&chunk)
}

func (e *BufferedEmitter) flushThenWrite(chunk *openaiapi.ChatChunk) error {
	if err := e.Flush(); err != nil {
		return err
	}
	return e.w.WriteJSON(chunk)
}

func (e *BufferedEmitter) Done() error {
	if err := e.Flush(); err != nil {
		return err
	}
	return e.w.WriteDone()
}

// NewEmitter builds the Emitter for a standard or buffered or classic
// transmission mode (non-streaming is handled separately via Collector).
func NewEmitter(mode string, w *Writer) Emitter {
	switch mode {
	case "buffered":
		return NewBufferedEmitter(w)
	case "classic":
		return NewClassicEmitter(w)
	default:
		return NewStandardEmitter(w)
	}
}
