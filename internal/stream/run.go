package stream

import (
	"fmt"
	"iter"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
)

// UpstreamError wraps an upstream "error" SSE event surfaced mid-stream.
// The caller (httpapi) writes it as a final SSE error frame followed by
// [DONE] rather than changing the already-committed HTTP status.
type UpstreamError struct {
	Event *anthropicapi.ErrorPayload
}

func (e *UpstreamError) Error() string {
	if e.Event == nil {
		return "upstream stream error"
	}
	return fmt.Sprintf("upstream stream error: %s: %s", e.Event.Type, e.Event.Message)
}

// Run drives one upstream Anthropic event stream through a Transformer and
// an Emitter to completion: every chunk the Transformer produces is handed
// to the Emitter in order, content_block_stop forces any buffered text to
// flush (so buffered mode never holds text across a block boundary), and
// the terminal message_stop writes the final chunk followed by [DONE].
//
// A non-nil returned error is the iterator's own transport error
// (caller should have sent no bytes yet if this is a non-streaming
// replay, or otherwise must have already committed to the stream), an
// error from the Emitter while writing a frame, or an *UpstreamError from
// an upstream "error" event.
func Run(events iter.Seq2[anthropicapi.Event, error], emitter Emitter, clientModel string, created int64) error {
	t := NewTransformer(clientModel, created)

	for ev, err := range events {
		if err != nil {
			return fmt.Errorf("read upstream event: %w", err)
		}

		chunks, done, evErr := t.Handle(ev)
		for _, c := range chunks {
			if err := emitter.Emit(c); err != nil {
				return fmt.Errorf("emit chunk: %w", err)
			}
		}

		if ev.Type == anthropicapi.EventContentBlockStop {
			if err := emitter.Flush(); err != nil {
				return fmt.Errorf("flush buffered content: %w", err)
			}
		}

		if evErr != nil {
			return &UpstreamError{Event: evErr}
		}

		if done {
			return emitter.Done()
		}
	}

	return nil
}
