package stream

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
)

func TestBufferedModeCoalescesTextDeltas(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	emitter := NewBufferedEmitter(w)

	events := []anthropicapi.Event{
		{Type: anthropicapi.EventMessageStart, Message: &anthropicapi.Response{}},
		textDeltaEvent(0, "H"),
		textDeltaEvent(0, "el"),
		textDeltaEvent(0, "lo"),
		textDeltaEvent(0, " world"),
		textDeltaEvent(0, "."),
		{Type: anthropicapi.EventMessageDelta, Delta: &anthropicapi.EventDelta{StopReason: anthropicapi.StopReasonEndTurn}},
		{Type: anthropicapi.EventMessageStop},
	}

	if err := Run(sliceEvents(events), emitter, "m", 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")

	var contentFrames int
	for _, f := range frames {
		if strings.Contains(f, `"content":"Hello world."`) {
			contentFrames++
		}
	}
	if contentFrames != 1 {
		t.Errorf("expected exactly one coalesced content frame, got %d in body:\n%s", contentFrames, body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Errorf("expected body to end with [DONE], got:\n%s", body)
	}
}

// sliceEvents adapts a plain slice of events into the iter.Seq2 shape Run
// expects, for tests that don't need the incremental SSE reader.
func sliceEvents(events []anthropicapi.Event) func(yield func(anthropicapi.Event, error) bool) {
	return func(yield func(anthropicapi.Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}
