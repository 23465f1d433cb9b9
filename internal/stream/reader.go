// Package stream implements the streaming translation layer: the state
// machine that consumes an upstream Anthropic SSE event stream and emits
// OpenAI-style delta chunks in whichever transmission mode the policy
// selected for the request.
package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"strings"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
)

// Events parses an Anthropic SSE byte stream into typed events, splitting
// incrementally on blank lines as they arrive rather than buffering the
// whole body. Lines are read with bufio.Scanner so each Anthropic "data:"
// payload is handed to the caller as soon as its terminating blank line is
// seen; "event:" lines are ignored since every Anthropic data payload
// already carries its own "type" field.
func Events(r io.Reader) iter.Seq2[anthropicapi.Event, error] {
	return func(yield func(anthropicapi.Event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4<<20)

		var dataLines []string

		emit := func() bool {
			if len(dataLines) == 0 {
				return true
			}
			data := strings.Join(dataLines, "\n")
			dataLines = nil
			if data == "[DONE]" {
				return false
			}
			var ev anthropicapi.Event
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				yield(anthropicapi.Event{}, err)
				return false
			}
			return yield(ev, nil)
		}

		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			if line == "" {
				if !emit() {
					return
				}
				continue
			}
			if rest, ok := strings.CutPrefix(line, "data:"); ok {
				dataLines = append(dataLines, strings.TrimPrefix(rest, " "))
			}
			// event:, id:, retry:, and comment (":") lines carry no
			// information we need; the data payload's own "type" field is
			// authoritative.
		}

		if err := scanner.Err(); err != nil {
			yield(anthropicapi.Event{}, err)
			return
		}
		emit()
	}
}
