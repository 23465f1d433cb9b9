package stream

import (
	"encoding/json"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
)

// collectorBlock mirrors blockState but for the non-streaming replay path,
// which must reconstruct a concrete content block (not just emit deltas).
type collectorBlock struct {
	block anthropicapi.Block
	json  []byte // accumulated input_json_delta fragments, for tool_use
}

// Collector replays an Anthropic SSE stream against the same per-block
// accumulation the streaming Transformer uses, producing a single
// non-streaming Response for delivery paths that cannot stream. Both paths
// build the same accumulators from the same events, so streamed and
// collected output always agree.
type Collector struct {
	resp   anthropicapi.Response
	order  []int
	blocks map[int]*collectorBlock
}

// NewCollector starts a fresh replay accumulator.
func NewCollector() *Collector {
	return &Collector{blocks: make(map[int]*collectorBlock)}
}

// Handle folds one upstream event into the accumulator. Returns the
// upstream error payload, if any, and whether the terminal event has been
// reached.
func (c *Collector) Handle(ev anthropicapi.Event) (done bool, err *anthropicapi.ErrorPayload) {
	switch ev.Type {
	case anthropicapi.EventMessageStart:
		if ev.Message != nil {
			c.resp.ID = ev.Message.ID
			c.resp.Model = ev.Message.Model
			c.resp.Role = ev.Message.Role
			c.resp.Usage = ev.Message.Usage
		}
		return false, nil

	case anthropicapi.EventContentBlockStart:
		if ev.ContentBlock == nil {
			return false, nil
		}
		cb := &collectorBlock{block: *ev.ContentBlock}
		c.blocks[ev.Index] = cb
		c.order = append(c.order, ev.Index)
		return false, nil

	case anthropicapi.EventContentBlockDelta:
		if ev.Delta == nil {
			return false, nil
		}
		cb := c.blocks[ev.Index]
		if cb == nil {
			return false, nil
		}
		switch ev.Delta.Type {
		case anthropicapi.DeltaTypeText:
			cb.block.Text += ev.Delta.Text
		case anthropicapi.DeltaTypeInputJSON:
			cb.json = append(cb.json, []byte(ev.Delta.PartialJSON)...)
		}
		return false, nil

	case anthropicapi.EventContentBlockStop:
		return false, nil

	case anthropicapi.EventMessageDelta:
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			c.resp.StopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			c.resp.Usage.OutputTokens = ev.Usage.OutputTokens
			if ev.Usage.InputTokens != 0 {
				c.resp.Usage.InputTokens = ev.Usage.InputTokens
			}
		}
		return false, nil

	case anthropicapi.EventMessageStop:
		return true, nil

	case anthropicapi.EventError:
		return true, ev.Error

	default:
		return false, nil
	}
}

// Response finalizes the accumulator into a concrete Anthropic Response,
// assigning each tool_use block's accumulated JSON fragments as its Input.
// A tool_use block whose accumulated JSON is malformed at stream end keeps
// its partial text verbatim; no repair is attempted.
func (c *Collector) Response() anthropicapi.Response {
	c.resp.Type = "message"
	content := make([]anthropicapi.Block, 0, len(c.order))
	for _, idx := range c.order {
		cb := c.blocks[idx]
		if cb.block.Type == "tool_use" && len(cb.json) > 0 {
			cb.block.Input = json.RawMessage(cb.json)
		}
		content = append(content, cb.block)
	}
	c.resp.Content = content
	return c.resp
}
