package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/apperrors"
	"github.com/corvidlabs/vertexpass/internal/classify"
	"github.com/corvidlabs/vertexpass/internal/convert"
	"github.com/corvidlabs/vertexpass/internal/metrics"
	"github.com/corvidlabs/vertexpass/internal/openaiapi"
	"github.com/corvidlabs/vertexpass/internal/stream"
	"github.com/corvidlabs/vertexpass/internal/upstream"
)

// ChatCompletionsHandler serves POST /v1/chat/completions: classify the
// client, choose a transmission mode, translate the request, call upstream,
// and translate the reply back.
type ChatCompletionsHandler struct {
	Upstream       *upstream.Client
	Metrics        *metrics.Metrics
	ConfiguredMode classify.Mode
	UpstreamModel  string
}

// Compile-time check to ensure ChatCompletionsHandler implements http.Handler
var _ http.Handler = (*ChatCompletionsHandler)(nil)

// ServeHTTP implements http.Handler for streaming and non-streaming requests.
func (h *ChatCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.Metrics.RequestReceived()

	var req openaiapi.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.ErrorContext(ctx, "failed to decode request", "error", err)
		h.fail(ctx, w, apperrors.Wrap(apperrors.KindInvalidRequest, "invalid request body", err))
		return
	}

	classification := classify.Classify(r.Header.Get("User-Agent"), r.Header.Get("Accept"))
	mode := classify.Policy(h.ConfiguredMode, req.Stream, classification)
	slog.DebugContext(ctx, "transmission mode selected",
		"mode", mode, "client_class", classification.Class, "stream", req.Stream)

	result, err := convert.Request(req, h.UpstreamModel)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	for _, warning := range result.Warnings {
		slog.WarnContext(ctx, "request conversion warning", "warning", warning)
	}

	clientModel := req.Model
	if clientModel == "" {
		clientModel = h.Upstream.Backend().DisplayModelName()
	}

	if mode == classify.ModeNonStreaming {
		h.respondJSON(ctx, w, result.Body, clientModel)
		return
	}
	h.respondStream(ctx, w, result.Body, clientModel, mode)
}

// respondJSON serves the non-streaming transmission mode: one upstream
// :rawPredict call, one JSON body.
func (h *ChatCompletionsHandler) respondJSON(ctx context.Context, w http.ResponseWriter, body *anthropicapi.Request, clientModel string) {
	resp, err := h.Upstream.Do(ctx, body)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	out, err := convert.Response(*resp, clientModel, time.Now().Unix())
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	h.Metrics.RequestSucceeded()
	writeJSON(ctx, w, out, http.StatusOK)
}

// respondStream serves the SSE transmission modes. Failures before the
// first emitted chunk surface as an HTTP status; failures after it are
// written as a final SSE error frame followed by [DONE].
func (h *ChatCompletionsHandler) respondStream(ctx context.Context, w http.ResponseWriter, body *anthropicapi.Request, clientModel string, mode classify.Mode) {
	upstreamBody, err := h.Upstream.Stream(ctx, body)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	defer func() { _ = upstreamBody.Close() }()

	events := stream.Events(upstreamBody)

	writer, err := stream.NewWriter(w)
	if err != nil {
		// The response writer cannot flush; degrade to collecting the whole
		// stream into a single JSON body rather than failing the call.
		h.collectToJSON(ctx, w, events, clientModel)
		return
	}

	emitter := stream.NewEmitter(string(mode), writer)
	if err := stream.Run(events, emitter, clientModel, time.Now().Unix()); err != nil {
		h.Metrics.RequestFailed()

		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}

		slog.ErrorContext(ctx, "stream failed", "error", err)

		var upstreamErr *stream.UpstreamError
		message := "stream interrupted"
		if errors.As(err, &upstreamErr) && upstreamErr.Event != nil {
			message = upstreamErr.Event.Message
		}

		// Before the first frame the HTTP status is still ours to choose.
		if !writer.Wrote() {
			writeError(ctx, w, apperrors.New(apperrors.KindUpstream, message))
			return
		}

		// The HTTP status is committed once the first frame went out; the
		// only channel left is a terminal error frame. The OpenAI SDKs stop
		// reading on an {"error": ...} data frame.
		errBody := openaiapi.ErrorBody{Error: openaiapi.ErrorDetail{
			Message: message,
			Type:    "upstream_error",
		}}
		if writeErr := writer.WriteJSON(errBody); writeErr != nil {
			slog.ErrorContext(ctx, "failed to write error frame", "error", writeErr)
			return
		}
		if writeErr := writer.WriteDone(); writeErr != nil {
			slog.ErrorContext(ctx, "failed to write stream termination marker", "error", writeErr)
		}
		return
	}

	h.Metrics.RequestSucceeded()
}

// collectToJSON replays the upstream event stream against the non-streaming
// accumulators and serves the result as a single chat completion body.
func (h *ChatCompletionsHandler) collectToJSON(ctx context.Context, w http.ResponseWriter, events iter.Seq2[anthropicapi.Event, error], clientModel string) {
	collector := stream.NewCollector()
	for ev, err := range events {
		if err != nil {
			h.fail(ctx, w, apperrors.Wrap(apperrors.KindNetwork, "read upstream stream", err))
			return
		}
		done, evErr := collector.Handle(ev)
		if evErr != nil {
			h.fail(ctx, w, apperrors.New(apperrors.KindUpstream, evErr.Message))
			return
		}
		if done {
			break
		}
	}

	resp := collector.Response()
	out, err := convert.Response(resp, clientModel, time.Now().Unix())
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	h.Metrics.RequestSucceeded()
	writeJSON(ctx, w, out, http.StatusOK)
}

// fail records the failure and writes its error envelope.
func (h *ChatCompletionsHandler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	h.Metrics.RequestFailed()
	slog.ErrorContext(ctx, "request failed", "error", err)
	writeError(ctx, w, err)
}
