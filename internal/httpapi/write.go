package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corvidlabs/vertexpass/internal/apperrors"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeError maps any failure onto its HTTP status and OpenAI error
// envelope. Upstream 4xx bodies pass through verbatim.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !apperrors.As(err, &appErr) {
		appErr = apperrors.Wrap(apperrors.KindConversion, "internal error", err)
	}

	status := appErr.HTTPStatus()

	if appErr.Kind == apperrors.KindUpstream && appErr.Status >= 400 && appErr.Status < 500 && appErr.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if _, err := w.Write([]byte(appErr.Body)); err != nil {
			slog.ErrorContext(ctx, "failed to write upstream error body", "error", err)
		}
		return
	}

	writeJSON(ctx, w, appErr.Envelope(), status)
}
