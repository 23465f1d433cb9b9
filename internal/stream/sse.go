package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

var (
	sseDataPrefix = []byte("data: ")
	sseTerminator = []byte("\n\n")
	sseDone       = []byte("data: [DONE]\n\n")
)

// Writer wraps an http.ResponseWriter with the downstream SSE framing:
// each event is "data: <json>\n\n", no "event:" lines, terminated by the
// "data: [DONE]\n\n" sentinel.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

// NewWriter validates flushing support and sets the SSE response headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	w.Header().Set("Connection", "keep-alive")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteJSON marshals v and writes it as one SSE data frame, flushing
// immediately.
func (s *Writer) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse frame: %w", err)
	}
	s.wrote = true
	if _, err := s.w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write(sseTerminator); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Wrote reports whether any frame has been written, i.e. whether the HTTP
// status is already committed.
func (s *Writer) Wrote() bool { return s.wrote }

// WriteDone writes the terminal "data: [DONE]" sentinel.
func (s *Writer) WriteDone() error {
	s.wrote = true
	if _, err := s.w.Write(sseDone); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
