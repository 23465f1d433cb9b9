// Package upstream implements the HTTP client the proxy speaks to its
// backend with: request URL selection, bearer authorization, retries with
// backoff, error mapping, and incremental consumption of streaming bodies.
package upstream

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Backend abstracts the upstream by the three capabilities the client
// needs: build the request URL for a transmission shape, name the model for
// client-facing listings, and produce request-time authorization. A backend
// is selected once at startup and never switched per request.
type Backend interface {
	// URL returns the endpoint to POST to; streaming selects the
	// streaming-shaped endpoint where the backend distinguishes them.
	URL(streaming bool) string

	// DisplayModelName is the model identifier echoed to clients (model
	// listing and response bodies).
	DisplayModelName() string

	// Authorization returns the value of the Authorization header for one
	// request.
	Authorization(ctx context.Context) (string, error)
}

// vertexSuffixes are stripped from a configured Vertex URL so both
// per-mode endpoints can be derived from it regardless of which form the
// operator wrote.
var vertexSuffixes = []string{":rawPredict", ":streamRawPredict"}

// VertexBackend targets a Vertex AI resource URL serving Anthropic models.
// The two per-mode URLs are precomputed at construction.
type VertexBackend struct {
	rawPredictURL       string
	streamRawPredictURL string
	displayModel        string
	tokens              oauth2.TokenSource
}

// Compile-time check that VertexBackend implements Backend
var _ Backend = (*VertexBackend)(nil)

// NewVertexBackend builds a VertexBackend from the configured resource URL
// (with or without a :rawPredict/:streamRawPredict suffix), the model name
// to display to clients, and the token source providing bearer tokens.
func NewVertexBackend(resourceURL, displayModel string, tokens oauth2.TokenSource) (*VertexBackend, error) {
	base := strings.TrimRight(resourceURL, "/")
	for _, suffix := range vertexSuffixes {
		base = strings.TrimSuffix(base, suffix)
	}
	if base == "" {
		return nil, fmt.Errorf("empty vertex resource URL")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token source")
	}

	return &VertexBackend{
		rawPredictURL:       base + ":rawPredict",
		streamRawPredictURL: base + ":streamRawPredict",
		displayModel:        displayModel,
		tokens:              tokens,
	}, nil
}

func (b *VertexBackend) URL(streaming bool) string {
	if streaming {
		return b.streamRawPredictURL
	}
	return b.rawPredictURL
}

func (b *VertexBackend) DisplayModelName() string { return b.displayModel }

func (b *VertexBackend) Authorization(ctx context.Context) (string, error) {
	token, err := b.tokens.Token()
	if err != nil {
		return "", err
	}
	return "Bearer " + token.AccessToken, nil
}

// BearerBackend targets any endpoint that accepts the Anthropic Messages
// schema with a static bearer token; streaming and non-streaming share one
// URL (the request body's stream flag selects the shape).
type BearerBackend struct {
	url          string
	displayModel string
	token        string
}

// Compile-time check that BearerBackend implements Backend
var _ Backend = (*BearerBackend)(nil)

// NewBearerBackend builds a BearerBackend for the given endpoint and token.
func NewBearerBackend(url, displayModel, token string) (*BearerBackend, error) {
	if url == "" {
		return nil, fmt.Errorf("empty backend URL")
	}
	return &BearerBackend{url: url, displayModel: displayModel, token: token}, nil
}

func (b *BearerBackend) URL(bool) string          { return b.url }
func (b *BearerBackend) DisplayModelName() string { return b.displayModel }

func (b *BearerBackend) Authorization(context.Context) (string, error) {
	return "Bearer " + b.token, nil
}
