package credentials

import (
	"context"
	"fmt"
	"strings"
)

// InlineSource carries the service-account key JSON directly from
// configuration.
type InlineSource struct {
	json string
}

// Compile-time check to ensure InlineSource implements Source
var _ Source = (*InlineSource)(nil)

// NewInlineSource creates an InlineSource from the given JSON string.
func NewInlineSource(json string) (*InlineSource, error) {
	json = strings.TrimSpace(json)
	if json == "" {
		return nil, fmt.Errorf("inline key cannot be empty")
	}

	return &InlineSource{
		json: json,
	}, nil
}

// Read returns the configured key JSON.
func (i *InlineSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return i.json, nil
}
