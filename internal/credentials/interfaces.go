package credentials

import "context"

// Source reads the raw service-account key JSON from its storage backend.
//
// Sources are read-only: the service-account key never rotates through the
// proxy, so there is no write path.
type Source interface {
	// Read returns the key material. Returns error if it is missing or empty.
	Read(ctx context.Context) (string, error)
}
