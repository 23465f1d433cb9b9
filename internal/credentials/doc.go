// Package credentials provides the upstream credential flow for Vertex AI:
// loading a Google service-account key from one of several sources, building
// the RS256 self-signed JWT assertion, exchanging it for an OAuth2 access
// token, and caching that token process-wide with refresh coalescing.
//
// Supported key sources with different security and deployment tradeoffs:
//   - File: local filesystem with secure-permission checks (preferred)
//   - Inline: the key JSON embedded in configuration
//   - Env: base64-encoded environment variable (deprecated but accepted)
//   - Keyring: OS-native credential storage
//
// # Usage
//
//	src, _ := credentials.NewFileSource("/etc/vertexpass/sa.json")
//	provider, _ := credentials.NewProvider(src)
//	// provider implements oauth2.TokenSource and can be shared across requests
package credentials
