package credentials

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/corvidlabs/vertexpass/internal/apperrors"
)

// Scope is the OAuth2 scope requested for Vertex AI access.
const Scope = "https://www.googleapis.com/auth/cloud-platform"

// expiryMargin is subtracted from the token's reported lifetime so a token
// about to expire mid-request is refreshed before use.
const expiryMargin = 60 * time.Second

// refreshTimeout bounds one token-exchange HTTPS call.
const refreshTimeout = 10 * time.Second

// refreshRetries is how many times a failed refresh is re-attempted before
// surfacing.
const refreshRetries = 2

// Provider exchanges a service-account JWT assertion for Vertex access
// tokens and caches the result process-wide. Concurrent callers during a
// refresh coalesce onto a single in-flight token exchange.
//
// Key loading and parsing are deferred to the first Token call so that
// construction performs no I/O.
type Provider struct {
	source Source

	tokenSource func() (oauth2.TokenSource, error)
}

// Compile-time check to ensure Provider implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Provider)(nil)

// NewProvider creates a Provider reading its key from the given source.
// No I/O is performed until the first Token call.
func NewProvider(source Source) (*Provider, error) {
	if source == nil {
		return nil, apperrors.New(apperrors.KindConfig, "missing credential source")
	}

	p := &Provider{source: source}
	p.tokenSource = sync.OnceValues(p.createTokenSource)

	return p, nil
}

// createTokenSource performs one-time initialization: read the key, build
// the assertion config, and wrap it with retry and caching layers.
func (p *Provider) createTokenSource() (oauth2.TokenSource, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface
	// limitation). Use background context for the initial key read.
	ctx := context.Background()

	raw, err := p.source.Read(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAuthentication, "read service account key", err)
	}

	sa, err := ParseServiceAccount([]byte(raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAuthentication, "parse service account key", err)
	}

	// The assertion carries iss=client_email, scope, aud=token_uri, and
	// iat/exp spanning one hour; the jwt package signs it with RS256 and
	// exchanges it at token_uri.
	cfg := &jwt.Config{
		Email:      sa.ClientEmail,
		PrivateKey: []byte(sa.PrivateKey),
		Scopes:     []string{Scope},
		TokenURL:   sa.TokenURI,
		Expires:    time.Hour,
	}

	// The oauth2 package injects the HTTP client via context; this bounds
	// each token-exchange call without affecting upstream request clients.
	exchangeClient := &http.Client{Timeout: refreshTimeout}
	oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, exchangeClient)

	base := &retryTokenSource{inner: cfg.TokenSource(oauthCtx)}

	// ReuseTokenSourceWithExpiry holds its mutex across the refresh, so
	// concurrent callers coalesce onto one in-flight exchange and the
	// cached token is replaced expiryMargin before it would expire.
	return oauth2.ReuseTokenSourceWithExpiry(nil, base, expiryMargin), nil
}

// Token returns a valid access token, refreshing through the coalesced
// exchange path when the cached one is stale. Failures surface as
// Authentication errors and are not retried at the call site.
func (p *Provider) Token() (*oauth2.Token, error) {
	ts, err := p.tokenSource()
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		if appErr := (*apperrors.Error)(nil); apperrors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.KindAuthentication, "exchange service account assertion", err)
	}
	return token, nil
}

// retryTokenSource re-attempts a failed token exchange up to refreshRetries
// times before surfacing the last error.
type retryTokenSource struct {
	inner oauth2.TokenSource
}

func (r *retryTokenSource) Token() (*oauth2.Token, error) {
	var lastErr error
	for attempt := 0; attempt <= refreshRetries; attempt++ {
		token, err := r.inner.Token()
		if err == nil {
			return token, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
