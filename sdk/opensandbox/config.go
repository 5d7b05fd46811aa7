// Package opensandbox is the Go SDK for the OpenSandbox control plane
// and the per-sandbox execd agent. ConnectionConfig resolves connection
// settings the same way the server resolves its own: explicit argument,
// then environment variable, then compiled default (spec.md §4.B).
package opensandbox

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	envDomain = "OPEN_SANDBOX_DOMAIN"
	envAPIKey = "OPEN_SANDBOX_API_KEY"

	// DefaultDomain is used when neither an explicit domain nor
	// OPEN_SANDBOX_DOMAIN is set.
	DefaultDomain = "localhost:8080"

	// DefaultProtocol is always https unless explicitly overridden.
	DefaultProtocol = "https"
)

// ConnectionConfig resolves and holds the settings needed to reach the
// control plane and, transitively, per-sandbox execd endpoints.
type ConnectionConfig struct {
	domain   string
	apiKey   string
	protocol string

	// RequestTimeout bounds connect+total time for calls made through
	// HTTPClient. It must be strictly positive. SSE streams made through
	// StreamingHTTPClient do not apply it: they carry no overall timeout
	// and no per-read deadline.
	RequestTimeout time.Duration

	// Transport overrides the HTTP transport used by adapters built
	// from this config. Nil selects http.DefaultTransport. Tests inject
	// a fake transport here (spec.md §9, "dependency-injected
	// transport").
	Transport http.RoundTripper
}

// Option configures a ConnectionConfig at construction time.
type Option func(*ConnectionConfig)

func WithDomain(domain string) Option { return func(c *ConnectionConfig) { c.domain = domain } }
func WithAPIKey(key string) Option    { return func(c *ConnectionConfig) { c.apiKey = key } }
func WithProtocol(p string) Option    { return func(c *ConnectionConfig) { c.protocol = p } }
func WithTransport(rt http.RoundTripper) Option {
	return func(c *ConnectionConfig) { c.Transport = rt }
}
func WithRequestTimeout(d time.Duration) Option {
	return func(c *ConnectionConfig) { c.RequestTimeout = d }
}

// NewConnectionConfig builds a ConnectionConfig, defaulting the request
// timeout to 30s. It returns an error if an explicit non-positive
// timeout is supplied.
func NewConnectionConfig(opts ...Option) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{RequestTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request_timeout must be strictly positive, got %s", cfg.RequestTimeout)
	}
	return cfg, nil
}

// Domain resolves the server domain: explicit -> OPEN_SANDBOX_DOMAIN -> default.
func (c *ConnectionConfig) Domain() string {
	if c.domain != "" {
		return c.domain
	}
	if v := os.Getenv(envDomain); v != "" {
		return v
	}
	return DefaultDomain
}

// APIKey resolves the API key: explicit -> OPEN_SANDBOX_API_KEY -> empty.
func (c *ConnectionConfig) APIKey() string {
	if c.apiKey != "" {
		return c.apiKey
	}
	return os.Getenv(envAPIKey)
}

// Protocol resolves the wire protocol, defaulting to https.
func (c *ConnectionConfig) Protocol() string {
	if c.protocol != "" {
		return c.protocol
	}
	return DefaultProtocol
}

// BaseURL returns "<protocol>://<domain>".
func (c *ConnectionConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s", c.Protocol(), c.Domain())
}

// HTTPClient builds an http.Client honoring RequestTimeout and the
// configured transport override, for non-streaming control-plane calls.
func (c *ConnectionConfig) HTTPClient() *http.Client {
	return &http.Client{Timeout: c.RequestTimeout, Transport: c.Transport}
}

// StreamingHTTPClient builds an http.Client for SSE command streams: it
// carries the configured transport override (so tests can inject a fake
// transport) but deliberately sets no overall Timeout, since a
// long-running command must be able to stream indefinitely (spec.md
// §4.H, "no read timeout").
func (c *ConnectionConfig) StreamingHTTPClient() *http.Client {
	return &http.Client{Transport: c.Transport}
}
