package httpclient

import (
	"net/http"
	"time"
)

const defaultIdlePerHost = 10

// newTransport builds a keep-alive transport for the embedding provider.
// The provider sits behind TLS and every cold handshake costs tens of
// milliseconds out of the retrieval latency budget, so idle connections are
// held long enough to outlive gaps between requests. Per-host idle capacity
// matches the variant fan-out: a fusion request embeds up to three
// sub-queries concurrently against the same host.
func newTransport(idlePerHost int) *http.Transport {
	if idlePerHost <= 0 {
		idlePerHost = defaultIdlePerHost
	}
	return &http.Transport{
		MaxIdleConns:        2 * idlePerHost,
		MaxIdleConnsPerHost: idlePerHost,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// NewPooledClient returns an http.Client with its own keep-alive pool and a
// hard per-request deadline covering the full exchange, body read included.
func NewPooledClient(timeout time.Duration) *http.Client {
	return NewPooledClientWithSize(timeout, defaultIdlePerHost)
}

// NewPooledClientWithSize is NewPooledClient with an explicit idle-connection
// budget per host, for callers that fan out wider than the default.
func NewPooledClientWithSize(timeout time.Duration, idlePerHost int) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(idlePerHost),
	}
}
