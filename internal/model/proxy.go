// Package model defines shared per-request types for the proxy.
package model

import (
	"context"
	"log/slog"
	"net/http"
)

// ProxyRequest is an immutable snapshot of one inbound call.
type ProxyRequest struct {
	Ctx           context.Context
	Method        string
	Path          string // escaped inbound path, mount prefix included
	RawQuery      string
	Authorization string
	Body          []byte
}

// Credentials is the key id / secret pair the caller supplied.
// Both fields are non-empty whenever a Credentials value is returned
// without error.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Redacted returns the first four characters of the key id followed by a mask.
// The secret is never included.
func (c Credentials) Redacted() string {
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return c.APIKey[:4] + "****"
}

// String keeps credentials out of fmt output.
func (c Credentials) String() string {
	return c.Redacted()
}

// LogValue keeps credentials out of slog output.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.Redacted())
}

// Target is the resolved upstream destination for one request.
type Target struct {
	Domain string // upstream base URL, e.g. https://data.alpaca.markets
	Kind   string // "data" or "trading"
	Path   string // always starts with "/"
	Query  string // raw query without the leading "?"
	Method string
	Body   []byte
}

// URL returns domain + path (+ "?" + query when non-empty).
func (t Target) URL() string {
	u := t.Domain + t.Path
	if t.Query != "" {
		u += "?" + t.Query
	}
	return u
}

// UpstreamResponse is the fully read upstream reply.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ProxyResponse is what gets relayed back to the caller. A nil Body means
// the status is sent without a body.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte // always valid JSON when non-nil
}
