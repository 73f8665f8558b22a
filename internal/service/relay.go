package service

import (
	"encoding/json"
	"net/http"

	"alpaca-proxy-go/internal/model"
)

// invalidResponseError is the error text used when the upstream body is not JSON.
const invalidResponseError = "Invalid response from Alpaca"

// relayedHeaders are the only upstream response headers passed to the caller.
var relayedHeaders = []string{
	"X-Ratelimit-Limit",
	"X-Ratelimit-Remaining",
	"X-Ratelimit-Reset",
}

type invalidUpstreamBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Relay turns an upstream reply into the response sent to the caller.
// JSON bodies pass through byte-for-byte; anything else is wrapped with the
// raw text under "details". The upstream status is kept in every case.
func Relay(method string, resp *model.UpstreamResponse) *model.ProxyResponse {
	out := &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     filterResponseHeaders(resp.Header),
	}

	if len(resp.Body) == 0 && !bodyAllowed(method, resp.StatusCode) {
		return out
	}

	if json.Valid(resp.Body) {
		out.Body = resp.Body
		return out
	}

	// Marshalling a struct of two strings cannot fail.
	out.Body, _ = json.Marshal(invalidUpstreamBody{
		Error:   invalidResponseError,
		Details: string(resp.Body),
	})
	return out
}

// bodyAllowed reports whether a response to method with status may carry a body.
func bodyAllowed(method string, status int) bool {
	switch {
	case method == http.MethodHead:
		return false
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range relayedHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	return dst
}
