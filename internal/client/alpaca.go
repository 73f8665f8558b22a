// Package client provides the upstream HTTP client for the Alpaca APIs.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"alpaca-proxy-go/internal/config"
	"alpaca-proxy-go/internal/metrics"
	"alpaca-proxy-go/internal/model"
)

// AlpacaClient sends requests to the Alpaca market-data and trading hosts.
type AlpacaClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewAlpacaClient creates an AlpacaClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewAlpacaClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *AlpacaClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &AlpacaClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "alpaca_client"),
		metrics: m,
	}
}

// Do executes one request against the upstream and reads the whole response.
// kind ("data" or "trading") only labels metrics. The provided context controls
// the lifetime of the upstream request: when it is canceled (e.g. the client
// disconnects), the upstream request is abandoned.
func (c *AlpacaClient) Do(ctx context.Context, kind, method, url string, header http.Header, body []byte) (*model.UpstreamResponse, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	label := metrics.NormalizeMethod(method)

	if err != nil {
		c.observe(label, kind, start)
		if c.metrics != nil {
			c.metrics.UpstreamFailures.WithLabelValues(label, kind).Inc()
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	c.observe(label, kind, start)
	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamFailures.WithLabelValues(label, kind).Inc()
		}
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(label, kind, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *AlpacaClient) observe(method, kind string, start time.Time) {
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method, kind).Observe(time.Since(start).Seconds())
	}
}
