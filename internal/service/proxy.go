// Package service implements the core proxy pipeline: credential extraction,
// path resolution, upstream selection, forwarding and relay.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"alpaca-proxy-go/internal/client"
	"alpaca-proxy-go/internal/config"
	"alpaca-proxy-go/internal/credentials"
	"alpaca-proxy-go/internal/model"
	"alpaca-proxy-go/internal/route"
)

// ErrUpstreamUnreachable wraps any failure to obtain an upstream response.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

// Upstream header names for the credential pair.
const (
	HeaderKeyID     = "APCA-API-KEY-ID"
	HeaderSecretKey = "APCA-API-SECRET-KEY"
)

// allowedUpstreamHosts restricts which hosts the proxy will forward to.
var allowedUpstreamHosts = map[string]bool{
	"data.alpaca.markets":         true,
	"data.sandbox.alpaca.markets": true,
	"paper-api.alpaca.markets":    true,
	"api.alpaca.markets":          true,
}

const userAgent = "alpaca-proxy-go/1.0"

// ProxyService runs one inbound request through the pipeline. It holds no
// per-request state and is safe for concurrent use.
type ProxyService struct {
	client      *client.AlpacaClient
	cfg         *config.Config
	logger      *slog.Logger
	domains     route.Domains
	mountPrefix string
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.AlpacaClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	domains := route.NewDomains(cfg)
	for _, d := range []string{domains.MarketData, domains.Trading} {
		u, err := url.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("parse upstream url: %w", err)
		}
		if !allowedUpstreamHosts[u.Hostname()] {
			return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
		}
	}

	return newProxyService(c, cfg, logger, domains), nil
}

// NewProxyServiceForTest creates a ProxyService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewProxyServiceForTest(c *client.AlpacaClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return newProxyService(c, cfg, logger, route.NewDomains(cfg))
}

func newProxyService(c *client.AlpacaClient, cfg *config.Config, logger *slog.Logger, d route.Domains) *ProxyService {
	return &ProxyService{
		client:      c,
		cfg:         cfg,
		logger:      logger.With("component", "proxy_service"),
		domains:     d,
		mountPrefix: cfg.Server.MountPrefix,
	}
}

// Domains returns the upstream hosts requests are routed to.
func (s *ProxyService) Domains() route.Domains {
	return s.domains
}

// Forward runs pr through the pipeline and returns the response to relay.
//
// Validation failures return credentials.ErrAuthMissing,
// credentials.ErrAuthMalformed, route.ErrInvalidPath or route.ErrHelp
// without touching the network. A failed upstream call returns an error
// wrapping ErrUpstreamUnreachable.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	creds, err := credentials.Parse(pr.Authorization)
	if err != nil {
		return nil, err
	}

	target, err := route.Resolve(pr.Path, pr.RawQuery, s.mountPrefix)
	if err != nil {
		return nil, err
	}
	target = s.domains.Apply(target)
	target.Method = pr.Method
	if s.sendsBody(pr.Method) && len(pr.Body) > 0 {
		target.Body = pr.Body
	}

	s.logger.Debug("forwarding request",
		"method", target.Method,
		"upstream", target.Kind,
		"path", target.Path,
		"key_id", creds,
	)

	resp, err := s.client.Do(pr.Ctx, target.Kind, target.Method, target.URL(), upstreamHeaders(creds), target.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnreachable, err)
	}

	return Relay(target.Method, resp), nil
}

// sendsBody reports whether the inbound body is attached for method.
func (s *ProxyService) sendsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	case http.MethodDelete:
		return s.cfg.Upstream.DeleteBody
	}
	return false
}

// upstreamHeaders builds the outbound header set. Nothing from the inbound
// request is copied, so the caller's Authorization never leaves the proxy.
func upstreamHeaders(creds model.Credentials) http.Header {
	h := make(http.Header)
	h.Set(HeaderKeyID, creds.APIKey)
	h.Set(HeaderSecretKey, creds.SecretKey)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", userAgent)
	return h
}
