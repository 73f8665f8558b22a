package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"alpaca-proxy-go/internal/config"
	"alpaca-proxy-go/internal/credentials"
	"alpaca-proxy-go/internal/model"
	"alpaca-proxy-go/internal/route"
	"alpaca-proxy-go/internal/service"
)

// errorBody is the JSON shape of every error the proxy produces itself.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// helpBody is returned when the caller names no upstream path.
type helpBody struct {
	Message string `json:"message"`
	Note    string `json:"note"`
}

// ProxyHandler forwards API requests to the upstream Alpaca API.
type ProxyHandler struct {
	service     *service.ProxyService
	logger      *slog.Logger
	mountPrefix string
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:     svc,
		logger:      logger.With("component", "proxy_handler"),
		mountPrefix: cfg.Server.MountPrefix,
	}
}

// Handle runs the request through the proxy pipeline and relays the result.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			// Body limit exceeded; let Echo render it.
			return he
		}
		return h.mapError(c, err)
	}

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		Path:          req.URL.EscapedPath(),
		RawQuery:      req.URL.RawQuery,
		Authorization: req.Header.Get(echo.HeaderAuthorization),
		Body:          body,
	}

	resp, err := h.service.Forward(pr)
	if errors.Is(err, route.ErrHelp) {
		return c.JSON(http.StatusOK, h.help())
	}
	if err != nil {
		return h.mapError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	if resp.Body == nil {
		return c.NoContent(resp.StatusCode)
	}
	return c.JSONBlob(resp.StatusCode, resp.Body)
}

func (h *ProxyHandler) help() helpBody {
	return helpBody{
		Message: "Alpaca proxy is running. Append an Alpaca API path to call it.",
		Note: "Example: GET " + h.mountPrefix + "/v2/stocks/bars?symbols=AAPL&limit=5 with header " +
			"'Authorization: Bearer KEY:SECRET'. Market data paths go to the data API, everything else to trading.",
	}
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	switch {
	case errors.Is(err, credentials.ErrAuthMissing):
		h.logger.Debug("rejected request", "reason", "auth_missing", "path", path)
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "Missing authorization header"})

	case errors.Is(err, credentials.ErrAuthMalformed):
		h.logger.Debug("rejected request", "reason", "auth_malformed", "path", path)
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "Invalid authorization format"})

	case errors.Is(err, route.ErrInvalidPath):
		h.logger.Debug("rejected request", "reason", "invalid_path", "path", path)
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid path"})

	case errors.Is(err, service.ErrUpstreamUnreachable):
		details := credentials.Sanitize(err.Error())
		h.logger.Error("proxy error", "err", details, "path", path)
		return c.JSON(http.StatusInternalServerError, errorBody{
			Error:   upstreamFailure(err),
			Details: details,
		})
	}

	h.logger.Error("internal error", "err", credentials.Sanitize(err.Error()), "path", path)
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "Internal server error"})
}

// upstreamFailure names the class of a failed upstream call.
func upstreamFailure(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Upstream request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "Client disconnected"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "Upstream host unreachable"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "Upstream request timed out"
		}
		return "Upstream connection failed"
	}

	return "Proxy server error"
}
