package route

import (
	"strings"

	"alpaca-proxy-go/internal/config"
	"alpaca-proxy-go/internal/model"
)

// Upstream kinds, also used as metrics labels.
const (
	KindData    = "data"
	KindTrading = "trading"
)

// marketDataSegments are served by the market-data host.
var marketDataSegments = []string{
	"/v2/stocks/",
	"/v2/options/",
	"/v2/forex/",
	"/v2/crypto/",
}

// Domains holds the two upstream base URLs a request can be routed to.
type Domains struct {
	MarketData string
	Trading    string
}

// NewDomains picks the market-data host and the paper or live trading host
// from configuration.
func NewDomains(cfg *config.Config) Domains {
	return Domains{
		MarketData: strings.TrimRight(cfg.Upstream.DataURL, "/"),
		Trading:    strings.TrimRight(cfg.Upstream.TradingURL(), "/"),
	}
}

// Kind reports which upstream serves path. Market-data segments take
// precedence; every other path goes to trading.
func Kind(path string) string {
	// Appending "/" lets a bare "/v2/stocks" match its own segment.
	p := path + "/"
	for _, seg := range marketDataSegments {
		if strings.Contains(p, seg) {
			return KindData
		}
	}
	return KindTrading
}

// Select returns the base URL for path.
func (d Domains) Select(path string) string {
	if Kind(path) == KindData {
		return d.MarketData
	}
	return d.Trading
}

// Apply fills the target's Domain and Kind from its Path.
func (d Domains) Apply(t model.Target) model.Target {
	t.Kind = Kind(t.Path)
	t.Domain = d.Select(t.Path)
	return t
}
