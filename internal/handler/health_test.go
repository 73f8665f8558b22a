package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"alpaca-proxy-go/internal/config"
)

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler(&config.Config{}, "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name        string
		live        bool
		wantMode    string
		wantTrading string
	}{
		{"paper", false, "paper", "https://paper-api.alpaca.markets"},
		{"live", true, "live", "https://api.alpaca.markets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/status", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			cfg := &config.Config{
				Server: config.ServerConfig{MountPrefix: "/proxy"},
				Upstream: config.UpstreamConfig{
					DataURL:  "https://data.alpaca.markets",
					PaperURL: "https://paper-api.alpaca.markets",
					LiveURL:  "https://api.alpaca.markets",
					Live:     tt.live,
				},
			}
			h := NewHealthHandler(cfg, "1.2.3")
			if err := h.Status(c); err != nil {
				t.Fatalf("Status() error = %v", err)
			}

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body["version"] != "1.2.3" {
				t.Errorf("body.version = %q, want %q", body["version"], "1.2.3")
			}
			if body["mode"] != tt.wantMode {
				t.Errorf("body.mode = %q, want %q", body["mode"], tt.wantMode)
			}
			if body["trading_url"] != tt.wantTrading {
				t.Errorf("body.trading_url = %q, want %q", body["trading_url"], tt.wantTrading)
			}
			if body["data_url"] != "https://data.alpaca.markets" {
				t.Errorf("body.data_url = %q", body["data_url"])
			}
		})
	}
}
