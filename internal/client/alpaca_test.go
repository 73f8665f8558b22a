package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alpaca-proxy-go/internal/config"
	"alpaca-proxy-go/internal/metrics"
)

func testConfig(timeout int) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  timeout,
			IdleConnections: 10,
		},
	}
}

func TestAlpacaClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "PK123" {
			t.Errorf("APCA-API-KEY-ID = %q, want %q", r.Header.Get("APCA-API-KEY-ID"), "PK123")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewAlpacaClient(testConfig(10), logger, nil)

	header := http.Header{}
	header.Set("APCA-API-KEY-ID", "PK123")
	resp, err := c.Do(context.Background(), "trading", http.MethodGet, srv.URL+"/v2/account", header, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(resp.Body) != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", string(resp.Body), `{"status":"ok"}`)
	}
}

func TestAlpacaClient_Do_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"symbol":"AAPL"}` {
			t.Errorf("body = %q", string(body))
		}
		if r.ContentLength != int64(len(body)) {
			t.Errorf("ContentLength = %d, want %d", r.ContentLength, len(body))
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewAlpacaClient(testConfig(10), logger, nil)

	resp, err := c.Do(context.Background(), "trading", http.MethodPost, srv.URL+"/v2/orders", http.Header{}, []byte(`{"symbol":"AAPL"}`))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

func TestAlpacaClient_Do_Error(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	c := NewAlpacaClient(testConfig(1), logger, m)

	_, err := c.Do(context.Background(), "data", http.MethodGet, "http://127.0.0.1:1/nonexistent", http.Header{}, nil)
	if err == nil {
		t.Fatal("Do() expected error for unreachable host, got nil")
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "alpaca_proxy_upstream_failures_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if v := metric.GetCounter().GetValue(); v != 1 {
				t.Errorf("failures counter = %v, want 1", v)
			}
			return
		}
	}
	t.Error("expected alpaca_proxy_upstream_failures_total to be recorded")
}

func TestAlpacaClient_Do_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate a slow upstream; the request should be canceled before this completes.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewAlpacaClient(testConfig(30), logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.Do(ctx, "data", http.MethodGet, srv.URL+"/slow", http.Header{}, nil)
	if err == nil {
		t.Fatal("Do() expected error for canceled context, got nil")
	}
}

func TestAlpacaClient_Do_RecordsUpstreamMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Service Unavailable"))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	c := NewAlpacaClient(testConfig(10), logger, m)

	if _, err := c.Do(context.Background(), "data", http.MethodGet, srv.URL+"/v2/stocks/bars", http.Header{}, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "alpaca_proxy_upstream_responses_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["upstream"] == "data" && labels["status_code"] == "503" && labels["method"] == "GET" {
				return
			}
		}
	}
	t.Error("expected alpaca_proxy_upstream_responses_total{method=GET,upstream=data,status_code=503}")
}
