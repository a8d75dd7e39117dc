package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRootLivenessBanner(t *testing.T) {
	router := NewRouter("1.2.3", time.Now())
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), AliveBanner) {
		t.Errorf("expected alive banner, got %q", body)
	}
}

func TestHealthzReportsVersionAndUptime(t *testing.T) {
	started := time.Now().Add(-3 * time.Second)
	router := NewRouter("1.2.3", started)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Uptime  string `json:"uptime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %s", health.Status)
	}
	if health.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", health.Version)
	}
	if health.Uptime == "" {
		t.Error("expected uptime reported")
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	router := NewRouter("1.2.3", time.Now())
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestUnknownRoute404(t *testing.T) {
	router := NewRouter("1.2.3", time.Now())
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
