package connectivity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/marcus/shopsync/internal/apiclient"
)

func TestOnlineProbesHealthEndpoint(t *testing.T) {
	var probes atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("expected /healthz, got %s", r.URL.Path)
		}
		probes.Add(1)
		json.NewEncoder(w).Encode(apiclient.HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	p := NewProber(apiclient.New(server.URL, "dev-1"))

	if !p.Online() {
		t.Fatal("expected online against healthy backend")
	}
	// Cached: no second round trip.
	if !p.Online() {
		t.Fatal("expected cached online")
	}
	if got := probes.Load(); got != 1 {
		t.Errorf("expected 1 probe, got %d", got)
	}

	// Invalidation forces a fresh probe.
	p.Invalidate()
	if !p.Online() {
		t.Fatal("expected online after invalidation")
	}
	if got := probes.Load(); got != 2 {
		t.Errorf("expected 2 probes after invalidation, got %d", got)
	}
}

func TestOfflineWhenBackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProber(apiclient.New(server.URL, "dev-1"))
	if p.Online() {
		t.Fatal("expected offline against failing backend")
	}
}

func TestForceOfflineSkipsProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("forced offline must not probe")
	}))
	defer server.Close()

	t.Setenv("SHOPSYNC_OFFLINE", "1")
	p := NewProber(apiclient.New(server.URL, "dev-1"))
	if p.Online() {
		t.Fatal("expected forced offline")
	}
}
