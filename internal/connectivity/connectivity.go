// Package connectivity provides the runtime's online/offline signal. The
// signal is advisory: a probe that succeeds can still be followed by a failed
// send, and the dispatcher treats that failure as offline.
package connectivity

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/config"
)

const (
	probeTimeout = 3 * time.Second
	cacheTTL     = 10 * time.Second
)

// Prober reports whether the backend is currently reachable. Probe results
// are cached briefly so rapid dispatches don't each pay a round trip.
type Prober struct {
	client *apiclient.Client

	mu        sync.Mutex
	lastState bool
	checkedAt time.Time
}

// NewProber creates a prober against the given backend client. The probe
// uses its own short timeout and does not disturb the client's default.
func NewProber(client *apiclient.Client) *Prober {
	probe := &apiclient.Client{
		BaseURL:  client.BaseURL,
		DeviceID: client.DeviceID,
		HTTP:     &http.Client{Timeout: probeTimeout},
	}
	return &Prober{client: probe}
}

// Online reports whether the runtime considers itself connected.
// SHOPSYNC_OFFLINE forces false without probing.
func (p *Prober) Online() bool {
	if config.ForceOffline() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.checkedAt) < cacheTTL {
		return p.lastState
	}

	_, err := p.client.HealthCheck()
	p.lastState = err == nil
	p.checkedAt = time.Now()
	if err != nil {
		slog.Debug("connectivity probe failed", "err", err)
	}
	return p.lastState
}

// Invalidate drops the cached probe result so the next Online call probes
// again. Called after a send fails despite a positive probe.
func (p *Prober) Invalidate() {
	p.mu.Lock()
	p.checkedAt = time.Time{}
	p.mu.Unlock()
}
