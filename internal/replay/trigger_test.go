package replay

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/shopsync/internal/models"
)

func backdateHeartbeat(baseDir string, to time.Time) error {
	return os.Chtimes(filepath.Join(baseDir, heartbeatFile), to, to)
}

func TestHeartbeatLifecycle(t *testing.T) {
	dir := t.TempDir()

	if DaemonRunning(dir) {
		t.Fatal("expected no daemon before heartbeat")
	}
	if err := Heartbeat(dir); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !DaemonRunning(dir) {
		t.Fatal("expected daemon running after heartbeat")
	}
	ClearHeartbeat(dir)
	if DaemonRunning(dir) {
		t.Fatal("expected no daemon after clear")
	}
}

func TestRegisterDrainsInlineWhenOnline(t *testing.T) {
	handler := &ackAllHandler{}
	engine, q := setupEngine(t, handler, 5)
	trigger := &Trigger{Engine: engine, Online: func() bool { return true }}

	enqueue(t, q, models.KindCartUpdate, `{"product_id":"p1"}`)
	trigger.Register("replay:cart-updates")

	items, err := q.All(models.CategoryCart)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected inline drain to empty the queue, got %d items", len(items))
	}

	intents, err := q.PendingIntents()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(intents) != 0 {
		t.Errorf("expected intent fired after inline drain, got %v", intents)
	}
}

func TestRegisterOfflineLeavesIntentPending(t *testing.T) {
	engine, q := setupEngine(t, http.NotFoundHandler(), 5)
	trigger := &Trigger{Engine: engine, Online: func() bool { return false }}

	enqueue(t, q, models.KindPageView, `{"path":"/"}`)
	trigger.Register("replay:analytics-events")

	items, _ := q.All(models.CategoryAnalytics)
	if len(items) != 1 {
		t.Errorf("expected item left queued while offline, got %d", len(items))
	}
	intents, err := q.PendingIntents()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(intents) != 1 || intents[0].Tag != "replay:analytics-events" {
		t.Errorf("expected pending intent, got %v", intents)
	}
}

func TestRegisterDefersToRunningDaemon(t *testing.T) {
	engine, q := setupEngine(t, http.NotFoundHandler(), 5)
	trigger := &Trigger{Engine: engine, Online: func() bool { return true }}

	if err := Heartbeat(q.BaseDir()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	t.Cleanup(func() { ClearHeartbeat(q.BaseDir()) })

	enqueue(t, q, models.KindSearch, `{"query":"mug"}`)
	trigger.Register("replay:analytics-events")

	// The daemon owns the drain; nothing happens inline.
	items, _ := q.All(models.CategoryAnalytics)
	if len(items) != 1 {
		t.Errorf("expected daemon to own the drain, got %d items left", len(items))
	}
	intents, _ := q.PendingIntents()
	if len(intents) != 1 {
		t.Errorf("expected intent still pending for the daemon, got %v", intents)
	}
}

func TestStaleHeartbeatIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := Heartbeat(dir); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	// Backdate the heartbeat past the staleness cutoff.
	past := time.Now().Add(-2 * staleAfter)
	if err := backdateHeartbeat(dir, past); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if DaemonRunning(dir) {
		t.Error("expected stale heartbeat to be ignored")
	}
}
