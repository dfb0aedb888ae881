package replay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const heartbeatFile = ".shopsync/daemon.heartbeat"

// staleAfter is how long after its last heartbeat a daemon is presumed dead.
const staleAfter = 5 * time.Minute

// Trigger registers replay intents and satisfies the dispatcher's Registrar.
// When no daemon is available to consume the intent, it falls back to an
// inline best-effort drain, provided the runtime is currently online.
type Trigger struct {
	Engine *Engine
	Online func() bool
}

// Register records a replay-when-online intent for tag. Best-effort: every
// failure path is logged and swallowed.
func (t *Trigger) Register(tag string) {
	if t.Engine == nil || t.Engine.Queue == nil {
		return
	}
	q := t.Engine.Queue

	if err := q.RegisterIntent(tag); err != nil {
		slog.Warn("replay: register intent failed", "tag", tag, "err", err)
		// Registration failed entirely; try the inline fallback anyway.
	} else if DaemonRunning(q.BaseDir()) {
		// A daemon will pick the intent up on its next tick.
		return
	}

	// No background facility: attempt an immediate replay inline.
	if t.Online == nil || !t.Online() {
		return
	}
	if _, err := t.Engine.DrainOnce(time.Now()); err != nil {
		slog.Debug("replay: inline drain failed", "tag", tag, "err", err)
		return
	}
	if err := q.MarkIntentFired(tag); err != nil {
		slog.Debug("replay: mark intent fired failed", "tag", tag, "err", err)
	}
}

// Heartbeat records that a daemon is alive for the given base directory.
// Called by the daemon on every tick.
func Heartbeat(baseDir string) error {
	path := filepath.Join(baseDir, heartbeatFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("pid:%d\n", os.Getpid())), 0644)
}

// ClearHeartbeat removes the daemon heartbeat on shutdown.
func ClearHeartbeat(baseDir string) {
	os.Remove(filepath.Join(baseDir, heartbeatFile))
}

// DaemonRunning reports whether a daemon has heartbeat recently for the
// given base directory.
func DaemonRunning(baseDir string) bool {
	info, err := os.Stat(filepath.Join(baseDir, heartbeatFile))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < staleAfter
}
