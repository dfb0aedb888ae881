// Package dispatch implements the connectivity-aware dispatcher: every
// sync-worthy action is tried against the backend once, and falls back to the
// durable queue plus a deferred replay registration when that fails. Nothing
// here returns an error to the caller; the three-state Result is the entire
// surface.
package dispatch

import (
	"encoding/json"
	"log/slog"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/queue"
)

// Result is the outcome of a dispatch. Queuing on failure is not delivery:
// callers that need confirmation must treat only Sent as delivered.
type Result int

const (
	// ResultSent means the action reached the backend immediately.
	ResultSent Result = iota
	// ResultQueued means the action is durably queued for replay.
	ResultQueued
	// ResultDropped means the action could be neither sent nor queued.
	ResultDropped
)

func (r Result) String() string {
	switch r {
	case ResultSent:
		return "sent"
	case ResultQueued:
		return "queued"
	case ResultDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Registrar registers a replay-when-online intent. Implementations are
// best-effort; registration failures are logged and swallowed.
type Registrar interface {
	Register(tag string)
}

// Dispatcher routes sync-worthy actions: immediate send when online, durable
// queue otherwise. A nil Queue (store failed to open) degrades every
// fallback to ResultDropped.
type Dispatcher struct {
	Queue     *queue.DB
	Client    *apiclient.Client
	Online    func() bool
	Registrar Registrar // optional

	// OnSendFailure is notified when a send fails despite a positive online
	// signal, so cached connectivity state can revalidate. Optional.
	OnSendFailure func()
}

// New creates a dispatcher. queue may be nil when the local store is
// unavailable; dispatch then works online-only.
func New(q *queue.DB, client *apiclient.Client, online func() bool) *Dispatcher {
	return &Dispatcher{Queue: q, Client: client, Online: online}
}

// ReplayTag returns the replay registration tag for a category.
func ReplayTag(category models.Category) string {
	return "replay:" + string(category)
}

// Dispatch builds a queued-item envelope for the action and attempts
// delivery: send immediately when online, enqueue plus register replay
// otherwise. A send failure is treated as being offline.
func (d *Dispatcher) Dispatch(kind models.Kind, payload json.RawMessage) Result {
	item, ok := models.NewQueuedItem(kind, payload)
	if !ok {
		slog.Warn("dispatch: unknown kind", "kind", kind)
		return ResultDropped
	}

	if d.Online() {
		_, err := d.Client.Sync(item.Category, []apiclient.ItemInput{{
			Key:       item.Key,
			Kind:      string(item.Kind),
			Payload:   item.Payload,
			Timestamp: item.Timestamp,
		}})
		if err == nil {
			slog.Debug("dispatch: sent", "kind", kind, "key", item.Key)
			return ResultSent
		}
		slog.Debug("dispatch: send failed, queuing", "kind", kind, "err", err)
		if d.OnSendFailure != nil {
			d.OnSendFailure()
		}
	}

	return d.enqueue(item)
}

// enqueue persists the item and registers a replay intent.
func (d *Dispatcher) enqueue(item models.QueuedItem) Result {
	if d.Queue == nil {
		slog.Warn("dispatch: local store unavailable, dropping", "kind", item.Kind, "key", item.Key)
		return ResultDropped
	}
	if err := d.Queue.Store(&item); err != nil {
		slog.Warn("dispatch: store failed, dropping", "kind", item.Kind, "err", err)
		return ResultDropped
	}
	if d.Registrar != nil {
		d.Registrar.Register(ReplayTag(item.Category))
	}
	slog.Debug("dispatch: queued", "kind", item.Kind, "key", item.Key, "id", item.ID)
	return ResultQueued
}

// --- Convenience constructors for each action shape ---

// CartUpdate dispatches a cart quantity change.
func (d *Dispatcher) CartUpdate(productID string, quantity int, userID string) Result {
	payload, _ := json.Marshal(models.CartPayload{
		ProductID: productID,
		Quantity:  quantity,
		Action:    "update",
		UserID:    userID,
	})
	return d.Dispatch(models.KindCartUpdate, payload)
}

// CartRemove dispatches a cart line removal.
func (d *Dispatcher) CartRemove(productID, userID string) Result {
	payload, _ := json.Marshal(models.CartPayload{
		ProductID: productID,
		Action:    "remove",
		UserID:    userID,
	})
	return d.Dispatch(models.KindCartRemove, payload)
}

// CartClear dispatches a full cart reset.
func (d *Dispatcher) CartClear(userID string) Result {
	payload, _ := json.Marshal(models.CartPayload{
		Action: "clear",
		UserID: userID,
	})
	return d.Dispatch(models.KindCartClear, payload)
}

// Track dispatches an analytics event of the given kind.
func (d *Dispatcher) Track(kind models.Kind, p models.AnalyticsPayload) Result {
	if p.Event == "" {
		p.Event = string(kind)
	}
	payload, _ := json.Marshal(p)
	return d.Dispatch(kind, payload)
}

// SubmitForm dispatches a form submission of the given kind.
func (d *Dispatcher) SubmitForm(kind models.Kind, p models.FormPayload) Result {
	if p.Form == "" {
		p.Form = string(kind)
	}
	payload, _ := json.Marshal(p)
	return d.Dispatch(kind, payload)
}
