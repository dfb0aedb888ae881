package replay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/queue"
)

func setupEngine(t *testing.T, handler http.Handler, maxRetries int) (*Engine, *queue.DB) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	q, err := queue.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	engine := NewEngine(q, apiclient.New(server.URL, "dev-1"), maxRetries, 30*time.Second, 50)
	return engine, q
}

func enqueue(t *testing.T, q *queue.DB, kind models.Kind, payload string) models.QueuedItem {
	t.Helper()
	item, ok := models.NewQueuedItem(kind, json.RawMessage(payload))
	if !ok {
		t.Fatalf("unknown kind %q", kind)
	}
	if err := q.Store(&item); err != nil {
		t.Fatalf("store: %v", err)
	}
	return item
}

// ackAllHandler acknowledges every synced item and records the keys it saw
// per endpoint path.
type ackAllHandler struct {
	seen map[string][]string
}

func (h *ackAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req apiclient.SyncRequest
	json.NewDecoder(r.Body).Decode(&req)

	resp := apiclient.SyncResponse{Accepted: len(req.Items)}
	for _, it := range req.Items {
		resp.Acks = append(resp.Acks, it.Key)
		if h.seen == nil {
			h.seen = make(map[string][]string)
		}
		h.seen[r.URL.Path] = append(h.seen[r.URL.Path], it.Key)
	}
	json.NewEncoder(w).Encode(resp)
}

func TestDrainDeliversInInsertionOrder(t *testing.T) {
	handler := &ackAllHandler{}
	engine, q := setupEngine(t, handler, 5)

	a := enqueue(t, q, models.KindCartUpdate, `{"product_id":"p1"}`)
	b := enqueue(t, q, models.KindCartRemove, `{"product_id":"p2"}`)
	c := enqueue(t, q, models.KindPageView, `{"path":"/"}`)

	summary, err := engine.DrainOnce(time.Now())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := summary.Delivered(); got != 3 {
		t.Fatalf("expected 3 delivered, got %d", got)
	}

	cartKeys := handler.seen["/api/v1/cart/sync"]
	if len(cartKeys) != 2 || cartKeys[0] != a.Key || cartKeys[1] != b.Key {
		t.Errorf("cart batch out of order: %v", cartKeys)
	}
	if got := handler.seen["/api/v1/analytics/sync"]; len(got) != 1 || got[0] != c.Key {
		t.Errorf("analytics batch wrong: %v", got)
	}

	for _, category := range models.Categories() {
		items, err := q.All(category)
		if err != nil {
			t.Fatalf("all %s: %v", category, err)
		}
		if len(items) != 0 {
			t.Errorf("category %s not drained: %d items left", category, len(items))
		}
	}
}

func TestDuplicateRejectCountsAsDelivered(t *testing.T) {
	engine, q := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.SyncRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := apiclient.SyncResponse{}
		for _, it := range req.Items {
			resp.Rejected = append(resp.Rejected, apiclient.RejectedItem{Key: it.Key, Reason: "duplicate"})
		}
		json.NewEncoder(w).Encode(resp)
	}), 5)

	enqueue(t, q, models.KindNewsletter, `{"email":"a@b.c"}`)

	summary, err := engine.DrainOnce(time.Now())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if summary.PerCategory[models.CategoryForms].Delivered != 1 {
		t.Errorf("expected duplicate reject settled as delivered: %+v", summary.PerCategory[models.CategoryForms])
	}
	items, _ := q.All(models.CategoryForms)
	if len(items) != 0 {
		t.Errorf("expected duplicate removed from queue, got %d items", len(items))
	}
}

func TestTransportFailureReschedulesWithBackoff(t *testing.T) {
	engine, q := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), 5)

	enqueue(t, q, models.KindPurchase, `{"value":1}`)
	now := time.Now()

	summary, err := engine.DrainOnce(now)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	cs := summary.PerCategory[models.CategoryAnalytics]
	if cs.Rescheduled != 1 || cs.Delivered != 0 {
		t.Fatalf("expected 1 rescheduled, got %+v", cs)
	}

	// Not due again until the backoff passes.
	due, err := q.Due(models.CategoryAnalytics, now, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Error("expected rescheduled item not due immediately")
	}
	due, err = q.Due(models.CategoryAnalytics, now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].RetryCount != 1 {
		t.Fatalf("expected item due after base backoff with 1 retry, got %v", due)
	}
}

func TestExhaustedRetriesDeadLetter(t *testing.T) {
	engine, q := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}), 0)

	enqueue(t, q, models.KindContactForm, `{"form":"contact"}`)

	summary, err := engine.DrainOnce(time.Now())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if summary.PerCategory[models.CategoryForms].DeadLettered != 1 {
		t.Fatalf("expected immediate dead-letter with zero budget: %+v", summary.PerCategory[models.CategoryForms])
	}
	count, _ := q.DeadLetterCount()
	if count != 1 {
		t.Errorf("expected 1 dead letter, got %d", count)
	}
}

func TestDedupCollapsesIdenticalItems(t *testing.T) {
	handler := &ackAllHandler{}
	engine, q := setupEngine(t, handler, 5)

	first := enqueue(t, q, models.KindCartUpdate, `{"product_id":"p1","quantity":2}`)
	enqueue(t, q, models.KindCartUpdate, `{"product_id":"p1","quantity":2}`)
	enqueue(t, q, models.KindCartUpdate, `{"product_id":"p1","quantity":3}`)

	summary, err := engine.DrainOnce(time.Now())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	cs := summary.PerCategory[models.CategoryCart]
	if cs.Deduped != 1 || cs.Delivered != 2 {
		t.Fatalf("expected 1 deduped and 2 delivered, got %+v", cs)
	}
	if keys := handler.seen["/api/v1/cart/sync"]; len(keys) != 2 || keys[0] != first.Key {
		t.Errorf("expected earliest duplicate to survive: %v", keys)
	}
}

// fakeNotifier records delivered notification items.
type fakeNotifier struct {
	delivered []models.QueuedItem
	err       error
}

func (f *fakeNotifier) DeliverQueued(item models.QueuedItem) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, item)
	return nil
}

func TestNotificationsDrainThroughNotifier(t *testing.T) {
	engine, q := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("notification items must not hit sync endpoints")
	}), 5)
	notifier := &fakeNotifier{}
	engine.Notifier = notifier

	item := enqueue(t, q, models.KindNotificationSend, `{"endpoint":"e","notification":{}}`)

	summary, err := engine.DrainOnce(time.Now())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if summary.PerCategory[models.CategoryNotifications].Delivered != 1 {
		t.Fatalf("expected notification delivered: %+v", summary.PerCategory[models.CategoryNotifications])
	}
	if len(notifier.delivered) != 1 || notifier.delivered[0].Key != item.Key {
		t.Error("expected notifier to receive the queued item")
	}
}

func TestNotificationFailureReschedules(t *testing.T) {
	engine, q := setupEngine(t, http.NotFoundHandler(), 5)
	engine.Notifier = &fakeNotifier{err: fmt.Errorf("push service down")}

	enqueue(t, q, models.KindNotificationSend, `{"endpoint":"e","notification":{}}`)

	summary, err := engine.DrainOnce(time.Now())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	cs := summary.PerCategory[models.CategoryNotifications]
	if cs.Rescheduled != 1 {
		t.Fatalf("expected notification rescheduled, got %+v", cs)
	}
}

func TestNilNotifierLeavesNotificationsQueued(t *testing.T) {
	engine, q := setupEngine(t, http.NotFoundHandler(), 5)

	enqueue(t, q, models.KindPreferencesUpdate, `{"endpoint":"e"}`)

	if _, err := engine.DrainOnce(time.Now()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	items, _ := q.All(models.CategoryNotifications)
	if len(items) != 1 {
		t.Errorf("expected notification item left queued without a notifier, got %d", len(items))
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	engine := &Engine{BackoffBase: 30 * time.Second}

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{6, 32 * time.Minute},
		{7, time.Hour},
		{20, time.Hour},
	}
	for _, tt := range tests {
		if got := engine.backoff(tt.retries); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.retries, got, tt.want)
		}
	}
}
