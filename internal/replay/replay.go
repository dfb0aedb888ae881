// Package replay drains the durable queue once connectivity returns: due
// items are re-sent per category in insertion order, failures are
// rescheduled with exponential backoff, and items past the retry budget are
// dead-lettered for manual inspection.
package replay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/queue"
)

// NotificationSender delivers a queued notification-category item.
// Implemented by the push manager; kept as an interface so the replay engine
// does not depend on the push stack.
type NotificationSender interface {
	DeliverQueued(item models.QueuedItem) error
}

// Engine replays queued items against the backend.
type Engine struct {
	Queue       *queue.DB
	Client      *apiclient.Client
	Notifier    NotificationSender // optional; nil leaves notification items queued
	MaxRetries  int
	BackoffBase time.Duration
	BatchSize   int
}

// NewEngine creates a replay engine with the given tuning.
func NewEngine(q *queue.DB, client *apiclient.Client, maxRetries int, backoffBase time.Duration, batchSize int) *Engine {
	return &Engine{
		Queue:       q,
		Client:      client,
		MaxRetries:  maxRetries,
		BackoffBase: backoffBase,
		BatchSize:   batchSize,
	}
}

// CategorySummary counts per-category replay outcomes.
type CategorySummary struct {
	Delivered    int
	Deduped      int
	Rescheduled  int
	DeadLettered int
}

// Summary is the outcome of one drain pass.
type Summary struct {
	PerCategory map[models.Category]CategorySummary
}

// Delivered returns the total delivered count across categories.
func (s Summary) Delivered() int {
	n := 0
	for _, c := range s.PerCategory {
		n += c.Delivered
	}
	return n
}

// Pending reports whether the pass left work behind (rescheduled items).
func (s Summary) Pending() bool {
	for _, c := range s.PerCategory {
		if c.Rescheduled > 0 {
			return true
		}
	}
	return false
}

// DrainOnce replays every due item, category by category in fixed order.
// Individual failures reschedule the item; only store-level errors abort the
// pass.
func (e *Engine) DrainOnce(now time.Time) (Summary, error) {
	summary := Summary{PerCategory: make(map[models.Category]CategorySummary)}
	if e.Queue == nil {
		return summary, fmt.Errorf("no local store to drain")
	}

	for _, category := range models.Categories() {
		cs, err := e.drainCategory(category, now)
		if err != nil {
			return summary, fmt.Errorf("drain %s: %w", category, err)
		}
		summary.PerCategory[category] = cs
	}
	return summary, nil
}

func (e *Engine) drainCategory(category models.Category, now time.Time) (CategorySummary, error) {
	var cs CategorySummary

	items, err := e.Queue.Due(category, now, e.BatchSize)
	if err != nil {
		return cs, err
	}
	if len(items) == 0 {
		return cs, nil
	}

	// Pre-replay dedup pass: duplicate enqueues of the same logical action
	// (identical kind and payload) collapse to the earliest item.
	items, dropped, err := e.dedup(items)
	if err != nil {
		return cs, err
	}
	cs.Deduped = dropped

	if category == models.CategoryNotifications {
		return e.drainNotifications(items, cs, now)
	}
	return e.drainSync(category, items, cs, now)
}

// dedup removes later items whose kind and payload match an earlier item in
// the batch. Returns the surviving items in their original order.
func (e *Engine) dedup(items []models.QueuedItem) ([]models.QueuedItem, int, error) {
	seen := make(map[string]bool, len(items))
	var survivors []models.QueuedItem
	var duplicates []int64

	for _, it := range items {
		sig := string(it.Kind) + "\x00" + string(it.Payload)
		if seen[sig] {
			duplicates = append(duplicates, it.ID)
			continue
		}
		seen[sig] = true
		survivors = append(survivors, it)
	}

	if len(duplicates) > 0 {
		if err := e.Queue.Delete(duplicates); err != nil {
			return nil, 0, err
		}
		slog.Debug("replay: dropped duplicate items", "count", len(duplicates))
	}
	return survivors, len(duplicates), nil
}

// drainSync sends one batch to the category's sync endpoint and settles each
// item from the acks. Items rejected as duplicates were delivered on an
// earlier attempt and are settled too.
func (e *Engine) drainSync(category models.Category, items []models.QueuedItem, cs CategorySummary, now time.Time) (CategorySummary, error) {
	inputs := make([]apiclient.ItemInput, len(items))
	for i, it := range items {
		inputs[i] = apiclient.ItemInput{
			Key:       it.Key,
			Kind:      string(it.Kind),
			Payload:   it.Payload,
			Timestamp: it.Timestamp,
		}
	}

	resp, err := e.Client.Sync(category, inputs)
	if err != nil {
		// Transport failure: the whole batch retries later
		for i := range items {
			if err := e.settleFailure(&items[i], err.Error(), now, &cs); err != nil {
				return cs, err
			}
		}
		slog.Debug("replay: batch failed", "category", category, "err", err)
		return cs, nil
	}

	delivered := make(map[string]bool, len(resp.Acks))
	for _, key := range resp.Acks {
		delivered[key] = true
	}
	rejectReasons := make(map[string]string, len(resp.Rejected))
	for _, r := range resp.Rejected {
		if r.Reason == "duplicate" {
			delivered[r.Key] = true
		} else {
			rejectReasons[r.Key] = r.Reason
		}
	}

	var done []int64
	for i := range items {
		it := &items[i]
		if delivered[it.Key] {
			done = append(done, it.ID)
			cs.Delivered++
			continue
		}
		reason, rejected := rejectReasons[it.Key]
		if !rejected {
			reason = "not acknowledged"
		}
		if err := e.settleFailure(it, reason, now, &cs); err != nil {
			return cs, err
		}
	}
	if err := e.Queue.Delete(done); err != nil {
		return cs, err
	}
	return cs, nil
}

// drainNotifications delivers notification-category items one by one through
// the push manager.
func (e *Engine) drainNotifications(items []models.QueuedItem, cs CategorySummary, now time.Time) (CategorySummary, error) {
	if e.Notifier == nil {
		return cs, nil
	}

	var done []int64
	for i := range items {
		it := &items[i]
		if err := e.Notifier.DeliverQueued(*it); err != nil {
			if err := e.settleFailure(it, err.Error(), now, &cs); err != nil {
				return cs, err
			}
			continue
		}
		done = append(done, it.ID)
		cs.Delivered++
	}
	if err := e.Queue.Delete(done); err != nil {
		return cs, err
	}
	return cs, nil
}

// settleFailure reschedules a failed item with backoff, dead-lettering it
// past the retry budget.
func (e *Engine) settleFailure(item *models.QueuedItem, reason string, now time.Time, cs *CategorySummary) error {
	next := now.Add(e.backoff(item.RetryCount))
	deadLettered, err := e.Queue.Reschedule(item, reason, next, e.MaxRetries)
	if err != nil {
		return err
	}
	if deadLettered {
		cs.DeadLettered++
		slog.Warn("replay: dead-lettered item", "kind", item.Kind, "key", item.Key, "retries", item.RetryCount, "err", reason)
	} else {
		cs.Rescheduled++
	}
	return nil
}

const maxBackoff = time.Hour

// backoff returns the delay before the next attempt: base doubled per prior
// retry, capped at an hour.
func (e *Engine) backoff(retryCount int) time.Duration {
	d := e.BackoffBase
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
