// Package push manages push-notification subscriptions and delivery: consent
// state, subscription registration against the backend, template rendering
// and VAPID-signed delivery. Failed deliveries fall back to the durable
// queue's notifications category.
package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/dispatch"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/queue"
)

// pushTTL is how long the push service may hold an undelivered notification.
const pushTTL = 60

// Manager owns the local push subscription and delivers notifications.
// Public methods never return errors for delivery outcomes; they report
// success as a bool and log the rest, so callers cannot confuse "queued for
// later" with "delivered".
type Manager struct {
	Client    *apiclient.Client
	Queue     *queue.DB          // fallback store, may be nil
	Registrar dispatch.Registrar // optional replay registration
	Events    *dispatch.Dispatcher

	// ConsentPrompt, when set, is called to resolve an undecided consent
	// state before subscribing. Returns whether the user granted it.
	ConsentPrompt func() bool

	VAPIDPublicKey  string
	VAPIDPrivateKey string // empty = delivery goes through the backend
	Subscriber      string

	sub *models.Subscription
}

// NewManager creates a push manager with keys and subscription state loaded
// from config.
func NewManager(client *apiclient.Client, q *queue.DB, registrar dispatch.Registrar, events *dispatch.Dispatcher) *Manager {
	m := &Manager{
		Client:          client,
		Queue:           q,
		Registrar:       registrar,
		Events:          events,
		VAPIDPublicKey:  config.GetVAPIDPublicKey(),
		VAPIDPrivateKey: config.GetVAPIDPrivateKey(),
		Subscriber:      config.GetSubscriber(),
	}
	sub, err := config.LoadSubscription()
	if err != nil {
		slog.Warn("push: load subscription failed", "err", err)
	}
	if sub.Complete() {
		m.sub = sub
	}
	return m
}

// Subscription returns the current local subscription, or nil.
func (m *Manager) Subscription() *models.Subscription {
	return m.sub
}

// Consent returns the persisted consent state.
func (m *Manager) Consent() config.Consent {
	return config.GetConsent()
}

// RecordConsent persists a consent decision. The request is reported as an
// analytics event whatever the outcome.
func (m *Manager) RecordConsent(granted bool) error {
	c := config.ConsentDenied
	if granted {
		c = config.ConsentGranted
	}
	err := config.SetConsent(c)
	m.reportEvent("permission", string(c))
	return err
}

// Subscribe creates and registers a push subscription: generate receiver
// credentials, register them with the backend (which assigns the endpoint),
// and persist the completed subscription. overrides, when non-nil, replaces
// the default preference set. Returns nil on any failure; nothing partial is
// ever persisted.
func (m *Manager) Subscribe(userID string, overrides *models.Preferences) *models.Subscription {
	if config.GetConsent() == config.ConsentDefault && m.ConsentPrompt != nil {
		if err := m.RecordConsent(m.ConsentPrompt()); err != nil {
			slog.Warn("push: persist consent failed", "err", err)
		}
	}
	if config.GetConsent() != config.ConsentGranted {
		slog.Warn("push: subscribe refused, consent not granted")
		m.reportEvent("subscribe", "no-consent")
		return nil
	}
	if m.VAPIDPublicKey == "" {
		slog.Warn("push: subscribe refused, no VAPID public key configured")
		m.reportEvent("subscribe", "no-vapid-key")
		return nil
	}

	keys, err := GenerateReceiverKeys()
	if err != nil {
		slog.Warn("push: generate receiver keys failed", "err", err)
		m.reportEvent("subscribe", "keygen-failed")
		return nil
	}

	prefs := models.DefaultPreferences()
	if overrides != nil {
		prefs = *overrides
	}

	resp, err := m.Client.Subscribe(&apiclient.SubscribeRequest{
		DeviceID:    m.Client.DeviceID,
		UserID:      userID,
		Keys:        keys,
		VAPIDKey:    m.VAPIDPublicKey,
		Preferences: prefs,
	})
	if err != nil {
		slog.Warn("push: backend subscribe failed", "err", err)
		m.reportEvent("subscribe", "backend-failed")
		return nil
	}

	now := time.Now()
	sub := &models.Subscription{
		Endpoint:    resp.Endpoint,
		Keys:        keys,
		UserID:      userID,
		Preferences: prefs,
		CreatedAt:   now,
		LastUsed:    now,
	}
	if !sub.Complete() {
		slog.Warn("push: backend returned no endpoint, discarding subscription")
		m.reportEvent("subscribe", "no-endpoint")
		return nil
	}
	if err := config.SaveSubscription(sub); err != nil {
		slog.Warn("push: persist subscription failed", "err", err)
		// Keep backend state consistent with the (absent) local state.
		if err := m.Client.Unsubscribe(sub.Endpoint); err != nil {
			slog.Debug("push: rollback unsubscribe failed", "err", err)
		}
		m.reportEvent("subscribe", "persist-failed")
		return nil
	}

	m.sub = sub
	m.reportEvent("subscribe", "granted")
	slog.Debug("push: subscribed", "endpoint", sub.Endpoint)
	return sub
}

// Unsubscribe removes the subscription locally and requests backend removal.
// Backend removal is best-effort; the local state always goes. Returns false
// when there was no subscription to remove.
func (m *Manager) Unsubscribe() bool {
	if !m.sub.Complete() {
		return false
	}
	if err := m.Client.Unsubscribe(m.sub.Endpoint); err != nil {
		slog.Warn("push: backend unsubscribe failed", "err", err)
	}
	if err := config.ClearSubscription(); err != nil {
		slog.Warn("push: clear subscription failed", "err", err)
		return false
	}
	m.sub = nil
	m.reportEvent("unsubscribe", "ok")
	return true
}

// Send renders the template for kind and delivers it. On delivery failure the
// rendered notification is queued for replay and Send returns false: queuing
// is not delivery.
func (m *Manager) Send(kind Kind, data map[string]string) bool {
	if !m.sub.Complete() {
		slog.Warn("push: send refused, no subscription", "kind", kind)
		return false
	}
	if !m.allowed(kind) {
		slog.Debug("push: send suppressed by preferences", "kind", kind)
		return false
	}

	n, err := Render(kind, data)
	if err != nil {
		slog.Warn("push: render failed", "kind", kind, "err", err)
		return false
	}
	payload, err := json.Marshal(n)
	if err != nil {
		slog.Warn("push: marshal notification failed", "kind", kind, "err", err)
		return false
	}

	// Capture the transport credentials first: a push-service reject inside
	// deliver invalidates the subscription mid-call.
	endpoint, keys := m.sub.Endpoint, m.sub.Keys

	if err := m.deliver(endpoint, keys, payload); err != nil {
		if m.sub == nil {
			// The endpoint is gone; replaying to it would hit the same
			// rejection.
			slog.Warn("push: delivery failed, subscription invalidated", "kind", kind, "err", err)
			return false
		}
		slog.Debug("push: delivery failed, queuing", "kind", kind, "err", err)
		m.enqueue(models.KindNotificationSend, queuedNotification{
			Endpoint:     endpoint,
			Keys:         keys,
			Notification: payload,
		})
		return false
	}

	m.sub.LastUsed = time.Now()
	if err := config.SaveSubscription(m.sub); err != nil {
		slog.Debug("push: update last-used failed", "err", err)
	}
	return true
}

// UpdatePreferences replaces the subscription's preference flags locally and
// on the backend. A backend failure queues the update for replay and returns
// false.
func (m *Manager) UpdatePreferences(prefs models.Preferences) bool {
	if !m.sub.Complete() {
		slog.Warn("push: preferences refused, no subscription")
		return false
	}
	m.sub.Preferences = prefs
	if err := config.SaveSubscription(m.sub); err != nil {
		slog.Warn("push: persist preferences failed", "err", err)
	}
	if err := m.Client.UpdatePreferences(m.sub.Endpoint, prefs); err != nil {
		slog.Debug("push: backend preferences failed, queuing", "err", err)
		m.enqueue(models.KindPreferencesUpdate, queuedPreferences{
			Endpoint:    m.sub.Endpoint,
			Preferences: prefs,
		})
		return false
	}
	return true
}

// DeliverQueued replays one notification-category item. Satisfies the replay
// engine's sender interface.
func (m *Manager) DeliverQueued(item models.QueuedItem) error {
	switch item.Kind {
	case models.KindNotificationSend:
		var qn queuedNotification
		if err := json.Unmarshal(item.Payload, &qn); err != nil {
			return fmt.Errorf("decode queued notification: %w", err)
		}
		return m.deliver(qn.Endpoint, qn.Keys, qn.Notification)
	case models.KindPreferencesUpdate:
		var qp queuedPreferences
		if err := json.Unmarshal(item.Payload, &qp); err != nil {
			return fmt.Errorf("decode queued preferences: %w", err)
		}
		return m.Client.UpdatePreferences(qp.Endpoint, qp.Preferences)
	default:
		return fmt.Errorf("unexpected kind %q in notifications category", item.Kind)
	}
}

// queuedNotification is the payload shape for deferred notification delivery.
// The rendered notification and transport credentials are captured at send
// time so replay survives a later unsubscribe/resubscribe.
type queuedNotification struct {
	Endpoint     string                  `json:"endpoint"`
	Keys         models.SubscriptionKeys `json:"keys"`
	Notification json.RawMessage         `json:"notification"`
}

// queuedPreferences is the payload shape for deferred preference updates.
type queuedPreferences struct {
	Endpoint    string             `json:"endpoint"`
	Preferences models.Preferences `json:"preferences"`
}

// deliver pushes a rendered notification: directly through the push service
// when a VAPID private key is configured, via the backend otherwise.
func (m *Manager) deliver(endpoint string, keys models.SubscriptionKeys, notification json.RawMessage) error {
	if m.VAPIDPrivateKey == "" {
		return m.Client.SendNotification(endpoint, notification)
	}

	resp, err := webpush.SendNotification(notification, &webpush.Subscription{
		Endpoint: endpoint,
		Keys: webpush.Keys{
			P256dh: keys.P256dh,
			Auth:   keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      m.Subscriber,
		VAPIDPublicKey:  m.VAPIDPublicKey,
		VAPIDPrivateKey: m.VAPIDPrivateKey,
		TTL:             pushTTL,
	})
	if err != nil {
		return fmt.Errorf("push service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// A 4xx (expired or revoked endpoint, typically 404/410) means the
		// subscription is gone; drop the local state so the next send fails
		// fast instead of retrying a dead endpoint.
		if resp.StatusCode < http.StatusInternalServerError {
			m.invalidate(endpoint)
		}
		return fmt.Errorf("push service: HTTP %d", resp.StatusCode)
	}
	return nil
}

// invalidate discards the local subscription when the push service rejected
// its endpoint.
func (m *Manager) invalidate(endpoint string) {
	if m.sub == nil || m.sub.Endpoint != endpoint {
		return
	}
	slog.Warn("push: subscription rejected by push service, clearing", "endpoint", endpoint)
	if err := config.ClearSubscription(); err != nil {
		slog.Debug("push: clear subscription failed", "err", err)
	}
	m.sub = nil
}

// allowed checks the subscription's preference flag for a template kind.
func (m *Manager) allowed(kind Kind) bool {
	p := m.sub.Preferences
	switch kind {
	case KindOrderConfirmed, KindOrderShipped, KindOrderDelivered:
		return p.Orders
	case KindPromotion:
		return p.Promotions
	case KindBackInStock:
		return p.NewProducts
	case KindPriceDrop:
		return p.PriceDrops
	case KindCartReminder:
		return p.CartReminders
	case KindReviewRequest:
		return p.Reviews
	default:
		return true
	}
}

// enqueue stores a notification-category item for replay. Best-effort: a
// missing or failing store is logged and the item is lost.
func (m *Manager) enqueue(kind models.Kind, payload any) {
	if m.Queue == nil {
		slog.Warn("push: local store unavailable, dropping", "kind", kind)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("push: marshal queued payload failed", "kind", kind, "err", err)
		return
	}
	item, ok := models.NewQueuedItem(kind, data)
	if !ok {
		slog.Warn("push: unknown kind", "kind", kind)
		return
	}
	if err := m.Queue.Store(&item); err != nil {
		slog.Warn("push: store failed, dropping", "kind", kind, "err", err)
		return
	}
	if m.Registrar != nil {
		m.Registrar.Register(dispatch.ReplayTag(models.CategoryNotifications))
	}
	slog.Debug("push: queued", "kind", kind, "key", item.Key)
}

// reportEvent emits a notification lifecycle analytics event.
func (m *Manager) reportEvent(action, outcome string) {
	if m.Events == nil {
		return
	}
	m.Events.Track(models.KindNotificationEvent, models.AnalyticsPayload{
		Event: "notification-" + action,
		Meta:  map[string]string{"outcome": outcome},
	})
}
