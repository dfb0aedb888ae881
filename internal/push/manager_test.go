package push

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/queue"
)

// testManager builds a manager against a test backend, with config state
// isolated in a scratch home directory.
func testManager(t *testing.T, handler http.Handler) (*Manager, *queue.DB) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	q, err := queue.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	return &Manager{
		Client:         apiclient.New(server.URL, "dev-1"),
		Queue:          q,
		VAPIDPublicKey: "test-vapid-key",
	}, q
}

func grantConsent(t *testing.T) {
	t.Helper()
	if err := config.SetConsent(config.ConsentGranted); err != nil {
		t.Fatalf("set consent: %v", err)
	}
}

func assertNoLocalSubscription(t *testing.T) {
	t.Helper()
	sub, err := config.LoadSubscription()
	if err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected no persisted subscription, got %+v", sub)
	}
}

func subscribeOK(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(apiclient.SubscribeResponse{Endpoint: "https://push.example/ep/1"})
}

func TestSubscribeRequiresConsent(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call expected without consent")
	}))

	if sub := m.Subscribe("", nil); sub != nil {
		t.Fatal("expected nil subscription without consent")
	}
	assertNoLocalSubscription(t)
}

func TestSubscribeConsultsConsentPrompt(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(subscribeOK))
	m.ConsentPrompt = func() bool { return true }

	sub := m.Subscribe("", nil)
	if sub == nil {
		t.Fatal("expected subscription after prompted consent")
	}
	if config.GetConsent() != config.ConsentGranted {
		t.Errorf("expected consent persisted as granted, got %s", config.GetConsent())
	}
}

func TestSubscribeFailsClosedWithoutVAPIDKey(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call expected without a VAPID key")
	}))
	grantConsent(t)
	m.VAPIDPublicKey = ""

	if sub := m.Subscribe("", nil); sub != nil {
		t.Fatal("expected nil subscription without VAPID key")
	}
	assertNoLocalSubscription(t)
}

func TestSubscribeBackendFailureLeavesNoState(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	grantConsent(t)

	if sub := m.Subscribe("u1", nil); sub != nil {
		t.Fatal("expected nil subscription on backend failure")
	}
	assertNoLocalSubscription(t)
}

func TestSubscribeMissingEndpointLeavesNoState(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiclient.SubscribeResponse{})
	}))
	grantConsent(t)

	if sub := m.Subscribe("", nil); sub != nil {
		t.Fatal("expected nil subscription when backend assigns no endpoint")
	}
	assertNoLocalSubscription(t)
}

func TestSubscribePersistsCompleteSubscription(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(subscribeOK))
	grantConsent(t)

	sub := m.Subscribe("u1", nil)
	if sub == nil {
		t.Fatal("expected subscription")
	}
	if !sub.Complete() {
		t.Fatalf("expected complete subscription, got %+v", sub)
	}
	if sub.UserID != "u1" {
		t.Errorf("expected user id kept, got %q", sub.UserID)
	}

	// Default preferences: everything on except new products.
	want := models.Preferences{Orders: true, Promotions: true, NewProducts: false, PriceDrops: true, CartReminders: true, Reviews: true}
	if sub.Preferences != want {
		t.Errorf("unexpected default preferences: %+v", sub.Preferences)
	}

	persisted, err := config.LoadSubscription()
	if err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if persisted == nil || persisted.Endpoint != sub.Endpoint {
		t.Fatal("expected subscription persisted")
	}
	if m.Subscription() == nil {
		t.Fatal("expected manager to hold the subscription")
	}
}

func TestSubscribePreferenceOverrides(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(subscribeOK))
	grantConsent(t)

	overrides := models.Preferences{Orders: true} // everything else off
	sub := m.Subscribe("", &overrides)
	if sub == nil {
		t.Fatal("expected subscription")
	}
	if sub.Preferences != overrides {
		t.Errorf("expected overrides applied, got %+v", sub.Preferences)
	}
}

func TestSendWithoutSubscription(t *testing.T) {
	m, q := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no backend call expected without a subscription")
	}))

	if m.Send(KindWelcome, nil) {
		t.Fatal("expected send to fail without a subscription")
	}
	items, _ := q.All(models.CategoryNotifications)
	if len(items) != 0 {
		t.Errorf("expected nothing queued, got %d items", len(items))
	}
}

func testSubscription() *models.Subscription {
	now := time.Now()
	return &models.Subscription{
		Endpoint:    "https://push.example/ep/1",
		Keys:        models.SubscriptionKeys{P256dh: "pk", Auth: "as"},
		Preferences: models.DefaultPreferences(),
		CreatedAt:   now,
		LastUsed:    now,
	}
}

func TestSendDeliversViaBackend(t *testing.T) {
	var got apiclient.SendRequest
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notifications/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	m.sub = testSubscription()

	if !m.Send(KindOrderConfirmed, map[string]string{"orderId": "9", "total": "$1"}) {
		t.Fatal("expected send to succeed")
	}

	var n Notification
	if err := json.Unmarshal(got.Notification, &n); err != nil {
		t.Fatalf("unmarshal notification: %v", err)
	}
	if n.Body != "Your order #9 has been confirmed. Total: $1." {
		t.Errorf("unexpected rendered body: %q", n.Body)
	}
}

func TestSendFailureQueuesForReplay(t *testing.T) {
	m, q := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	m.sub = testSubscription()

	if m.Send(KindPriceDrop, map[string]string{"productName": "Mug"}) {
		t.Fatal("queued delivery must not count as success")
	}

	items, err := q.All(models.CategoryNotifications)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 1 || items[0].Kind != models.KindNotificationSend {
		t.Fatalf("expected a queued notification-send item, got %v", items)
	}
	var qn queuedNotification
	if err := json.Unmarshal(items[0].Payload, &qn); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if qn.Endpoint != m.sub.Endpoint || len(qn.Notification) == 0 {
		t.Errorf("queued payload missing endpoint or rendered notification: %+v", qn)
	}
}

// enableDirectDelivery gives the manager a real VAPID keypair and a complete
// subscription pointing at endpoint, so Send goes through the push service
// instead of the backend.
func enableDirectDelivery(t *testing.T, m *Manager, endpoint string) {
	t.Helper()
	priv, pub, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate vapid keys: %v", err)
	}
	keys, err := GenerateReceiverKeys()
	if err != nil {
		t.Fatalf("generate receiver keys: %v", err)
	}
	m.VAPIDPublicKey = pub
	m.VAPIDPrivateKey = priv
	m.Subscriber = "mailto:ops@shop.example"
	m.sub = &models.Subscription{
		Endpoint:    endpoint,
		Keys:        keys,
		Preferences: models.DefaultPreferences(),
	}
}

func TestSendPushServiceRejectClearsSubscription(t *testing.T) {
	pushService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer pushService.Close()

	m, q := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("direct delivery must not reach the backend")
	}))
	enableDirectDelivery(t, m, pushService.URL)
	if err := config.SaveSubscription(m.sub); err != nil {
		t.Fatalf("save subscription: %v", err)
	}

	if m.Send(KindWelcome, nil) {
		t.Fatal("expected send to fail against a rejecting push service")
	}
	if m.Subscription() != nil {
		t.Error("expected in-memory subscription cleared")
	}
	assertNoLocalSubscription(t)

	// The endpoint is dead; replaying to it is pointless.
	items, err := q.All(models.CategoryNotifications)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected nothing queued for a rejected endpoint, got %d items", len(items))
	}
}

func TestSendPushServiceServerErrorQueues(t *testing.T) {
	pushService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer pushService.Close()

	m, q := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("direct delivery must not reach the backend")
	}))
	enableDirectDelivery(t, m, pushService.URL)

	if m.Send(KindWelcome, nil) {
		t.Fatal("expected send to report failure")
	}
	if m.Subscription() == nil {
		t.Error("expected subscription kept after a push service outage")
	}

	items, err := q.All(models.CategoryNotifications)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 1 || items[0].Kind != models.KindNotificationSend {
		t.Fatalf("expected a queued notification-send item, got %v", items)
	}
	var qn queuedNotification
	if err := json.Unmarshal(items[0].Payload, &qn); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if qn.Endpoint != pushService.URL {
		t.Errorf("queued item carries wrong endpoint: %q", qn.Endpoint)
	}
}

func TestSendSuppressedByPreferences(t *testing.T) {
	m, q := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("suppressed send must not reach the backend")
	}))
	m.sub = testSubscription()
	m.sub.Preferences.Promotions = false

	if m.Send(KindPromotion, map[string]string{"title": "Sale"}) {
		t.Fatal("expected send suppressed by preferences")
	}
	items, _ := q.All(models.CategoryNotifications)
	if len(items) != 0 {
		t.Error("suppressed send must not queue")
	}
}

func TestUpdatePreferencesQueuesOnFailure(t *testing.T) {
	m, q := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	m.sub = testSubscription()

	prefs := models.DefaultPreferences()
	prefs.CartReminders = false
	if m.UpdatePreferences(prefs) {
		t.Fatal("expected update to report failure")
	}

	// Local state updated regardless; backend update queued.
	if m.sub.Preferences.CartReminders {
		t.Error("expected local preferences updated")
	}
	items, _ := q.All(models.CategoryNotifications)
	if len(items) != 1 || items[0].Kind != models.KindPreferencesUpdate {
		t.Fatalf("expected queued preferences-update, got %v", items)
	}
}

func TestUnsubscribeClearsLocalStateDespiteBackendFailure(t *testing.T) {
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	m.sub = testSubscription()
	if err := config.SaveSubscription(m.sub); err != nil {
		t.Fatalf("save subscription: %v", err)
	}

	if !m.Unsubscribe() {
		t.Fatal("expected unsubscribe to succeed locally")
	}
	if m.Subscription() != nil {
		t.Error("expected manager state cleared")
	}
	assertNoLocalSubscription(t)
}

func TestUnsubscribeWithoutSubscription(t *testing.T) {
	m, _ := testManager(t, http.NotFoundHandler())
	if m.Unsubscribe() {
		t.Fatal("expected false with nothing to remove")
	}
}

func TestDeliverQueuedPreferencesUpdate(t *testing.T) {
	var got apiclient.PreferencesRequest
	m, _ := testManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notifications/preferences" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
	}))

	payload, _ := json.Marshal(queuedPreferences{
		Endpoint:    "https://push.example/ep/1",
		Preferences: models.DefaultPreferences(),
	})
	item, _ := models.NewQueuedItem(models.KindPreferencesUpdate, payload)

	if err := m.DeliverQueued(item); err != nil {
		t.Fatalf("deliver queued: %v", err)
	}
	if got.Endpoint != "https://push.example/ep/1" {
		t.Errorf("unexpected endpoint %q", got.Endpoint)
	}
}

func TestDeliverQueuedRejectsForeignKinds(t *testing.T) {
	m, _ := testManager(t, http.NotFoundHandler())
	item, _ := models.NewQueuedItem(models.KindCartUpdate, json.RawMessage(`{}`))
	if err := m.DeliverQueued(item); err == nil {
		t.Fatal("expected error for non-notification kind")
	}
}

func TestGenerateReceiverKeys(t *testing.T) {
	first, err := GenerateReceiverKeys()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	pk, err := base64.RawURLEncoding.DecodeString(first.P256dh)
	if err != nil {
		t.Fatalf("p256dh not base64url: %v", err)
	}
	if len(pk) != 65 || pk[0] != 0x04 {
		t.Errorf("expected 65-byte uncompressed P-256 point, got %d bytes", len(pk))
	}

	auth, err := base64.RawURLEncoding.DecodeString(first.Auth)
	if err != nil {
		t.Fatalf("auth not base64url: %v", err)
	}
	if len(auth) != 16 {
		t.Errorf("expected 16-byte auth secret, got %d", len(auth))
	}

	second, err := GenerateReceiverKeys()
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if second.P256dh == first.P256dh || second.Auth == first.Auth {
		t.Error("expected fresh credentials per call")
	}
}
