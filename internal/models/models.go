package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Category names a local queue collection. Items within a category are
// replayed in insertion order; no ordering holds across categories.
type Category string

const (
	CategoryCart          Category = "cart-updates"
	CategoryAnalytics     Category = "analytics-events"
	CategoryForms         Category = "form-submissions"
	CategoryNotifications Category = "notifications"
)

// Categories lists all queue categories in drain order.
func Categories() []Category {
	return []Category{CategoryCart, CategoryAnalytics, CategoryForms, CategoryNotifications}
}

// Kind identifies the type of a sync-worthy action.
type Kind string

const (
	// Cart mutations
	KindCartUpdate Kind = "cart-update"
	KindCartRemove Kind = "cart-remove"
	KindCartClear  Kind = "cart-clear"

	// Analytics events
	KindPageView    Kind = "page-view"
	KindProductView Kind = "product-view"
	KindAddToCart   Kind = "add-to-cart"
	KindPurchase    Kind = "purchase"
	KindSearch      Kind = "search"
	// Notification lifecycle events (permission requests, subscribe outcomes)
	// ride the analytics channel.
	KindNotificationEvent Kind = "notification-event"

	// Form submissions
	KindContactForm Kind = "contact-form"
	KindNewsletter  Kind = "newsletter"
	KindReview      Kind = "review"
	KindSupport     Kind = "support"

	// Deferred notification delivery
	KindNotificationSend  Kind = "notification-send"
	KindPreferencesUpdate Kind = "preferences-update"
)

var kindCategories = map[Kind]Category{
	KindCartUpdate:        CategoryCart,
	KindCartRemove:        CategoryCart,
	KindCartClear:         CategoryCart,
	KindPageView:          CategoryAnalytics,
	KindProductView:       CategoryAnalytics,
	KindAddToCart:         CategoryAnalytics,
	KindPurchase:          CategoryAnalytics,
	KindSearch:            CategoryAnalytics,
	KindNotificationEvent: CategoryAnalytics,
	KindContactForm:       CategoryForms,
	KindNewsletter:        CategoryForms,
	KindReview:            CategoryForms,
	KindSupport:           CategoryForms,
	KindNotificationSend:  CategoryNotifications,
	KindPreferencesUpdate: CategoryNotifications,
}

// CategoryFor returns the queue category for a kind. The second return is
// false for kinds the queue does not know about.
func CategoryFor(kind Kind) (Category, bool) {
	c, ok := kindCategories[kind]
	return c, ok
}

// QueuedItem is a sync-worthy action persisted for deferred delivery.
type QueuedItem struct {
	ID            int64  // store-assigned, monotonically increasing within a category
	Key           string // idempotency key, assigned at creation
	Kind          Kind
	Category      Category
	Payload       json.RawMessage
	Timestamp     int64 // creation time, milliseconds since epoch
	RetryCount    int
	NextAttemptAt *time.Time // nil = due immediately
	LastError     string
}

// NewQueuedItem builds an unsaved item for the given kind. The store assigns
// ID on insert. Returns false when the kind maps to no category.
func NewQueuedItem(kind Kind, payload json.RawMessage) (QueuedItem, bool) {
	category, ok := CategoryFor(kind)
	if !ok {
		return QueuedItem{}, false
	}
	return QueuedItem{
		Key:       uuid.NewString(),
		Kind:      kind,
		Category:  category,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}, true
}

// CartPayload is the payload shape for cart mutation kinds.
type CartPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity,omitempty"`
	Action    string `json:"action"` // "update", "remove" or "clear"
	UserID    string `json:"user_id,omitempty"`
}

// AnalyticsPayload is the payload shape for analytics event kinds.
type AnalyticsPayload struct {
	Event     string            `json:"event"`
	Path      string            `json:"path,omitempty"`
	ProductID string            `json:"product_id,omitempty"`
	Query     string            `json:"query,omitempty"`
	Value     float64           `json:"value,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// FormPayload is the payload shape for form submission kinds.
type FormPayload struct {
	Form   string            `json:"form"`
	Email  string            `json:"email,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SubscriptionKeys are the push-transport encryption credentials.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Preferences holds the per-category notification opt-in flags.
type Preferences struct {
	Orders        bool `json:"orders"`
	Promotions    bool `json:"promotions"`
	NewProducts   bool `json:"newProducts"`
	PriceDrops    bool `json:"priceDrops"`
	CartReminders bool `json:"cartReminders"`
	Reviews       bool `json:"reviews"`
}

// DefaultPreferences returns the default opt-in set: everything on except
// new-product announcements.
func DefaultPreferences() Preferences {
	return Preferences{
		Orders:        true,
		Promotions:    true,
		NewProducts:   false,
		PriceDrops:    true,
		CartReminders: true,
		Reviews:       true,
	}
}

// Subscription is a push-notification subscription. One is only ever
// persisted complete: endpoint plus both transport keys.
type Subscription struct {
	Endpoint    string           `json:"endpoint"`
	Keys        SubscriptionKeys `json:"keys"`
	UserID      string           `json:"user_id,omitempty"`
	Preferences Preferences      `json:"preferences"`
	CreatedAt   time.Time        `json:"created_at"`
	LastUsed    time.Time        `json:"last_used"`
}

// Complete reports whether the subscription carries every required
// transport credential.
func (s *Subscription) Complete() bool {
	return s != nil && s.Endpoint != "" && s.Keys.P256dh != "" && s.Keys.Auth != ""
}
