package push

import (
	"fmt"
	"regexp"
)

// Kind names a notification template. The set is fixed; senders pick a kind
// and supply substitution data rather than free-form content.
type Kind string

const (
	KindOrderConfirmed Kind = "order-confirmed"
	KindOrderShipped   Kind = "order-shipped"
	KindOrderDelivered Kind = "order-delivered"
	KindPromotion      Kind = "promotion"
	KindPriceDrop      Kind = "price-drop"
	KindBackInStock    Kind = "back-in-stock"
	KindCartReminder   Kind = "cart-reminder"
	KindReviewRequest  Kind = "review-request"
	KindWelcome        Kind = "welcome"
)

// Kinds returns every known template kind in stable order.
func Kinds() []Kind {
	return []Kind{
		KindOrderConfirmed, KindOrderShipped, KindOrderDelivered,
		KindPromotion, KindPriceDrop, KindBackInStock,
		KindCartReminder, KindReviewRequest, KindWelcome,
	}
}

// Action is a button attached to a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Template is the static shape of one notification kind. Title and Body may
// carry {placeholder} tokens filled in at render time.
type Template struct {
	Title              string
	Body               string
	Icon               string
	Actions            []Action
	RequireInteraction bool
	Vibrate            []int
}

// Notification is a rendered, ready-to-deliver notification payload.
type Notification struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Icon               string            `json:"icon,omitempty"`
	Badge              string            `json:"badge,omitempty"`
	Tag                string            `json:"tag,omitempty"`
	Actions            []Action          `json:"actions,omitempty"`
	RequireInteraction bool              `json:"requireInteraction,omitempty"`
	Vibrate            []int             `json:"vibrate,omitempty"`
	Data               map[string]string `json:"data,omitempty"`
}

const (
	defaultIcon  = "/icons/icon-192.png"
	defaultBadge = "/icons/badge-72.png"
)

var templates = map[Kind]Template{
	KindOrderConfirmed: {
		Title:   "Order confirmed!",
		Body:    "Your order #{orderId} has been confirmed. Total: {total}.",
		Icon:    defaultIcon,
		Actions: []Action{{Action: "view-order", Title: "View order"}},
		Vibrate: []int{100, 50, 100},
	},
	KindOrderShipped: {
		Title:   "Your order is on its way",
		Body:    "Order #{orderId} has shipped. Tracking number: {trackingNumber}.",
		Icon:    defaultIcon,
		Actions: []Action{{Action: "track", Title: "Track package"}},
	},
	KindOrderDelivered: {
		Title:   "Delivered!",
		Body:    "Order #{orderId} has been delivered. Enjoy!",
		Icon:    defaultIcon,
		Actions: []Action{{Action: "view-order", Title: "View order"}},
	},
	KindPromotion: {
		Title: "{title}",
		Body:  "{description} Use code {code} at checkout.",
		Icon:  defaultIcon,
	},
	KindPriceDrop: {
		Title:   "Price drop: {productName}",
		Body:    "Now {price} (was {oldPrice}). Grab it before it's gone.",
		Icon:    defaultIcon,
		Actions: []Action{{Action: "view-product", Title: "View product"}},
	},
	KindBackInStock: {
		Title:   "Back in stock: {productName}",
		Body:    "{productName} is available again. Quantities are limited.",
		Icon:    defaultIcon,
		Actions: []Action{{Action: "view-product", Title: "View product"}},
	},
	KindCartReminder: {
		Title: "You left something behind",
		Body:  "You have {itemCount} item(s) waiting in your cart.",
		Icon:  defaultIcon,
		Actions: []Action{
			{Action: "checkout", Title: "Checkout"},
			{Action: "dismiss", Title: "Not now"},
		},
		RequireInteraction: true,
	},
	KindReviewRequest: {
		Title:   "How was your order?",
		Body:    "Tell us what you thought of {productName}.",
		Icon:    defaultIcon,
		Actions: []Action{{Action: "review", Title: "Leave a review"}},
	},
	KindWelcome: {
		Title: "Welcome to the store!",
		Body:  "Thanks for enabling notifications. You'll hear about your orders and offers here.",
		Icon:  defaultIcon,
	},
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z][a-zA-Z0-9_]*)\}`)

// substitute fills {placeholder} tokens from data. Tokens with no matching
// key stay verbatim.
func substitute(s string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := data[match[1:len(match)-1]]; ok {
			return v
		}
		return match
	})
}

// Render builds the notification for kind, substituting {placeholder} tokens
// in title and body from data. Unknown kinds are an error.
func Render(kind Kind, data map[string]string) (Notification, error) {
	tpl, ok := templates[kind]
	if !ok {
		return Notification{}, fmt.Errorf("unknown notification kind %q", kind)
	}
	return Notification{
		Title:              substitute(tpl.Title, data),
		Body:               substitute(tpl.Body, data),
		Icon:               tpl.Icon,
		Badge:              defaultBadge,
		Tag:                string(kind),
		Actions:            tpl.Actions,
		RequireInteraction: tpl.RequireInteraction,
		Vibrate:            tpl.Vibrate,
		Data:               data,
	}, nil
}
