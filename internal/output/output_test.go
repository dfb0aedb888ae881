package output

import (
	"strings"
	"testing"
	"time"

	"github.com/marcus/shopsync/internal/models"
)

func TestFormatItemLong(t *testing.T) {
	next := time.Now().Add(time.Minute)
	item := &models.QueuedItem{
		ID:            7,
		Key:           "k-123",
		Kind:          models.KindCartUpdate,
		Category:      models.CategoryCart,
		Payload:       []byte(`{"product_id":"p1"}`),
		Timestamp:     time.Now().UnixMilli(),
		RetryCount:    2,
		NextAttemptAt: &next,
		LastError:     "HTTP 503",
	}

	got := FormatItemLong(item)
	for _, want := range []string{
		"#7 cart-update",
		"Key: k-123",
		"Retries: 2",
		"Next attempt:",
		"HTTP 503",
		`{"product_id":"p1"}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("long format missing %q:\n%s", want, got)
		}
	}
}

func TestFormatItemLongOmitsEmptyRetryState(t *testing.T) {
	item := &models.QueuedItem{
		ID:        1,
		Key:       "k-1",
		Kind:      models.KindPageView,
		Category:  models.CategoryAnalytics,
		Payload:   []byte(`{}`),
		Timestamp: time.Now().UnixMilli(),
	}

	got := FormatItemLong(item)
	for _, unwanted := range []string{"Retries:", "Next attempt:", "Last error:"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("long format shows %q for a fresh item:\n%s", unwanted, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"rather longer than that", 10, "rather lo…"},
		{"héllo wörld", 6, "héllo…"},
		{"x", 1, "x"},
		{"xy", 1, "…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
