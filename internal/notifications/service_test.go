package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bindery/internal/config"
	"bindery/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func enabledConfig(endpoint string) config.Config {
	cfg := config.Default()
	cfg.Notifications.Endpoint = endpoint
	cfg.Notifications.Submitted = true
	cfg.Notifications.Shipped = true
	cfg.Notifications.Delivered = true
	cfg.Notifications.Errors = true
	return cfg
}

func TestNewServiceReturnsNoopWhenEndpointMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Endpoint = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifySubmitted(context.Background(), "order-1", "A Book", "reader@example.com"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNotifyShippedIncludesTracking(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	cfg := enabledConfig(server.URL)
	svc := notifications.NewService(&cfg)

	err := svc.NotifyShipped(context.Background(), "order-1", "reader@example.com", "1Z999", "https://track.example.com/1Z999")
	if err != nil {
		t.Fatalf("notify shipped: %v", err)
	}
	if len(sink) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink))
	}
	got := sink[0]
	if got.title != "Bindery - Order Shipped" {
		t.Errorf("title = %q", got.title)
	}
	for _, want := range []string{"order-1", "1Z999", "https://track.example.com/1Z999"} {
		if !containsString(got.message, want) {
			t.Errorf("message %q missing %q", got.message, want)
		}
	}
}

func TestNotifyFailedCarriesReasonAtHighPriority(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	cfg := enabledConfig(server.URL)
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyFailed(context.Background(), "order-2", "vendor rejected address"); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if len(sink) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink))
	}
	if sink[0].priority != "high" {
		t.Errorf("priority = %q, want high", sink[0].priority)
	}
	if !containsString(sink[0].message, "vendor rejected address") {
		t.Errorf("message %q missing failure reason", sink[0].message)
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	cfg := enabledConfig(server.URL)
	cfg.Notifications.Submitted = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifySubmitted(context.Background(), "order-3", "A Book", "reader@example.com"); err != nil {
		t.Fatalf("notify submitted: %v", err)
	}
	if len(sink) != 0 {
		t.Fatalf("disabled event still sent %d notifications", len(sink))
	}
}

func TestSendSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	cfg := enabledConfig(server.URL)
	svc := notifications.NewService(&cfg)

	err := svc.NotifyDelivered(context.Background(), "order-4", "reader@example.com")
	if err == nil {
		t.Fatal("expected error from non-2xx response")
	}
	if !containsString(err.Error(), "topic quota exceeded") {
		t.Fatalf("error %q missing server detail", err)
	}
}

func containsString(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
