package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bindery/internal/config"
)

const userAgent = "Bindery-Go/0.1.0"

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifySubmitted(ctx context.Context, orderID, bookTitle, contactEmail string) error
	NotifyShipped(ctx context.Context, orderID, contactEmail, trackingNumber, trackingURL string) error
	NotifyDelivered(ctx context.Context, orderID, contactEmail string) error
	NotifyFailed(ctx context.Context, orderID, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no endpoint is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.Endpoint)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		submitted: cfg.Notifications.Submitted,
		shipped:   cfg.Notifications.Shipped,
		delivered: cfg.Notifications.Delivered,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	submitted bool
	shipped   bool
	delivered bool
	errors    bool
}

func (n *ntfyService) NotifySubmitted(ctx context.Context, orderID, bookTitle, contactEmail string) error {
	if !n.submitted {
		return nil
	}
	bookTitle = strings.TrimSpace(bookTitle)
	data := payload{
		title:   "Bindery - Order Submitted",
		message: fmt.Sprintf("Sent to the printer: %s (order %s, %s)", bookTitle, orderID, contactEmail),
		tags:    []string{"bindery", "order", "submitted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyShipped(ctx context.Context, orderID, contactEmail, trackingNumber, trackingURL string) error {
	if !n.shipped {
		return nil
	}
	message := fmt.Sprintf("Order %s shipped to %s", orderID, contactEmail)
	if trackingNumber = strings.TrimSpace(trackingNumber); trackingNumber != "" {
		message = fmt.Sprintf("%s\nTracking: %s", message, trackingNumber)
	}
	if trackingURL = strings.TrimSpace(trackingURL); trackingURL != "" {
		message = fmt.Sprintf("%s\n%s", message, trackingURL)
	}
	data := payload{
		title:   "Bindery - Order Shipped",
		message: message,
		tags:    []string{"bindery", "order", "shipped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDelivered(ctx context.Context, orderID, contactEmail string) error {
	if !n.delivered {
		return nil
	}
	data := payload{
		title:    "Bindery - Order Delivered",
		message:  fmt.Sprintf("Order %s delivered to %s", orderID, contactEmail),
		tags:     []string{"bindery", "order", "delivered"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFailed(ctx context.Context, orderID, reason string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Order ")
	builder.WriteString(orderID)
	builder.WriteString(" failed")
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString(": ")
		builder.WriteString(reason)
	}
	data := payload{
		title:    "Bindery - Order Failed",
		message:  builder.String(),
		tags:     []string{"bindery", "order", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Bindery - Test",
		message: "Notification delivery is working",
		tags:    []string{"bindery", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySubmitted(context.Context, string, string, string) error       { return nil }
func (noopService) NotifyShipped(context.Context, string, string, string, string) error { return nil }
func (noopService) NotifyDelivered(context.Context, string, string) error               { return nil }
func (noopService) NotifyFailed(context.Context, string, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
