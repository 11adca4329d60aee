package testsupport

import (
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.DocumentsDir = filepath.Join(base, "documents")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Vendor.ClientKey = "test-key"
	cfg.Vendor.ClientSecret = "test-secret"
	cfg.Vendor.ContactEmail = "orders@example.com"
	cfg.Vendor.RetryBaseDelay = 1
	cfg.Documents.PublicBaseURL = "https://docs.example.com/books"
	cfg.Workflow.VendorCallDelay = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithVendorBaseURL points the vendor client at a test server.
func WithVendorBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Vendor.BaseURL = baseURL
		cfg.Vendor.TokenURL = baseURL + "/token"
	}
}

// WithNotifyEndpoint enables all notification events against a test server.
func WithNotifyEndpoint(endpoint string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.Endpoint = endpoint
		cfg.Notifications.Submitted = true
		cfg.Notifications.Shipped = true
		cfg.Notifications.Delivered = true
		cfg.Notifications.Errors = true
	}
}
