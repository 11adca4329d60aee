package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/config"
)

func TestLoadDefaultsUseEnvCredentialsAndExpandPaths(t *testing.T) {
	t.Setenv("BINDERY_VENDOR_CLIENT_KEY", "test-key")
	t.Setenv("BINDERY_VENDOR_CLIENT_SECRET", "test-secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	// public_base_url has no default, so write the minimal file.
	cfgDir := filepath.Join(tempHome, ".config", "bindery")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := "[documents]\npublic_base_url = \"https://books.example.com/documents\"\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" || !exists {
		t.Fatalf("expected resolved existing config, got %q exists=%v", resolved, exists)
	}

	wantData := filepath.Join(tempHome, ".local", "share", "bindery")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DocumentsDir != filepath.Join(wantData, "documents") {
		t.Fatalf("unexpected documents dir: %q", cfg.Paths.DocumentsDir)
	}
	if cfg.Vendor.ClientKey != "test-key" || cfg.Vendor.ClientSecret != "test-secret" {
		t.Fatal("expected vendor credentials from env")
	}
	if cfg.Vendor.PackageID == "" {
		t.Fatal("expected default package id")
	}
	if !strings.HasPrefix(cfg.Vendor.TokenURL, cfg.Vendor.BaseURL) {
		t.Fatalf("expected token url derived from base url, got %q", cfg.Vendor.TokenURL)
	}
	if cfg.Workflow.ReconcileInterval != config.Default().Workflow.ReconcileInterval {
		t.Fatalf("unexpected reconcile interval: %d", cfg.Workflow.ReconcileInterval)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.DocumentsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", dir)
		}
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("BINDERY_VENDOR_CLIENT_KEY", "")
	t.Setenv("BINDERY_VENDOR_CLIENT_SECRET", "")
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected validation error without vendor credentials")
	}
	if !strings.Contains(err.Error(), "client_key") {
		t.Fatalf("expected credential error, got: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "bindery.toml")

	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(tempDir, "data") + `"`,
		"[vendor]",
		`base_url = "https://sandbox.example.com/"`,
		`client_key = "k"`,
		`client_secret = "s"`,
		`contact_email = "press@example.com"`,
		"[documents]",
		`public_base_url = "https://cdn.example.com/docs/"`,
		"[workflow]",
		"reconcile_interval = 60",
		"vendor_call_delay = 0",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected load from %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Vendor.BaseURL != "https://sandbox.example.com" {
		t.Fatalf("expected trimmed base url, got %q", cfg.Vendor.BaseURL)
	}
	if cfg.Documents.PublicBaseURL != "https://cdn.example.com/docs" {
		t.Fatalf("expected trimmed public base url, got %q", cfg.Documents.PublicBaseURL)
	}
	if cfg.Workflow.ReconcileInterval != 60 {
		t.Fatalf("unexpected reconcile interval: %d", cfg.Workflow.ReconcileInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := config.Default()
	base.Vendor.ClientKey = "k"
	base.Vendor.ClientSecret = "s"
	base.Documents.PublicBaseURL = "https://cdn.example.com"

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing base url", func(c *config.Config) { c.Vendor.BaseURL = "" }},
		{"missing package id", func(c *config.Config) { c.Vendor.PackageID = "" }},
		{"bad contact email", func(c *config.Config) { c.Vendor.ContactEmail = "not-an-address" }},
		{"non-http public url", func(c *config.Config) { c.Documents.PublicBaseURL = "ftp://cdn" }},
		{"zero reconcile interval", func(c *config.Config) { c.Workflow.ReconcileInterval = 0 }},
		{"negative call delay", func(c *config.Config) { c.Workflow.VendorCallDelay = -1 }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
