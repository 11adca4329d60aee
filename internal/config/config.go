package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	DocumentsDir string `toml:"documents_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Vendor contains configuration for the print fulfillment vendor API.
type Vendor struct {
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
	ClientKey    string `toml:"client_key"`
	ClientSecret string `toml:"client_secret"`
	// PackageID is the vendor's pod package identifier for the square
	// hardcover photo book. All submissions use this package.
	PackageID      string `toml:"package_id"`
	ContactEmail   string `toml:"contact_email"`
	RequestTimeout int    `toml:"request_timeout"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryBaseDelay int    `toml:"retry_base_delay_ms"`
}

// Documents contains configuration for generated PDF artifacts.
type Documents struct {
	// PublicBaseURL is the externally reachable URL prefix under which
	// stored artifacts are served. The vendor fetches interior and cover
	// PDFs from these URLs, so it must be public or signed.
	PublicBaseURL string `toml:"public_base_url"`
}

// Notifications contains configuration for push notifications on order
// status changes.
type Notifications struct {
	Endpoint       string `toml:"endpoint"`
	RequestTimeout int    `toml:"request_timeout"`
	Submitted      bool   `toml:"submitted"`
	Shipped        bool   `toml:"shipped"`
	Delivered      bool   `toml:"delivered"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for orchestrator timing.
type Workflow struct {
	// ReconcileInterval is the seconds between reconciliation sweeps over
	// non-terminal orders.
	ReconcileInterval int `toml:"reconcile_interval"`
	// VendorCallDelay is the seconds to wait between consecutive vendor
	// status calls during a sweep. The vendor API is the bottleneck;
	// sweeps are deliberately serialized.
	VendorCallDelay int `toml:"vendor_call_delay"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bindery.
//
// Configuration sections by subsystem:
//   - Paths: data/document/log directories and API bind address
//   - Vendor: print vendor API endpoints and credentials
//   - Documents: artifact storage and public URL settings
//   - Notifications: order status push notification settings
//   - Workflow: reconciliation sweep timing
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Vendor        Vendor        `toml:"vendor"`
	Documents     Documents     `toml:"documents"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bindery/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bindery.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DocumentsDir) == "" {
		c.Paths.DocumentsDir = filepath.Join(c.Paths.DataDir, "documents")
	}
	if c.Paths.DocumentsDir, err = expandPath(c.Paths.DocumentsDir); err != nil {
		return fmt.Errorf("paths.documents_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if key, ok := os.LookupEnv("BINDERY_VENDOR_CLIENT_KEY"); ok && strings.TrimSpace(key) != "" {
		c.Vendor.ClientKey = strings.TrimSpace(key)
	}
	if secret, ok := os.LookupEnv("BINDERY_VENDOR_CLIENT_SECRET"); ok && strings.TrimSpace(secret) != "" {
		c.Vendor.ClientSecret = strings.TrimSpace(secret)
	}
	c.Vendor.BaseURL = strings.TrimRight(strings.TrimSpace(c.Vendor.BaseURL), "/")
	if strings.TrimSpace(c.Vendor.TokenURL) == "" && c.Vendor.BaseURL != "" {
		c.Vendor.TokenURL = c.Vendor.BaseURL + "/auth/realms/glassfrog/protocol/openid-connect/token"
	}

	c.Documents.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Documents.PublicBaseURL), "/")

	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "text", "console":
		format = "console"
	case "json":
	default:
		format = "console"
	}
	c.Logging.Format = format
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.DocumentsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OrdersDBPath returns the SQLite database path backing order state.
func (c *Config) OrdersDBPath() string {
	return filepath.Join(c.Paths.DataDir, "orders.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
