package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVendor(); err != nil {
		return err
	}
	if err := c.validateDocuments(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateVendor() error {
	if strings.TrimSpace(c.Vendor.BaseURL) == "" {
		return errors.New("vendor.base_url must be set")
	}
	if strings.TrimSpace(c.Vendor.ClientKey) == "" || strings.TrimSpace(c.Vendor.ClientSecret) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/bindery/config.toml"
		}
		return fmt.Errorf("vendor.client_key and vendor.client_secret are required. Set BINDERY_VENDOR_CLIENT_KEY / BINDERY_VENDOR_CLIENT_SECRET env vars or edit %s (create with 'bindery config init')", defaultPath)
	}
	if strings.TrimSpace(c.Vendor.PackageID) == "" {
		return errors.New("vendor.package_id must be set")
	}
	if email := strings.TrimSpace(c.Vendor.ContactEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("vendor.contact_email is not a valid address: %w", err)
		}
	}
	if c.Vendor.RequestTimeout <= 0 {
		return errors.New("vendor.request_timeout must be positive")
	}
	if c.Vendor.RetryAttempts < 0 {
		return errors.New("vendor.retry_attempts must not be negative")
	}
	return nil
}

func (c *Config) validateDocuments() error {
	if strings.TrimSpace(c.Documents.PublicBaseURL) == "" {
		return errors.New("documents.public_base_url must be set so the vendor can fetch generated PDFs")
	}
	if !strings.HasPrefix(c.Documents.PublicBaseURL, "http://") && !strings.HasPrefix(c.Documents.PublicBaseURL, "https://") {
		return errors.New("documents.public_base_url must be an http(s) URL")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ReconcileInterval <= 0 {
		return errors.New("workflow.reconcile_interval must be positive")
	}
	if c.Workflow.VendorCallDelay < 0 {
		return errors.New("workflow.vendor_call_delay must not be negative")
	}
	return nil
}
