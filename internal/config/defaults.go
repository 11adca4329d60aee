package config

const (
	defaultDataDir           = "~/.local/share/bindery"
	defaultAPIBind           = "127.0.0.1:8487"
	defaultVendorBaseURL     = "https://api.lulu.com"
	defaultVendorPackageID   = "0850X0850FCPRECW080CW444GXX"
	defaultVendorTimeout     = 30
	defaultRetryAttempts     = 2
	defaultRetryBaseDelayMS  = 500
	defaultNotifyTimeout     = 10
	defaultReconcileInterval = 3600
	defaultVendorCallDelay   = 2
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Vendor: Vendor{
			BaseURL:        defaultVendorBaseURL,
			PackageID:      defaultVendorPackageID,
			RequestTimeout: defaultVendorTimeout,
			RetryAttempts:  defaultRetryAttempts,
			RetryBaseDelay: defaultRetryBaseDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Submitted:      true,
			Shipped:        true,
			Delivered:      true,
			Errors:         true,
		},
		Workflow: Workflow{
			ReconcileInterval: defaultReconcileInterval,
			VendorCallDelay:   defaultVendorCallDelay,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
