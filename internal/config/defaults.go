package config

const (
	defaultConfigPath          = "~/.config/marketplace/config.toml"
	defaultDataDir             = "~/.local/share/marketplace"
	defaultLogDir              = "~/.local/share/marketplace/logs"
	defaultUploadDir           = "~/.local/share/marketplace/uploads"
	defaultIconDir             = "~/.local/share/marketplace/icons"
	defaultKeyFile             = "~/.config/marketplace/encryption.key"
	defaultBind                = "127.0.0.1:8420"
	defaultRateLimit           = 20
	defaultRateBurst           = 40
	defaultIssuer              = "marketplace"
	defaultTokenTTLHours       = 24
	defaultPollInterval        = 5
	defaultErrorRetryInterval  = 10
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultMaxAttempts         = 3
	defaultChunkSize           = 50
	defaultStatsSchedule       = "15 3 * * *"
	defaultStatsStepDays       = 5
	defaultFixupWindow         = 5000
	defaultMaxContribution     = 1000
	defaultFoundationCharityID = 1
	defaultCurrency            = "USD"
	defaultPayPalEndpoint      = "https://svcs.sandbox.paypal.com"
	defaultPayPalTimeout       = 10
	defaultMaxUploadMiB        = 20
	defaultMinFreeMiB          = 512
	defaultFetchTimeout        = 10
	defaultNotifyTimeout       = 10
	defaultMailFrom            = "nobody@marketplace.local"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with marketplace defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:           defaultBind,
			RateLimit:      defaultRateLimit,
			RateBurst:      defaultRateBurst,
			MetricsEnabled: true,
		},
		Auth: Auth{
			Issuer:        defaultIssuer,
			TokenTTLHours: defaultTokenTTLHours,
		},
		Tasks: Tasks{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			MaxAttempts:        defaultMaxAttempts,
			ChunkSize:          defaultChunkSize,
		},
		Stats: Stats{
			Schedule:    defaultStatsSchedule,
			StepDays:    defaultStatsStepDays,
			FixupWindow: defaultFixupWindow,
		},
		Payments: Payments{
			MaxContribution:     defaultMaxContribution,
			FoundationCharityID: defaultFoundationCharityID,
			KeyFile:             defaultKeyFile,
			DefaultCurrency:     defaultCurrency,
		},
		PayPal: PayPal{
			Endpoint:       defaultPayPalEndpoint,
			TimeoutSeconds: defaultPayPalTimeout,
		},
		Uploads: Uploads{
			Dir:        defaultUploadDir,
			IconDir:    defaultIconDir,
			MaxSizeMiB: defaultMaxUploadMiB,
			MinFreeMiB: defaultMinFreeMiB,
		},
		Webapps: Webapps{
			FetchTimeoutSeconds: defaultFetchTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Mail: Mail{
			From: defaultMailFrom,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
