package core

import (
	"time"

	"github.com/go-playground/validator/v10"

	"deribit/internal/ratelimit"
)

// Limits are the rate limit quotas applied by the client.
type Limits = ratelimit.Limits

// BucketLimit is the quota of a single rate limit bucket.
type BucketLimit = ratelimit.Bucket

// DefaultLimits returns Deribit's default-tier quotas.
func DefaultLimits() Limits {
	return ratelimit.DefaultLimits()
}

// Credentials holds the API key pair used for the client_credentials grant.
type Credentials struct {
	// ClientID is the public API key identifier.
	ClientID string `json:"client_id" mapstructure:"client_id" validate:"required"`
	// ClientSecret is never logged or printed.
	ClientSecret string `json:"client_secret" mapstructure:"client_secret" validate:"required"`
}

// String masks the secret and the middle of the id.
func (c Credentials) String() string {
	return "Credentials{ClientID: " + maskKey(c.ClientID) + ", ClientSecret: ****}"
}

// GoString keeps %#v from printing the secret.
func (c Credentials) GoString() string {
	return c.String()
}

// Validate reports missing fields as a config error.
func (c *Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return NewConfigError("invalid credentials", err)
	}
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Config contains all configuration options for a client.
type Config struct {
	// BaseURL overrides the endpoint chosen by Testnet.
	BaseURL     string       `json:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	Testnet     bool         `json:"testnet" mapstructure:"testnet"`
	Credentials *Credentials `json:"credentials,omitempty" mapstructure:"credentials"`

	// Timeout is the fixed per-request HTTP timeout.
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout" validate:"min=1ms"`
	UserAgent string        `json:"user_agent" mapstructure:"user_agent"`

	Limits Limits `json:"limits" mapstructure:"limits"`
	// SafetyMargin is how long before expiry a token is refreshed.
	SafetyMargin time.Duration `json:"safety_margin" mapstructure:"safety_margin" validate:"min=0"`

	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

// DefaultConfig returns a Config initialized with sensible defaults.
// Default values: testnet, 30s timeout, 30s token safety margin, Deribit
// default-tier rate limits, info logging.
func DefaultConfig() *Config {
	return &Config{
		Testnet:      true,
		Timeout:      30 * time.Second,
		UserAgent:    DefaultUserAgent,
		Limits:       DefaultLimits(),
		SafetyMargin: 30 * time.Second,
		LogLevel:     "info",
	}
}

var validate = validator.New()

// Validate checks the configuration. Failures are KindConfig errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return NewConfigError("invalid config", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return NewConfigError("invalid rate limits", err)
	}
	return nil
}

// Endpoint returns the base URL requests are sent to.
func (c *Config) Endpoint() string {
	switch {
	case c.BaseURL != "":
		return c.BaseURL
	case c.Testnet:
		return TestnetBaseURL
	}
	return ProductionBaseURL
}

// HasCredentials reports whether private calls can be authenticated.
func (c *Config) HasCredentials() bool {
	return c.Credentials != nil && c.Credentials.ClientID != "" && c.Credentials.ClientSecret != ""
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(clientID, clientSecret string) *Config {
	c.Credentials = &Credentials{ClientID: clientID, ClientSecret: clientSecret}
	return c
}

// WithTestnet selects the testnet or production endpoint and returns the config for chaining.
func (c *Config) WithTestnet(testnet bool) *Config {
	c.Testnet = testnet
	return c
}

// WithBaseURL overrides the endpoint and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithLimits replaces the rate limit quotas and returns the config for chaining.
func (c *Config) WithLimits(limits Limits) *Config {
	c.Limits = limits
	return c
}

// WithSafetyMargin sets the token refresh margin and returns the config for chaining.
func (c *Config) WithSafetyMargin(margin time.Duration) *Config {
	c.SafetyMargin = margin
	return c
}

// WithUserAgent sets the User-Agent header and returns the config for chaining.
func (c *Config) WithUserAgent(ua string) *Config {
	c.UserAgent = ua
	return c
}

// WithLogLevel sets the log level and returns the config for chaining.
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}
