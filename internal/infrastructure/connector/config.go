package connector

import (
	"errors"
	"net/http"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
)

// Default connector settings
const (
	DefaultTimeout      = 30 * time.Second
	DefaultPageSize     = 100
	DefaultRateLimitRPS = 5.0
	DefaultRateBurst    = 5
	MaxPageSize         = 1000
)

// Errors for connector configuration
var (
	ErrConfigInvalidPageSize  = errors.New("connector: page size must be between 1 and 1000")
	ErrConfigInvalidRateLimit = errors.New("connector: rate limit must not be negative")
)

// Credentials authenticate requests against one external system.
// Basic auth is used when Username is set, a bearer token otherwise.
type Credentials struct {
	Username string
	Password string
	Token    string
}

func (c Credentials) apply(req *http.Request) {
	switch {
	case c.Username != "":
		req.SetBasicAuth(c.Username, c.Password)
	case c.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// Config holds settings shared by all connectors
type Config struct {
	// Timeout bounds one HTTP request
	Timeout time.Duration
	// PageSize is the number of records requested per page
	PageSize int
	// RateLimitRPS caps requests per second per source; 0 uses the default
	RateLimitRPS float64
	RateBurst    int
	Retry        RetryConfig
	Credentials  map[integration.SystemType]Credentials
	// AsanaWorkspace limits Asana syncs to one workspace; empty lists all visible workspaces
	AsanaWorkspace string
	// Transport replaces the HTTP transport, for tests
	Transport http.RoundTripper
}

// DefaultConfig returns a Config with defaults applied
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		PageSize:     DefaultPageSize,
		RateLimitRPS: DefaultRateLimitRPS,
		RateBurst:    DefaultRateBurst,
		Retry:        DefaultRetryConfig(),
		Credentials:  make(map[integration.SystemType]Credentials),
	}
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.PageSize < 0 || c.PageSize > MaxPageSize {
		return ErrConfigInvalidPageSize
	}
	if c.RateLimitRPS < 0 {
		return ErrConfigInvalidRateLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = DefaultRateLimitRPS
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	c.Retry = c.Retry.withDefaults()
	if c.Credentials == nil {
		c.Credentials = make(map[integration.SystemType]Credentials)
	}
	return nil
}
