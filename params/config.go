package params

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"
)

const (
	// DefaultCheckTimeout bounds a single endpoint health check.
	DefaultCheckTimeout = 5 * time.Second

	// DefaultCheckInterval is the period between automatic check cycles.
	DefaultCheckInterval = 10 * time.Second
)

// EndpointConfig describes one candidate RPC endpoint.
type EndpointConfig struct {
	// Address is the endpoint URL, unique within a manager.
	Address string `json:"address" validate:"required,uri"`

	// Username and Secret are optional credentials for HTTP basic auth.
	Username string `json:"username"`
	Secret   string `json:"secret"`

	// Priority orders failover tiers. Lower positive values are probed
	// first; 0 means unranked and is always probed last.
	Priority int `json:"priority" validate:"gte=0"`
}

// Config holds connection manager settings.
type Config struct {
	// CheckTimeoutMs bounds a single health check, in milliseconds.
	CheckTimeoutMs int `json:"check_timeout_ms" validate:"gt=0"`

	// CheckIntervalMs is the periodic check cycle period, in milliseconds.
	CheckIntervalMs int `json:"check_interval_ms" validate:"gt=0"`

	// AutoSwitch enables automatic failover away from an unhealthy
	// current endpoint during a check cycle.
	AutoSwitch bool `json:"auto_switch"`

	// Endpoints is the initial endpoint set.
	Endpoints []EndpointConfig `json:"endpoints" validate:"dive"`
}

// NewConfig returns a Config with default timeouts and auto-switch enabled.
func NewConfig() *Config {
	return &Config{
		CheckTimeoutMs:  int(DefaultCheckTimeout / time.Millisecond),
		CheckIntervalMs: int(DefaultCheckInterval / time.Millisecond),
		AutoSwitch:      true,
	}
}

// LoadConfigFromJSON parses configuration from a JSON document, applying
// defaults for fields the document omits, and validates the result.
func LoadConfigFromJSON(configJSON string) (*Config, error) {
	config := NewConfig()
	if err := json.Unmarshal([]byte(configJSON), config); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that all fields hold sane values. It returns the first
// validation failure encountered.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if _, ok := seen[e.Address]; ok {
			return errors.Errorf("duplicate endpoint address in config: %s", e.Address)
		}
		seen[e.Address] = struct{}{}
	}

	return nil
}

// CheckTimeout returns CheckTimeoutMs as a duration.
func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutMs) * time.Millisecond
}

// CheckInterval returns CheckIntervalMs as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}
