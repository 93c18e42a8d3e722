package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address     string    `yaml:"address"`
		Port        int       `yaml:"port"`
		MaxBodySize SizeBytes `yaml:"max_body_size"`
		TLS         struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		IPAllowlist []string `yaml:"ip_allowlist"`
		APIKeys     struct {
			Backend     []string `yaml:"backend"`
			Frontend    []string `yaml:"frontend"`
			AllowUnauth bool     `yaml:"allow_unauth"`
		} `yaml:"api_keys"`
	} `yaml:"security"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
	Assistant AssistantConfig `yaml:"assistant"`
	Retention struct {
		Enabled      bool   `yaml:"enabled"`
		Cron         string `yaml:"cron"`
		Period       string `yaml:"period"`
		BatchSize    int    `yaml:"batch_size"`
		BatchSleepMs int    `yaml:"batch_sleep_ms"`
		DryRun       bool   `yaml:"dry_run"`
	} `yaml:"retention"`
	Telemetry struct {
		SlowThreshold Duration `yaml:"slow_threshold"`
	} `yaml:"telemetry"`
}

// AssistantConfig controls the completion proxy. APIKey is never read from
// YAML; it comes from the GEMINI_API_KEY environment variable so the
// credential stays out of config files.
type AssistantConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// Timeout bounds a single generation call end to end.
	Timeout Duration `yaml:"timeout"`
	// MaxMessages and MaxContextChars bound the context window sent
	// upstream for chat-aware generation.
	MaxMessages     int `yaml:"max_messages"`
	MaxContextChars int `yaml:"max_context_chars"`

	APIKey string `yaml:"-"`
}

// AssistantEnabled resolves the externally injected capability flag, which
// defaults to true when unset.
func (a AssistantConfig) AssistantEnabled() bool {
	if a.Enabled == nil {
		return true
	}
	return *a.Enabled
}

// Addr returns the listen address derived from address and port fields.
func (c *Config) Addr() string {
	host := c.Server.Address
	if c.Server.Port > 0 {
		return net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
	}
	if host != "" {
		return host
	}
	return ":8080"
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &c, nil
}

// LoadEnvOverrides applies PILOTDECK_* environment variables on top of cfg
// and reports whether any were used.
func LoadEnvOverrides(cfg *Config) bool {
	used := false
	if v := os.Getenv("PILOTDECK_ADDR"); v != "" {
		cfg.Server.Address = v
		cfg.Server.Port = 0
		used = true
	}
	if v := os.Getenv("PILOTDECK_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
		used = true
	}
	if v := os.Getenv("PILOTDECK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
		used = true
	}
	if v := os.Getenv("PILOTDECK_BACKEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Backend = splitKeys(v)
		used = true
	}
	if v := os.Getenv("PILOTDECK_FRONTEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Frontend = splitKeys(v)
		used = true
	}
	if v := os.Getenv("PILOTDECK_ASSISTANT_ENABLED"); v != "" {
		b := strings.EqualFold(v, "true") || v == "1"
		cfg.Assistant.Enabled = &b
		used = true
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Assistant.APIKey = v
	}
	return used
}

func splitKeys(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.MaxBodySize == 0 {
		c.Server.MaxBodySize = 1 << 20
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = "gemini-2.0-flash"
	}
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Assistant.Timeout == 0 {
		c.Assistant.Timeout = Duration(defaultAssistantTimeout)
	}
	if c.Assistant.MaxMessages == 0 {
		c.Assistant.MaxMessages = 12
	}
	if c.Assistant.MaxContextChars == 0 {
		c.Assistant.MaxContextChars = 5000
	}
	if c.Retention.BatchSize == 0 {
		c.Retention.BatchSize = 500
	}
	if c.Telemetry.SlowThreshold == 0 {
		c.Telemetry.SlowThreshold = Duration(defaultSlowThreshold)
	}
}
