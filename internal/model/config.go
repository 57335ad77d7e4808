package model

import "time"

// Config holds the complete runtime configuration
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Cache       CacheConfig       `yaml:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Notify      NotifyConfig      `yaml:"notify"`
	Output      OutputConfig      `yaml:"output"`
}

// HTTPConfig configures the claim-store HTTP client
type HTTPConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty"`
	NoProxy      string        `yaml:"no_proxy,omitempty"`
}

// CacheConfig configures claim payload caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// ConcurrencyConfig configures batch reroute parallelism and the
// claim-store request limiter
type ConcurrencyConfig struct {
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CatalogConfig points at an optional YAML catalog override. When Path
// is empty the built-in seven-entry catalog is used.
type CatalogConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LedgerConfig selects the assignment ledger backend
type LedgerConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// NotifyConfig configures the queue-refresh notification hook
type NotifyConfig struct {
	KafkaEnabled bool     `yaml:"kafka_enabled"`
	Brokers      []string `yaml:"brokers,omitempty"`
	Topic        string   `yaml:"topic,omitempty"`
}

// OutputConfig controls CLI output behavior
type OutputConfig struct {
	Verbose bool   `yaml:"verbose"`
	JSON    bool   `yaml:"json"`
	Dir     string `yaml:"dir,omitempty"`
}

// DefaultConfig returns the built-in defaults, overridable by config
// file, environment and flags (in increasing priority).
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			BaseURL:      "http://localhost:8000/api",
			Timeout:      30 * time.Second,
			UserAgent:    "claimroute/0.1 (+https://github.com/pvoronin/claimroute)",
			MaxBodyBytes: 2_000_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           8,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Ledger: LedgerConfig{
			Backend: "memory",
		},
		Notify: NotifyConfig{
			Topic: "claimroute-assignments",
		},
	}
}
