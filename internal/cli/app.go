package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pvoronin/claimroute/internal/assign"
	"github.com/pvoronin/claimroute/internal/cache"
	"github.com/pvoronin/claimroute/internal/catalog"
	"github.com/pvoronin/claimroute/internal/claims"
	"github.com/pvoronin/claimroute/internal/model"
	"github.com/pvoronin/claimroute/internal/notify"
	"github.com/pvoronin/claimroute/internal/pipeline"
	"github.com/pvoronin/claimroute/internal/storage"
	"github.com/pvoronin/claimroute/internal/worker"
)

// app holds the wired components behind a CLI command
type app struct {
	triage  *pipeline.Triage
	catalog *catalog.Catalog
	ledger  assign.Ledger
	closers []io.Closer
}

// Close releases ledger and notifier resources
func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// loadConfig merges defaults with the viper-resolved config file and
// environment. Flags are applied by each command on top of the result.
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()

	if v := viper.GetString("http.base_url"); v != "" {
		cfg.HTTP.BaseURL = v
	}
	if v := viper.GetDuration("http.timeout"); v > 0 {
		cfg.HTTP.Timeout = v
	}
	if v := viper.GetString("http.user_agent"); v != "" {
		cfg.HTTP.UserAgent = v
	}
	if viper.IsSet("cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	}
	if v := viper.GetString("cache.disk_dir"); v != "" {
		cfg.Cache.DiskDir = v
	}
	if v := viper.GetInt("concurrency.workers"); v > 0 {
		cfg.Concurrency.Workers = v
	}
	if v := viper.GetFloat64("concurrency.requests_per_second"); v > 0 {
		cfg.Concurrency.RequestsPerSecond = v
	}
	if v := viper.GetString("catalog.path"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := viper.GetString("ledger.backend"); v != "" {
		cfg.Ledger.Backend = v
	}
	if v := viper.GetString("ledger.path"); v != "" {
		cfg.Ledger.Path = v
	}
	if viper.IsSet("notify.kafka_enabled") {
		cfg.Notify.KafkaEnabled = viper.GetBool("notify.kafka_enabled")
	}
	if v := viper.GetStringSlice("notify.brokers"); len(v) > 0 {
		cfg.Notify.Brokers = v
	}
	if v := viper.GetString("notify.topic"); v != "" {
		cfg.Notify.Topic = v
	}

	return cfg
}

// buildApp wires catalog, ledger, notifier, claim-store client and the
// triage pipeline from the resolved configuration.
func buildApp(cfg *model.Config) (*app, error) {
	a := &app{}

	// Team catalog
	var (
		cat *catalog.Catalog
		err error
	)
	if cfg.Catalog.Path != "" {
		cat, err = catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	} else {
		cat = catalog.Default()
	}
	a.catalog = cat

	// Assignment ledger
	switch cfg.Ledger.Backend {
	case "", "memory":
		a.ledger = assign.NewMemoryLedger()
	case "sqlite":
		if cfg.Ledger.Path == "" {
			return nil, fmt.Errorf("ledger backend sqlite requires ledger.path")
		}
		sl, err := storage.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		a.ledger = sl
		a.closers = append(a.closers, sl)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	// Notification hook
	var hook notify.Hook = notify.Nop()
	if cfg.Notify.KafkaEnabled {
		if len(cfg.Notify.Brokers) == 0 {
			return nil, fmt.Errorf("kafka notifications require notify.brokers")
		}
		kh := notify.NewKafkaHook(cfg.Notify.Brokers, cfg.Notify.Topic)
		hook = kh
		a.closers = append(a.closers, kh)
	}

	// Claim-store client
	var opts []claims.Option
	if cfg.Cache.Enabled {
		diskDir := cfg.Cache.DiskDir
		if diskDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve cache directory: %w", err)
			}
			diskDir = filepath.Join(home, ".claimroute", "cache")
		}
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, diskDir, cfg.Cache.DiskTTL)
		opts = append(opts, claims.WithCache(c, cfg.Cache.MemoryTTL))
	}
	limiter := worker.NewLimiter(cfg.Concurrency.RequestsPerSecond, cfg.Concurrency.Burst)
	opts = append(opts, claims.WithLimiter(limiter))
	client := claims.NewClient(cfg.HTTP, opts...)

	tx := assign.NewTransaction(cat, a.ledger, hook)
	a.triage = pipeline.NewTriage(client, client, cat, a.ledger, tx)

	return a, nil
}
