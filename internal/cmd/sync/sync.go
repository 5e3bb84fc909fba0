// Package sync parses teryt-sync command flags and runs catalog
// synchronization.
package sync

import (
	"context"
	"flag"
	"fmt"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/louisbranch/teryt-cache/internal/cache"
	entrypoint "github.com/louisbranch/teryt-cache/internal/platform/cmd"
	"github.com/louisbranch/teryt-cache/internal/platform/timeouts"
	"github.com/louisbranch/teryt-cache/internal/registry"
	"github.com/louisbranch/teryt-cache/internal/storage"
	"github.com/louisbranch/teryt-cache/internal/storage/bbolt"
	"github.com/louisbranch/teryt-cache/internal/storage/dynamo"
	"github.com/louisbranch/teryt-cache/internal/teryt"
)

// Config holds teryt-sync command configuration.
type Config struct {
	Driver    string `env:"TERYT_CACHE_DRIVER" envDefault:"bbolt"`
	DBPath    string `env:"TERYT_CACHE_DB_PATH" envDefault:"data/teryt.db"`
	AWSRegion string `env:"TERYT_CACHE_AWS_REGION"`
	Endpoint  string `env:"TERYT_CACHE_REGISTRY_ENDPOINT" envDefault:"https://uslugaterytws1.stat.gov.pl/terytws1.svc"`
	Username  string `env:"TERYT_CACHE_REGISTRY_USERNAME"`
	Password  string `env:"TERYT_CACHE_REGISTRY_PASSWORD"`

	// Init forces a full snapshot load instead of an incremental sync.
	Init bool
	// Catalog restricts the run to one catalog: terc, simc, ulic, or
	// wmrodz. Empty means all catalogs.
	Catalog string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Storage driver (bbolt or dynamo)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The bbolt database path")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "The TERYT registry SOAP endpoint")
	fs.BoolVar(&cfg.Init, "init", cfg.Init, "Rebuild catalogs from full snapshots")
	fs.StringVar(&cfg.Catalog, "catalog", cfg.Catalog, "Restrict the run to one catalog")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one synchronization pass.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSync, func(ctx context.Context) error {
		driver, closeDriver, err := openDriver(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeDriver(); err != nil {
				log.Printf("close storage driver: %v", err)
			}
		}()

		manager, err := cache.NewManager(ctx, driver)
		if err != nil {
			return err
		}
		client, err := registry.NewSOAPClient(registry.SOAPConfig{
			Endpoint: cfg.Endpoint,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return err
		}
		catalogs, err := teryt.NewCatalogs(manager, client)
		if err != nil {
			return err
		}

		if cfg.Init {
			return initCatalogs(ctx, catalogs, cfg.Catalog)
		}
		return syncCatalogs(ctx, catalogs, cfg.Catalog)
	})
}

func openDriver(ctx context.Context, cfg Config) (storage.Driver, func() error, error) {
	switch cfg.Driver {
	case "bbolt":
		driver, err := bbolt.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bbolt database %s: %w", cfg.DBPath, err)
		}
		return driver, driver.Close, nil
	case "dynamo":
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return dynamo.New(dynamodb.NewFromConfig(awsCfg)), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// withDownloadTimeout bounds a single catalog pass. Each catalog gets
// its own window; a slow street download must not eat into the budget
// of the catalogs after it.
func withDownloadTimeout(ctx context.Context, run func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.RegistryDownload)
	defer cancel()
	return run(ctx)
}

func initCatalogs(ctx context.Context, catalogs *teryt.Catalogs, only string) error {
	// Smallest catalog first so a failure surfaces before the large
	// street download.
	targets := []struct {
		name   string
		create func(context.Context) error
	}{
		{"wmrodz", catalogs.Kinds.Create},
		{"terc", catalogs.Units.Create},
		{"simc", catalogs.Places.Create},
		{"ulic", catalogs.Streets.Create},
	}
	matched := false
	for _, t := range targets {
		if only != "" && t.name != only {
			continue
		}
		matched = true
		if err := withDownloadTimeout(ctx, t.create); err != nil {
			return fmt.Errorf("init %s: %w", t.name, err)
		}
	}
	if !matched {
		return fmt.Errorf("unknown catalog %q", only)
	}
	return nil
}

func syncCatalogs(ctx context.Context, catalogs *teryt.Catalogs, only string) error {
	targets := []struct {
		name string
		sync func(context.Context) error
	}{
		{"terc", func(ctx context.Context) error { _, err := catalogs.Units.Get(ctx); return err }},
		{"simc", func(ctx context.Context) error { _, err := catalogs.Places.Get(ctx); return err }},
		{"ulic", func(ctx context.Context) error { _, err := catalogs.Streets.Get(ctx); return err }},
		{"wmrodz", func(ctx context.Context) error { _, err := catalogs.Kinds.Get(ctx); return err }},
	}
	matched := false
	for _, t := range targets {
		if only != "" && t.name != only {
			continue
		}
		matched = true
		if err := withDownloadTimeout(ctx, t.sync); err != nil {
			return fmt.Errorf("sync %s: %w", t.name, err)
		}
		log.Printf("catalog %s is current", t.name)
	}
	if !matched {
		return fmt.Errorf("unknown catalog %q", only)
	}
	return nil
}
