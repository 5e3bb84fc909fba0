package sync

import (
	"context"
	"flag"
	"testing"
	"time"

	"github.com/louisbranch/teryt-cache/internal/cache"
	"github.com/louisbranch/teryt-cache/internal/platform/timeouts"
	"github.com/louisbranch/teryt-cache/internal/registry"
	"github.com/louisbranch/teryt-cache/internal/storage/memory"
	"github.com/louisbranch/teryt-cache/internal/teryt"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("TERYT_CACHE_DRIVER", "")
	t.Setenv("TERYT_CACHE_DB_PATH", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Driver != "bbolt" {
		t.Fatalf("expected default driver, got %q", cfg.Driver)
	}
	if cfg.DBPath != "data/teryt.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Init {
		t.Fatal("expected init off by default")
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TERYT_CACHE_DRIVER", "dynamo")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-driver", "bbolt", "-init", "-catalog", "terc"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Driver != "bbolt" {
		t.Fatalf("expected flag to win, got %q", cfg.Driver)
	}
	if !cfg.Init || cfg.Catalog != "terc" {
		t.Fatalf("expected init run for terc, got %+v", cfg)
	}
}

// deadlineRegistry records the context deadline of every version
// probe it serves.
type deadlineRegistry struct {
	deadlines []time.Time
}

func (f *deadlineRegistry) CurrentVersion(ctx context.Context, cat registry.Catalog) (registry.Version, error) {
	deadline, _ := ctx.Deadline()
	f.deadlines = append(f.deadlines, deadline)
	return registry.VersionFromTime(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)), nil
}

func (f *deadlineRegistry) Snapshot(ctx context.Context, cat registry.Catalog, version registry.Version) ([]map[string]string, error) {
	return nil, nil
}

func (f *deadlineRegistry) Changes(ctx context.Context, cat registry.Catalog, from, to registry.Version) ([]registry.Change, error) {
	return nil, nil
}

func TestInitCatalogsBoundsEachCatalogSeparately(t *testing.T) {
	ctx := context.Background()
	mgr, err := cache.NewManager(ctx, memory.New())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	client := &deadlineRegistry{}
	catalogs, err := teryt.NewCatalogs(mgr, client)
	if err != nil {
		t.Fatalf("new catalogs: %v", err)
	}

	start := time.Now()
	if err := initCatalogs(ctx, catalogs, ""); err != nil {
		t.Fatalf("init catalogs: %v", err)
	}
	if len(client.deadlines) != 4 {
		t.Fatalf("expected one probe per catalog, got %d", len(client.deadlines))
	}
	limit := start.Add(timeouts.RegistryDownload + time.Minute)
	for i, deadline := range client.deadlines {
		if deadline.IsZero() {
			t.Fatalf("expected a deadline on probe %d", i)
		}
		if deadline.After(limit) {
			t.Fatalf("expected per-catalog window on probe %d, got deadline %v", i, deadline)
		}
	}
}

func TestInitCatalogsRejectsUnknownCatalog(t *testing.T) {
	mgr, err := cache.NewManager(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	catalogs, err := teryt.NewCatalogs(mgr, &deadlineRegistry{})
	if err != nil {
		t.Fatalf("new catalogs: %v", err)
	}
	if err := initCatalogs(context.Background(), catalogs, "streets"); err == nil {
		t.Fatal("expected unknown catalog error")
	}
}

func TestOpenDriverRejectsUnknownName(t *testing.T) {
	_, _, err := openDriver(context.Background(), Config{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestOpenDriverBBolt(t *testing.T) {
	driver, closeDriver, err := openDriver(context.Background(), Config{
		Driver: "bbolt",
		DBPath: t.TempDir() + "/teryt.db",
	})
	if err != nil {
		t.Fatalf("open driver: %v", err)
	}
	if driver == nil {
		t.Fatal("expected a driver")
	}
	if err := closeDriver(); err != nil {
		t.Fatalf("close driver: %v", err)
	}
}
