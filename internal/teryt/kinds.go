package teryt

import (
	"context"
	"fmt"
	"log"

	"github.com/louisbranch/teryt-cache/internal/cache"
	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/registry"
)

// KindsPath is the storage table name for the locality kind dictionary.
const KindsPath = "teryt_wmrodz_v1"

// Kinds caches the locality kind dictionary (WMRODZ). The dictionary
// has no change stream, so it only supports full loads; its version
// tracks the administrative unit catalog it is published with.
type Kinds struct {
	manager *cache.Manager
	client  registry.Client
}

// NewKinds builds the kind dictionary cache.
func NewKinds(manager *cache.Manager, client registry.Client) (*Kinds, error) {
	if manager == nil {
		return nil, fmt.Errorf("cache manager is required")
	}
	if client == nil {
		return nil, fmt.Errorf("registry client is required")
	}
	return &Kinds{manager: manager, client: client}, nil
}

// Create rebuilds the dictionary from a full snapshot.
func (k *Kinds) Create(ctx context.Context) error {
	version, err := k.client.CurrentVersion(ctx, registry.CatalogWMRODZ)
	if err != nil {
		return fmt.Errorf("probe %s version: %w", KindsPath, err)
	}
	rows, err := k.client.Snapshot(ctx, registry.CatalogWMRODZ, version)
	if err != nil {
		return fmt.Errorf("download %s snapshot: %w", KindsPath, err)
	}
	contents := make(map[string]any, len(rows))
	for _, row := range rows {
		if id := row["rm"]; id != "" {
			contents[id] = row["nazwa_rm"]
		}
	}
	table, err := k.manager.Create(ctx, KindsPath, codec.JSON{})
	if err != nil {
		return err
	}
	if err := table.Reload(ctx, contents); err != nil {
		return fmt.Errorf("load %s snapshot: %w", KindsPath, err)
	}
	if err := k.manager.MarkReady(ctx, KindsPath, int64(version)); err != nil {
		return err
	}
	log.Printf("catalog %s loaded: %d kinds", KindsPath, len(contents))
	return nil
}

// Get returns a read view of the dictionary, mapping kind identifiers
// to their names. Staleness is not checked: kind identifiers are
// stable across releases.
func (k *Kinds) Get(ctx context.Context) (*View[string], error) {
	table, err := k.manager.Get(ctx, KindsPath, codec.JSON{}, 0)
	if err != nil {
		return nil, err
	}
	return &View[string]{table: table}, nil
}
