package teryt

import (
	"context"
	"fmt"

	"github.com/louisbranch/teryt-cache/internal/cache"
	"github.com/louisbranch/teryt-cache/internal/catalog"
	"github.com/louisbranch/teryt-cache/internal/registry"
)

// Catalogs bundles every per-catalog engine over one manager and
// registry client.
type Catalogs struct {
	Kinds   *Kinds
	Units   *Engine[catalog.Unit]
	Places  *Engine[catalog.Place]
	Streets *Engine[catalog.StreetGroup]
}

// NewCatalogs builds the full engine set.
func NewCatalogs(manager *cache.Manager, client registry.Client) (*Catalogs, error) {
	kinds, err := NewKinds(manager, client)
	if err != nil {
		return nil, err
	}
	units, err := NewUnits(manager, client)
	if err != nil {
		return nil, err
	}
	places, err := NewPlaces(manager, client)
	if err != nil {
		return nil, err
	}
	streets, err := NewStreets(manager, client)
	if err != nil {
		return nil, err
	}
	return &Catalogs{Kinds: kinds, Units: units, Places: places, Streets: streets}, nil
}

// InitAll performs a full snapshot load of every catalog, smallest
// first so a failure surfaces before the large street download.
func (c *Catalogs) InitAll(ctx context.Context) error {
	if err := c.Kinds.Create(ctx); err != nil {
		return fmt.Errorf("init %s: %w", KindsPath, err)
	}
	if err := c.Units.Create(ctx); err != nil {
		return fmt.Errorf("init %s: %w", UnitsPath, err)
	}
	if err := c.Places.Create(ctx); err != nil {
		return fmt.Errorf("init %s: %w", PlacesPath, err)
	}
	if err := c.Streets.Create(ctx); err != nil {
		return fmt.Errorf("init %s: %w", StreetsPath, err)
	}
	return nil
}

// Resolver builds a cross-catalog name resolver over the engine set.
func (c *Catalogs) Resolver() *Resolver {
	return NewResolver(c.Units, c.Places, c.Kinds)
}
