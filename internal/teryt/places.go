package teryt

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/teryt-cache/internal/cache"
	"github.com/louisbranch/teryt-cache/internal/catalog"
	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/registry"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

// PlacesPath is the storage table name for the locality catalog.
const PlacesPath = "teryt_simc_v1"

// NewPlaces builds the engine for the locality catalog. The registry
// emits two modification codes for localities; both carry the same
// field layout and get the same handler.
func NewPlaces(manager *cache.Manager, client registry.Client) (*Engine[catalog.Place], error) {
	return NewEngine(Descriptor[catalog.Place]{
		Path:    PlacesPath,
		Catalog: registry.CatalogSIMC,
		Codec:   codec.JSON{},
		Load:    loadKeyed(catalog.PlaceFromRow, func(p catalog.Place) string { return p.Sym }),
		Handlers: map[string]Handler[catalog.Place]{
			"D": placeAdded,
			"U": placeRemoved,
			"Z": placeModified,
			"P": placeModified,
		},
	}, manager, client)
}

func placeAdded(ctx context.Context, view *View[catalog.Place], change registry.Change) error {
	place, err := catalog.PlaceFromChange(change.After)
	if err != nil {
		return fmt.Errorf("decode added locality: %w", err)
	}
	return view.put(ctx, place.Sym, place)
}

func placeRemoved(ctx context.Context, view *View[catalog.Place], change registry.Change) error {
	sym := change.Before["sym"]
	if err := view.delete(ctx, sym); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return fmt.Errorf("remove locality %s: %w", sym, ErrModifyNonexistent)
		}
		return fmt.Errorf("remove locality %s: %w", sym, err)
	}
	return nil
}

func placeModified(ctx context.Context, view *View[catalog.Place], change registry.Change) error {
	sym := change.Before["sym"]
	place, ok, err := view.lookup(ctx, sym)
	if err != nil {
		return fmt.Errorf("modify locality %s: %w", sym, err)
	}
	if !ok {
		return fmt.Errorf("modify locality %s: %w", sym, ErrModifyNonexistent)
	}
	updated := place.ApplyChange(change.After)
	if updated.Sym != sym {
		if err := view.delete(ctx, sym); err != nil {
			return fmt.Errorf("modify locality %s: %w", sym, err)
		}
	}
	return view.put(ctx, updated.Sym, updated)
}
