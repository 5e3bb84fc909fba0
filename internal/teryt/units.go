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

// UnitsPath is the storage table name for the administrative unit
// catalog.
const UnitsPath = "teryt_terc_v1"

// NewUnits builds the engine for the administrative unit catalog.
func NewUnits(manager *cache.Manager, client registry.Client) (*Engine[catalog.Unit], error) {
	return NewEngine(Descriptor[catalog.Unit]{
		Path:    UnitsPath,
		Catalog: registry.CatalogTERC,
		Codec:   codec.JSON{},
		Load:    loadKeyed(catalog.UnitFromRow, catalog.Unit.Code),
		Handlers: map[string]Handler[catalog.Unit]{
			"D": unitAdded,
			"U": unitRemoved,
			"M": unitModified,
		},
	}, manager, client)
}

func unitAdded(ctx context.Context, view *View[catalog.Unit], change registry.Change) error {
	unit, err := catalog.UnitFromRow(change.After)
	if err != nil {
		return fmt.Errorf("decode added unit: %w", err)
	}
	return view.put(ctx, unit.Code(), unit)
}

func unitRemoved(ctx context.Context, view *View[catalog.Unit], change registry.Change) error {
	code := catalog.UnitCodeFromRow(change.Before)
	if err := view.delete(ctx, code); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return fmt.Errorf("remove unit %s: %w", code, ErrModifyNonexistent)
		}
		return fmt.Errorf("remove unit %s: %w", code, err)
	}
	return nil
}

func unitModified(ctx context.Context, view *View[catalog.Unit], change registry.Change) error {
	code := catalog.UnitCodeFromRow(change.Before)
	unit, ok, err := view.lookup(ctx, code)
	if err != nil {
		return fmt.Errorf("modify unit %s: %w", code, err)
	}
	if !ok {
		return fmt.Errorf("modify unit %s: %w", code, ErrModifyNonexistent)
	}
	updated := unit.ApplyRow(change.After)
	if newCode := updated.Code(); newCode != code {
		if err := view.delete(ctx, code); err != nil {
			return fmt.Errorf("modify unit %s: %w", code, err)
		}
		return view.put(ctx, newCode, updated)
	}
	return view.put(ctx, code, updated)
}

// loadKeyed decodes snapshot rows with decode and keys each record with
// key. Later rows overwrite earlier ones with the same key.
func loadKeyed[T any](decode func(map[string]string) (T, error), key func(T) string) func([]map[string]string) (map[string]T, error) {
	return func(rows []map[string]string) (map[string]T, error) {
		contents := make(map[string]T, len(rows))
		for i, row := range rows {
			record, err := decode(row)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			contents[key(record)] = record
		}
		return contents, nil
	}
}
