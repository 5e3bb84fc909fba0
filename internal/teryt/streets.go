package teryt

import (
	"context"
	"fmt"

	"github.com/louisbranch/teryt-cache/internal/cache"
	"github.com/louisbranch/teryt-cache/internal/catalog"
	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/registry"
)

// StreetsPath is the storage table name for the street catalog.
const StreetsPath = "teryt_ulic_v1"

// NewStreets builds the engine for the street catalog. Streets are
// cached as groups keyed by street symbol, one member per locality, so
// every handler works at two levels: locate the group, then the
// addressed member inside it.
func NewStreets(manager *cache.Manager, client registry.Client) (*Engine[catalog.StreetGroup], error) {
	return NewEngine(Descriptor[catalog.StreetGroup]{
		Path:    StreetsPath,
		Catalog: registry.CatalogULIC,
		Codec:   codec.CBOR{},
		Load:    loadStreetGroups,
		Handlers: map[string]Handler[catalog.StreetGroup]{
			"D": streetAdded,
			"M": streetModified,
			"U": streetRemoved,
			"Z": streetShared,
		},
	}, manager, client)
}

func loadStreetGroups(rows []map[string]string) (map[string]catalog.StreetGroup, error) {
	streets := make([]catalog.Street, 0, len(rows))
	for i, row := range rows {
		street, err := catalog.StreetFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		streets = append(streets, street)
	}
	return catalog.BuildStreetGroups(streets), nil
}

// streetAdded inserts a member into its group, creating the group when
// the street symbol is new.
func streetAdded(ctx context.Context, view *View[catalog.StreetGroup], change registry.Change) error {
	street, err := catalog.StreetFromChange(change.After)
	if err != nil {
		return fmt.Errorf("decode added street: %w", err)
	}
	group, ok, err := view.lookup(ctx, street.StreetSym)
	if err != nil {
		return fmt.Errorf("add street %s: %w", street.StreetSym, err)
	}
	if !ok {
		return view.put(ctx, street.StreetSym, catalog.NewStreetGroup(street))
	}
	if err := group.Add(street); err != nil {
		return fmt.Errorf("add street %s: %w", street.StreetSym, err)
	}
	return view.put(ctx, group.StreetSym, group)
}

// streetModified updates the addressed member. When the update changes
// the member's street symbol, the member moves between groups: it
// leaves the old group (which is dropped if emptied) and joins or
// seeds the group under the new symbol.
func streetModified(ctx context.Context, view *View[catalog.StreetGroup], change registry.Change) error {
	streetSym, placeSym := catalog.StreetKeysFromChange(change.Before)
	group, ok, err := view.lookup(ctx, streetSym)
	if err != nil {
		return fmt.Errorf("modify street %s: %w", streetSym, err)
	}
	if !ok {
		return fmt.Errorf("modify street %s: %w", streetSym, ErrModifyNonexistent)
	}
	member, ok := group.Member(placeSym)
	if !ok {
		return fmt.Errorf("modify street %s locality %s: %w", streetSym, placeSym, ErrModifyNonexistent)
	}
	updated := member.ApplyChange(change.After)

	if updated.StreetSym != streetSym {
		group.Remove(placeSym)
		if group.Len() == 0 {
			if err := view.delete(ctx, streetSym); err != nil {
				return fmt.Errorf("modify street %s: %w", streetSym, err)
			}
		} else if err := view.put(ctx, streetSym, group); err != nil {
			return err
		}
		target, ok, err := view.lookup(ctx, updated.StreetSym)
		if err != nil {
			return fmt.Errorf("modify street %s: %w", streetSym, err)
		}
		if !ok {
			return view.put(ctx, updated.StreetSym, catalog.NewStreetGroup(updated))
		}
		if err := target.Add(updated); err != nil {
			return fmt.Errorf("modify street %s: %w", streetSym, err)
		}
		return view.put(ctx, target.StreetSym, target)
	}

	if err := group.Add(updated); err != nil {
		return fmt.Errorf("modify street %s: %w", streetSym, err)
	}
	return view.put(ctx, group.StreetSym, group)
}

// streetRemoved drops the addressed member from its group. Removing the
// last member deletes the whole group.
func streetRemoved(ctx context.Context, view *View[catalog.StreetGroup], change registry.Change) error {
	streetSym, placeSym := catalog.StreetKeysFromChange(change.Before)
	group, ok, err := view.lookup(ctx, streetSym)
	if err != nil {
		return fmt.Errorf("remove street %s: %w", streetSym, err)
	}
	if !ok {
		return fmt.Errorf("remove street %s: %w", streetSym, ErrModifyNonexistent)
	}
	if !group.Remove(placeSym) {
		return fmt.Errorf("remove street %s locality %s: %w", streetSym, placeSym, ErrModifyNonexistent)
	}
	if group.Len() == 0 {
		return view.delete(ctx, streetSym)
	}
	return view.put(ctx, streetSym, group)
}

// streetShared applies a shared-field change (qualifier, name, street
// symbol) to every member of the group. The group's shared fields
// follow the member addressed by the change record; when the street
// symbol itself changes, the whole group moves to the new key.
func streetShared(ctx context.Context, view *View[catalog.StreetGroup], change registry.Change) error {
	streetSym, placeSym := catalog.StreetKeysFromChange(change.Before)
	group, ok, err := view.lookup(ctx, streetSym)
	if err != nil {
		return fmt.Errorf("update street %s: %w", streetSym, err)
	}
	if !ok {
		return fmt.Errorf("update street %s: %w", streetSym, ErrModifyNonexistent)
	}
	member, ok := group.Member(placeSym)
	if !ok {
		return fmt.Errorf("update street %s locality %s: %w", streetSym, placeSym, ErrModifyNonexistent)
	}
	for i := range group.Members {
		group.Members[i] = group.Members[i].ApplyChange(change.After)
	}
	addressed := member.ApplyChange(change.After)
	group.StreetSym = addressed.StreetSym
	group.Qualifier = addressed.QualifierLabel()
	group.Name = addressed.CanonicalName()

	if group.StreetSym != streetSym {
		if err := view.delete(ctx, streetSym); err != nil {
			return fmt.Errorf("update street %s: %w", streetSym, err)
		}
	}
	return view.put(ctx, group.StreetSym, group)
}
