package teryt

import (
	"context"
	"fmt"

	"github.com/louisbranch/teryt-cache/internal/catalog"
)

// Resolver answers cross-catalog name lookups: the administrative
// names behind a locality, the parent chain of a locality, the display
// name of a kind. Views are opened lazily on first use so a resolver
// can be built before every catalog is synchronized.
type Resolver struct {
	units  *Engine[catalog.Unit]
	places *Engine[catalog.Place]
	kinds  *Kinds

	unitView  *View[catalog.Unit]
	placeView *View[catalog.Place]
	kindView  *View[string]
}

// NewResolver builds a resolver over the unit and locality engines and
// the kind dictionary.
func NewResolver(units *Engine[catalog.Unit], places *Engine[catalog.Place], kinds *Kinds) *Resolver {
	return &Resolver{units: units, places: places, kinds: kinds}
}

func (r *Resolver) unitsView(ctx context.Context) (*View[catalog.Unit], error) {
	if r.unitView == nil {
		view, err := r.units.Get(ctx)
		if err != nil {
			return nil, err
		}
		r.unitView = view
	}
	return r.unitView, nil
}

func (r *Resolver) placesView(ctx context.Context) (*View[catalog.Place], error) {
	if r.placeView == nil {
		view, err := r.places.Get(ctx)
		if err != nil {
			return nil, err
		}
		r.placeView = view
	}
	return r.placeView, nil
}

func (r *Resolver) kindsView(ctx context.Context) (*View[string], error) {
	if r.kindView == nil {
		view, err := r.kinds.Get(ctx)
		if err != nil {
			return nil, err
		}
		r.kindView = view
	}
	return r.kindView, nil
}

// UnitName resolves an administrative unit code to its display name.
func (r *Resolver) UnitName(ctx context.Context, code string) (string, error) {
	view, err := r.unitsView(ctx)
	if err != nil {
		return "", err
	}
	unit, err := view.Get(ctx, code)
	if err != nil {
		return "", fmt.Errorf("unit %s: %w", code, err)
	}
	return unit.DisplayName(), nil
}

// ProvinceName resolves the province name for a commune code.
func (r *Resolver) ProvinceName(ctx context.Context, communeCode string) (string, error) {
	if len(communeCode) < 2 {
		return "", fmt.Errorf("commune code %q is too short", communeCode)
	}
	return r.UnitName(ctx, communeCode[:2])
}

// CountyName resolves the county name for a commune code.
func (r *Resolver) CountyName(ctx context.Context, communeCode string) (string, error) {
	if len(communeCode) < 4 {
		return "", fmt.Errorf("commune code %q is too short", communeCode)
	}
	return r.UnitName(ctx, communeCode[:4])
}

// Place resolves a locality by its symbol.
func (r *Resolver) Place(ctx context.Context, sym string) (catalog.Place, error) {
	view, err := r.placesView(ctx)
	if err != nil {
		return catalog.Place{}, err
	}
	place, err := view.Get(ctx, sym)
	if err != nil {
		return catalog.Place{}, fmt.Errorf("locality %s: %w", sym, err)
	}
	return place, nil
}

// KindName resolves a locality kind identifier to its display name.
func (r *Resolver) KindName(ctx context.Context, kindID string) (string, error) {
	view, err := r.kindsView(ctx)
	if err != nil {
		return "", err
	}
	name, err := view.Get(ctx, kindID)
	if err != nil {
		return "", fmt.Errorf("kind %s: %w", kindID, err)
	}
	return name, nil
}
