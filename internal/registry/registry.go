// Package registry is the boundary to the authoritative TERYT
// registry service.
//
// The service publishes each catalog as dated releases: a full
// snapshot at a version, and ordered change records between two
// versions. Payloads arrive as base64 zip archives holding one XML
// document; this package downloads and decodes them into plain row
// field maps and typed change records. Everything above this boundary
// is transport-agnostic.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrSyncTimeout indicates a registry call that exceeded its deadline.
var ErrSyncTimeout = errors.New("registry call timed out")

// Catalog identifies one of the registry's reference catalogs.
type Catalog string

const (
	// CatalogTERC is the administrative unit catalog.
	CatalogTERC Catalog = "terc"
	// CatalogSIMC is the locality catalog.
	CatalogSIMC Catalog = "simc"
	// CatalogULIC is the street catalog.
	CatalogULIC Catalog = "ulic"
	// CatalogWMRODZ is the locality kind dictionary. It has no change
	// stream; it is versioned alongside the unit catalog.
	CatalogWMRODZ Catalog = "wmrodz"
)

// Version is a catalog release version expressed as epoch seconds of
// its release date.
type Version int64

// VersionFromTime converts a release date to a version.
func VersionFromTime(t time.Time) Version {
	year, month, day := t.UTC().Date()
	return Version(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix())
}

// Time converts the version back to its release date.
func (v Version) Time() time.Time {
	return time.Unix(int64(v), 0).UTC()
}

// Change is one ordered change record from a catalog delta. Before
// holds the field values prior to the change, After the changed
// values; which sets are populated depends on the operation.
type Change struct {
	Op     string
	Before map[string]string
	After  map[string]string
}

// Client exposes the three per-catalog operations of the registry
// service. All calls may block on network I/O and honor the context
// deadline, failing with ErrSyncTimeout when it expires.
type Client interface {
	// CurrentVersion probes the latest published version of a catalog.
	CurrentVersion(ctx context.Context, cat Catalog) (Version, error)
	// Snapshot fetches and decodes the full catalog at a version.
	Snapshot(ctx context.Context, cat Catalog, version Version) ([]map[string]string, error)
	// Changes fetches the ordered change records between two versions.
	Changes(ctx context.Context, cat Catalog, from, to Version) ([]Change, error)
}
