package teryt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/teryt-cache/internal/cache"
	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/registry"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

// ErrUnknownOperation reports a delta record whose operation code has
// no handler for the catalog. Replay stops at the offending record and
// the cache keeps its previous version.
var ErrUnknownOperation = errors.New("unknown change operation")

// ErrModifyNonexistent reports a delta record addressing a record that
// is not present in the cache.
var ErrModifyNonexistent = errors.New("change addresses a nonexistent record")

// versionTTL bounds how long a probed registry version is trusted
// before the registry is asked again.
const versionTTL = time.Hour

// Handler applies a single delta record to a catalog view.
type Handler[T any] func(ctx context.Context, view *View[T], change registry.Change) error

// Descriptor binds a catalog to its table name, wire codec, snapshot
// decoder, and delta handler table.
type Descriptor[T any] struct {
	// Path is the storage table name for the catalog.
	Path string
	// Catalog selects the registry dataset.
	Catalog registry.Catalog
	// Codec serializes cached records.
	Codec codec.Codec
	// Load decodes a full snapshot into keyed records.
	Load func(rows []map[string]string) (map[string]T, error)
	// Handlers maps delta operation codes to their effects.
	Handlers map[string]Handler[T]
}

// Engine synchronizes one catalog cache against the registry.
type Engine[T any] struct {
	desc    Descriptor[T]
	manager *cache.Manager
	client  registry.Client
	clock   func() time.Time
	tracer  trace.Tracer

	version       registry.Version
	versionExpiry time.Time
}

// NewEngine builds an engine for the described catalog.
func NewEngine[T any](desc Descriptor[T], manager *cache.Manager, client registry.Client) (*Engine[T], error) {
	if desc.Path == "" {
		return nil, errors.New("catalog path is required")
	}
	if desc.Codec == nil {
		return nil, errors.New("catalog codec is required")
	}
	if desc.Load == nil {
		return nil, errors.New("catalog snapshot decoder is required")
	}
	if manager == nil {
		return nil, errors.New("cache manager is required")
	}
	if client == nil {
		return nil, errors.New("registry client is required")
	}
	return &Engine[T]{
		desc:    desc,
		manager: manager,
		client:  client,
		clock:   time.Now,
		tracer:  otel.Tracer("teryt-cache/teryt"),
	}, nil
}

// Path reports the engine's storage table name.
func (e *Engine[T]) Path() string {
	return e.desc.Path
}

// CurrentVersion reports the registry's current version for the
// catalog. Probes are cached for a bounded window to avoid hitting the
// registry on every read.
func (e *Engine[T]) CurrentVersion(ctx context.Context) (registry.Version, error) {
	now := e.clock()
	if e.version != 0 && now.Before(e.versionExpiry) {
		return e.version, nil
	}
	version, err := e.client.CurrentVersion(ctx, e.desc.Catalog)
	if err != nil {
		return 0, fmt.Errorf("probe %s version: %w", e.desc.Path, err)
	}
	e.version = version
	e.versionExpiry = now.Add(versionTTL)
	return version, nil
}

// Get returns a read view of the catalog at the registry's current
// version. A stale cache is brought forward by replaying the delta
// between the stored and current versions before the view is handed
// out. A cache that was never initialized is reported as
// storage.ErrNotInitialized; Get never falls back to a full load on
// its own.
func (e *Engine[T]) Get(ctx context.Context) (*View[T], error) {
	ctx, span := e.tracer.Start(ctx, "teryt.get",
		trace.WithAttributes(attribute.String("teryt.catalog", e.desc.Path)))
	defer span.End()

	current, err := e.CurrentVersion(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	table, err := e.manager.Get(ctx, e.desc.Path, e.desc.Codec, int64(current))
	if err == nil {
		return &View[T]{table: table}, nil
	}
	var expired *cache.ExpiredError
	if !errors.As(err, &expired) {
		span.RecordError(err)
		return nil, err
	}

	if err := e.replay(ctx, registry.Version(expired.Stored), current); err != nil {
		span.RecordError(err)
		return nil, err
	}
	table, err = e.manager.Get(ctx, e.desc.Path, e.desc.Codec, int64(current))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &View[T]{table: table}, nil
}

// Create rebuilds the catalog cache from a full registry snapshot at
// the current version. Existing contents are discarded.
func (e *Engine[T]) Create(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "teryt.create",
		trace.WithAttributes(attribute.String("teryt.catalog", e.desc.Path)))
	defer span.End()

	version, err := e.CurrentVersion(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	rows, err := e.client.Snapshot(ctx, e.desc.Catalog, version)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("download %s snapshot: %w", e.desc.Path, err)
	}
	contents, err := e.desc.Load(rows)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode %s snapshot: %w", e.desc.Path, err)
	}

	table, err := e.manager.Create(ctx, e.desc.Path, e.desc.Codec)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := table.Reload(ctx, toValues(contents)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("load %s snapshot: %w", e.desc.Path, err)
	}
	if err := e.manager.MarkReady(ctx, e.desc.Path, int64(version)); err != nil {
		span.RecordError(err)
		return err
	}
	log.Printf("catalog %s loaded: %d records at version %s", e.desc.Path, len(contents), version.Time().Format("2006-01-02"))
	return nil
}

// replay applies the ordered delta between two versions and advances
// the stored version on success. The first failing record aborts the
// replay and leaves the stored version untouched.
func (e *Engine[T]) replay(ctx context.Context, from, to registry.Version) error {
	ctx, span := e.tracer.Start(ctx, "teryt.replay",
		trace.WithAttributes(
			attribute.String("teryt.catalog", e.desc.Path),
			attribute.Int64("teryt.from", int64(from)),
			attribute.Int64("teryt.to", int64(to)),
		))
	defer span.End()

	changes, err := e.client.Changes(ctx, e.desc.Catalog, from, to)
	if err != nil {
		return fmt.Errorf("download %s changes: %w", e.desc.Path, err)
	}
	table, err := e.manager.Get(ctx, e.desc.Path, e.desc.Codec, 0)
	if err != nil {
		return err
	}
	view := &View[T]{table: table}
	for i, change := range changes {
		handler, ok := e.desc.Handlers[change.Op]
		if !ok {
			return fmt.Errorf("%s change %d: %w: %q", e.desc.Path, i, ErrUnknownOperation, change.Op)
		}
		if err := handler(ctx, view, change); err != nil {
			return fmt.Errorf("%s change %d (%s): %w", e.desc.Path, i, change.Op, err)
		}
	}
	if err := e.manager.MarkReady(ctx, e.desc.Path, int64(to)); err != nil {
		return err
	}
	log.Printf("catalog %s replayed %d changes to version %s", e.desc.Path, len(changes), to.Time().Format("2006-01-02"))
	return nil
}

func toValues[T any](contents map[string]T) map[string]any {
	values := make(map[string]any, len(contents))
	for key, record := range contents {
		values[key] = record
	}
	return values
}

// View is a typed read/write window over a catalog table. Reads are
// exported for consumers; writes stay internal to delta handlers.
type View[T any] struct {
	table storage.Table
}

// Get retrieves the record stored under key.
func (v *View[T]) Get(ctx context.Context, key string) (T, error) {
	var record T
	if err := v.table.Get(ctx, key, &record); err != nil {
		return record, err
	}
	return record, nil
}

// Keys lists every key in the catalog.
func (v *View[T]) Keys(ctx context.Context) ([]string, error) {
	return v.table.Keys(ctx)
}

// lookup retrieves a record, reporting absence instead of an error.
func (v *View[T]) lookup(ctx context.Context, key string) (T, bool, error) {
	var record T
	err := v.table.Get(ctx, key, &record)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return record, false, nil
	}
	if err != nil {
		return record, false, err
	}
	return record, true, nil
}

func (v *View[T]) put(ctx context.Context, key string, record T) error {
	return v.table.Put(ctx, key, record)
}

func (v *View[T]) delete(ctx context.Context, key string) error {
	return v.table.Delete(ctx, key)
}
