// Package teryt keeps local catalog caches synchronized with the
// TERYT registry service.
//
// One engine instance exists per catalog (administrative units,
// localities, streets). An engine probes the registry's current
// version, decides between a full snapshot load and an incremental
// delta replay, and owns the catalog's change-handler table. Access is
// cooperative: one synchronization pass per catalog runs to completion
// before the cache is considered consistent, so engines take no
// fine-grained locks.
//
// The cache version metadata is advanced after every successful delta
// replay, not only after full loads, so a delta is never replayed
// twice for the same staleness window.
package teryt
