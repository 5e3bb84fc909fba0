// Package storage defines the key-value persistence contracts for
// catalog caches.
//
// A Driver manages named tables; a Table stores codec-serialized
// records under their business keys. Implementations live in
// subpackages: bbolt (embedded, file-backed), dynamo (remote,
// throughput-managed), and memory (in-process, for tests).
//
// # Error Types
//
//   - ErrNotInitialized: the named table was never created.
//   - ErrKeyNotFound: the requested key is absent; for point lookups
//     this is a normal outcome, not a failure.
package storage
