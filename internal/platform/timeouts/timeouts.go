// Package timeouts defines shared timeout constants used across the
// sync pipeline. Centralizing these values prevents drift between
// call sites and makes the durations discoverable.
package timeouts

import "time"

// RegistryProbe caps the wait time for a current-version probe against
// the registry service.
const RegistryProbe = 30 * time.Second

// RegistryDownload caps the time allowed for downloading a snapshot or
// delta payload; full catalogs run to tens of megabytes.
const RegistryDownload = 10 * time.Minute

// OTelShutdown limits how long telemetry shutdown waits to flush
// pending spans.
const OTelShutdown = 5 * time.Second
