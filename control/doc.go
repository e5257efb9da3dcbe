// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer for the storage core.
//
// Provides concurrent-safe state handling primitives including:
//   - Metrics telemetry counters and snapshots
//   - State export, debug hooks, and probe registration
package control
