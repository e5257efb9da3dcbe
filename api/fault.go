// File: api/fault.go
// Author: momentics <momentics@gmail.com>
//
// Unrecoverable fault kind raised on invariant violations.

package api

import "fmt"

// Fault describes an invariant violation inside the storage core:
// lock-discipline bugs, double frees, cache exhaustion. Faults are
// raised via panic and are intentionally not convertible into ordinary
// results; continuing past one risks silent data corruption, so the
// host process is expected to terminate. Recoverable conditions (a
// drained free list) are reported as plain return values instead and
// never produce a Fault.
type Fault struct {
	Subsystem string // "cache" or "mem"
	Op        string // operation that detected the violation
	Detail    string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("kcore: %s.%s: %s", f.Subsystem, f.Op, f.Detail)
}

// RaiseFault panics with a *Fault. Every fatal condition in the core
// funnels through here so tests and crash handlers can type-assert on
// one kind.
func RaiseFault(subsystem, op, format string, args ...any) {
	panic(&Fault{
		Subsystem: subsystem,
		Op:        op,
		Detail:    fmt.Sprintf(format, args...),
	})
}
