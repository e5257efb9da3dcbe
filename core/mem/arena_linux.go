// File: core/mem/arena_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux arena backing: one anonymous private mapping for the whole
// physical range, so the arena is page-aligned and returned to the OS
// on Close.

//go:build linux

package mem

import "golang.org/x/sys/unix"

func mapArena(size int) ([]byte, func() error, error) {
	b, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, err
	}
	return b, func() error { return unix.Munmap(b) }, nil
}
