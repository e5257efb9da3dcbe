// File: core/mem/arena_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable arena backing for platforms without the mmap path.

//go:build !linux

package mem

func mapArena(size int) ([]byte, func() error, error) {
	return make([]byte, size), nil, nil
}
