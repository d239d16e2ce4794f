// Package osmem is the narrow OS-syscall collaborator the tier allocator
// and migration worker consume: anonymous page-aligned mappings, NUMA node
// binding, and per-page migration, built on raw move_pages(2)/mbind(2)
// syscalls via golang.org/x/sys/unix.
//
// Mock, an in-memory stand-in satisfying the same interface, lets tests
// exercise the full server/scanner/migration pipeline without a NUMA host.
package osmem

import "time"

// OS is the syscall surface the rest of the core depends on.
type OS interface {
	// Mmap allocates a contiguous, page-aligned, anonymous mapping of
	// count pages and returns its base address.
	Mmap(count int) (uintptr, error)
	// Munmap releases a mapping previously returned by Mmap.
	Munmap(addr uintptr, count int) error
	// BindToNode binds an already-mapped region to the given NUMA node,
	// moving its pages there if they are not already resident on it.
	BindToNode(addr uintptr, count int, node int) error
	// MovePage migrates the single page at addr to node, returning the
	// node the page actually ended up on and an error if the syscall
	// itself failed (a page landing on a different node due to e.g. it
	// being busy is reported via resultNode, not err).
	MovePage(addr uintptr, node int) (resultNode int, err error)
	// Touch performs one read or write at addr and returns the elapsed
	// time it took, for the access worker's latency measurement. The
	// cache line is not flushed before the access.
	Touch(addr uintptr, write bool) time.Duration
	// Fill writes pseudo-random content into count pages starting at
	// addr, used at startup to populate freshly allocated tier regions.
	Fill(addr uintptr, count int, seed int64)
}
