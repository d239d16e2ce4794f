//go:build linux
// +build linux

package osmem

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux implements OS with real mmap/mbind/move_pages syscalls, avoiding
// cgo entirely: move_pages(2) wants 32-bit int arrays for its nodes/status
// arguments, and plain int32 supplies that on every amd64/arm64 Linux target
// Go supports, with no need to import "C" just for that integer width.
type Linux struct {
	pageSize int
}

// NewLinux returns a Linux OS backed by the process's own page size.
func NewLinux(pageSize int) *Linux {
	return &Linux{pageSize: pageSize}
}

func (l *Linux) Mmap(count int) (uintptr, error) {
	length := count * l.pageSize
	addr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		0,
		uintptr(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
		^uintptr(0),
		0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("osmem: mmap %d pages: %w", count, errno)
	}
	return addr, nil
}

func (l *Linux) Munmap(addr uintptr, count int) error {
	length := uintptr(count * l.pageSize)
	if err := unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)); err != nil {
		return fmt.Errorf("osmem: munmap: %w", err)
	}
	return nil
}

// BindToNode binds addr's pages to node via mbind(2) with MPOL_BIND, then
// forces migration of any pages already resident elsewhere with
// MPOL_MF_MOVE.
func (l *Linux) BindToNode(addr uintptr, count int, node int) error {
	length := uintptr(count * l.pageSize)
	mask := uint64(1) << uint(node)
	const mpolBind = 2
	const mpolMFMove = 1 << 1
	const mpolMFStrict = 1 << 0

	_, _, errno := unix.Syscall6(
		unix.SYS_MBIND,
		addr,
		length,
		uintptr(mpolBind),
		uintptr(unsafe.Pointer(&mask)),
		64,
		uintptr(mpolMFMove|mpolMFStrict),
	)
	if errno != 0 {
		return fmt.Errorf("osmem: mbind addr=%#x node=%d: %w", addr, node, errno)
	}
	return nil
}

// MovePage migrates a single page via move_pages(2), sized for one page at
// a time to match the migration worker's per-page unit of work.
func (l *Linux) MovePage(addr uintptr, node int) (int, error) {
	pages := []uintptr{addr &^ uintptr(l.pageSize-1)}
	nodes := []int32{int32(node)}
	status := []int32{0}

	ret, _, errno := unix.Syscall6(
		unix.SYS_MOVE_PAGES,
		0, // self
		1,
		uintptr(unsafe.Pointer(&pages[0])),
		uintptr(unsafe.Pointer(&nodes[0])),
		uintptr(unsafe.Pointer(&status[0])),
		0,
	)
	if errno != 0 {
		return -1, fmt.Errorf("osmem: move_pages addr=%#x node=%d: %w", addr, node, errno)
	}
	if ret != 0 {
		return int(status[0]), fmt.Errorf("osmem: move_pages addr=%#x node=%d: %d pages failed, status %d", addr, node, ret, status[0])
	}
	return int(status[0]), nil
}

// Touch performs one load or store at addr, timed with the monotonic
// clock. No cache-line flush is issued before the access (there is no
// CLFLUSH without cgo), so a cached line yields a cache-hit latency rather
// than the latency of the tier the page lives on.
func (l *Linux) Touch(addr uintptr, write bool) time.Duration {
	p := (*byte)(unsafe.Pointer(addr))
	start := time.Now()
	if write {
		*p = byte(start.UnixNano())
	} else {
		_ = *p
	}
	return time.Since(start)
}

// Fill writes deterministic pseudo-random content into count pages.
func (l *Linux) Fill(addr uintptr, count int, seed int64) {
	length := count * l.pageSize
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
	state := uint64(seed)
	for i := range buf {
		state = state*6364136223846793005 + 1442695040888963407
		buf[i] = byte(state >> 33)
	}
}
