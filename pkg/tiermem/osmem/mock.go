package osmem

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Mock is an in-process stand-in for OS that tracks page residency in a
// plain map instead of touching real NUMA hardware, so the page table,
// scanner, and server workers can be exercised in CI.
type Mock struct {
	mu sync.Mutex

	pageSize uintptr
	pageOf   map[uintptr]int // page address -> owning node
	nextAddr uintptr

	// AccessDelay, if set, is returned by Touch instead of a measured
	// duration, so tests can assert on deterministic latencies.
	AccessDelay time.Duration
	// FailMoveTo, if non-nil, reports whether MovePage to the given node
	// should fail, letting tests exercise the migration-error path.
	FailMoveTo func(node int) bool

	rng *rand.Rand
}

// defaultMockPageSize matches the common 4KiB page size; callers whose
// system page size differs should use NewMockPageSize instead so the
// stride used to compute per-page addresses lines up with whatever the
// caller adds to a region's base address elsewhere (see tiermem.PageSize).
const defaultMockPageSize = 0x1000

// NewMock returns a ready-to-use Mock using the default 4KiB page stride.
// seed seeds the Mock's internal rng; Fill materializes no content, since
// Mock has no backing bytes.
func NewMock(seed int64) *Mock {
	return NewMockPageSize(seed, defaultMockPageSize)
}

// NewMockPageSize is NewMock with an explicit page-size stride, for
// callers that need it to match a non-default tiermem.PageSize.
func NewMockPageSize(seed int64, pageSize int) *Mock {
	return &Mock{
		pageSize: uintptr(pageSize),
		pageOf:   make(map[uintptr]int),
		nextAddr: uintptr(pageSize),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (m *Mock) Mmap(count int) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.nextAddr
	for i := 0; i < count; i++ {
		m.pageOf[base+uintptr(i)*m.pageSize] = -1
	}
	m.nextAddr += uintptr(count)*m.pageSize + m.pageSize
	return base, nil
}

func (m *Mock) Munmap(addr uintptr, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < count; i++ {
		delete(m.pageOf, addr+uintptr(i)*m.pageSize)
	}
	return nil
}

func (m *Mock) BindToNode(addr uintptr, count int, node int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < count; i++ {
		m.pageOf[addr+uintptr(i)*m.pageSize] = node
	}
	return nil
}

func (m *Mock) MovePage(addr uintptr, node int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMoveTo != nil && m.FailMoveTo(node) {
		return m.pageOf[addr], fmt.Errorf("osmem: mock move_pages failure for node %d", node)
	}
	m.pageOf[addr] = node
	return node, nil
}

func (m *Mock) Touch(addr uintptr, write bool) time.Duration {
	if m.AccessDelay > 0 {
		return m.AccessDelay
	}
	m.mu.Lock()
	node := m.pageOf[addr]
	m.mu.Unlock()
	// Cheap stand-in for "remote memory is slower": scale a nominal base
	// cost by node, just enough that policy decisions driven by observed
	// latency have something non-uniform to react to in tests.
	base := time.Duration(50+node*25) * time.Nanosecond
	if write {
		base += 10 * time.Nanosecond
	}
	return base
}

func (m *Mock) Fill(addr uintptr, count int, seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := rand.New(rand.NewSource(seed))
	_ = src // content itself isn't materialized; Mock has no backing bytes
}

// NodeOf returns which node the mock currently believes owns the page at
// addr, for test assertions.
func (m *Mock) NodeOf(addr uintptr) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pageOf[addr]
}
