package tiermem

import (
	"sync"
	"sync/atomic"
	"time"
)

// PageMetadata is one page table entry: its address, current tier,
// last-access time, and access count. BackingAddress is an opaque handle
// owned by the tier allocator rather than a raw int.
type PageMetadata struct {
	PageID         int
	BackingAddress uintptr
	Tier           Tier
	LastAccessTime time.Time
	AccessCount    uint64
}

// PageTable is the ordered sequence of PageMetadata for the whole system,
// indexed by logical page id. A single sync.RWMutex guards the table, and
// the scan cursor is pulled out into its own atomic so ScanNext only needs
// a read lock.
type PageTable struct {
	mu      sync.RWMutex
	entries []PageMetadata
	cursor  atomic.Uint64
}

// NewPageTable allocates a table of the given size; entries are zero-valued
// until Init assigns backing addresses and tiers.
func NewPageTable(size int) *PageTable {
	entries := make([]PageMetadata, size)
	for i := range entries {
		entries[i].PageID = i
	}
	return &PageTable{entries: entries}
}

// Size returns the number of entries in the table.
func (t *PageTable) Size() int {
	return len(t.entries)
}

// Region describes one tier's contiguous backing mapping, used by Init to
// assign backing addresses.
type Region struct {
	Tier    Tier
	Base    uintptr
	Count   int
}

// Init assigns each logical page id a backing address and initial tier
// using the sequential policy: the first region's pages fill LOCAL first,
// in region order, one page per address, until each region's Count is
// exhausted. Regions must together cover exactly len(entries) pages.
func (t *PageTable) Init(regions []Region) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pid := 0
	for _, r := range regions {
		for i := 0; i < r.Count; i++ {
			if pid >= len(t.entries) {
				return
			}
			t.entries[pid].BackingAddress = r.Base + uintptr(i*PageSize)
			t.entries[pid].Tier = r.Tier
			pid++
		}
	}
}

// Get returns a copy of the entry at pid under a shared-read critical
// section.
func (t *PageTable) Get(pid int) PageMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[pid]
}

// UpdateAccess increments the access count and refreshes the last-access
// timestamp for pid, both under the same exclusive critical section per
// I3.
func (t *PageTable) UpdateAccess(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[pid].AccessCount++
	t.entries[pid].LastAccessTime = time.Now()
}

// UpdateTier sets the tier for pid. Exclusive; called only by the
// migration worker.
func (t *PageTable) UpdateTier(pid int, tier Tier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[pid].Tier = tier
}

// ScanNext atomically reads the entry at the current cursor, advances the
// cursor modulo the table size, and returns the entry's snapshot alongside
// its page id. A read lock suffices: the cursor itself is a dedicated
// atomic, and the entry read is one more RLock-protected read like Get.
func (t *PageTable) ScanNext() (pid int, snapshot PageMetadata) {
	size := uint64(len(t.entries))
	cur := t.cursor.Add(1) - 1
	pid = int(cur % size)

	t.mu.RLock()
	snapshot = t.entries[pid]
	t.mu.RUnlock()
	return pid, snapshot
}

// ResetAccessCounts zeroes every entry's access count. Not called by the
// scanner's default policy; exposed for an operator to invoke between
// load-test phases.
func (t *PageTable) ResetAccessCounts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i].AccessCount = 0
	}
}

// TierCounts returns the number of pages currently assigned to each tier,
// for property tests asserting P1 (tier-count conservation).
func (t *PageTable) TierCounts() map[Tier]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[Tier]int, numTiers)
	for _, e := range t.entries {
		counts[e.Tier]++
	}
	return counts
}
