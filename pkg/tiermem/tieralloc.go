package tiermem

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/tieredmem/tmsim/pkg/tiermem/osmem"
)

// TierCapacities is the page count assigned to each tier at startup.
type TierCapacities struct {
	Local  int
	Remote int
	PMEM   int
}

// Total returns the sum of all three capacities.
func (c TierCapacities) Total() int {
	return c.Local + c.Remote + c.PMEM
}

// NodeMapping is the operator-configured mapping from tier to NUMA node id.
type NodeMapping struct {
	LocalNode  int
	RemoteNode int
	PMEMNode   int
}

func (m NodeMapping) nodeFor(t Tier) int {
	switch t {
	case Local:
		return m.LocalNode
	case Remote:
		return m.RemoteNode
	case PMEM:
		return m.PMEMNode
	default:
		return m.LocalNode
	}
}

// TierAllocator owns the three tier regions for the lifetime of the
// server. LOCAL is a plain anonymous mapping; REMOTE and PMEM are
// additionally bound to their configured node via mbind(2).
type TierAllocator struct {
	os      osmem.OS
	regions map[Tier]Region
}

// Allocate reserves and binds all three tier regions. If any allocation
// fails, the regions already allocated are unwound (munmap'd) before the
// error is returned; unwind failures are aggregated onto the returned
// error instead of being dropped, per the fatal-at-startup error policy.
func Allocate(os osmem.OS, caps TierCapacities, nodes NodeMapping) (*TierAllocator, error) {
	a := &TierAllocator{os: os, regions: make(map[Tier]Region)}

	order := []struct {
		tier  Tier
		count int
	}{
		{Local, caps.Local},
		{Remote, caps.Remote},
		{PMEM, caps.PMEM},
	}

	for _, o := range order {
		base, err := allocateOne(os, o.count, o.tier, nodes)
		if err != nil {
			unwindErr := a.unwind()
			combined := errors.Wrapf(err, "allocate tier %s (%d pages)", o.tier, o.count)
			if unwindErr != nil {
				combined = multierror.Append(combined, unwindErr)
			}
			return nil, combined
		}
		a.regions[o.tier] = Region{Tier: o.tier, Base: base, Count: o.count}
	}

	return a, nil
}

func allocateOne(os osmem.OS, count int, tier Tier, nodes NodeMapping) (uintptr, error) {
	if count == 0 {
		return 0, nil
	}
	base, err := os.Mmap(count)
	if err != nil {
		return 0, err
	}
	if tier == Local {
		// Node-local allocation is acceptable as-is; no explicit bind
		// required for LOCAL per the allocator's contract.
		return base, nil
	}
	if err := os.BindToNode(base, count, nodes.nodeFor(tier)); err != nil {
		_ = os.Munmap(base, count)
		return 0, err
	}
	return base, nil
}

// unwind releases every region allocated so far, aggregating any munmap
// failures instead of discarding them.
func (a *TierAllocator) unwind() error {
	var result *multierror.Error
	for tier, r := range a.regions {
		if r.Count == 0 {
			continue
		}
		if err := a.os.Munmap(r.Base, r.Count); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "unwind tier %s", tier))
		}
	}
	return result.ErrorOrNil()
}

// Release frees all three tier regions in reverse allocation order
// (PMEM, REMOTE, LOCAL), matching the reverse-of-startup shutdown
// sequence. Errors are aggregated and returned rather than discarded.
func (a *TierAllocator) Release() error {
	var result *multierror.Error
	for _, tier := range []Tier{PMEM, Remote, Local} {
		r, ok := a.regions[tier]
		if !ok || r.Count == 0 {
			continue
		}
		if err := a.os.Munmap(r.Base, r.Count); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "release tier %s", tier))
		}
	}
	return result.ErrorOrNil()
}

// Regions returns the allocated regions in LOCAL, REMOTE, PMEM order, for
// PageTable.Init.
func (a *TierAllocator) Regions() []Region {
	return []Region{a.regions[Local], a.regions[Remote], a.regions[PMEM]}
}

// Fill populates every region with deterministic pseudo-random content.
func (a *TierAllocator) Fill(seed int64) {
	for _, tier := range []Tier{Local, Remote, PMEM} {
		r := a.regions[tier]
		if r.Count == 0 {
			continue
		}
		a.os.Fill(r.Base, r.Count, seed+int64(tier))
	}
}

// NodeForTier exposes the configured node mapping for a given tier, used
// by the migration worker to translate a target Tier into a move_pages(2)
// node argument.
func NodeForTier(nodes NodeMapping, t Tier) int {
	return nodes.nodeFor(t)
}
