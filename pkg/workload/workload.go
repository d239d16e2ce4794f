// Package workload generates the access streams the simulator's clients
// produce: a generator alternates READ/WRITE ops against an offset chosen
// by one of three access-distribution patterns: sequential, uniform-random,
// and hot-spot.
package workload

import (
	"math/rand"

	"github.com/tieredmem/tmsim/pkg/tiermem"
)

// Pattern identifies an offset-generation strategy.
type Pattern string

const (
	Sequential   Pattern = "sequential"
	UniformRandom Pattern = "uniform-random"
	HotSpot      Pattern = "hot-spot"
)

// Generator produces the sequence of AccessMsg offsets for one client.
type Generator struct {
	pattern  Pattern
	size     int
	clientID int
	rng      *rand.Rand
	seq      int
}

// NewGenerator builds a Generator for a client with the given address
// space size and access pattern. seed makes the sequence reproducible
// across runs, matching the way the mock OS layer is seeded for tests.
func NewGenerator(clientID int, size int, pattern Pattern, seed int64) *Generator {
	return &Generator{
		pattern:  pattern,
		size:     size,
		clientID: clientID,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next AccessMsg in the stream. Offsets alternate
// READ/WRITE the way the original Client::run does, independent of
// pattern; the pattern only controls which offset is chosen.
func (g *Generator) Next() tiermem.AccessMsg {
	offset := g.nextOffset()
	op := tiermem.Read
	if g.seq%2 == 1 {
		op = tiermem.Write
	}
	g.seq++
	return tiermem.AccessMsg{ClientID: g.clientID, Offset: offset, Op: op}
}

func (g *Generator) nextOffset() int {
	switch g.pattern {
	case Sequential:
		off := g.seq % g.size
		return off
	case HotSpot:
		hotSize := g.size / 10
		if hotSize < 1 {
			hotSize = 1
		}
		if hotSize == g.size || g.rng.Float64() < 0.9 {
			return g.rng.Intn(hotSize)
		}
		return hotSize + g.rng.Intn(g.size-hotSize)
	case UniformRandom:
		fallthrough
	default:
		return g.rng.Intn(g.size)
	}
}
