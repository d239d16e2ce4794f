package workload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 7: every pattern produces offsets within [0, addr_space_size).
func TestGeneratorPatternsStayInRange(t *testing.T) {
	for _, pattern := range []Pattern{Sequential, UniformRandom, HotSpot} {
		pattern := pattern
		t.Run(string(pattern), func(t *testing.T) {
			gen := NewGenerator(0, 37, pattern, 1234)
			for i := 0; i < 500; i++ {
				msg := gen.Next()
				require.GreaterOrEqual(t, msg.Offset, 0)
				require.Less(t, msg.Offset, 37)
			}
		})
	}
}

func TestGeneratorAlternatesReadWrite(t *testing.T) {
	gen := NewGenerator(0, 10, Sequential, 1)
	first := gen.Next()
	second := gen.Next()
	require.NotEqual(t, first.Op, second.Op)
}

func TestGeneratorSequentialWrapsModuloSize(t *testing.T) {
	gen := NewGenerator(0, 3, Sequential, 1)
	offsets := make([]int, 6)
	for i := range offsets {
		offsets[i] = gen.Next().Offset
	}
	require.Equal(t, []int{0, 1, 2, 0, 1, 2}, offsets)
}
