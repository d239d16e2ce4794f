package workload

import (
	"context"
	"time"

	"github.com/tieredmem/tmsim/pkg/tiermem"
)

// RunClient pushes messageCount generated accesses into lane, one per
// call to gen.Next, spinning with short sleeps while the lane is full
// (the producer side never drops, matching the ring buffer's contract).
// It returns early if ctx is cancelled mid-stream.
func RunClient(ctx context.Context, lane *tiermem.Ring, gen *Generator, messageCount int) int {
	sent := 0
	for i := 0; i < messageCount; i++ {
		msg := gen.Next()
		for !lane.TryPush(msg) {
			select {
			case <-ctx.Done():
				return sent
			default:
			}
			time.Sleep(100 * time.Nanosecond)
		}
		sent++
	}
	return sent
}
