package workload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tieredmem/tmsim/pkg/tiermem"
)

func TestRunClientDeliversAllMessages(t *testing.T) {
	lane := tiermem.NewRing(4)
	gen := NewGenerator(0, 8, Sequential, 1)

	done := make(chan int)
	go func() {
		done <- RunClient(context.Background(), lane, gen, 20)
	}()

	got := 0
	for got < 20 {
		if _, ok := lane.TryPop(); ok {
			got++
		}
	}
	require.Equal(t, 20, <-done)
}

func TestRunClientStopsOnCancellation(t *testing.T) {
	lane := tiermem.NewRing(2)
	// Fill the lane so the client blocks on the first push.
	lane.TryPush(tiermem.AccessMsg{})
	lane.TryPush(tiermem.AccessMsg{})

	gen := NewGenerator(0, 8, Sequential, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent := RunClient(ctx, lane, gen, 10)
	require.Zero(t, sent)
}
