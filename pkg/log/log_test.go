package log

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureBackend struct {
	lines []string
}

func (c *captureBackend) Log(level Level, source, message string) {
	c.lines = append(c.lines, string(level.String())+" "+source+": "+message)
}

func TestDebugToggle(t *testing.T) {
	cap := &captureBackend{}
	SetBackend(cap)
	defer SetBackend(&stderrBackend{})

	l := Get("test-debug-toggle")
	l.Debug("hidden")
	require.Empty(t, cap.lines)

	old := l.EnableDebug(true)
	require.False(t, old)
	l.Debug("visible")
	require.Len(t, cap.lines, 1)
	require.True(t, strings.Contains(cap.lines[0], "visible"))
}

func TestLevelFiltering(t *testing.T) {
	cap := &captureBackend{}
	SetBackend(cap)
	defer SetBackend(&stderrBackend{})
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	l := Get("test-level-filter")
	l.Info("suppressed")
	require.Empty(t, cap.lines)

	l.Warn("kept")
	require.Len(t, cap.lines, 1)
}

func TestRateLimit(t *testing.T) {
	cap := &captureBackend{}
	SetBackend(cap)
	defer SetBackend(&stderrBackend{})

	base := Get("test-rate-limit")
	limited := RateLimit(base, Interval(50*time.Millisecond))

	for i := 0; i < 5; i++ {
		limited.Warn("same message")
	}
	require.Len(t, cap.lines, 1)

	time.Sleep(60 * time.Millisecond)
	limited.Warn("same message")
	require.Len(t, cap.lines, 2)
}
