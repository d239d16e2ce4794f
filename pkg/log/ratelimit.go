package log

import (
	"fmt"
	"sync"
	"time"

	goxrate "golang.org/x/time/rate"
)

// Rate specifies the maximum per-message logging rate for a RateLimit'd
// Logger, keeping a hot code path's per-access and per-migration debug
// lines from flooding the log.
type Rate struct {
	Limit  goxrate.Limit
	Burst  int
	Window int
}

const (
	// DefaultWindow bounds how many distinct recent messages are tracked.
	DefaultWindow = 256
	// MinimumWindow is the smallest allowed window size.
	MinimumWindow = 32
)

// Every builds a Limit from a minimum interval between messages.
func Every(interval time.Duration) goxrate.Limit {
	return goxrate.Every(interval)
}

// Interval is a convenience Rate with burst 1.
func Interval(interval time.Duration) Rate {
	return Rate{Limit: Every(interval), Burst: 1}
}

type ratelimited struct {
	Logger
	mu     sync.Mutex
	rate   Rate
	window []string
	limits map[string]*goxrate.Limiter
}

// RateLimit wraps log with per-message rate limiting: repeated identical
// messages are suppressed once they exceed rate.
func RateLimit(l Logger, rate Rate) Logger {
	if rate.Window == 0 {
		rate.Window = DefaultWindow
	} else if rate.Window < MinimumWindow {
		rate.Window = MinimumWindow
	}
	if rate.Burst < 1 {
		rate.Burst = 1
	}
	return &ratelimited{
		Logger: l,
		rate:   rate,
		limits: make(map[string]*goxrate.Limiter),
		window: make([]string, 0, rate.Window),
	}
}

func (rl *ratelimited) Debug(format string, args ...interface{}) {
	if msg := rl.filter(format, args...); msg != "" {
		rl.Logger.Debug("%s", msg)
	}
}

func (rl *ratelimited) Info(format string, args ...interface{}) {
	if msg := rl.filter(format, args...); msg != "" {
		rl.Logger.Info("%s", msg)
	}
}

func (rl *ratelimited) Warn(format string, args ...interface{}) {
	if msg := rl.filter(format, args...); msg != "" {
		rl.Logger.Warn("%s", msg)
	}
}

func (rl *ratelimited) filter(format string, args ...interface{}) string {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	lim, ok := rl.limits[msg]
	if !ok {
		if len(rl.window) >= rl.rate.Window && len(rl.window) > 0 {
			oldest := rl.window[0]
			rl.window = rl.window[1:]
			delete(rl.limits, oldest)
		}
		rl.window = append(rl.window, msg)
		lim = goxrate.NewLimiter(rl.rate.Limit, rl.rate.Burst)
		rl.limits[msg] = lim
	}
	if !lim.Allow() {
		return ""
	}
	return msg
}
