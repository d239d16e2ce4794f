package tiermem

import (
	"sync/atomic"
	"time"

	"github.com/tieredmem/tmsim/pkg/log"
)

var scannerLog = log.RateLimit(log.Get("scanner"), log.Interval(200*time.Millisecond))

// PolicyConfig parameterizes the scanner's hot/cold classification.
type PolicyConfig struct {
	HotThresholdAccesses uint64
	ColdThresholdAge     time.Duration
	ScanInterval         time.Duration
}

// Scanner is the policy engine: it walks the page table via ScanNext,
// classifies each snapshot against a per-tier state machine, and emits
// migration requests.
type Scanner struct {
	table   *PageTable
	queue   *MigrationRing
	policy  PolicyConfig
	running atomic.Bool
}

// NewScanner builds a Scanner bound to table and queue.
func NewScanner(table *PageTable, queue *MigrationRing, policy PolicyConfig) *Scanner {
	return &Scanner{table: table, queue: queue, policy: policy}
}

// Start runs the classify loop until Stop is called. It sleeps for the
// configured scan interval between steps, so it never busy-spins.
func (s *Scanner) Start() {
	s.running.Store(true)
	interval := s.policy.ScanInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	for s.running.Load() {
		s.step()
		time.Sleep(interval)
	}
}

// Stop asks the running loop to exit at its next iteration head.
func (s *Scanner) Stop() {
	s.running.Store(false)
}

func (s *Scanner) step() {
	pid, page := s.table.ScanNext()
	now := time.Now()
	cold := now.Sub(page.LastAccessTime) >= s.policy.ColdThresholdAge
	hot := page.AccessCount >= s.policy.HotThresholdAccesses

	var target Tier
	migrate := false

	switch page.Tier {
	case Local:
		if cold {
			target, migrate = Remote, true
		}
	case Remote:
		// Cold-wins tie-break: evaluated first, hot not consulted if it fires.
		if cold {
			target, migrate = PMEM, true
		} else if hot {
			target, migrate = Local, true
		}
	case PMEM:
		if hot {
			target, migrate = Remote, true
		}
	}

	if !migrate {
		return
	}

	scannerLog.Debug("page %d tier=%s cold=%v hot=%v -> %s", pid, page.Tier, cold, hot, target)
	s.emit(MigrationMsg{PageID: pid, TargetTier: target})
}

// emit blocks with brief back-off until the migration queue accepts msg;
// the scanner never drops a migration decision on a full queue. The only
// exception is Stop: once the scanner is stopped, a pending decision is
// abandoned so the loop can reach its exit check.
func (s *Scanner) emit(msg MigrationMsg) {
	for !s.queue.TryPush(msg) {
		if !s.running.Load() {
			return
		}
		time.Sleep(100 * time.Nanosecond)
	}
}
