package tiermem

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tieredmem/tmsim/pkg/log"
	"github.com/tieredmem/tmsim/pkg/tiermem/osmem"
)

var serverLog = log.Get("server")
var accessLog = log.RateLimit(log.Get("server.access"), log.Interval(200*time.Millisecond))
var migrationLog = log.RateLimit(log.Get("server.migration"), log.Interval(200*time.Millisecond))

// ClientSpace describes one client's contiguous logical address range.
type ClientSpace struct {
	Base int
	Size int
}

// Server owns the tier regions, page table, scanner, and queues, and runs
// the access and migration worker goroutines over in-process goroutines and
// lock-free rings rather than sockets or OS threads.
type Server struct {
	table    *PageTable
	lanes    *Lanes
	migQueue *MigrationRing
	scanner  *Scanner
	alloc    *TierAllocator
	os       osmem.OS
	nodes    NodeMapping
	clients  []ClientSpace
	metrics  Recorder
	migLim   *rate.Limiter
}

// NewServer wires a Server from already-allocated resources. Callers build
// the allocator, page table, scanner, and queues separately (see cmd/ for
// the construction order) and hand them here. migLim may be nil, meaning
// migrations are applied as fast as the queue delivers them (no bandwidth
// shaping configured).
func NewServer(table *PageTable, lanes *Lanes, migQueue *MigrationRing, scanner *Scanner, alloc *TierAllocator, os osmem.OS, nodes NodeMapping, clients []ClientSpace, metrics Recorder, migLim *rate.Limiter) *Server {
	if metrics == nil {
		metrics = NoopRecorder
	}
	return &Server{
		table:    table,
		lanes:    lanes,
		migQueue: migQueue,
		scanner:  scanner,
		alloc:    alloc,
		os:       os,
		nodes:    nodes,
		clients:  clients,
		metrics:  metrics,
		migLim:   migLim,
	}
}

// RunAccessWorker consumes client messages round-robin across lanes until
// ctx is cancelled. On an idle pass it sleeps briefly; it never pops the
// migration queue, whose single consumer is RunMigrationWorker.
func (s *Server) RunAccessWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok := s.lanes.TryPop()
		if !ok {
			time.Sleep(50 * time.Microsecond)
			continue
		}
		s.handleAccess(msg)
	}
}

func (s *Server) handleAccess(msg AccessMsg) {
	space := s.clients[msg.ClientID]
	if msg.Offset < 0 || msg.Offset >= space.Size {
		serverLog.Error("fatal fault: client %d offset %d out of range [0,%d)", msg.ClientID, msg.Offset, space.Size)
		serverLog.Fatal("terminating on out-of-range access")
		return
	}
	pid := space.Base + msg.Offset

	page := s.table.Get(pid)
	s.table.UpdateAccess(pid)
	s.metrics.IncAccess(page.Tier)

	// Touch twice: once to prime the cache line, once timed. A true
	// clflush-before-touch isn't available without cgo (see osmem docs);
	// this is the simplification in its place.
	write := msg.Op == Write
	_ = s.os.Touch(page.BackingAddress, write)
	latency := s.os.Touch(page.BackingAddress, write)
	s.metrics.ObserveLatency(latency.Seconds())

	accessLog.Debug("client=%d pid=%d tier=%s op=%s latency=%s", msg.ClientID, pid, page.Tier, msg.Op, latency)
}

// RunMigrationWorker consumes migration requests until ctx is cancelled.
func (s *Server) RunMigrationWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !s.tryMigrateOne() {
			time.Sleep(50 * time.Microsecond)
		}
	}
}

// tryMigrateOne pops and applies a single migration request if one is
// available, returning whether it found work to do.
func (s *Server) tryMigrateOne() bool {
	msg, ok := s.migQueue.TryPop()
	if !ok {
		return false
	}

	if s.migLim != nil {
		if err := s.migLim.Wait(context.Background()); err != nil {
			migrationLog.Warn("migration bandwidth limiter wait failed: %v", err)
		}
	}

	page := s.table.Get(msg.PageID)
	if page.Tier == msg.TargetTier {
		// Idempotent: tier already matches, no OS call, no metric change.
		return true
	}

	node := NodeForTier(s.nodes, msg.TargetTier)
	if _, err := s.os.MovePage(page.BackingAddress, node); err != nil {
		migrationLog.Warn("move_pages failed for page %d -> %s (node %d): %v", msg.PageID, msg.TargetTier, node, err)
		return true
	}

	s.table.UpdateTier(msg.PageID, msg.TargetTier)
	s.metrics.IncMigration(page.Tier, msg.TargetTier)
	migrationLog.Debug("page %d migrated %s -> %s", msg.PageID, page.Tier, msg.TargetTier)
	return true
}

// Shutdown stops the scanner, drains both queues (serving the remaining
// client accesses, then applying the remaining migrations), and releases
// the tier regions. Both worker goroutines are expected to have already
// been cancelled via their ctx before Shutdown is called, so Shutdown is
// the queues' only consumer.
func (s *Server) Shutdown() error {
	s.scanner.Stop()
	for {
		msg, ok := s.lanes.TryPop()
		if !ok {
			break
		}
		s.handleAccess(msg)
	}
	for s.tryMigrateOne() {
	}
	if err := s.alloc.Release(); err != nil {
		return fmt.Errorf("tiermem: release tier regions: %w", err)
	}
	return nil
}

// Table exposes the page table, for CLI debug actions like reset-counters.
func (s *Server) Table() *PageTable {
	return s.table
}
