package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/tieredmem/tmsim/pkg/config"
	"github.com/tieredmem/tmsim/pkg/log"
	"github.com/tieredmem/tmsim/pkg/metrics"
	"github.com/tieredmem/tmsim/pkg/pidfile"
	"github.com/tieredmem/tmsim/pkg/tiermem"
	"github.com/tieredmem/tmsim/pkg/tiermem/osmem"
	"github.com/tieredmem/tmsim/pkg/workload"
)

// exit prints a terse fatal error to stderr and exits the process.
func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "tmsimd: "+format+"\n", a...)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "", "path to the simulator's YAML config file")
	logLevel := flag.String("log-level", "", "override the config's log_level (debug|info|warn|error)")
	debugSources := flag.String("debug", "", "comma-separated logger sources to enable debug output for, or *")
	metricsAddr := flag.String("metrics-addr", "", "override the config's metrics_addr")
	resetOnSignal := flag.Bool("reset-counters-on-signal", false, "reset every page's access count on SIGUSR1")
	flag.Parse()

	if *configPath == "" {
		exit("missing required -config flag")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		exit("%+v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.LevelDebug)
	case "warn":
		log.SetLevel(log.LevelWarn)
	case "error":
		log.SetLevel(log.LevelError)
	default:
		log.SetLevel(log.LevelInfo)
	}
	if cfg.DebugSources != "" {
		log.EnableDebugSources(cfg.DebugSources)
	}
	if *debugSources != "" {
		log.EnableDebugSources(*debugSources)
	}

	mainLog := log.Get("main")

	osImpl := osmem.NewLinux(tiermem.PageSize)

	nodes := tiermem.NodeMapping{
		LocalNode:  cfg.Nodes.LocalNode,
		RemoteNode: cfg.Nodes.RemoteNode,
		PMEMNode:   cfg.Nodes.PMEMNode,
	}
	caps := tiermem.TierCapacities{
		Local:  cfg.ServerMemoryConfig.LocalNumaSize,
		Remote: cfg.ServerMemoryConfig.RemoteNumaSize,
		PMEM:   cfg.ServerMemoryConfig.PmemSize,
	}

	alloc, err := tiermem.Allocate(osImpl, caps, nodes)
	if err != nil {
		exit("allocating tier regions: %+v", err)
	}
	alloc.Fill(42)

	table := tiermem.NewPageTable(cfg.TotalAddrSpace())
	table.Init(alloc.Regions())

	clients := make([]tiermem.ClientSpace, len(cfg.ClientConfigs))
	base := 0
	for i, cc := range cfg.ClientConfigs {
		clients[i] = tiermem.ClientSpace{Base: base, Size: cc.AddrSpaceSize}
		base += cc.AddrSpaceSize
	}

	lanes := tiermem.NewLanes(len(cfg.ClientConfigs), cfg.BufferSize)
	migQueue := tiermem.NewMigrationRing(cfg.BufferSize)

	policy := tiermem.PolicyConfig{
		HotThresholdAccesses: cfg.PolicyConfig.HotAccessCnt,
		ColdThresholdAge:     time.Duration(cfg.PolicyConfig.ColdAccessIntervalMs) * time.Millisecond,
		ScanInterval:         time.Duration(cfg.ScanIntervalMs) * time.Millisecond,
	}
	scanner := tiermem.NewScanner(table, migQueue, policy)

	var migLim *rate.Limiter
	if cfg.PolicyConfig.MigrateBandwidthMBs > 0 {
		bytesPerSec := cfg.PolicyConfig.MigrateBandwidthMBs * 1024 * 1024
		pagesPerSec := bytesPerSec / float64(tiermem.PageSize)
		migLim = rate.NewLimiter(rate.Limit(pagesPerSec), 1)
	}

	var collectors *metrics.Collectors
	var recorder tiermem.Recorder = tiermem.NoopRecorder
	if cfg.MetricsAddr != "" {
		collectors = metrics.New()
		recorder = collectors
	}

	server := tiermem.NewServer(table, lanes, migQueue, scanner, alloc, osImpl, nodes, clients, recorder, migLim)

	pf := pidfile.GetPath()
	if err := pidfile.Write(); err != nil {
		mainLog.Warn("failed to write pidfile %s: %v", pf, err)
	}
	defer pidfile.Remove()

	var metricsSrv interface{ Shutdown(context.Context) error }
	if collectors != nil {
		s := collectors.Serve(cfg.MetricsAddr)
		metricsSrv = s
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			metricsSrv.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner.Start()
	}()
	go func() {
		defer wg.Done()
		server.RunAccessWorker(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.RunMigrationWorker(ctx)
	}()

	var clientWg sync.WaitGroup
	for i, cc := range cfg.ClientConfigs {
		clientWg.Add(1)
		go func(i int, cc config.ClientConfig) {
			defer clientWg.Done()
			gen := workload.NewGenerator(i, cc.AddrSpaceSize, workload.Pattern(cc.Pattern), int64(i)+1)
			sent := workload.RunClient(ctx, lanes.Lane(i), gen, cfg.MessageCount)
			mainLog.Debug("client %d sent %d/%d messages", i, sent, cfg.MessageCount)
		}(i, cc)
	}

	done := make(chan struct{})
	go func() {
		clientWg.Wait()
		close(done)
	}()

waitLoop:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGUSR1 && *resetOnSignal {
				table.ResetAccessCounts()
				mainLog.Info("access counts reset on SIGUSR1")
				continue waitLoop
			}
			mainLog.Info("received signal %v, shutting down", sig)
			break waitLoop
		case <-done:
			mainLog.Info("all clients finished")
			break waitLoop
		}
	}

	cancel()
	scanner.Stop()
	wg.Wait()

	if err := server.Shutdown(); err != nil {
		mainLog.Error("shutdown: %v", err)
	}

	mainLog.Info("final tier counts: %v", table.TierCounts())
}
