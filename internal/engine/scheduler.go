package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig carries the loop intervals and the metrics history depth.
type SchedulerConfig struct {
	CompressionInterval time.Duration
	MergeInterval       time.Duration
	CleanupInterval     time.Duration
	MetricsHistory      int
}

// DefaultSchedulerConfig returns the production intervals.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CompressionInterval: time.Hour,
		MergeInterval:       2 * time.Hour,
		CleanupInterval:     24 * time.Hour,
		MetricsHistory:      100,
	}
}

// Scheduler drives the three maintenance passes on independent loops. Each
// pass runs once at start and then on its interval, publishing a metrics
// snapshot after every run.
type Scheduler struct {
	eng     *Engine
	cfg     SchedulerConfig
	log     *slog.Logger
	metrics *Collector

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler wires a scheduler over eng. A nil logger discards output.
func NewScheduler(eng *Engine, cfg SchedulerConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	def := DefaultSchedulerConfig()
	if cfg.CompressionInterval <= 0 {
		cfg.CompressionInterval = def.CompressionInterval
	}
	if cfg.MergeInterval <= 0 {
		cfg.MergeInterval = def.MergeInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	return &Scheduler{
		eng:     eng,
		cfg:     cfg,
		log:     log,
		metrics: NewCollector(cfg.MetricsHistory),
	}
}

// Metrics exposes the rolling snapshot history.
func (s *Scheduler) Metrics() *Collector { return s.metrics }

// Running reports whether the loops are live.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the three loops. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(3)
	go s.loop(ctx, s.stopCh, "compression", s.cfg.CompressionInterval, s.eng.RunCompression)
	go s.loop(ctx, s.stopCh, "merge", s.cfg.MergeInterval, s.eng.RunMerge)
	go s.loop(ctx, s.stopCh, "cleanup", s.cfg.CleanupInterval, s.eng.RunCleanup)
	s.log.Info("scheduler started",
		"compression", s.cfg.CompressionInterval,
		"merge", s.cfg.MergeInterval,
		"cleanup", s.cfg.CleanupInterval)
}

// Stop cancels the loops and waits for in-flight passes to bail out. Safe
// to call repeatedly; a stopped scheduler can be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, name string, every time.Duration, pass func(context.Context) CycleStats) {
	defer s.wg.Done()

	// Run once at startup, then on the interval.
	s.runPass(ctx, name, pass)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runPass(ctx, name, pass)
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, name string, pass func(context.Context) CycleStats) {
	if ctx.Err() != nil {
		return
	}
	stats := pass(ctx)
	s.metrics.Add(s.eng.Snapshot(name, stats))
	s.log.Info("maintenance pass finished",
		"pass", name,
		"examined", stats.Examined,
		"changed", stats.Changed,
		"errors", stats.Errors,
		"duration", stats.Duration)
}
