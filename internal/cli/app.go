package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/engramdb/engram/internal/config"
	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/logger"
	"github.com/engramdb/engram/internal/snapshot"
	"github.com/engramdb/engram/internal/store"
	"github.com/engramdb/engram/internal/summary"
)

// app bundles the wired-up process state shared by every command: config,
// logger, the snapshot database, and the engine over the loaded corpus.
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *snapshot.DB
	st  *store.Store
	eng *engine.Engine
}

// openApp loads config, opens the snapshot, and rehydrates the corpus.
// Callers own the result and must Close it; Close saves the corpus back.
// Extra logger options override the configured ones (the mcp command uses
// this to keep stdout clear for the transport).
func openApp(logOpts ...logger.Option) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	log := buildLogger(cfg.Log, logOpts...)

	path := flagSnapshot
	if path == "" {
		path = cfg.Snapshot.Path
	}
	if path == "" {
		path, err = snapshot.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve snapshot path: %w", err)
		}
	}

	db, err := snapshot.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	st := store.New()
	loaded, err := db.Load(st)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	log.Debug("snapshot loaded", "path", path, "records", loaded)

	sum, err := summary.New(cfg.Summarizer)
	if err != nil {
		db.Close()
		return nil, err
	}

	eng := engine.New(st, engineConfig(cfg.Retention),
		engine.WithSummarizer(sum),
		engine.WithRetrieval(retrievalConfig(cfg.Retrieval)),
		engine.WithLogger(log),
	)

	return &app{cfg: cfg, log: log, db: db, st: st, eng: eng}, nil
}

// Close saves the corpus back into the snapshot and releases the database.
func (a *app) Close() error {
	defer a.db.Close()
	if err := a.db.Save(a.st); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (a *app) scheduler() *engine.Scheduler {
	return engine.NewScheduler(a.eng, schedulerConfig(a.cfg.Scheduler), a.log)
}

func buildLogger(lc config.LogConfig, extra ...logger.Option) *slog.Logger {
	opts := []logger.Option{}
	switch lc.Level {
	case "debug":
		opts = append(opts, logger.WithLevel(slog.LevelDebug))
	case "warn":
		opts = append(opts, logger.WithLevel(slog.LevelWarn))
	case "error":
		opts = append(opts, logger.WithLevel(slog.LevelError))
	}
	switch lc.Format {
	case "json":
		opts = append(opts, logger.WithJSON(true))
	default:
		opts = append(opts, logger.WithPretty(true))
	}
	return logger.New(append(opts, extra...)...)
}

// The config package speaks seconds and days; the engine speaks durations.
func engineConfig(rc config.RetentionConfig) engine.Config {
	c := engine.DefaultConfig()
	if rc.Personalization > 0 {
		c.Personalization = rc.Personalization
	}
	if rc.DecayDaySeconds > 0 {
		c.DecayDay = time.Duration(rc.DecayDaySeconds) * time.Second
	}
	if rc.MergeSimilarity > 0 {
		c.MergeSim = rc.MergeSimilarity
	}
	if rc.MergeMinGroup > 0 {
		c.MergeMinGroup = rc.MergeMinGroup
	}
	if rc.MentionMergeSimilarity > 0 {
		c.MentionMergeSim = rc.MentionMergeSimilarity
	}
	if rc.MentionLinkSimilarity > 0 {
		c.MentionLinkSim = rc.MentionLinkSimilarity
	}
	if rc.SoftDeleteGraceDays > 0 {
		c.SoftDeleteGrace = time.Duration(rc.SoftDeleteGraceDays) * 24 * time.Hour
	}
	if rc.CleanupFloor > 0 {
		c.CleanupFloor = rc.CleanupFloor
	}
	if rc.CleanupAgeDays > 0 {
		c.CleanupAge = time.Duration(rc.CleanupAgeDays) * 24 * time.Hour
	}
	return c
}

func schedulerConfig(sc config.SchedulerConfig) engine.SchedulerConfig {
	c := engine.DefaultSchedulerConfig()
	if sc.CompressionIntervalSeconds > 0 {
		c.CompressionInterval = time.Duration(sc.CompressionIntervalSeconds) * time.Second
	}
	if sc.MergeIntervalSeconds > 0 {
		c.MergeInterval = time.Duration(sc.MergeIntervalSeconds) * time.Second
	}
	if sc.CleanupIntervalSeconds > 0 {
		c.CleanupInterval = time.Duration(sc.CleanupIntervalSeconds) * time.Second
	}
	if sc.MetricsHistory > 0 {
		c.MetricsHistory = sc.MetricsHistory
	}
	return c
}

func retrievalConfig(rc config.RetrievalConfig) engine.RetrievalConfig {
	c := engine.DefaultRetrievalConfig()
	if rc.TopK > 0 {
		c.TopK = rc.TopK
	}
	if rc.CoarseThreshold > 0 {
		c.CoarseThreshold = rc.CoarseThreshold
	}
	if rc.SemanticWeight+rc.RecencyWeight+rc.RetentionWeight > 0 {
		c.SemanticWeight = rc.SemanticWeight
		c.RecencyWeight = rc.RecencyWeight
		c.RetentionWeight = rc.RetentionWeight
	}
	c.Rerank = rc.Rerank
	return c
}
