// Package scheduler triggers bounded normalization passes on a ticker.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Config configures the scheduler.
type Config struct {
	// CheckInterval is how often to run a pass. Default: 1 minute.
	CheckInterval time.Duration
	// BatchSize bounds the raw records one pass consumes per org.
	// Default: 200.
	BatchSize int
}

func (c *Config) defaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
}

// OrgLister returns the org IDs with pending work.
type OrgLister func(ctx context.Context) ([]string, error)

// PassFunc runs one normalization pass for an org.
type PassFunc func(ctx context.Context, orgID string, limit int) error

// Scheduler periodically runs normalization passes across all orgs.
// Two overlapping passes are safe: per-record transactions and the
// optimistic version check serialize writes on each permit.
type Scheduler struct {
	list   OrgLister
	pass   PassFunc
	config Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(list OrgLister, pass PassFunc, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{list: list, pass: pass, config: cfg, logger: logger}
}

// Run executes passes on a ticker. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	// Run once immediately on start.
	s.runPasses(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPasses(ctx)
		}
	}
}

func (s *Scheduler) runPasses(ctx context.Context) {
	orgs, err := s.list(ctx)
	if err != nil {
		s.logger.Error("scheduler: list orgs", "error", err)
		return
	}

	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return
		}
		if err := s.pass(ctx, orgID, s.config.BatchSize); err != nil {
			s.logger.Warn("scheduler: pass failed", "org_id", orgID, "error", err)
		}
	}
}
