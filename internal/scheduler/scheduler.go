// Package scheduler keeps a fresh deferred-balance baseline per
// organization: every tick it records one snapshot reconciliation run
// per org, so operators always have a recent point to tie the external
// ledger against.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/clock"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	obsmetrics "github.com/ledgerloop/revrec/internal/observability/metrics"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	reconciliationdomain "github.com/ledgerloop/revrec/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobSnapshot = "reconciliation.snapshot"

var ErrInvalidConfig = errors.New("scheduler misconfigured")

type Params struct {
	fx.In

	DB                *gorm.DB
	Log               *zap.Logger
	Clock             clock.Clock
	Contracts         contractdomain.Repository
	ReconciliationSvc reconciliationdomain.Service
	Config            Config `optional:"true"`
}

type Scheduler struct {
	db                *gorm.DB
	log               *zap.Logger
	cfg               Config
	clock             clock.Clock
	contracts         contractdomain.Repository
	reconciliationSvc reconciliationdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Contracts == nil || p.ReconciliationSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:                p.DB,
		log:               p.Log.Named("scheduler"),
		cfg:               p.Config.withDefaults(),
		clock:             p.Clock,
		contracts:         p.Contracts,
		reconciliationSvc: p.ReconciliationSvc,
	}, nil
}

// RunOnce snapshots every organization's deferred balance. Per-org
// failures are counted and logged but never stop the sweep.
func (s *Scheduler) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(jobSnapshot)

	orgIDs, err := s.contracts.ListOrgIDs(ctx, s.db)
	if err != nil {
		schedMetrics.IncJobError(jobSnapshot, err)
		return fmt.Errorf("%s: %w", jobSnapshot, err)
	}

	snapshots := 0
	var lastErr error
	for _, orgID := range orgIDs {
		if err := s.snapshotOrg(ctx, orgID); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				schedMetrics.IncJobTimeout(jobSnapshot)
				s.log.Warn("snapshot sweep timed out",
					zap.Int("completed", snapshots),
					zap.Int("total", len(orgIDs)),
				)
				break
			}
			schedMetrics.IncJobError(jobSnapshot, err)
			s.log.Warn("deferred balance snapshot failed",
				zap.String("org_id", orgID.String()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		snapshots++
	}

	schedMetrics.AddBatchProcessed(jobSnapshot, "organizations", snapshots)
	schedMetrics.ObserveJobDuration(jobSnapshot, s.clock.Now().Sub(start))

	if lastErr != nil {
		return fmt.Errorf("%s: %w", jobSnapshot, lastErr)
	}
	return nil
}

func (s *Scheduler) snapshotOrg(ctx context.Context, orgID snowflake.ID) error {
	ctx = orgcontext.WithOrgID(ctx, int64(orgID))
	_, err := s.reconciliationSvc.SnapshotDeferred(ctx)
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
