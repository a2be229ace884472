package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerloop/revrec/internal/audit/domain"
	"github.com/ledgerloop/revrec/internal/clock"
	"github.com/ledgerloop/revrec/internal/config"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	obsmetrics "github.com/ledgerloop/revrec/internal/observability/metrics"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/ledgerloop/revrec/internal/reconciliation/domain"
	"github.com/ledgerloop/revrec/internal/reconciliation/engine"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Policy    *config.PolicyHolder
	Repo      domain.Repository
	Contracts contractdomain.Repository
	Entries   recognitiondomain.Repository
	Audit     auditdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    *config.PolicyHolder
	repo      domain.Repository
	contracts contractdomain.Repository
	entries   recognitiondomain.Repository
	audit     auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reconciliation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		repo:      p.Repo,
		contracts: p.Contracts,
		entries:   p.Entries,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

func (s *Service) Run(ctx context.Context, req domain.RunRequest) (domain.ReconciliationRun, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ReconciliationRun{}, domain.ErrInvalidOrganization
	}

	scope, err := domain.ParseScope(strings.ToLower(strings.TrimSpace(req.Scope)))
	if err != nil {
		return domain.ReconciliationRun{}, err
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	software, skipped, err := s.expectedBalance(ctx, orgID, scope, asOf)
	if err != nil {
		return domain.ReconciliationRun{}, err
	}

	tolerance := s.tolerance()
	comparison := engine.CompareBalances(software, req.ExternalBalance, tolerance)

	run := domain.ReconciliationRun{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		Scope:            scope,
		AsOf:             recognitiondomain.MonthKey(asOf),
		SoftwareBalance:  software,
		ExternalBalance:  req.ExternalBalance,
		Difference:       comparison.Difference,
		Tolerance:        tolerance,
		Matches:          comparison.Matches,
		WithinTolerance:  comparison.WithinTolerance,
		SkippedContracts: skipped,
		CreatedAt:        s.clock.Now(),
	}

	if err := s.repo.InsertRun(ctx, s.db, &run); err != nil {
		return domain.ReconciliationRun{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordReconciliationRun(ctx, string(scope), run.Matches)
	}
	s.auditRun(ctx, orgID, run)

	if !run.Matches {
		s.log.Warn("reconciliation mismatch",
			zap.String("scope", string(scope)),
			zap.String("software", software.String()),
			zap.String("external", req.ExternalBalance.String()),
			zap.String("difference", run.Difference.String()),
		)
	}

	return run, nil
}

func (s *Service) SnapshotDeferred(ctx context.Context) (domain.ReconciliationRun, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ReconciliationRun{}, domain.ErrInvalidOrganization
	}

	asOf := s.clock.Now()
	software, skipped, err := s.expectedBalance(ctx, orgID, domain.ScopeDeferredBalance, asOf)
	if err != nil {
		return domain.ReconciliationRun{}, err
	}

	tolerance := s.tolerance()
	run := domain.ReconciliationRun{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		Scope:            domain.ScopeDeferredBalance,
		AsOf:             recognitiondomain.MonthKey(asOf),
		SoftwareBalance:  software,
		ExternalBalance:  software,
		Difference:       decimal.Zero,
		Tolerance:        tolerance,
		Matches:          true,
		WithinTolerance:  true,
		SkippedContracts: skipped,
		CreatedAt:        s.clock.Now(),
	}

	if err := s.repo.InsertRun(ctx, s.db, &run); err != nil {
		return domain.ReconciliationRun{}, err
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context, req domain.ListRunsRequest) (domain.ListRunsResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListRunsResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListRunsFilter{}
	if scope := strings.ToLower(strings.TrimSpace(req.Scope)); scope != "" {
		parsed, err := domain.ParseScope(scope)
		if err != nil {
			return domain.ListRunsResponse{}, err
		}
		filter.Scope = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListRuns(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListRunsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(run *domain.ReconciliationRun) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        run.ID.String(),
			CreatedAt: run.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	runs := make([]domain.ReconciliationRun, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		runs = append(runs, *item)
	}

	resp := domain.ListRunsResponse{Runs: runs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) expectedBalance(ctx context.Context, orgID snowflake.ID, scope domain.RunScope, asOf time.Time) (decimal.Decimal, int, error) {
	entryRows, err := s.entries.ListByOrg(ctx, s.db, orgID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	entries := make([]recognitiondomain.ScheduleEntry, 0, len(entryRows))
	for _, row := range entryRows {
		if row == nil {
			continue
		}
		entries = append(entries, *row)
	}

	if scope == domain.ScopeRecognizedRevenue {
		return engine.RecognizedRevenue(entries, asOf), 0, nil
	}

	contractRows, err := s.contracts.ListForReconciliation(ctx, s.db, orgID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	contracts := make([]contractdomain.Contract, 0, len(contractRows))
	for _, row := range contractRows {
		if row == nil {
			continue
		}
		contracts = append(contracts, *row)
	}

	balance, skipped := engine.DeferredBalance(contracts, entries, asOf)
	return balance, skipped, nil
}

func (s *Service) tolerance() decimal.Decimal {
	if s.policy == nil {
		return engine.DefaultTolerance
	}
	return s.policy.Get().Tolerance()
}

func (s *Service) auditRun(ctx context.Context, orgID snowflake.ID, run domain.ReconciliationRun) {
	if s.audit == nil {
		return
	}
	targetID := run.ID.String()
	err := s.audit.AuditLog(ctx, &orgID, "", nil, "reconciliation.run", "reconciliation_run", &targetID, map[string]any{
		"scope":      string(run.Scope),
		"software":   run.SoftwareBalance.String(),
		"external":   run.ExternalBalance.String(),
		"difference": run.Difference.String(),
		"matches":    run.Matches,
		"skipped":    run.SkippedContracts,
	})
	if err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
}
