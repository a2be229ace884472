package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerloop/revrec/internal/audit/domain"
	"github.com/ledgerloop/revrec/internal/clock"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/internal/contractlock"
	obsmetrics "github.com/ledgerloop/revrec/internal/observability/metrics"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	"github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/ledgerloop/revrec/internal/recognition/engine"
	"github.com/ledgerloop/revrec/internal/recognition/guard"
	"github.com/ledgerloop/revrec/pkg/rls"
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
	Repo      domain.Repository
	Contracts contractdomain.Repository
	Lock      *contractlock.Guard
	Audit     auditdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	contracts contractdomain.Repository
	lock      *contractlock.Guard
	audit     auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("recognition.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		contracts: p.Contracts,
		lock:      p.Lock,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

func (s *Service) GenerateSchedule(ctx context.Context, req domain.GenerateScheduleRequest) (domain.ListScheduleResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListScheduleResponse{}, domain.ErrInvalidOrganization
	}

	contractID, err := s.parseID(req.ContractID)
	if err != nil {
		return domain.ListScheduleResponse{}, err
	}

	var inserted []domain.ScheduleEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := rls.Apply(tx, int64(orgID)); err != nil {
			return err
		}
		contract, err := s.contracts.FindByID(ctx, tx, orgID, contractID)
		if err != nil {
			return err
		}
		if contract == nil {
			return domain.ErrContractNotFound
		}
		if err := guard.EnsureContractEditable(contract.Status); err != nil {
			return err
		}

		count, err := s.repo.CountByContract(ctx, tx, orgID, contractID)
		if err != nil {
			return err
		}
		if err := guard.EnsureNoSchedule(count); err != nil {
			return err
		}

		entries, err := engine.Schedule(contract.Amount, contract.StartDate, contract.TermMonths)
		if err != nil {
			return err
		}

		rows := s.stampEntries(entries, orgID, contractID)
		if err := s.repo.InsertEntries(ctx, tx, rows); err != nil {
			return err
		}

		inserted = deref(rows)
		return nil
	})
	if err != nil {
		return domain.ListScheduleResponse{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordScheduleGenerated(ctx)
	}
	s.auditSchedule(ctx, orgID, "schedule.generated", contractID, map[string]any{
		"entries": len(inserted),
	})

	return domain.ListScheduleResponse{Entries: inserted}, nil
}

func (s *Service) ListSchedule(ctx context.Context, req domain.ListScheduleRequest) (domain.ListScheduleResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListScheduleResponse{}, domain.ErrInvalidOrganization
	}

	contractID, err := s.parseID(req.ContractID)
	if err != nil {
		return domain.ListScheduleResponse{}, err
	}

	rows, err := s.repo.ListByContract(ctx, s.db, orgID, contractID, domain.EntryFilter{
		Posted:       req.Posted,
		IsAdjustment: req.IsAdjustment,
	})
	if err != nil {
		return domain.ListScheduleResponse{}, err
	}

	return domain.ListScheduleResponse{Entries: deref(rows)}, nil
}

func (s *Service) PreviewAdjustment(ctx context.Context, req domain.AdjustmentRequest) (domain.AdjustmentPreview, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AdjustmentPreview{}, domain.ErrInvalidOrganization
	}

	contractID, err := s.parseID(req.ContractID)
	if err != nil {
		return domain.AdjustmentPreview{}, err
	}

	contract, err := s.contracts.FindByID(ctx, s.db, orgID, contractID)
	if err != nil {
		return domain.AdjustmentPreview{}, err
	}
	if contract == nil {
		return domain.AdjustmentPreview{}, domain.ErrContractNotFound
	}

	strategy, target, err := s.resolveEdit(contract, req)
	if err != nil {
		return domain.AdjustmentPreview{}, err
	}

	rows, err := s.repo.ListByContract(ctx, s.db, orgID, contractID, domain.EntryFilter{})
	if err != nil {
		return domain.AdjustmentPreview{}, err
	}
	existing := deref(rows)

	change, err := s.computeChange(contract, existing, target, strategy, req.CatchUpMonth)
	if err != nil {
		return domain.AdjustmentPreview{}, err
	}

	return domain.AdjustmentPreview{
		Strategy:    strategy,
		Adjustments: change.Adjustments,
		NewEntries:  change.NewEntries,
		DeleteCount: len(change.DeleteIDs),
		Months:      summarizeMonths(existing, change),
	}, nil
}

func (s *Service) ApplyAdjustment(ctx context.Context, req domain.AdjustmentRequest) (domain.AdjustmentResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AdjustmentResult{}, domain.ErrInvalidOrganization
	}

	contractID, err := s.parseID(req.ContractID)
	if err != nil {
		return domain.AdjustmentResult{}, err
	}

	var result domain.AdjustmentResult
	err = s.lock.WithLock(ctx, orgID, contractID, func(ctx context.Context) error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := rls.Apply(tx, int64(orgID)); err != nil {
				return err
			}
			// Re-read inside the lock: the change is only correct against
			// the exact snapshot of posted entries it was computed from.
			contract, err := s.contracts.FindByID(ctx, tx, orgID, contractID)
			if err != nil {
				return err
			}
			if contract == nil {
				return domain.ErrContractNotFound
			}

			strategy, target, err := s.resolveEdit(contract, req)
			if err != nil {
				return err
			}

			rows, err := s.repo.ListByContract(ctx, tx, orgID, contractID, domain.EntryFilter{})
			if err != nil {
				return err
			}
			existing := deref(rows)

			change, err := s.computeChange(contract, existing, target, strategy, req.CatchUpMonth)
			if err != nil {
				return err
			}

			deleted, err := s.repo.DeleteUnposted(ctx, tx, orgID, contractID, change.DeleteIDs)
			if err != nil {
				return err
			}

			inserts := make([]domain.ScheduleEntry, 0, len(change.Adjustments)+len(change.NewEntries))
			inserts = append(inserts, change.Adjustments...)
			inserts = append(inserts, change.NewEntries...)
			stamped := s.stampEntries(inserts, orgID, contractID)
			if err := s.repo.InsertEntries(ctx, tx, stamped); err != nil {
				return err
			}

			contract.Amount = target.Amount
			contract.StartDate = domain.MonthKey(target.Start)
			contract.TermMonths = target.TermMonths
			contract.EndDate = contractdomain.TermEnd(target.Start, target.TermMonths)
			contract.UpdatedAt = s.clock.Now()
			if err := s.contracts.UpdateFinancials(ctx, tx, contract); err != nil {
				return err
			}

			all := deref(stamped)
			result = domain.AdjustmentResult{
				Strategy:     strategy,
				Adjustments:  all[:len(change.Adjustments)],
				NewEntries:   all[len(change.Adjustments):],
				DeletedCount: deleted,
				NeedsReview:  countNeedsReview(all),
			}
			return nil
		})
	})
	if errors.Is(err, contractlock.ErrBusy) {
		return domain.AdjustmentResult{}, domain.ErrContractLocked
	}
	if err != nil {
		return domain.AdjustmentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordAdjustment(ctx, string(result.Strategy))
	}
	s.auditSchedule(ctx, orgID, "schedule.adjusted", contractID, map[string]any{
		"strategy":    string(result.Strategy),
		"adjustments": len(result.Adjustments),
		"new_entries": len(result.NewEntries),
		"deleted":     result.DeletedCount,
		"reason":      strings.TrimSpace(req.Reason),
	})

	return result, nil
}

func (s *Service) MarkPosted(ctx context.Context, req domain.MarkPostedRequest) (domain.ScheduleEntry, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ScheduleEntry{}, domain.ErrInvalidOrganization
	}

	entryID, err := s.parseID(req.EntryID)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}

	entry, err := s.repo.FindEntryByID(ctx, s.db, orgID, entryID)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	if entry == nil {
		return domain.ScheduleEntry{}, domain.ErrEntryNotFound
	}

	if err := guard.EnsureEntryPostable(*entry); err != nil {
		if errors.Is(err, domain.ErrAlreadyPosted) {
			// Posting is idempotent: the entry is already in the state
			// the caller asked for.
			return *entry, nil
		}
		return domain.ScheduleEntry{}, err
	}

	postedAt := s.clock.Now()
	if req.PostedAt != nil {
		postedAt = req.PostedAt.UTC()
	}

	affected, err := s.repo.MarkPosted(ctx, s.db, orgID, entryID, postedAt)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	if affected == 0 {
		// Lost the race to another poster; re-read and report the
		// posted row as an idempotent success.
		current, err := s.repo.FindEntryByID(ctx, s.db, orgID, entryID)
		if err != nil {
			return domain.ScheduleEntry{}, err
		}
		if current == nil {
			return domain.ScheduleEntry{}, domain.ErrEntryNotFound
		}
		return *current, nil
	}

	entry.Posted = true
	entry.PostedAt = &postedAt

	if s.metrics != nil {
		s.metrics.RecordEntryPosted(ctx)
	}
	s.auditSchedule(ctx, orgID, "entry.posted", entry.ContractID, map[string]any{
		"entry_id": entryID.String(),
		"month":    entry.RecognitionMonth.Format("2006-01"),
		"amount":   entry.Amount.String(),
	})

	return *entry, nil
}

func (s *Service) MonthlyRecognition(ctx context.Context, req domain.MonthlyRecognitionRequest) (domain.MonthlyRecognitionResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.MonthlyRecognitionResponse{}, domain.ErrInvalidOrganization
	}

	contractID, err := s.parseID(req.ContractID)
	if err != nil {
		return domain.MonthlyRecognitionResponse{}, err
	}

	rows, err := s.repo.ListByContract(ctx, s.db, orgID, contractID, domain.EntryFilter{})
	if err != nil {
		return domain.MonthlyRecognitionResponse{}, err
	}

	byMonth := map[time.Time]*domain.MonthlyAmount{}
	total := decimal.Zero
	for _, entry := range rows {
		month := domain.MonthKey(entry.RecognitionMonth)
		bucket, ok := byMonth[month]
		if !ok {
			bucket = &domain.MonthlyAmount{
				Month:     month,
				Posted:    decimal.Zero,
				Scheduled: decimal.Zero,
			}
			byMonth[month] = bucket
		}
		if entry.Posted {
			bucket.Posted = bucket.Posted.Add(entry.Amount)
		} else {
			bucket.Scheduled = bucket.Scheduled.Add(entry.Amount)
		}
		total = total.Add(entry.Amount)
	}

	months := make([]domain.MonthlyAmount, 0, len(byMonth))
	for _, bucket := range byMonth {
		months = append(months, *bucket)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month.Before(months[j].Month)
	})

	return domain.MonthlyRecognitionResponse{
		ContractID: contractID.String(),
		Months:     months,
		Total:      total,
	}, nil
}

// resolveEdit turns a partial edit request into a full target: fields
// the caller left zero keep the contract's current value.
func (s *Service) resolveEdit(contract *contractdomain.Contract, req domain.AdjustmentRequest) (domain.AdjustmentStrategy, engine.Target, error) {
	strategy, err := domain.ParseStrategy(req.Strategy)
	if err != nil {
		return "", engine.Target{}, err
	}

	target := engine.Target{
		Amount:     contract.Amount,
		Start:      contract.StartDate,
		TermMonths: contract.TermMonths,
	}
	if !req.Amount.IsZero() {
		if !req.Amount.IsPositive() {
			return "", engine.Target{}, domain.ErrInvalidAmount
		}
		target.Amount = req.Amount
	}
	if !req.StartDate.IsZero() {
		target.Start = req.StartDate.UTC()
	}
	if req.TermMonths != 0 {
		if req.TermMonths < 1 {
			return "", engine.Target{}, domain.ErrInvalidTerm
		}
		target.TermMonths = req.TermMonths
	}

	return strategy, target, nil
}

func (s *Service) computeChange(contract *contractdomain.Contract, existing []domain.ScheduleEntry, target engine.Target, strategy domain.AdjustmentStrategy, catchUpMonth *time.Time) (engine.Change, error) {
	if err := guard.EnsureContractEditable(contract.Status); err != nil {
		return engine.Change{}, err
	}
	targetMonths := engine.TargetMonths(target.Start, target.TermMonths)
	if err := guard.EnsureStrategyPreconditions(existing, strategy, catchUpMonth, targetMonths); err != nil {
		return engine.Change{}, err
	}
	return engine.ComputeAdjustment(existing, target, strategy, catchUpMonth, s.clock.Now())
}

func (s *Service) stampEntries(entries []domain.ScheduleEntry, orgID, contractID snowflake.ID) []*domain.ScheduleEntry {
	now := s.clock.Now()
	rows := make([]*domain.ScheduleEntry, 0, len(entries))
	for i := range entries {
		entry := entries[i]
		entry.ID = s.genID.Generate()
		entry.OrgID = orgID
		entry.ContractID = contractID
		entry.CreatedAt = now
		entry.UpdatedAt = now
		rows = append(rows, &entry)
	}
	return rows
}

// summarizeMonths folds an existing schedule and a pending change into
// per-month before/after amounts for the preview response.
func summarizeMonths(existing []domain.ScheduleEntry, change engine.Change) []domain.MonthChange {
	deleted := make(map[snowflake.ID]struct{}, len(change.DeleteIDs))
	for _, id := range change.DeleteIDs {
		deleted[id] = struct{}{}
	}

	byMonth := map[time.Time]*domain.MonthChange{}
	bucket := func(month time.Time) *domain.MonthChange {
		month = domain.MonthKey(month)
		row, ok := byMonth[month]
		if !ok {
			row = &domain.MonthChange{
				Month:      month,
				Before:     decimal.Zero,
				After:      decimal.Zero,
				Adjustment: decimal.Zero,
			}
			byMonth[month] = row
		}
		return row
	}

	for _, entry := range existing {
		row := bucket(entry.RecognitionMonth)
		row.Before = row.Before.Add(entry.Amount)
		if _, gone := deleted[entry.ID]; !gone {
			row.After = row.After.Add(entry.Amount)
		}
	}
	for _, adj := range change.Adjustments {
		row := bucket(adj.RecognitionMonth)
		row.After = row.After.Add(adj.Amount)
		row.Adjustment = row.Adjustment.Add(adj.Amount)
		if adj.AdjustmentType != nil && *adj.AdjustmentType == domain.AdjustmentReversal {
			row.Reversed = true
		}
	}
	for _, entry := range change.NewEntries {
		row := bucket(entry.RecognitionMonth)
		row.After = row.After.Add(entry.Amount)
	}

	months := make([]domain.MonthChange, 0, len(byMonth))
	for _, row := range byMonth {
		months = append(months, *row)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month.Before(months[j].Month)
	})
	return months
}

func countNeedsReview(entries []domain.ScheduleEntry) int {
	count := 0
	for _, entry := range entries {
		if entry.NeedsReview {
			count++
		}
	}
	return count
}

func deref(rows []*domain.ScheduleEntry) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		entries = append(entries, *row)
	}
	return entries
}

func (s *Service) auditSchedule(ctx context.Context, orgID snowflake.ID, action string, contractID snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	targetID := contractID.String()
	if err := s.audit.AuditLog(ctx, &orgID, "", nil, action, "contract", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
