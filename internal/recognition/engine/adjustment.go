package engine

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
)

// noiseThreshold is the largest per-month difference treated as
// rounding noise. Retroactive diffs at or under one cent produce no
// adjustment entry.
var noiseThreshold = decimal.New(1, -2)

// Target is the edited financial shape of a contract.
type Target struct {
	Amount     decimal.Decimal
	Start      time.Time
	TermMonths int
}

// Change is the full effect of one adjustment computation. Either the
// whole Change applies or none of it does; the engine never emits a
// partial result alongside an error.
type Change struct {
	// Adjustments are is_adjustment entries against posted months.
	Adjustments []domain.ScheduleEntry
	// NewEntries are replacement unposted base entries.
	NewEntries []domain.ScheduleEntry
	// DeleteIDs are the unposted base entries superseded by NewEntries.
	DeleteIDs []snowflake.ID
}

// ComputeAdjustment applies one strategy to the persisted schedule of
// an edited contract. existing is the full entry set; adjustment
// entries in it are history and never feed the calculation. now
// decides which newly created months are flagged for manual review.
func ComputeAdjustment(existing []domain.ScheduleEntry, target Target, strategy domain.AdjustmentStrategy, catchUpMonth *time.Time, now time.Time) (Change, error) {
	amounts, err := MonthlyAmounts(target.Amount, target.TermMonths)
	if err != nil {
		return Change{}, err
	}

	months := TargetMonths(target.Start, target.TermMonths)
	targetByMonth := make(map[time.Time]decimal.Decimal, len(months))
	for i, month := range months {
		targetByMonth[month] = amounts[i]
	}

	postedBase, unpostedBase := splitBase(existing)

	switch strategy {
	case domain.StrategyRetroactive:
		return retroactive(postedBase, unpostedBase, months, targetByMonth, now)
	case domain.StrategyCatchUp:
		return catchUp(postedBase, unpostedBase, months, targetByMonth, target, catchUpMonth, now)
	case domain.StrategyProspective:
		return prospective(postedBase, unpostedBase, months, target, now)
	case domain.StrategyNone:
		return regenerate(postedBase, unpostedBase, months, targetByMonth)
	default:
		return Change{}, domain.ErrInvalidStrategy
	}
}

func retroactive(postedBase, unpostedBase []domain.ScheduleEntry, months []time.Time, targetByMonth map[time.Time]decimal.Decimal, now time.Time) (Change, error) {
	var change Change

	for _, entry := range postedBase {
		month := domain.MonthKey(entry.RecognitionMonth)
		targetAmount, inRange := targetByMonth[month]
		if !inRange {
			// The month fell out of the edited date range. Reversal
			// takes priority over any amount difference.
			change.Adjustments = append(change.Adjustments, reversalOf(entry))
			continue
		}

		diff := targetAmount.Sub(entry.Amount)
		if diff.Abs().Cmp(noiseThreshold) <= 0 {
			continue
		}
		change.Adjustments = append(change.Adjustments, retroactiveDelta(entry, diff))
	}

	change.NewEntries = replacementEntries(postedBase, months, targetByMonth, &now)
	change.DeleteIDs = idsOf(unpostedBase)

	return change, nil
}

func catchUp(postedBase, unpostedBase []domain.ScheduleEntry, months []time.Time, targetByMonth map[time.Time]decimal.Decimal, target Target, catchUpMonth *time.Time, now time.Time) (Change, error) {
	if catchUpMonth == nil {
		return Change{}, domain.ErrMissingCatchUpMonth
	}

	open := openMonths(postedBase, months)
	if len(open) == 0 {
		return Change{}, domain.ErrNoUnpostedMonths
	}

	designated := domain.MonthKey(*catchUpMonth)
	if !containsMonth(open, designated) {
		return Change{}, domain.ErrCatchUpMonthNotUnposted
	}

	outstanding := target.Amount.Sub(sumAmounts(postedBase))

	var change Change
	adjType := domain.AdjustmentCatchUp
	catchUpReason := "absorbs outstanding difference from contract edit"
	for _, month := range open {
		amount := targetByMonth[month]
		entry := domain.ScheduleEntry{
			RecognitionMonth: month,
			Amount:           amount,
		}
		if month.Equal(designated) {
			entry.Amount = amount.Add(outstanding)
			entry.AdjustmentType = &adjType
			entry.Reason = &catchUpReason
		}
		flagPastMonth(&entry, now)
		change.NewEntries = append(change.NewEntries, entry)
	}

	change.DeleteIDs = idsOf(unpostedBase)
	return change, nil
}

func prospective(postedBase, unpostedBase []domain.ScheduleEntry, months []time.Time, target Target, now time.Time) (Change, error) {
	open := openMonths(postedBase, months)
	if len(open) == 0 {
		return Change{}, domain.ErrNoUnpostedMonths
	}

	remaining := target.Amount.Sub(sumAmounts(postedBase))
	count := decimal.NewFromInt(int64(len(open)))
	perMonth := remaining.DivRound(count, 2)
	lastAmount := remaining.Sub(perMonth.Mul(decimal.NewFromInt(int64(len(open) - 1))))

	var change Change
	adjType := domain.AdjustmentProspective
	for i, month := range open {
		amount := perMonth
		if i == len(open)-1 {
			amount = lastAmount
		}
		entry := domain.ScheduleEntry{
			RecognitionMonth: month,
			Amount:           amount,
			AdjustmentType:   &adjType,
		}
		flagPastMonth(&entry, now)
		change.NewEntries = append(change.NewEntries, entry)
	}

	change.DeleteIDs = idsOf(unpostedBase)
	return change, nil
}

func regenerate(postedBase, unpostedBase []domain.ScheduleEntry, months []time.Time, targetByMonth map[time.Time]decimal.Decimal) (Change, error) {
	if len(postedBase) > 0 {
		return Change{}, domain.ErrPostedScheduleExists
	}

	var change Change
	for _, month := range months {
		change.NewEntries = append(change.NewEntries, domain.ScheduleEntry{
			RecognitionMonth: month,
			Amount:           targetByMonth[month],
		})
	}
	change.DeleteIDs = idsOf(unpostedBase)
	return change, nil
}

// splitBase partitions the non-adjustment entries by posted state,
// sorted by month. Adjustment entries are excluded entirely: they
// record history, not the current shape of the schedule.
func splitBase(entries []domain.ScheduleEntry) (posted, unposted []domain.ScheduleEntry) {
	for _, entry := range entries {
		if entry.IsAdjustment {
			continue
		}
		if entry.Posted {
			posted = append(posted, entry)
		} else {
			unposted = append(unposted, entry)
		}
	}
	sort.Slice(posted, func(i, j int) bool {
		return posted[i].RecognitionMonth.Before(posted[j].RecognitionMonth)
	})
	sort.Slice(unposted, func(i, j int) bool {
		return unposted[i].RecognitionMonth.Before(unposted[j].RecognitionMonth)
	})
	return posted, unposted
}

// openMonths lists target months without a posted base entry, in
// schedule order.
func openMonths(postedBase []domain.ScheduleEntry, months []time.Time) []time.Time {
	taken := make(map[time.Time]struct{}, len(postedBase))
	for _, entry := range postedBase {
		taken[domain.MonthKey(entry.RecognitionMonth)] = struct{}{}
	}

	open := make([]time.Time, 0, len(months))
	for _, month := range months {
		if _, ok := taken[month]; ok {
			continue
		}
		open = append(open, month)
	}
	return open
}

func replacementEntries(postedBase []domain.ScheduleEntry, months []time.Time, targetByMonth map[time.Time]decimal.Decimal, now *time.Time) []domain.ScheduleEntry {
	open := openMonths(postedBase, months)
	entries := make([]domain.ScheduleEntry, 0, len(open))
	for _, month := range open {
		entry := domain.ScheduleEntry{
			RecognitionMonth: month,
			Amount:           targetByMonth[month],
		}
		if now != nil {
			flagPastMonth(&entry, *now)
		}
		entries = append(entries, entry)
	}
	return entries
}

// flagPastMonth marks entries created for already-elapsed months. A
// backdated start-date change produces months that need human judgment
// before posting, so they are created flagged rather than rejected.
func flagPastMonth(entry *domain.ScheduleEntry, now time.Time) {
	if entry.RecognitionMonth.Before(domain.MonthKey(now)) {
		reason := "created for a past month by contract edit, review before posting"
		entry.NeedsReview = true
		if entry.Reason == nil {
			entry.Reason = &reason
		}
	}
}

func reversalOf(entry domain.ScheduleEntry) domain.ScheduleEntry {
	adjType := domain.AdjustmentReversal
	id := entry.ID
	reason := "recognition month removed by contract edit"
	return domain.ScheduleEntry{
		RecognitionMonth:  domain.MonthKey(entry.RecognitionMonth),
		Amount:            entry.Amount.Neg(),
		IsAdjustment:      true,
		AdjustmentType:    &adjType,
		AdjustsScheduleID: &id,
		Reason:            &reason,
	}
}

func retroactiveDelta(entry domain.ScheduleEntry, diff decimal.Decimal) domain.ScheduleEntry {
	adjType := domain.AdjustmentRetroactive
	id := entry.ID
	reason := "recognition amount restated by contract edit"
	return domain.ScheduleEntry{
		RecognitionMonth:  domain.MonthKey(entry.RecognitionMonth),
		Amount:            diff,
		IsAdjustment:      true,
		AdjustmentType:    &adjType,
		AdjustsScheduleID: &id,
		Reason:            &reason,
	}
}

func sumAmounts(entries []domain.ScheduleEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Amount)
	}
	return total
}

func containsMonth(months []time.Time, month time.Time) bool {
	for _, m := range months {
		if m.Equal(month) {
			return true
		}
	}
	return false
}

func idsOf(entries []domain.ScheduleEntry) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids
}
