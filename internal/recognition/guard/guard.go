// Package guard holds the pure precondition checks that run before an
// adjustment is computed or a schedule is touched. Each check takes
// plain values and returns a sentinel error, so callers can test and
// map them without a database in reach.
package guard

import (
	"time"

	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/internal/recognition/domain"
)

// EnsureContractEditable rejects financial edits on contracts that
// left the active state.
func EnsureContractEditable(status contractdomain.ContractStatus) error {
	if status != contractdomain.ContractStatusActive {
		return domain.ErrContractNotEditable
	}
	return nil
}

// EnsureNoSchedule rejects generation when entries already exist.
func EnsureNoSchedule(entryCount int64) error {
	if entryCount > 0 {
		return domain.ErrScheduleExists
	}
	return nil
}

// EnsureStrategyPreconditions validates a strategy against the current
// schedule and the months the edited contract will span. entries is
// the persisted schedule; adjustment entries are ignored.
func EnsureStrategyPreconditions(entries []domain.ScheduleEntry, strategy domain.AdjustmentStrategy, catchUpMonth *time.Time, targetMonths []time.Time) error {
	postedMonths := make(map[time.Time]struct{})
	postedCount := 0
	for _, entry := range entries {
		if entry.IsAdjustment || !entry.Posted {
			continue
		}
		postedCount++
		postedMonths[domain.MonthKey(entry.RecognitionMonth)] = struct{}{}
	}

	open := make([]time.Time, 0, len(targetMonths))
	for _, month := range targetMonths {
		if _, ok := postedMonths[month]; ok {
			continue
		}
		open = append(open, month)
	}

	switch strategy {
	case domain.StrategyNone:
		if postedCount > 0 {
			return domain.ErrPostedScheduleExists
		}
	case domain.StrategyCatchUp:
		if len(open) == 0 {
			return domain.ErrNoUnpostedMonths
		}
		if catchUpMonth == nil {
			return domain.ErrMissingCatchUpMonth
		}
		if !monthIn(open, domain.MonthKey(*catchUpMonth)) {
			return domain.ErrCatchUpMonthNotUnposted
		}
	case domain.StrategyProspective:
		if len(open) == 0 {
			return domain.ErrNoUnpostedMonths
		}
	case domain.StrategyRetroactive:
		// No preconditions beyond an editable contract.
	default:
		return domain.ErrInvalidStrategy
	}

	return nil
}

// EnsureEntryPostable rejects posting of entries that would break
// immutability. Re-posting an already posted entry is reported so the
// caller can treat it as an idempotent no-op.
func EnsureEntryPostable(entry domain.ScheduleEntry) error {
	if entry.Posted {
		return domain.ErrAlreadyPosted
	}
	return nil
}

func monthIn(months []time.Time, month time.Time) bool {
	for _, m := range months {
		if m.Equal(month) {
			return true
		}
	}
	return false
}
