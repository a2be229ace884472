// Package engine computes expected revenue balances and compares them
// to externally reported ones. Read-only, deterministic, safe to run
// concurrently with anything.
package engine

import (
	"time"

	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is one cent, the conventional tie-out slack.
var DefaultTolerance = decimal.New(1, -2)

// Comparison is the outcome of one balance tie-out. Difference is the
// absolute gap, so sign symmetry holds structurally.
type Comparison struct {
	Matches         bool            `json:"matches"`
	Difference      decimal.Decimal `json:"difference"`
	WithinTolerance bool            `json:"within_tolerance"`
}

// DeferredBalance is the expected deferred-revenue position at asOf:
// the amounts of opening-balance-initialized contracts minus what has
// been posted against them through asOf. Contracts without an
// initialized opening balance cannot be tied out and are counted as
// skipped; their entries are excluded from the posted sum as well.
func DeferredBalance(contracts []contractdomain.Contract, entries []recognitiondomain.ScheduleEntry, asOf time.Time) (balance decimal.Decimal, skipped int) {
	cutoff := recognitiondomain.MonthKey(asOf)

	included := make(map[int64]struct{}, len(contracts))
	balance = decimal.Zero
	for _, contract := range contracts {
		if !contract.OpeningBalanceInitialized {
			skipped++
			continue
		}
		included[int64(contract.ID)] = struct{}{}
		balance = balance.Add(contract.Amount)
	}

	for _, entry := range entries {
		if !entry.Posted {
			continue
		}
		if _, ok := included[int64(entry.ContractID)]; !ok {
			continue
		}
		if entry.RecognitionMonth.After(cutoff) {
			continue
		}
		balance = balance.Sub(entry.Amount)
	}

	return balance, skipped
}

// RecognizedRevenue sums posted recognition through the given month,
// adjustment entries included: a posted reversal is negative revenue.
func RecognizedRevenue(entries []recognitiondomain.ScheduleEntry, through time.Time) decimal.Decimal {
	cutoff := recognitiondomain.MonthKey(through)

	total := decimal.Zero
	for _, entry := range entries {
		if !entry.Posted {
			continue
		}
		if entry.RecognitionMonth.After(cutoff) {
			continue
		}
		total = total.Add(entry.Amount)
	}
	return total
}

// CompareBalances ties a software balance to an external one within
// tolerance. A non-positive tolerance falls back to DefaultTolerance.
func CompareBalances(software, external, tolerance decimal.Decimal) Comparison {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}

	difference := software.Sub(external).Abs()
	within := difference.Cmp(tolerance) <= 0

	return Comparison{
		Matches:         within,
		Difference:      difference,
		WithinTolerance: within,
	}
}
