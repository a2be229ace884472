// Package engine holds the pure schedule arithmetic: straight-line
// generation and the adjustment strategies applied on contract edits.
// Everything here is deterministic and side-effect free; persistence,
// locking and identifiers belong to the service layer.
package engine

import (
	"time"

	"github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
)

// MonthlyAmounts splits amount evenly across termMonths at two decimal
// places. Division rounds half away from zero; the exact residual of
// amount minus the rounded sum is folded into the last month, so the
// returned amounts always sum to amount exactly.
func MonthlyAmounts(amount decimal.Decimal, termMonths int) ([]decimal.Decimal, error) {
	if termMonths < 1 {
		return nil, domain.ErrInvalidTerm
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	perMonth := amount.DivRound(decimal.NewFromInt(int64(termMonths)), 2)

	amounts := make([]decimal.Decimal, termMonths)
	for i := range amounts {
		amounts[i] = perMonth
	}

	residual := amount.Sub(perMonth.Mul(decimal.NewFromInt(int64(termMonths))))
	amounts[termMonths-1] = perMonth.Add(residual)

	return amounts, nil
}

// Schedule produces the unposted entries of a straight-line schedule
// starting in the month of start. Identifiers and ownership fields are
// left zero for the caller to stamp.
func Schedule(amount decimal.Decimal, start time.Time, termMonths int) ([]domain.ScheduleEntry, error) {
	amounts, err := MonthlyAmounts(amount, termMonths)
	if err != nil {
		return nil, err
	}

	first := domain.MonthKey(start)
	entries := make([]domain.ScheduleEntry, termMonths)
	for i, monthly := range amounts {
		entries[i] = domain.ScheduleEntry{
			RecognitionMonth: first.AddDate(0, i, 0),
			Amount:           monthly,
		}
	}

	return entries, nil
}

// TargetMonths lists the calendar-month keys a target schedule spans.
func TargetMonths(start time.Time, termMonths int) []time.Time {
	first := domain.MonthKey(start)
	months := make([]time.Time, 0, termMonths)
	for i := 0; i < termMonths; i++ {
		months = append(months, first.AddDate(0, i, 0))
	}
	return months
}
