package engine

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func baseEntry(id int64, recognitionMonth time.Time, amount string, posted bool) domain.ScheduleEntry {
	d, _ := decimal.NewFromString(amount)
	return domain.ScheduleEntry{
		ID:               snowflake.ID(id),
		ContractID:       snowflake.ID(1),
		RecognitionMonth: recognitionMonth,
		Amount:           d,
		Posted:           posted,
	}
}

// twelveAtThousand is a 12000-over-12 schedule for 2024 with the first
// postedCount months posted.
func twelveAtThousand(postedCount int) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, baseEntry(int64(i+1), month(2024, time.Month(i+1)), "1000.00", i < postedCount))
	}
	return entries
}

func findByMonth(t *testing.T, entries []domain.ScheduleEntry, m time.Time) domain.ScheduleEntry {
	t.Helper()
	for _, entry := range entries {
		if entry.RecognitionMonth.Equal(m) {
			return entry
		}
	}
	t.Fatalf("no entry for %s", m)
	return domain.ScheduleEntry{}
}

func TestComputeAdjustment_RetroactiveRestatesPostedMonths(t *testing.T) {
	existing := twelveAtThousand(3)
	target := Target{
		Amount:     decimal.RequireFromString("9000"),
		Start:      month(2024, time.January),
		TermMonths: 6,
	}
	now := month(2024, time.April)

	change, err := ComputeAdjustment(existing, target, domain.StrategyRetroactive, nil, now)
	require.NoError(t, err)

	require.Len(t, change.Adjustments, 3)
	for i, adj := range change.Adjustments {
		assert.True(t, adj.Amount.Equal(decimal.RequireFromString("500.00")), "adjustment %d: got %s", i, adj.Amount)
		assert.True(t, adj.IsAdjustment)
		require.NotNil(t, adj.AdjustmentType)
		assert.Equal(t, domain.AdjustmentRetroactive, *adj.AdjustmentType)
		require.NotNil(t, adj.AdjustsScheduleID)
		assert.Equal(t, existing[i].ID, *adj.AdjustsScheduleID)
	}

	require.Len(t, change.NewEntries, 3)
	for i, entry := range change.NewEntries {
		assert.True(t, entry.RecognitionMonth.Equal(month(2024, time.Month(i+4))), "entry %d month %s", i, entry.RecognitionMonth)
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("1500.00")), "entry %d: got %s", i, entry.Amount)
		assert.False(t, entry.Posted)
		assert.False(t, entry.IsAdjustment)
	}

	// All nine unposted originals (Apr through Dec) are superseded.
	assert.Len(t, change.DeleteIDs, 9)

	// Posted history plus adjustments plus the new tail equals the new
	// contract amount.
	total := decimal.Zero
	for _, entry := range existing[:3] {
		total = total.Add(entry.Amount)
	}
	for _, adj := range change.Adjustments {
		total = total.Add(adj.Amount)
	}
	for _, entry := range change.NewEntries {
		total = total.Add(entry.Amount)
	}
	assert.True(t, total.Equal(target.Amount), "effective total: got %s", total)
}

func TestComputeAdjustment_RetroactiveReversesOrphanedMonths(t *testing.T) {
	existing := twelveAtThousand(2)
	target := Target{
		Amount:     decimal.RequireFromString("12000"),
		Start:      month(2024, time.March),
		TermMonths: 12,
	}
	now := month(2024, time.March)

	change, err := ComputeAdjustment(existing, target, domain.StrategyRetroactive, nil, now)
	require.NoError(t, err)

	require.Len(t, change.Adjustments, 2)
	for i, adj := range change.Adjustments {
		assert.True(t, adj.RecognitionMonth.Equal(month(2024, time.Month(i+1))))
		assert.True(t, adj.Amount.Equal(decimal.RequireFromString("-1000.00")), "reversal %d: got %s", i, adj.Amount)
		require.NotNil(t, adj.AdjustmentType)
		assert.Equal(t, domain.AdjustmentReversal, *adj.AdjustmentType)
		require.NotNil(t, adj.AdjustsScheduleID)
		assert.Equal(t, existing[i].ID, *adj.AdjustsScheduleID)
		require.NotNil(t, adj.Reason)
	}

	// Every month of the shifted range gets a fresh entry: nothing in
	// the new range is posted.
	require.Len(t, change.NewEntries, 12)
	assert.True(t, change.NewEntries[0].RecognitionMonth.Equal(month(2024, time.March)))
	assert.True(t, change.NewEntries[11].RecognitionMonth.Equal(month(2025, time.February)))
	assert.Len(t, change.DeleteIDs, 10)
}

func TestComputeAdjustment_RetroactiveSkipsCentNoise(t *testing.T) {
	// 10000 over 12 put 833.33 in January. Restating to 10000.08 moves
	// the January target to 833.34, a one-cent diff that is noise.
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "833.33", true),
	}
	target := Target{
		Amount:     decimal.RequireFromString("10000.08"),
		Start:      month(2024, time.January),
		TermMonths: 12,
	}

	change, err := ComputeAdjustment(existing, target, domain.StrategyRetroactive, nil, month(2024, time.February))
	require.NoError(t, err)

	assert.Empty(t, change.Adjustments, "one-cent diff must be skipped")
	assert.Len(t, change.NewEntries, 11)
}

func TestComputeAdjustment_RetroactiveFlagsBackdatedMonths(t *testing.T) {
	// Start moves back two months while nothing is posted yet: the new
	// past months arrive flagged for review instead of being rejected.
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.March), "1000.00", false),
		baseEntry(2, month(2024, time.April), "1000.00", false),
	}
	target := Target{
		Amount:     decimal.RequireFromString("4000"),
		Start:      month(2024, time.January),
		TermMonths: 4,
	}
	now := month(2024, time.March)

	change, err := ComputeAdjustment(existing, target, domain.StrategyRetroactive, nil, now)
	require.NoError(t, err)
	require.Len(t, change.NewEntries, 4)

	jan := findByMonth(t, change.NewEntries, month(2024, time.January))
	feb := findByMonth(t, change.NewEntries, month(2024, time.February))
	mar := findByMonth(t, change.NewEntries, month(2024, time.March))

	assert.True(t, jan.NeedsReview)
	require.NotNil(t, jan.Reason)
	assert.True(t, feb.NeedsReview)
	assert.False(t, mar.NeedsReview, "current month is not past")
}

func TestComputeAdjustment_IgnoresAdjustmentHistory(t *testing.T) {
	reversal := domain.AdjustmentReversal
	history := domain.ScheduleEntry{
		ID:               snowflake.ID(99),
		RecognitionMonth: month(2024, time.January),
		Amount:           decimal.RequireFromString("-250.00"),
		Posted:           true,
		IsAdjustment:     true,
		AdjustmentType:   &reversal,
	}

	existing := append(twelveAtThousand(3), history)
	target := Target{
		Amount:     decimal.RequireFromString("9000"),
		Start:      month(2024, time.January),
		TermMonths: 6,
	}

	change, err := ComputeAdjustment(existing, target, domain.StrategyRetroactive, nil, month(2024, time.April))
	require.NoError(t, err)

	// Identical to the run without the historical adjustment entry.
	require.Len(t, change.Adjustments, 3)
	for _, adj := range change.Adjustments {
		assert.True(t, adj.Amount.Equal(decimal.RequireFromString("500.00")))
	}
	assert.Len(t, change.DeleteIDs, 9, "posted adjustment rows are never deleted")
}

func TestComputeAdjustment_CatchUpLandsEntireDifference(t *testing.T) {
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "1000.00", true),
		baseEntry(2, month(2024, time.February), "1000.00", true),
		baseEntry(3, month(2024, time.March), "1000.00", false),
	}
	catchUp := month(2024, time.March)
	target := Target{
		Amount:     decimal.RequireFromString("4500"),
		Start:      month(2024, time.January),
		TermMonths: 3,
	}

	change, err := ComputeAdjustment(existing, target, domain.StrategyCatchUp, &catchUp, month(2024, time.March))
	require.NoError(t, err)

	assert.Empty(t, change.Adjustments, "posted months stay untouched")
	require.Len(t, change.NewEntries, 1)

	mar := change.NewEntries[0]
	assert.True(t, mar.RecognitionMonth.Equal(catchUp))
	// 1500 baseline plus the 2500 outstanding difference.
	assert.True(t, mar.Amount.Equal(decimal.RequireFromString("4000.00")), "got %s", mar.Amount)
	require.NotNil(t, mar.AdjustmentType)
	assert.Equal(t, domain.AdjustmentCatchUp, *mar.AdjustmentType)
	assert.False(t, mar.IsAdjustment)

	assert.Equal(t, []snowflake.ID{snowflake.ID(3)}, change.DeleteIDs)
}

func TestComputeAdjustment_CatchUpOtherMonthsKeepBaseline(t *testing.T) {
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "1000.00", true),
	}
	catchUp := month(2024, time.February)
	target := Target{
		Amount:     decimal.RequireFromString("6000"),
		Start:      month(2024, time.January),
		TermMonths: 4,
	}

	change, err := ComputeAdjustment(existing, target, domain.StrategyCatchUp, &catchUp, month(2024, time.February))
	require.NoError(t, err)
	require.Len(t, change.NewEntries, 3)

	feb := findByMonth(t, change.NewEntries, month(2024, time.February))
	mar := findByMonth(t, change.NewEntries, month(2024, time.March))
	apr := findByMonth(t, change.NewEntries, month(2024, time.April))

	// Baseline 1500, outstanding 6000-1000=5000.
	assert.True(t, feb.Amount.Equal(decimal.RequireFromString("6500.00")), "got %s", feb.Amount)
	assert.True(t, mar.Amount.Equal(decimal.RequireFromString("1500.00")))
	assert.True(t, apr.Amount.Equal(decimal.RequireFromString("1500.00")))
	assert.Nil(t, mar.AdjustmentType)
}

func TestComputeAdjustment_CatchUpValidation(t *testing.T) {
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "1000.00", true),
		baseEntry(2, month(2024, time.February), "1000.00", false),
	}
	target := Target{
		Amount:     decimal.RequireFromString("4500"),
		Start:      month(2024, time.January),
		TermMonths: 3,
	}

	_, err := ComputeAdjustment(existing, target, domain.StrategyCatchUp, nil, month(2024, time.February))
	assert.ErrorIs(t, err, domain.ErrMissingCatchUpMonth)

	posted := month(2024, time.January)
	_, err = ComputeAdjustment(existing, target, domain.StrategyCatchUp, &posted, month(2024, time.February))
	assert.ErrorIs(t, err, domain.ErrCatchUpMonthNotUnposted)

	outside := month(2025, time.June)
	_, err = ComputeAdjustment(existing, target, domain.StrategyCatchUp, &outside, month(2024, time.February))
	assert.ErrorIs(t, err, domain.ErrCatchUpMonthNotUnposted)
}

func TestComputeAdjustment_ProspectiveSpreadsRemainder(t *testing.T) {
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "1000.00", true),
		baseEntry(2, month(2024, time.February), "1000.00", true),
		baseEntry(3, month(2024, time.March), "1000.00", false),
	}
	target := Target{
		Amount:     decimal.RequireFromString("6000"),
		Start:      month(2024, time.January),
		TermMonths: 6,
	}

	change, err := ComputeAdjustment(existing, target, domain.StrategyProspective, nil, month(2024, time.March))
	require.NoError(t, err)

	assert.Empty(t, change.Adjustments)
	require.Len(t, change.NewEntries, 4)

	// remaining = 6000 - 2000 = 4000 over Mar..Jun.
	sum := decimal.Zero
	for _, entry := range change.NewEntries {
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("1000.00")), "got %s", entry.Amount)
		sum = sum.Add(entry.Amount)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("4000")))
}

func TestComputeAdjustment_ProspectiveResidualInFinalMonth(t *testing.T) {
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "1000.00", true),
	}
	target := Target{
		Amount:     decimal.RequireFromString("2000.01"),
		Start:      month(2024, time.January),
		TermMonths: 4,
	}

	change, err := ComputeAdjustment(existing, target, domain.StrategyProspective, nil, month(2024, time.February))
	require.NoError(t, err)
	require.Len(t, change.NewEntries, 3)

	// remaining = 1000.01 over three months: 333.34, 333.34, 333.33.
	assert.True(t, change.NewEntries[0].Amount.Equal(decimal.RequireFromString("333.34")), "got %s", change.NewEntries[0].Amount)
	assert.True(t, change.NewEntries[1].Amount.Equal(decimal.RequireFromString("333.34")), "got %s", change.NewEntries[1].Amount)
	assert.True(t, change.NewEntries[2].Amount.Equal(decimal.RequireFromString("333.33")), "got %s", change.NewEntries[2].Amount)

	sum := decimal.Zero
	for _, entry := range change.NewEntries {
		sum = sum.Add(entry.Amount)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("1000.01")), "sum %s", sum)
}

func TestComputeAdjustment_ProspectiveNeedsOpenMonth(t *testing.T) {
	existing := []domain.ScheduleEntry{
		baseEntry(1, month(2024, time.January), "1000.00", true),
		baseEntry(2, month(2024, time.February), "1000.00", true),
	}
	target := Target{
		Amount:     decimal.RequireFromString("3000"),
		Start:      month(2024, time.January),
		TermMonths: 2,
	}

	_, err := ComputeAdjustment(existing, target, domain.StrategyProspective, nil, month(2024, time.March))
	assert.ErrorIs(t, err, domain.ErrNoUnpostedMonths)
}

func TestComputeAdjustment_NoneRequiresCleanSlate(t *testing.T) {
	posted := twelveAtThousand(1)
	target := Target{
		Amount:     decimal.RequireFromString("24000"),
		Start:      month(2024, time.January),
		TermMonths: 12,
	}

	_, err := ComputeAdjustment(posted, target, domain.StrategyNone, nil, month(2024, time.June))
	assert.ErrorIs(t, err, domain.ErrPostedScheduleExists)

	unposted := twelveAtThousand(0)
	change, err := ComputeAdjustment(unposted, target, domain.StrategyNone, nil, month(2024, time.June))
	require.NoError(t, err)

	assert.Empty(t, change.Adjustments)
	require.Len(t, change.NewEntries, 12)
	for _, entry := range change.NewEntries {
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("2000.00")))
	}
	assert.Len(t, change.DeleteIDs, 12)
}

func TestComputeAdjustment_InvalidTargetRejected(t *testing.T) {
	existing := twelveAtThousand(0)

	_, err := ComputeAdjustment(existing, Target{
		Amount:     decimal.Zero,
		Start:      month(2024, time.January),
		TermMonths: 12,
	}, domain.StrategyRetroactive, nil, month(2024, time.June))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = ComputeAdjustment(existing, Target{
		Amount:     decimal.RequireFromString("1200"),
		Start:      month(2024, time.January),
		TermMonths: 0,
	}, domain.StrategyRetroactive, nil, month(2024, time.June))
	assert.ErrorIs(t, err, domain.ErrInvalidTerm)
}
