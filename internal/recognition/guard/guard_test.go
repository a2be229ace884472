package guard

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func entry(id int64, recognitionMonth time.Time, posted bool) domain.ScheduleEntry {
	return domain.ScheduleEntry{
		ID:               snowflake.ID(id),
		RecognitionMonth: recognitionMonth,
		Amount:           decimal.RequireFromString("100.00"),
		Posted:           posted,
	}
}

func TestEnsureContractEditable(t *testing.T) {
	assert.NoError(t, EnsureContractEditable(contractdomain.ContractStatusActive))
	assert.ErrorIs(t, EnsureContractEditable(contractdomain.ContractStatusCompleted), domain.ErrContractNotEditable)
	assert.ErrorIs(t, EnsureContractEditable(contractdomain.ContractStatusCancelled), domain.ErrContractNotEditable)
}

func TestEnsureNoSchedule(t *testing.T) {
	assert.NoError(t, EnsureNoSchedule(0))
	assert.ErrorIs(t, EnsureNoSchedule(4), domain.ErrScheduleExists)
}

func TestEnsureStrategyPreconditions_None(t *testing.T) {
	months := []time.Time{month(2024, time.January), month(2024, time.February)}

	err := EnsureStrategyPreconditions([]domain.ScheduleEntry{
		entry(1, month(2024, time.January), false),
	}, domain.StrategyNone, nil, months)
	assert.NoError(t, err)

	err = EnsureStrategyPreconditions([]domain.ScheduleEntry{
		entry(1, month(2024, time.January), true),
	}, domain.StrategyNone, nil, months)
	assert.ErrorIs(t, err, domain.ErrPostedScheduleExists)
}

func TestEnsureStrategyPreconditions_CatchUp(t *testing.T) {
	months := []time.Time{month(2024, time.January), month(2024, time.February), month(2024, time.March)}
	entries := []domain.ScheduleEntry{
		entry(1, month(2024, time.January), true),
		entry(2, month(2024, time.February), true),
		entry(3, month(2024, time.March), false),
	}

	err := EnsureStrategyPreconditions(entries, domain.StrategyCatchUp, nil, months)
	assert.ErrorIs(t, err, domain.ErrMissingCatchUpMonth)

	jan := month(2024, time.January)
	err = EnsureStrategyPreconditions(entries, domain.StrategyCatchUp, &jan, months)
	assert.ErrorIs(t, err, domain.ErrCatchUpMonthNotUnposted)

	mar := month(2024, time.March)
	err = EnsureStrategyPreconditions(entries, domain.StrategyCatchUp, &mar, months)
	assert.NoError(t, err)

	// Every target month posted leaves nothing to absorb into.
	allPosted := []domain.ScheduleEntry{
		entry(1, month(2024, time.January), true),
		entry(2, month(2024, time.February), true),
		entry(3, month(2024, time.March), true),
	}
	err = EnsureStrategyPreconditions(allPosted, domain.StrategyCatchUp, &mar, months)
	assert.ErrorIs(t, err, domain.ErrNoUnpostedMonths)
}

func TestEnsureStrategyPreconditions_Prospective(t *testing.T) {
	months := []time.Time{month(2024, time.January), month(2024, time.February)}

	err := EnsureStrategyPreconditions([]domain.ScheduleEntry{
		entry(1, month(2024, time.January), true),
	}, domain.StrategyProspective, nil, months)
	assert.NoError(t, err)

	err = EnsureStrategyPreconditions([]domain.ScheduleEntry{
		entry(1, month(2024, time.January), true),
		entry(2, month(2024, time.February), true),
	}, domain.StrategyProspective, nil, months)
	assert.ErrorIs(t, err, domain.ErrNoUnpostedMonths)
}

func TestEnsureStrategyPreconditions_IgnoresAdjustmentRows(t *testing.T) {
	months := []time.Time{month(2024, time.January)}

	reversal := domain.AdjustmentReversal
	adjustment := domain.ScheduleEntry{
		ID:               snowflake.ID(9),
		RecognitionMonth: month(2024, time.January),
		Amount:           decimal.RequireFromString("-100.00"),
		Posted:           true,
		IsAdjustment:     true,
		AdjustmentType:   &reversal,
	}

	// The posted adjustment row does not make January "posted".
	err := EnsureStrategyPreconditions([]domain.ScheduleEntry{adjustment}, domain.StrategyNone, nil, months)
	assert.NoError(t, err)
}

func TestEnsureEntryPostable(t *testing.T) {
	assert.NoError(t, EnsureEntryPostable(entry(1, month(2024, time.January), false)))
	assert.ErrorIs(t, EnsureEntryPostable(entry(1, month(2024, time.January), true)), domain.ErrAlreadyPosted)
}
