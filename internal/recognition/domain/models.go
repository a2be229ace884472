package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AdjustmentStrategy selects how a contract edit is applied to an
// existing schedule.
type AdjustmentStrategy string

const (
	StrategyRetroactive AdjustmentStrategy = "retroactive"
	StrategyCatchUp     AdjustmentStrategy = "catch_up"
	StrategyProspective AdjustmentStrategy = "prospective"
	StrategyNone        AdjustmentStrategy = "none"
)

func ParseStrategy(value string) (AdjustmentStrategy, error) {
	switch AdjustmentStrategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyRetroactive:
		return StrategyRetroactive, nil
	case StrategyCatchUp:
		return StrategyCatchUp, nil
	case StrategyProspective:
		return StrategyProspective, nil
	case StrategyNone:
		return StrategyNone, nil
	default:
		return "", ErrInvalidStrategy
	}
}

// AdjustmentType classifies an adjustment entry.
type AdjustmentType string

const (
	AdjustmentRetroactive AdjustmentType = "retroactive"
	AdjustmentCatchUp     AdjustmentType = "catch_up"
	AdjustmentProspective AdjustmentType = "prospective"
	AdjustmentReversal    AdjustmentType = "reversal"
)

// ScheduleEntry is one recognition period of a contract. Posted entries
// are immutable history: corrections land as new is_adjustment rows
// that reference the original through AdjustsScheduleID.
type ScheduleEntry struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	ContractID        snowflake.ID    `gorm:"not null;index" json:"contract_id"`
	RecognitionMonth  time.Time       `gorm:"not null" json:"recognition_month"`
	Amount            decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Posted            bool            `gorm:"not null;default:false" json:"posted"`
	PostedAt          *time.Time      `json:"posted_at,omitempty"`
	IsAdjustment      bool            `gorm:"not null;default:false" json:"is_adjustment"`
	AdjustmentType    *AdjustmentType `json:"adjustment_type,omitempty"`
	AdjustsScheduleID *snowflake.ID   `json:"adjusts_schedule_id,omitempty"`
	Reason            *string         `json:"reason,omitempty"`
	NeedsReview       bool            `gorm:"not null;default:false" json:"needs_review"`
	ExternalRef       *string         `json:"external_ref,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ScheduleEntry) TableName() string {
	return "schedule_entries"
}

// MonthKey normalizes a date to its calendar-month key: the first day
// of the month, midnight UTC. All schedule arithmetic keys on this.
func MonthKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether two dates fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
