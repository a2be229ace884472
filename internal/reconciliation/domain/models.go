package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type RunScope string

const (
	ScopeDeferredBalance   RunScope = "deferred_balance"
	ScopeRecognizedRevenue RunScope = "recognized_revenue"
)

func ParseScope(value string) (RunScope, error) {
	switch RunScope(value) {
	case ScopeDeferredBalance:
		return ScopeDeferredBalance, nil
	case ScopeRecognizedRevenue:
		return ScopeRecognizedRevenue, nil
	default:
		return "", ErrInvalidScope
	}
}

// ReconciliationRun records one tie-out of a software-side balance
// against an externally reported one.
type ReconciliationRun struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	Scope            RunScope        `gorm:"not null" json:"scope"`
	AsOf             time.Time       `gorm:"not null" json:"as_of"`
	SoftwareBalance  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"software_balance"`
	ExternalBalance  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"external_balance"`
	Difference       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"difference"`
	Tolerance        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"tolerance"`
	Matches          bool            `gorm:"not null" json:"matches"`
	WithinTolerance  bool            `gorm:"not null" json:"within_tolerance"`
	SkippedContracts int             `gorm:"not null;default:0" json:"skipped_contracts"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ReconciliationRun) TableName() string {
	return "reconciliation_runs"
}
