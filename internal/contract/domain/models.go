package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusActive, ContractStatusCompleted, ContractStatusCancelled:
		return true
	default:
		return false
	}
}

// Contract is a fixed-amount agreement recognized straight-line over
// TermMonths starting at StartDate's month. Financial fields change
// only through the recognition service's adjustment path; everything
// else is editable in place.
type Contract struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	ContractRef string          `gorm:"not null" json:"contract_ref"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	StartDate   time.Time       `gorm:"not null" json:"start_date"`
	EndDate     time.Time       `gorm:"not null" json:"end_date"`
	TermMonths  int             `gorm:"not null" json:"term_months"`
	Status      ContractStatus  `gorm:"not null;default:'active'" json:"status"`
	// OpeningBalanceInitialized marks contracts whose deferred balance
	// is part of the reconciliation baseline. Contracts migrated in
	// without an opening balance are skipped by reconciliation and
	// reported as such.
	OpeningBalanceInitialized bool              `gorm:"not null;default:false" json:"opening_balance_initialized"`
	Metadata                  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt                 time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                 time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

// TermEnd returns the last day of the final recognition month.
func TermEnd(start time.Time, termMonths int) time.Time {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, termMonths, 0).AddDate(0, 0, -1)
}
