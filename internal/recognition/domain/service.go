package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type GenerateScheduleRequest struct {
	ContractID string
}

type ListScheduleRequest struct {
	ContractID   string
	Posted       *bool
	IsAdjustment *bool
}

type ListScheduleResponse struct {
	Entries []ScheduleEntry `json:"entries"`
}

// AdjustmentRequest is a financial contract edit: a new amount and/or
// a new start date and term, applied under one strategy.
type AdjustmentRequest struct {
	ContractID   string
	Amount       decimal.Decimal
	StartDate    time.Time
	TermMonths   int
	Strategy     string
	CatchUpMonth *time.Time
	Reason       string
}

// MonthChange summarizes one month of an adjustment preview.
type MonthChange struct {
	Month      time.Time       `json:"month"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	Adjustment decimal.Decimal `json:"adjustment"`
	Reversed   bool            `json:"reversed,omitempty"`
}

type AdjustmentPreview struct {
	Strategy    AdjustmentStrategy `json:"strategy"`
	Adjustments []ScheduleEntry    `json:"adjustments"`
	NewEntries  []ScheduleEntry    `json:"new_entries"`
	DeleteCount int                `json:"delete_count"`
	Months      []MonthChange      `json:"months"`
}

type AdjustmentResult struct {
	Strategy      AdjustmentStrategy `json:"strategy"`
	Adjustments   []ScheduleEntry    `json:"adjustments"`
	NewEntries    []ScheduleEntry    `json:"new_entries"`
	DeletedCount  int64              `json:"deleted_count"`
	NeedsReview   int                `json:"needs_review_count"`
}

type MarkPostedRequest struct {
	EntryID  string
	PostedAt *time.Time
}

type MonthlyRecognitionRequest struct {
	ContractID string
}

// MonthlyAmount is the effective recognition of one month: base entry
// plus any adjustment entries, split by posted state.
type MonthlyAmount struct {
	Month     time.Time       `json:"month"`
	Posted    decimal.Decimal `json:"posted"`
	Scheduled decimal.Decimal `json:"scheduled"`
}

type MonthlyRecognitionResponse struct {
	ContractID string          `json:"contract_id"`
	Months     []MonthlyAmount `json:"months"`
	Total      decimal.Decimal `json:"total"`
}

type Service interface {
	GenerateSchedule(context.Context, GenerateScheduleRequest) (ListScheduleResponse, error)
	ListSchedule(context.Context, ListScheduleRequest) (ListScheduleResponse, error)
	PreviewAdjustment(context.Context, AdjustmentRequest) (AdjustmentPreview, error)
	ApplyAdjustment(context.Context, AdjustmentRequest) (AdjustmentResult, error)
	MarkPosted(context.Context, MarkPostedRequest) (ScheduleEntry, error)
	MonthlyRecognition(context.Context, MonthlyRecognitionRequest) (MonthlyRecognitionResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrContractNotFound    = errors.New("contract_not_found")
	ErrEntryNotFound       = errors.New("entry_not_found")
	ErrScheduleExists      = errors.New("schedule_exists")
	ErrContractNotEditable = errors.New("contract_not_editable")
	ErrContractLocked      = errors.New("contract_locked")
	ErrInvalidStrategy     = errors.New("invalid_strategy")
	ErrAlreadyPosted       = errors.New("entry_already_posted")

	// Calculation preconditions. These surface straight to the caller:
	// they always mean bad input, never a transient fault.
	ErrInvalidTerm             = errors.New("invalid_term")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrPostedScheduleExists    = errors.New("posted_schedule_exists")
	ErrNoUnpostedMonths        = errors.New("no_unposted_months")
	ErrMissingCatchUpMonth     = errors.New("missing_catch_up_month")
	ErrCatchUpMonthNotUnposted = errors.New("catch_up_month_not_unposted")
)
