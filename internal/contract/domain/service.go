package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type CreateContractRequest struct {
	ContractRef string
	Description string
	Amount      decimal.Decimal
	StartDate   time.Time
	TermMonths  int
	Metadata    map[string]any
}

type GetContractRequest struct {
	ID string
}

type ListContractRequest struct {
	PageToken   string
	PageSize    int32
	Status      string
	ContractRef string
}

type ListContractResponse struct {
	pagination.PageInfo
	Contracts []Contract `json:"contracts"`
}

// UpdateContractRequest covers the non-financial fields. Amount, start
// and term move through the recognition adjustment path instead.
type UpdateContractRequest struct {
	ID                        string
	Description               *string
	Status                    *string
	Metadata                  map[string]any
	OpeningBalanceInitialized *bool
}

type Service interface {
	Create(context.Context, CreateContractRequest) (Contract, error)
	GetByID(context.Context, GetContractRequest) (Contract, error)
	List(context.Context, ListContractRequest) (ListContractResponse, error)
	Update(context.Context, UpdateContractRequest) (Contract, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidContractRef  = errors.New("invalid_contract_ref")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidStartDate    = errors.New("invalid_start_date")
	ErrInvalidTermMonths   = errors.New("invalid_term_months")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrContractRefTaken    = errors.New("contract_ref_taken")
	ErrStatusTransition    = errors.New("invalid_status_transition")
)
