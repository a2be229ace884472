package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListContractFilter struct {
	Status      ContractStatus
	ContractRef string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Contract, error)
	FindByRef(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ref string) (*Contract, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListContractFilter, page pagination.Pagination) ([]*Contract, error)
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
	// UpdateFinancials rewrites amount, start, end and term together.
	// Only the recognition service's adjustment path calls this, inside
	// the same transaction that rewrites the schedule.
	UpdateFinancials(ctx context.Context, db *gorm.DB, contract *Contract) error
	ListForReconciliation(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*Contract, error)
	// ListOrgIDs returns every org that owns at least one contract.
	ListOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
