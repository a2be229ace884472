package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/pkg/db/option"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contracts (
			id, org_id, contract_ref, description, amount, start_date, end_date,
			term_months, status, opening_balance_initialized, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contract.ID,
		contract.OrgID,
		contract.ContractRef,
		contract.Description,
		contract.Amount,
		contract.StartDate,
		contract.EndDate,
		contract.TermMonths,
		contract.Status,
		contract.OpeningBalanceInitialized,
		contract.Metadata,
		contract.CreatedAt,
		contract.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Contract, error) {
	var contract domain.Contract
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, contract_ref, description, amount, start_date, end_date,
			term_months, status, opening_balance_initialized, metadata, created_at, updated_at
		 FROM contracts WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, nil
	}
	return &contract, nil
}

func (r *repo) FindByRef(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ref string) (*domain.Contract, error) {
	var contract domain.Contract
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, contract_ref, description, amount, start_date, end_date,
			term_months, status, opening_balance_initialized, metadata, created_at, updated_at
		 FROM contracts WHERE org_id = ? AND contract_ref = ?`,
		orgID,
		strings.TrimSpace(ref),
	).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, nil
	}
	return &contract, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListContractFilter, page pagination.Pagination) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	stmt := db.WithContext(ctx).
		Model(&domain.Contract{}).
		Where("org_id = ?", orgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ContractRef != "" {
		stmt = stmt.Where("contract_ref = ?", filter.ContractRef)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contracts SET
			description = ?, status = ?, opening_balance_initialized = ?, metadata = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		contract.Description,
		contract.Status,
		contract.OpeningBalanceInitialized,
		contract.Metadata,
		contract.UpdatedAt,
		contract.OrgID,
		contract.ID,
	).Error
}

func (r *repo) UpdateFinancials(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contracts SET
			amount = ?, start_date = ?, end_date = ?, term_months = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		contract.Amount,
		contract.StartDate,
		contract.EndDate,
		contract.TermMonths,
		contract.UpdatedAt,
		contract.OrgID,
		contract.ID,
	).Error
}

func (r *repo) ListOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Contract{}).
		Distinct("org_id").
		Order("org_id asc").
		Pluck("org_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ListForReconciliation(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	err := db.WithContext(ctx).
		Model(&domain.Contract{}).
		Where("org_id = ?", orgID).
		Order("id asc").
		Find(&contracts).Error
	if err != nil {
		return nil, err
	}
	return contracts, nil
}
