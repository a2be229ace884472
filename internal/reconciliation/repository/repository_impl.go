package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/reconciliation/domain"
	"github.com/ledgerloop/revrec/pkg/db/option"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *domain.ReconciliationRun) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reconciliation_runs (
			id, org_id, scope, as_of, software_balance, external_balance,
			difference, tolerance, matches, within_tolerance, skipped_contracts, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.OrgID,
		run.Scope,
		run.AsOf,
		run.SoftwareBalance,
		run.ExternalBalance,
		run.Difference,
		run.Tolerance,
		run.Matches,
		run.WithinTolerance,
		run.SkippedContracts,
		run.CreatedAt,
	).Error
}

func (r *repo) ListRuns(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListRunsFilter, page pagination.Pagination) ([]*domain.ReconciliationRun, error) {
	var runs []*domain.ReconciliationRun
	stmt := db.WithContext(ctx).
		Model(&domain.ReconciliationRun{}).
		Where("org_id = ?", orgID)
	if filter.Scope != "" {
		stmt = stmt.Where("scope = ?", filter.Scope)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
