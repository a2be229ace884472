package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRunsFilter struct {
	Scope RunScope
}

type Repository interface {
	InsertRun(ctx context.Context, db *gorm.DB, run *ReconciliationRun) error
	ListRuns(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListRunsFilter, page pagination.Pagination) ([]*ReconciliationRun, error)
}
