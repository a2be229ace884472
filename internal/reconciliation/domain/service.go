package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type RunRequest struct {
	Scope           string
	AsOf            time.Time
	ExternalBalance decimal.Decimal
}

type ListRunsRequest struct {
	PageToken string
	PageSize  int32
	Scope     string
}

type ListRunsResponse struct {
	pagination.PageInfo
	Runs []ReconciliationRun `json:"runs"`
}

type Service interface {
	Run(context.Context, RunRequest) (ReconciliationRun, error)
	ListRuns(context.Context, ListRunsRequest) (ListRunsResponse, error)
	// SnapshotDeferred records the software-side deferred balance as a
	// run with a zero difference, a point-in-time baseline operators can
	// tie out against the external ledger after the fact.
	SnapshotDeferred(context.Context) (ReconciliationRun, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidScope        = errors.New("invalid_scope")
	ErrInvalidAsOf         = errors.New("invalid_as_of")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)
