package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/ledgerloop/revrec/internal/audit/domain"
	auditrepo "github.com/ledgerloop/revrec/internal/audit/repository"
	auditservice "github.com/ledgerloop/revrec/internal/audit/service"
	"github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/internal/contract/repository"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testOrgID int64 = 42

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Contract{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Audit: audit,
	})
	return svc, db
}

func orgContext() context.Context {
	return orgcontext.WithOrgID(context.Background(), testOrgID)
}

func TestCreateContract(t *testing.T) {
	svc, db := newTestService(t)

	contract, err := svc.Create(orgContext(), domain.CreateContractRequest{
		ContractRef: "C-1001",
		Description: "annual license",
		Amount:      decimal.RequireFromString("12000.00"),
		StartDate:   time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
		TermMonths:  12,
	})
	require.NoError(t, err)
	require.NotZero(t, contract.ID)
	require.Equal(t, domain.ContractStatusActive, contract.Status)
	require.True(t, contract.OpeningBalanceInitialized)
	require.Equal(t, 12, contract.TermMonths)
	require.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), contract.EndDate)

	var stored domain.Contract
	require.NoError(t, db.First(&stored, "id = ?", contract.ID).Error)
	require.True(t, stored.Amount.Equal(decimal.RequireFromString("12000.00")), "got %s", stored.Amount)

	var auditRow auditdomain.AuditLog
	require.NoError(t, db.First(&auditRow, "action = ?", "contract.created").Error)
	require.Equal(t, "C-1001", auditRow.Metadata["contract_ref"])
}

func TestCreateContractValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := orgContext()

	base := domain.CreateContractRequest{
		ContractRef: "C-2001",
		Amount:      decimal.RequireFromString("1200.00"),
		StartDate:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		TermMonths:  6,
	}

	req := base
	req.ContractRef = "   "
	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidContractRef)

	req = base
	req.Amount = decimal.Zero
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	req = base
	req.Amount = decimal.RequireFromString("100.005")
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	req = base
	req.TermMonths = 0
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidTermMonths)

	req = base
	req.StartDate = time.Time{}
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidStartDate)

	_, err = svc.Create(context.Background(), base)
	require.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestCreateContractDuplicateRef(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := orgContext()

	req := domain.CreateContractRequest{
		ContractRef: "C-3001",
		Amount:      decimal.RequireFromString("600.00"),
		StartDate:   time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
		TermMonths:  3,
	}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrContractRefTaken)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(orgContext(), domain.GetContractRequest{ID: "123456789"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(orgContext(), domain.GetContractRequest{ID: "not-a-snowflake"})
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListContractsPaginates(t *testing.T) {
	svc, db := newTestService(t)
	ctx := orgContext()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	repo := repository.Provide()

	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		created := base.Add(time.Duration(i) * time.Hour)
		contract := domain.Contract{
			ID:          node.Generate(),
			OrgID:       snowflake.ID(testOrgID),
			ContractRef: "C-40" + string(rune('1'+i)),
			Amount:      decimal.RequireFromString("100.00"),
			StartDate:   base,
			EndDate:     domain.TermEnd(base, 1),
			TermMonths:  1,
			Status:      domain.ContractStatusActive,
			Metadata:    datatypes.JSONMap{},
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		require.NoError(t, repo.Insert(ctx, db, &contract))
	}

	first, err := svc.List(ctx, domain.ListContractRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Contracts, 2)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)
	require.Equal(t, "C-403", first.Contracts[0].ContractRef)

	second, err := svc.List(ctx, domain.ListContractRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Contracts, 1)
	require.False(t, second.HasMore)
	require.Equal(t, "C-401", second.Contracts[0].ContractRef)
}

func TestListContractsRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(orgContext(), domain.ListContractRequest{Status: "archived"})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateContractStatusTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := orgContext()

	contract, err := svc.Create(ctx, domain.CreateContractRequest{
		ContractRef: "C-5001",
		Amount:      decimal.RequireFromString("900.00"),
		StartDate:   time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		TermMonths:  9,
	})
	require.NoError(t, err)

	completed := string(domain.ContractStatusCompleted)
	updated, err := svc.Update(ctx, domain.UpdateContractRequest{
		ID:     contract.ID.String(),
		Status: &completed,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ContractStatusCompleted, updated.Status)

	active := string(domain.ContractStatusActive)
	_, err = svc.Update(ctx, domain.UpdateContractRequest{
		ID:     contract.ID.String(),
		Status: &active,
	})
	require.ErrorIs(t, err, domain.ErrStatusTransition)

	bogus := "archived"
	_, err = svc.Update(ctx, domain.UpdateContractRequest{
		ID:     contract.ID.String(),
		Status: &bogus,
	})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateContractNonFinancialFields(t *testing.T) {
	svc, db := newTestService(t)
	ctx := orgContext()

	contract, err := svc.Create(ctx, domain.CreateContractRequest{
		ContractRef: "C-6001",
		Amount:      decimal.RequireFromString("300.00"),
		StartDate:   time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC),
		TermMonths:  3,
	})
	require.NoError(t, err)

	desc := "renewed support plan"
	initialized := false
	updated, err := svc.Update(ctx, domain.UpdateContractRequest{
		ID:                        contract.ID.String(),
		Description:               &desc,
		OpeningBalanceInitialized: &initialized,
		Metadata:                  map[string]any{"source": "migration"},
	})
	require.NoError(t, err)
	require.Equal(t, desc, updated.Description)
	require.False(t, updated.OpeningBalanceInitialized)

	var stored domain.Contract
	require.NoError(t, db.First(&stored, "id = ?", contract.ID).Error)
	require.Equal(t, desc, stored.Description)
	require.False(t, stored.OpeningBalanceInitialized)
	require.Equal(t, "migration", stored.Metadata["source"])

	var auditRow auditdomain.AuditLog
	require.NoError(t, db.First(&auditRow, "action = ?", "contract.updated").Error)
	require.Contains(t, auditRow.Metadata["fields"], "description")
}
