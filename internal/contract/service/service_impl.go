package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerloop/revrec/internal/audit/domain"
	"github.com/ledgerloop/revrec/internal/contract/domain"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	"github.com/ledgerloop/revrec/pkg/db"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Audit auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	audit auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("contract.service"),
		genID: p.GenID,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateContractRequest) (domain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Contract{}, domain.ErrInvalidOrganization
	}

	ref := strings.TrimSpace(req.ContractRef)
	if ref == "" {
		return domain.Contract{}, domain.ErrInvalidContractRef
	}
	if !req.Amount.IsPositive() || req.Amount.Exponent() < -2 {
		return domain.Contract{}, domain.ErrInvalidAmount
	}
	if req.StartDate.IsZero() {
		return domain.Contract{}, domain.ErrInvalidStartDate
	}
	if req.TermMonths < 1 {
		return domain.Contract{}, domain.ErrInvalidTermMonths
	}

	existing, err := s.repo.FindByRef(ctx, s.db, orgID, ref)
	if err != nil {
		return domain.Contract{}, err
	}
	if existing != nil {
		return domain.Contract{}, domain.ErrContractRefTaken
	}

	metadata := datatypes.JSONMap{}
	for key, value := range req.Metadata {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	now := time.Now().UTC()
	start := req.StartDate.UTC()
	contract := domain.Contract{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ContractRef: ref,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		StartDate:   start,
		EndDate:     domain.TermEnd(start, req.TermMonths),
		TermMonths:  req.TermMonths,
		Status:      domain.ContractStatusActive,
		// Contracts created through the API carry their full history,
		// so their deferred balance is reconcilable from day one.
		OpeningBalanceInitialized: true,
		Metadata:                  metadata,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := s.repo.Insert(ctx, s.db, &contract); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Contract{}, domain.ErrContractRefTaken
		}
		return domain.Contract{}, err
	}

	s.auditContract(ctx, orgID, "contract.created", contract.ID, map[string]any{
		"contract_ref": contract.ContractRef,
		"amount":       contract.Amount.String(),
		"term_months":  contract.TermMonths,
	})

	return contract, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetContractRequest) (domain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Contract{}, domain.ErrInvalidOrganization
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Contract{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if item == nil {
		return domain.Contract{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListContractRequest) (domain.ListContractResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListContractResponse{}, domain.ErrInvalidOrganization
	}

	status := domain.ContractStatus(strings.TrimSpace(req.Status))
	if status != "" && !status.Valid() {
		return domain.ListContractResponse{}, domain.ErrInvalidStatus
	}

	filter := domain.ListContractFilter{
		Status:      status,
		ContractRef: strings.TrimSpace(req.ContractRef),
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListContractResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(contract *domain.Contract) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        contract.ID.String(),
			CreatedAt: contract.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	contracts := make([]domain.Contract, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		contracts = append(contracts, *item)
	}

	resp := domain.ListContractResponse{Contracts: contracts}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateContractRequest) (domain.Contract, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Contract{}, domain.ErrInvalidOrganization
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Contract{}, err
	}

	contract, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if contract == nil {
		return domain.Contract{}, domain.ErrNotFound
	}

	changed := []string{}
	if req.Description != nil {
		contract.Description = strings.TrimSpace(*req.Description)
		changed = append(changed, "description")
	}
	if req.Status != nil {
		next := domain.ContractStatus(strings.TrimSpace(*req.Status))
		if !next.Valid() {
			return domain.Contract{}, domain.ErrInvalidStatus
		}
		if next != contract.Status {
			if !allowedTransition(contract.Status, next) {
				return domain.Contract{}, domain.ErrStatusTransition
			}
			contract.Status = next
			changed = append(changed, "status")
		}
	}
	if req.Metadata != nil {
		metadata := datatypes.JSONMap{}
		for key, value := range req.Metadata {
			if key == "" {
				continue
			}
			metadata[key] = value
		}
		contract.Metadata = metadata
		changed = append(changed, "metadata")
	}
	if req.OpeningBalanceInitialized != nil {
		contract.OpeningBalanceInitialized = *req.OpeningBalanceInitialized
		changed = append(changed, "opening_balance_initialized")
	}

	if len(changed) == 0 {
		return *contract, nil
	}

	contract.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, contract); err != nil {
		return domain.Contract{}, err
	}

	s.auditContract(ctx, orgID, "contract.updated", contract.ID, map[string]any{
		"fields": strings.Join(changed, ","),
	})

	return *contract, nil
}

// Completed and cancelled are terminal except completed contracts can
// still be voided.
func allowedTransition(from, to domain.ContractStatus) bool {
	switch from {
	case domain.ContractStatusActive:
		return to == domain.ContractStatusCompleted || to == domain.ContractStatusCancelled
	case domain.ContractStatusCompleted:
		return to == domain.ContractStatusCancelled
	default:
		return false
	}
}

func (s *Service) auditContract(ctx context.Context, orgID snowflake.ID, action string, contractID snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	targetID := contractID.String()
	if err := s.audit.AuditLog(ctx, &orgID, "", nil, action, "contract", &targetID, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
