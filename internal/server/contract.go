package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type createContractRequest struct {
	ContractRef string          `json:"contract_ref"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	StartDate   string          `json:"start_date"`
	TermMonths  int             `json:"term_months"`
	Metadata    map[string]any  `json:"metadata"`
}

func (s *Server) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil || startDate == nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}

	contract, err := s.contractSvc.Create(c.Request.Context(), contractdomain.CreateContractRequest{
		ContractRef: strings.TrimSpace(req.ContractRef),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		StartDate:   *startDate,
		TermMonths:  req.TermMonths,
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	schedule, err := s.recognitionSvc.GenerateSchedule(c.Request.Context(), recognitiondomain.GenerateScheduleRequest{
		ContractID: contract.ID.String(),
	})
	if err != nil {
		// Contract row exists; the schedule can be regenerated through
		// POST /contracts/:id/schedule once the cause is resolved.
		s.log.Error("schedule generation after create failed",
			zap.String("contract_id", contract.ID.String()),
			zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": contract, "schedule": schedule.Entries})
}

func (s *Server) ListContracts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status      string `form:"status"`
		ContractRef string `form:"contract_ref"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contractSvc.List(c.Request.Context(), contractdomain.ListContractRequest{
		PageToken:   query.PageToken,
		PageSize:    int32(query.PageSize),
		Status:      strings.TrimSpace(query.Status),
		ContractRef: strings.TrimSpace(query.ContractRef),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContract(c *gin.Context) {
	resp, err := s.contractSvc.GetByID(c.Request.Context(), contractdomain.GetContractRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateContractRequest struct {
	Description               *string        `json:"description"`
	Status                    *string        `json:"status"`
	Metadata                  map[string]any `json:"metadata"`
	OpeningBalanceInitialized *bool          `json:"opening_balance_initialized"`
}

func (s *Server) UpdateContract(c *gin.Context) {
	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contractSvc.Update(c.Request.Context(), contractdomain.UpdateContractRequest{
		ID:                        strings.TrimSpace(c.Param("id")),
		Description:               req.Description,
		Status:                    req.Status,
		Metadata:                  req.Metadata,
		OpeningBalanceInitialized: req.OpeningBalanceInitialized,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
