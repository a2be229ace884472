package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reconciliationdomain "github.com/ledgerloop/revrec/internal/reconciliation/domain"
	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type runReconciliationRequest struct {
	Scope           string          `json:"scope"`
	AsOf            string          `json:"as_of"`
	ExternalBalance decimal.Decimal `json:"external_balance"`
}

func (s *Server) RunReconciliation(c *gin.Context) {
	var req runReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	asOf, err := parseOptionalTime(req.AsOf, false)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}

	run := reconciliationdomain.RunRequest{
		Scope:           strings.TrimSpace(req.Scope),
		ExternalBalance: req.ExternalBalance,
	}
	if asOf != nil {
		run.AsOf = *asOf
	}

	resp, err := s.reconciliationSvc.Run(c.Request.Context(), run)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReconciliationRuns(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Scope string `form:"scope"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reconciliationSvc.ListRuns(c.Request.Context(), reconciliationdomain.ListRunsRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Scope:     strings.TrimSpace(query.Scope),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
