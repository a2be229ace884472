package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	postingdomain "github.com/ledgerloop/revrec/internal/posting/domain"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
)

func (s *Server) GenerateSchedule(c *gin.Context) {
	resp, err := s.recognitionSvc.GenerateSchedule(c.Request.Context(), recognitiondomain.GenerateScheduleRequest{
		ContractID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSchedule(c *gin.Context) {
	var query struct {
		Posted       string `form:"posted"`
		IsAdjustment string `form:"is_adjustment"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	posted, err := parseOptionalBool(query.Posted)
	if err != nil {
		AbortWithError(c, newValidationError("posted", "invalid_posted", "invalid posted"))
		return
	}

	isAdjustment, err := parseOptionalBool(query.IsAdjustment)
	if err != nil {
		AbortWithError(c, newValidationError("is_adjustment", "invalid_is_adjustment", "invalid is_adjustment"))
		return
	}

	resp, err := s.recognitionSvc.ListSchedule(c.Request.Context(), recognitiondomain.ListScheduleRequest{
		ContractID:   strings.TrimSpace(c.Param("id")),
		Posted:       posted,
		IsAdjustment: isAdjustment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MonthlyRecognition(c *gin.Context) {
	resp, err := s.recognitionSvc.MonthlyRecognition(c.Request.Context(), recognitiondomain.MonthlyRecognitionRequest{
		ContractID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type adjustmentRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	StartDate    string          `json:"start_date"`
	TermMonths   int             `json:"term_months"`
	Strategy     string          `json:"strategy"`
	CatchUpMonth string          `json:"catch_up_month"`
	Reason       string          `json:"reason"`
}

func (s *Server) bindAdjustment(c *gin.Context) (recognitiondomain.AdjustmentRequest, bool) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return recognitiondomain.AdjustmentRequest{}, false
	}

	out := recognitiondomain.AdjustmentRequest{
		ContractID: strings.TrimSpace(c.Param("id")),
		Amount:     req.Amount,
		TermMonths: req.TermMonths,
		Strategy:   strings.ToLower(strings.TrimSpace(req.Strategy)),
		Reason:     strings.TrimSpace(req.Reason),
	}

	if trimmed := strings.TrimSpace(req.StartDate); trimmed != "" {
		startDate, err := parseOptionalTime(trimmed, false)
		if err != nil {
			AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
			return recognitiondomain.AdjustmentRequest{}, false
		}
		out.StartDate = *startDate
	}

	if trimmed := strings.TrimSpace(req.CatchUpMonth); trimmed != "" {
		month, err := parseMonth(trimmed)
		if err != nil {
			AbortWithError(c, newValidationError("catch_up_month", "invalid_catch_up_month", "invalid catch_up_month"))
			return recognitiondomain.AdjustmentRequest{}, false
		}
		out.CatchUpMonth = &month
	}

	return out, true
}

func (s *Server) PreviewAdjustment(c *gin.Context) {
	req, ok := s.bindAdjustment(c)
	if !ok {
		return
	}

	resp, err := s.recognitionSvc.PreviewAdjustment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyAdjustment(c *gin.Context) {
	req, ok := s.bindAdjustment(c)
	if !ok {
		return
	}

	resp, err := s.recognitionSvc.ApplyAdjustment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type markPostedRequest struct {
	PostedAt *time.Time `json:"posted_at"`
}

func (s *Server) MarkEntryPosted(c *gin.Context) {
	var req markPostedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.recognitionSvc.MarkPosted(c.Request.Context(), recognitiondomain.MarkPostedRequest{
		EntryID:  strings.TrimSpace(c.Param("id")),
		PostedAt: req.PostedAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type exportEntryRequest struct {
	Provider string `json:"provider"`
}

func (s *Server) ExportEntry(c *gin.Context) {
	var req exportEntryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	provider := req.Provider
	if strings.TrimSpace(provider) == "" {
		provider = c.Query("provider")
	}

	resp, err := s.postingSvc.ExportEntry(c.Request.Context(), postingdomain.ExportEntryRequest{
		EntryID:  strings.TrimSpace(c.Param("id")),
		Provider: strings.ToLower(strings.TrimSpace(provider)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLedgerAccounts(c *gin.Context) {
	resp, err := s.postingSvc.ListAccounts(c.Request.Context(), postingdomain.ListAccountsRequest{
		Provider: strings.ToLower(strings.TrimSpace(c.Query("provider"))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
