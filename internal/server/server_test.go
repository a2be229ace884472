package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ledgerloop/revrec/internal/config"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRecognitionService struct {
	generateCalls int
	lastOrgID     int64
	generateErr   error
	markPostedErr error
}

func (f *fakeRecognitionService) GenerateSchedule(ctx context.Context, req recognitiondomain.GenerateScheduleRequest) (recognitiondomain.ListScheduleResponse, error) {
	f.generateCalls++
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
		f.lastOrgID = int64(orgID)
	}
	if f.generateErr != nil {
		return recognitiondomain.ListScheduleResponse{}, f.generateErr
	}
	return recognitiondomain.ListScheduleResponse{}, nil
}

func (f *fakeRecognitionService) ListSchedule(ctx context.Context, req recognitiondomain.ListScheduleRequest) (recognitiondomain.ListScheduleResponse, error) {
	return recognitiondomain.ListScheduleResponse{}, nil
}

func (f *fakeRecognitionService) PreviewAdjustment(ctx context.Context, req recognitiondomain.AdjustmentRequest) (recognitiondomain.AdjustmentPreview, error) {
	return recognitiondomain.AdjustmentPreview{Strategy: recognitiondomain.AdjustmentStrategy(req.Strategy)}, nil
}

func (f *fakeRecognitionService) ApplyAdjustment(ctx context.Context, req recognitiondomain.AdjustmentRequest) (recognitiondomain.AdjustmentResult, error) {
	return recognitiondomain.AdjustmentResult{}, nil
}

func (f *fakeRecognitionService) MarkPosted(ctx context.Context, req recognitiondomain.MarkPostedRequest) (recognitiondomain.ScheduleEntry, error) {
	if f.markPostedErr != nil {
		return recognitiondomain.ScheduleEntry{}, f.markPostedErr
	}
	return recognitiondomain.ScheduleEntry{Posted: true, Amount: decimal.RequireFromString("1500.00")}, nil
}

func (f *fakeRecognitionService) MonthlyRecognition(ctx context.Context, req recognitiondomain.MonthlyRecognitionRequest) (recognitiondomain.MonthlyRecognitionResponse, error) {
	return recognitiondomain.MonthlyRecognitionResponse{ContractID: req.ContractID}, nil
}

func newTestServer(recognition *fakeRecognitionService) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	srv := &Server{
		cfg:            config.Config{DefaultOrgID: 1},
		log:            zap.NewNop(),
		recognitionSvc: recognition,
	}
	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv.engine = router
	return srv, router
}

func TestOrgContextRejectsBadHeader(t *testing.T) {
	recognition := &fakeRecognitionService{}
	srv, router := newTestServer(recognition)
	router.POST("/v1/contracts/:id/schedule", srv.OrgContext(), srv.GenerateSchedule)

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/42/schedule", nil)
	req.Header.Set(HeaderOrg, "not-a-number")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 0, recognition.generateCalls)
}

func TestOrgContextHeaderOverridesDefault(t *testing.T) {
	recognition := &fakeRecognitionService{}
	srv, router := newTestServer(recognition)
	router.POST("/v1/contracts/:id/schedule", srv.OrgContext(), srv.GenerateSchedule)

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/42/schedule", nil)
	req.Header.Set(HeaderOrg, "9001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(9001), recognition.lastOrgID)
}

func TestGenerateScheduleConflict(t *testing.T) {
	recognition := &fakeRecognitionService{generateErr: recognitiondomain.ErrScheduleExists}
	srv, router := newTestServer(recognition)
	router.POST("/v1/contracts/:id/schedule", srv.OrgContext(), srv.GenerateSchedule)

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/42/schedule", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGenerateScheduleContractNotFound(t *testing.T) {
	recognition := &fakeRecognitionService{generateErr: recognitiondomain.ErrContractNotFound}
	srv, router := newTestServer(recognition)
	router.POST("/v1/contracts/:id/schedule", srv.OrgContext(), srv.GenerateSchedule)

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/42/schedule", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestApplyAdjustmentUnprocessable(t *testing.T) {
	recognition := &fakeRecognitionService{}
	srv, router := newTestServer(recognition)
	router.POST("/v1/contracts/:id/adjustments", srv.OrgContext(), func(c *gin.Context) {
		AbortWithError(c, recognitiondomain.ErrNoUnpostedMonths)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/42/adjustments", bytes.NewBufferString(`{"strategy":"retroactive"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestAdjustmentBadCatchUpMonth(t *testing.T) {
	recognition := &fakeRecognitionService{}
	srv, router := newTestServer(recognition)
	router.POST("/v1/contracts/:id/adjustments/preview", srv.OrgContext(), srv.PreviewAdjustment)

	body := `{"strategy":"catch_up","catch_up_month":"not-a-month"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/42/adjustments/preview", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)

	var payload errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.Len(t, payload.Error.Errors, 1)
	assert.Equal(t, "catch_up_month", payload.Error.Errors[0].Field)
}

func TestMarkEntryPostedEmptyBody(t *testing.T) {
	recognition := &fakeRecognitionService{}
	srv, router := newTestServer(recognition)
	router.POST("/v1/schedule-entries/:id/post", srv.OrgContext(), srv.MarkEntryPosted)

	req := httptest.NewRequest(http.MethodPost, "/v1/schedule-entries/77/post", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
}
