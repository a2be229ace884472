package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/ledgerloop/revrec/internal/audit/domain"
	auditrepo "github.com/ledgerloop/revrec/internal/audit/repository"
	auditservice "github.com/ledgerloop/revrec/internal/audit/service"
	"github.com/ledgerloop/revrec/internal/clock"
	"github.com/ledgerloop/revrec/internal/config"
	contractdomain "github.com/ledgerloop/revrec/internal/contract/domain"
	contractrepo "github.com/ledgerloop/revrec/internal/contract/repository"
	contractservice "github.com/ledgerloop/revrec/internal/contract/service"
	"github.com/ledgerloop/revrec/internal/contractlock"
	"github.com/ledgerloop/revrec/internal/posting"
	postingservice "github.com/ledgerloop/revrec/internal/posting/service"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	recognitionrepo "github.com/ledgerloop/revrec/internal/recognition/repository"
	recognitionservice "github.com/ledgerloop/revrec/internal/recognition/service"
	reconciliationdomain "github.com/ledgerloop/revrec/internal/reconciliation/domain"
	reconciliationrepo "github.com/ledgerloop/revrec/internal/reconciliation/repository"
	reconciliationservice "github.com/ledgerloop/revrec/internal/reconciliation/service"
	"github.com/ledgerloop/revrec/internal/server"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env runs the whole stack against an in-memory database and a fake
// QuickBooks endpoint, exercising the same wiring the binary uses.
type env struct {
	db     *gorm.DB
	api    *httptest.Server
	ledger *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&contractdomain.Contract{},
		&recognitiondomain.ScheduleEntry{},
		&reconciliationdomain.ReconciliationRun{},
		&auditdomain.AuditLog{},
	))

	ledger := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/journalentry"):
			fmt.Fprint(w, `{"JournalEntry":{"Id":"QB-77"}}`)
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/query"):
			fmt.Fprint(w, `{"QueryResponse":{"Account":[{"Id":"77","Name":"Deferred Revenue","AcctNum":"2300","AccountType":"Liability"}]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ledger.Close)

	cfg := config.Config{
		DefaultOrgID: 1,
		QuickBooks: config.ProviderConfig{
			BaseURL:     ledger.URL,
			AccessToken: "test-token",
			CompanyID:   "realm-1",
		},
	}

	log := zap.NewNop()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, time.July, 15, 10, 0, 0, 0, time.UTC))

	contractsRepo := contractrepo.Provide()
	entriesRepo := recognitionrepo.Provide()
	policy := config.NewStaticPolicyHolder(config.DefaultRecognitionPolicy())

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Repo: auditrepo.Provide(),
	})
	contractSvc := contractservice.New(contractservice.Params{
		DB: db, Log: log, GenID: node, Repo: contractsRepo, Audit: auditSvc,
	})
	recognitionSvc := recognitionservice.New(recognitionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: entriesRepo, Contracts: contractsRepo,
		Lock:  contractlock.NewGuard(config.Config{}, log),
		Audit: auditSvc,
	})
	reconciliationSvc := reconciliationservice.New(reconciliationservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Policy: policy,
		Repo: reconciliationrepo.Provide(), Contracts: contractsRepo,
		Entries: entriesRepo, Audit: auditSvc,
	})
	postingSvc := postingservice.New(postingservice.Params{
		DB: db, Log: log, Cfg: cfg, Policy: policy,
		Registry: posting.NewRegistry(), Entries: entriesRepo, Audit: auditSvc,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())
	srv := server.NewServer(server.ServerParams{
		Gin: engine, Cfg: cfg, Log: log,
		ContractSvc:       contractSvc,
		RecognitionSvc:    recognitionSvc,
		ReconciliationSvc: reconciliationSvc,
		PostingSvc:        postingSvc,
	})
	srv.RegisterAPIRoutes()

	api := httptest.NewServer(engine)
	t.Cleanup(api.Close)

	return &env{db: db, api: api, ledger: ledger}
}

func (e *env) do(t *testing.T, method, path, orgID string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.api.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if orgID != "" {
		req.Header.Set("X-Org-ID", orgID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeInto(t *testing.T, raw []byte, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, out))
}

type contractEnvelope struct {
	Data     contractdomain.Contract          `json:"data"`
	Schedule []recognitiondomain.ScheduleEntry `json:"schedule"`
}

func TestContractLifecycle(t *testing.T) {
	e := newEnv(t)

	status, raw := e.do(t, http.MethodPost, "/v1/contracts", "1", map[string]any{
		"contract_ref": "CTR-2025-001",
		"description":  "annual subscription",
		"amount":       "12000.00",
		"start_date":   "2025-01-01",
		"term_months":  12,
	})
	require.Equal(t, http.StatusOK, status, string(raw))

	var created contractEnvelope
	decodeInto(t, raw, &created)
	contractID := created.Data.ID.String()
	require.Len(t, created.Schedule, 12)
	for _, entry := range created.Schedule {
		assert.True(t, entry.Amount.Equal(decimal.RequireFromString("1000")), entry.Amount.String())
	}

	sort.Slice(created.Schedule, func(i, j int) bool {
		return created.Schedule[i].RecognitionMonth.Before(created.Schedule[j].RecognitionMonth)
	})
	for _, entry := range created.Schedule[:3] {
		status, raw := e.do(t, http.MethodPost, "/v1/schedule-entries/"+entry.ID.String()+"/post", "1", nil)
		require.Equal(t, http.StatusOK, status, string(raw))
	}

	// Mid-term upsell: the posted months get a catch-up delta and the
	// open months are regenerated at the new run rate.
	status, raw = e.do(t, http.MethodPost, "/v1/contracts/"+contractID+"/adjustments", "1", map[string]any{
		"amount":   "18000.00",
		"strategy": "retroactive",
		"reason":   "upsell",
	})
	require.Equal(t, http.StatusOK, status, string(raw))

	var adjusted struct {
		Data recognitiondomain.AdjustmentResult `json:"data"`
	}
	decodeInto(t, raw, &adjusted)
	assert.Len(t, adjusted.Data.Adjustments, 3)
	for _, adj := range adjusted.Data.Adjustments {
		assert.True(t, adj.Amount.Equal(decimal.RequireFromString("500")), adj.Amount.String())
	}
	assert.Len(t, adjusted.Data.NewEntries, 9)
	assert.EqualValues(t, 9, adjusted.Data.DeletedCount)

	status, raw = e.do(t, http.MethodGet, "/v1/contracts/"+contractID+"/recognition", "1", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var recognition struct {
		Data recognitiondomain.MonthlyRecognitionResponse `json:"data"`
	}
	decodeInto(t, raw, &recognition)
	assert.True(t, recognition.Data.Total.Equal(decimal.RequireFromString("18000")), recognition.Data.Total.String())
	assert.Len(t, recognition.Data.Months, 12)
}

func TestExportAndReconciliation(t *testing.T) {
	e := newEnv(t)

	status, raw := e.do(t, http.MethodPost, "/v1/contracts", "1", map[string]any{
		"contract_ref": "CTR-2025-002",
		"amount":       "12000.00",
		"start_date":   "2025-01-01",
		"term_months":  12,
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	var created contractEnvelope
	decodeInto(t, raw, &created)
	contractID := created.Data.ID.String()

	sort.Slice(created.Schedule, func(i, j int) bool {
		return created.Schedule[i].RecognitionMonth.Before(created.Schedule[j].RecognitionMonth)
	})
	for _, entry := range created.Schedule[:3] {
		status, raw := e.do(t, http.MethodPost, "/v1/schedule-entries/"+entry.ID.String()+"/post", "1", nil)
		require.Equal(t, http.StatusOK, status, string(raw))
	}

	// Export the January entry to the fake QuickBooks endpoint.
	entryID := created.Schedule[0].ID.String()
	status, raw = e.do(t, http.MethodPost, "/v1/schedule-entries/"+entryID+"/export", "1", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var exported struct {
		Data struct {
			Provider        string `json:"provider"`
			ExternalRef     string `json:"external_ref"`
			AlreadyExported bool   `json:"already_exported"`
		} `json:"data"`
	}
	decodeInto(t, raw, &exported)
	assert.Equal(t, "quickbooks", exported.Data.Provider)
	assert.Equal(t, "QB-77", exported.Data.ExternalRef)
	assert.False(t, exported.Data.AlreadyExported)

	status, raw = e.do(t, http.MethodPost, "/v1/schedule-entries/"+entryID+"/export", "1", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	decodeInto(t, raw, &exported)
	assert.True(t, exported.Data.AlreadyExported)
	assert.Equal(t, "QB-77", exported.Data.ExternalRef)

	// Unposted entries stay out of the ledger.
	status, raw = e.do(t, http.MethodPost, "/v1/schedule-entries/"+created.Schedule[5].ID.String()+"/export", "1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status, string(raw))

	status, raw = e.do(t, http.MethodGet, "/v1/ledger-accounts?provider=quickbooks", "1", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var accounts struct {
		Data struct {
			Provider string `json:"provider"`
			Accounts []struct {
				Code string `json:"code"`
				Name string `json:"name"`
			} `json:"accounts"`
		} `json:"data"`
	}
	decodeInto(t, raw, &accounts)
	require.Len(t, accounts.Data.Accounts, 1)
	assert.Equal(t, "2300", accounts.Data.Accounts[0].Code)

	// Opening balance must be confirmed before the contract counts
	// toward the deferred balance.
	initialized := true
	status, raw = e.do(t, http.MethodPatch, "/v1/contracts/"+contractID, "1", map[string]any{
		"opening_balance_initialized": initialized,
	})
	require.Equal(t, http.StatusOK, status, string(raw))

	// 12000 contracted minus 3000 posted through July.
	status, raw = e.do(t, http.MethodPost, "/v1/reconciliation/runs", "1", map[string]any{
		"scope":            "deferred_balance",
		"external_balance": "9000.00",
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	var run struct {
		Data reconciliationdomain.ReconciliationRun `json:"data"`
	}
	decodeInto(t, raw, &run)
	assert.True(t, run.Data.SoftwareBalance.Equal(decimal.RequireFromString("9000")), run.Data.SoftwareBalance.String())
	assert.True(t, run.Data.Matches)
	assert.Equal(t, reconciliationdomain.ScopeDeferredBalance, run.Data.Scope)

	status, raw = e.do(t, http.MethodGet, "/v1/reconciliation/runs", "1", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var runs struct {
		Data reconciliationdomain.ListRunsResponse `json:"data"`
	}
	decodeInto(t, raw, &runs)
	assert.Len(t, runs.Data.Runs, 1)
}

func TestOrganizationIsolation(t *testing.T) {
	e := newEnv(t)

	status, raw := e.do(t, http.MethodPost, "/v1/contracts", "7", map[string]any{
		"contract_ref": "CTR-ORG7",
		"amount":       "6000.00",
		"start_date":   "2025-01-01",
		"term_months":  6,
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	var created contractEnvelope
	decodeInto(t, raw, &created)

	status, _ = e.do(t, http.MethodGet, "/v1/contracts/"+created.Data.ID.String(), "7", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, http.MethodGet, "/v1/contracts/"+created.Data.ID.String(), "9", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.do(t, http.MethodGet, "/v1/contracts/"+created.Data.ID.String(), "not-a-snowflake", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
