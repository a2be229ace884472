package quickbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerloop/revrec/internal/posting/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapterValidatesConfig(t *testing.T) {
	factory := NewFactory()

	_, err := factory.NewAdapter(domain.AdapterConfig{BaseURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = factory.NewAdapter(domain.AdapterConfig{
		BaseURL:     "https://example.com",
		AccessToken: "token",
		CompanyID:   "realm-1",
	})
	require.NoError(t, err)
}

func TestPostJournalEntry(t *testing.T) {
	var captured struct {
		path   string
		auth   string
		body   qboJournalEntry
		method string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.method = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"JournalEntry":{"Id":"146"}}`))
	}))
	defer server.Close()

	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		BaseURL:     server.URL,
		AccessToken: "token",
		CompanyID:   "realm-1",
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	result, err := adapter.PostJournalEntry(context.Background(), domain.JournalEntry{
		Date:      time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Reference: "1879",
		Memo:      "recognition march",
		Lines: []domain.JournalLine{
			{AccountCode: "2300", Debit: decimal.RequireFromString("1000.00"), Description: "revenue recognition 2025-03"},
			{AccountCode: "4000", Credit: decimal.RequireFromString("1000.00"), Description: "revenue recognition 2025-03"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "146", result.ExternalID)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/v3/company/realm-1/journalentry", captured.path)
	assert.Equal(t, "Bearer token", captured.auth)
	assert.Equal(t, "2025-03-01", captured.body.TxnDate)
	require.Len(t, captured.body.Line, 2)
	assert.Equal(t, "Debit", captured.body.Line[0].JournalEntryLineDetail.PostingType)
	assert.Equal(t, "2300", captured.body.Line[0].JournalEntryLineDetail.AccountRef.Value)
	assert.Equal(t, "Credit", captured.body.Line[1].JournalEntryLineDetail.PostingType)
	assert.Equal(t, "4000", captured.body.Line[1].JournalEntryLineDetail.AccountRef.Value)
	assert.True(t, captured.body.Line[0].Amount.Equal(decimal.RequireFromString("1000.00")))
}

func TestPostJournalEntryRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"Fault":{"type":"ValidationFault"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		BaseURL:     server.URL,
		AccessToken: "token",
		CompanyID:   "realm-1",
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	_, err = adapter.PostJournalEntry(context.Background(), domain.JournalEntry{
		Date: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, domain.ErrPostRejected)
}

func TestListAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/realm-1/query", r.URL.Path)
		assert.Equal(t, "select * from Account", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"QueryResponse":{"Account":[
			{"Id":"91","Name":"Deferred Revenue","AcctNum":"2300","AccountType":"Other Current Liability"},
			{"Id":"79","Name":"Sales","AccountType":"Income"}
		]}}`))
	}))
	defer server.Close()

	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		BaseURL:     server.URL,
		AccessToken: "token",
		CompanyID:   "realm-1",
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)

	accounts, err := adapter.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, domain.Account{Code: "2300", Name: "Deferred Revenue", Type: "Other Current Liability"}, accounts[0])
	// Accounts without an account number fall back to the QBO id.
	assert.Equal(t, "79", accounts[1].Code)
}
