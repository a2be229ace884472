package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// JournalLine is one side of a balanced journal entry. Exactly one of
// Debit and Credit is non-zero.
type JournalLine struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// JournalEntry is the provider-neutral shape of one exported posting.
// Recognition debits deferred revenue and credits revenue; reversals
// swap the sides.
type JournalEntry struct {
	Date      time.Time     `json:"date"`
	Reference string        `json:"reference"`
	Memo      string        `json:"memo,omitempty"`
	Lines     []JournalLine `json:"lines"`
}

// PostResult carries the provider-side identifier of an accepted entry.
type PostResult struct {
	ExternalID string `json:"external_id"`
}

type Account struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// LedgerPoster is the capability one accounting platform implements.
// The engine never posts on its own; callers submit through this.
type LedgerPoster interface {
	Provider() string
	PostJournalEntry(ctx context.Context, entry JournalEntry) (PostResult, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// AdapterConfig carries one platform connection. HTTPClient may be nil;
// adapters fall back to a default client with a request timeout.
type AdapterConfig struct {
	BaseURL     string
	AccessToken string
	// CompanyID is the QuickBooks realm or the Xero tenant.
	CompanyID  string
	HTTPClient *http.Client
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (LedgerPoster, error)
}

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_provider_config")
	ErrPostRejected     = errors.New("journal_post_rejected")
)
