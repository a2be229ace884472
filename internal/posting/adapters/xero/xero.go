package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerloop/revrec/internal/posting/domain"
	"github.com/shopspring/decimal"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "xero"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.LedgerPoster, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	token := strings.TrimSpace(cfg.AccessToken)
	tenantID := strings.TrimSpace(cfg.CompanyID)
	if baseURL == "" || token == "" || tenantID == "" {
		return nil, domain.ErrInvalidConfig
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Adapter{
		baseURL:  baseURL,
		token:    token,
		tenantID: tenantID,
		client:   client,
	}, nil
}

// Adapter posts manual journals through the Xero accounting API. Xero
// has no debit/credit fields; a positive LineAmount is a debit and a
// negative one a credit.
type Adapter struct {
	baseURL  string
	token    string
	tenantID string
	client   *http.Client
}

func (a *Adapter) Provider() string {
	return "xero"
}

type xeroJournalLine struct {
	LineAmount  decimal.Decimal `json:"LineAmount"`
	AccountCode string          `json:"AccountCode"`
	Description string          `json:"Description,omitempty"`
}

type xeroManualJournal struct {
	Narration    string            `json:"Narration"`
	Date         string            `json:"Date"`
	Status       string            `json:"Status"`
	JournalLines []xeroJournalLine `json:"JournalLines"`
}

type xeroManualJournalsRequest struct {
	ManualJournals []xeroManualJournal `json:"ManualJournals"`
}

type xeroManualJournalsResponse struct {
	ManualJournals []struct {
		ManualJournalID string `json:"ManualJournalID"`
	} `json:"ManualJournals"`
}

type xeroAccountsResponse struct {
	Accounts []struct {
		Code string `json:"Code"`
		Name string `json:"Name"`
		Type string `json:"Type"`
	} `json:"Accounts"`
}

func (a *Adapter) PostJournalEntry(ctx context.Context, entry domain.JournalEntry) (domain.PostResult, error) {
	journal := xeroManualJournal{
		Narration: strings.TrimSpace(entry.Reference + " " + entry.Memo),
		Date:      entry.Date.Format("2006-01-02"),
		Status:    "POSTED",
	}
	for _, line := range entry.Lines {
		amount := line.Debit
		if amount.IsZero() {
			amount = line.Credit.Neg()
		}
		journal.JournalLines = append(journal.JournalLines, xeroJournalLine{
			LineAmount:  amount,
			AccountCode: line.AccountCode,
			Description: line.Description,
		})
	}

	endpoint := a.baseURL + "/api.xro/2.0/ManualJournals"
	var parsed xeroManualJournalsResponse
	err := a.do(ctx, http.MethodPut, endpoint, xeroManualJournalsRequest{
		ManualJournals: []xeroManualJournal{journal},
	}, &parsed)
	if err != nil {
		return domain.PostResult{}, err
	}
	if len(parsed.ManualJournals) == 0 || strings.TrimSpace(parsed.ManualJournals[0].ManualJournalID) == "" {
		return domain.PostResult{}, domain.ErrPostRejected
	}

	return domain.PostResult{ExternalID: parsed.ManualJournals[0].ManualJournalID}, nil
}

func (a *Adapter) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	endpoint := a.baseURL + "/api.xro/2.0/Accounts"
	var parsed xeroAccountsResponse
	if err := a.do(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(parsed.Accounts))
	for _, account := range parsed.Accounts {
		accounts = append(accounts, domain.Account{
			Code: account.Code,
			Name: account.Name,
			Type: account.Type,
		})
	}
	return accounts, nil
}

func (a *Adapter) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Xero-tenant-id", a.tenantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("xero %s %s: status %d: %s: %w",
			method, endpoint, resp.StatusCode, strings.TrimSpace(string(payload)), domain.ErrPostRejected)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
