package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	return "quickbooks"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.LedgerPoster, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	token := strings.TrimSpace(cfg.AccessToken)
	realmID := strings.TrimSpace(cfg.CompanyID)
	if baseURL == "" || token == "" || realmID == "" {
		return nil, domain.ErrInvalidConfig
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Adapter{
		baseURL: baseURL,
		token:   token,
		realmID: realmID,
		client:  client,
	}, nil
}

// Adapter posts journal entries through the QuickBooks Online v3 API.
type Adapter struct {
	baseURL string
	token   string
	realmID string
	client  *http.Client
}

func (a *Adapter) Provider() string {
	return "quickbooks"
}

type qboJournalLineDetail struct {
	PostingType   string        `json:"PostingType"`
	AccountRef    qboRef        `json:"AccountRef"`
}

type qboRef struct {
	Value string `json:"value"`
}

type qboLine struct {
	Description           string               `json:"Description,omitempty"`
	Amount                decimal.Decimal      `json:"Amount"`
	DetailType            string               `json:"DetailType"`
	JournalEntryLineDetail qboJournalLineDetail `json:"JournalEntryLineDetail"`
}

type qboJournalEntry struct {
	TxnDate      string    `json:"TxnDate"`
	DocNumber    string    `json:"DocNumber,omitempty"`
	PrivateNote  string    `json:"PrivateNote,omitempty"`
	Line         []qboLine `json:"Line"`
}

type qboJournalEntryResponse struct {
	JournalEntry struct {
		ID string `json:"Id"`
	} `json:"JournalEntry"`
}

type qboAccountQueryResponse struct {
	QueryResponse struct {
		Account []struct {
			ID          string `json:"Id"`
			Name        string `json:"Name"`
			AcctNum     string `json:"AcctNum"`
			AccountType string `json:"AccountType"`
		} `json:"Account"`
	} `json:"QueryResponse"`
}

func (a *Adapter) PostJournalEntry(ctx context.Context, entry domain.JournalEntry) (domain.PostResult, error) {
	body := qboJournalEntry{
		TxnDate:     entry.Date.Format("2006-01-02"),
		DocNumber:   entry.Reference,
		PrivateNote: entry.Memo,
	}
	for _, line := range entry.Lines {
		postingType := "Debit"
		amount := line.Debit
		if amount.IsZero() {
			postingType = "Credit"
			amount = line.Credit
		}
		body.Line = append(body.Line, qboLine{
			Description: line.Description,
			Amount:      amount,
			DetailType:  "JournalEntryLineDetail",
			JournalEntryLineDetail: qboJournalLineDetail{
				PostingType: postingType,
				AccountRef:  qboRef{Value: line.AccountCode},
			},
		})
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/journalentry", a.baseURL, url.PathEscape(a.realmID))
	var parsed qboJournalEntryResponse
	if err := a.do(ctx, http.MethodPost, endpoint, body, &parsed); err != nil {
		return domain.PostResult{}, err
	}
	if strings.TrimSpace(parsed.JournalEntry.ID) == "" {
		return domain.PostResult{}, domain.ErrPostRejected
	}

	return domain.PostResult{ExternalID: parsed.JournalEntry.ID}, nil
}

func (a *Adapter) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s",
		a.baseURL,
		url.PathEscape(a.realmID),
		url.QueryEscape("select * from Account"),
	)
	var parsed qboAccountQueryResponse
	if err := a.do(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(parsed.QueryResponse.Account))
	for _, account := range parsed.QueryResponse.Account {
		code := strings.TrimSpace(account.AcctNum)
		if code == "" {
			code = account.ID
		}
		accounts = append(accounts, domain.Account{
			Code: code,
			Name: account.Name,
			Type: account.AccountType,
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
		return fmt.Errorf("quickbooks %s %s: status %d: %s: %w",
			method, endpoint, resp.StatusCode, strings.TrimSpace(string(payload)), domain.ErrPostRejected)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
