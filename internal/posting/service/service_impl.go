package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerloop/revrec/internal/audit/domain"
	"github.com/ledgerloop/revrec/internal/config"
	obsmetrics "github.com/ledgerloop/revrec/internal/observability/metrics"
	"github.com/ledgerloop/revrec/internal/orgcontext"
	"github.com/ledgerloop/revrec/internal/posting/adapters"
	"github.com/ledgerloop/revrec/internal/posting/domain"
	recognitiondomain "github.com/ledgerloop/revrec/internal/recognition/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Policy   *config.PolicyHolder
	Registry *adapters.Registry
	Entries  recognitiondomain.Repository
	Audit    auditdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.Config
	policy   *config.PolicyHolder
	registry *adapters.Registry
	entries  recognitiondomain.Repository
	audit    auditdomain.Service
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("posting.service"),
		cfg:      p.Cfg,
		policy:   p.Policy,
		registry: p.Registry,
		entries:  p.Entries,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
}

func (s *Service) ExportEntry(ctx context.Context, req domain.ExportEntryRequest) (domain.ExportEntryResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ExportEntryResult{}, domain.ErrInvalidOrganization
	}

	entryID, err := snowflake.ParseString(strings.TrimSpace(req.EntryID))
	if err != nil || entryID == 0 {
		return domain.ExportEntryResult{}, recognitiondomain.ErrInvalidID
	}

	entry, err := s.entries.FindEntryByID(ctx, s.db, orgID, entryID)
	if err != nil {
		return domain.ExportEntryResult{}, err
	}
	if entry == nil {
		return domain.ExportEntryResult{}, recognitiondomain.ErrEntryNotFound
	}
	if !entry.Posted {
		return domain.ExportEntryResult{}, domain.ErrEntryNotPosted
	}

	provider := s.resolveProvider(req.Provider)
	if entry.ExternalRef != nil && strings.TrimSpace(*entry.ExternalRef) != "" {
		// Export happened before; hand the existing reference back
		// instead of double-posting to the provider.
		return domain.ExportEntryResult{
			EntryID:         entryID.String(),
			Provider:        provider,
			ExternalRef:     *entry.ExternalRef,
			AlreadyExported: true,
		}, nil
	}

	poster, err := s.registry.NewAdapter(provider, s.adapterConfig(provider))
	if err != nil {
		return domain.ExportEntryResult{}, err
	}

	journal := s.buildJournal(*entry)
	result, err := poster.PostJournalEntry(ctx, journal)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLedgerExport(ctx, provider, "error")
		}
		return domain.ExportEntryResult{}, err
	}

	if err := s.entries.SetExternalRef(ctx, s.db, orgID, entryID, result.ExternalID); err != nil {
		// The provider accepted the journal but the reference did not
		// land; surface the error so the operator reconciles by hand.
		s.log.Error("journal posted but external ref not stored",
			zap.String("entry_id", entryID.String()),
			zap.String("provider", provider),
			zap.String("external_id", result.ExternalID),
			zap.Error(err),
		)
		return domain.ExportEntryResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordLedgerExport(ctx, provider, "ok")
	}
	s.auditExport(ctx, orgID, entryID, provider, result.ExternalID)

	return domain.ExportEntryResult{
		EntryID:     entryID.String(),
		Provider:    provider,
		ExternalRef: result.ExternalID,
	}, nil
}

func (s *Service) ListAccounts(ctx context.Context, req domain.ListAccountsRequest) (domain.ListAccountsResponse, error) {
	if _, ok := orgcontext.OrgIDFromContext(ctx); !ok {
		return domain.ListAccountsResponse{}, domain.ErrInvalidOrganization
	}

	provider := s.resolveProvider(req.Provider)
	poster, err := s.registry.NewAdapter(provider, s.adapterConfig(provider))
	if err != nil {
		return domain.ListAccountsResponse{}, err
	}

	accounts, err := poster.ListAccounts(ctx)
	if err != nil {
		return domain.ListAccountsResponse{}, err
	}

	return domain.ListAccountsResponse{
		Provider: provider,
		Accounts: accounts,
	}, nil
}

// buildJournal translates one posted schedule entry into a balanced
// journal. A positive amount recognizes revenue (debit deferred, credit
// revenue); a negative amount reverses it with the sides swapped.
func (s *Service) buildJournal(entry recognitiondomain.ScheduleEntry) domain.JournalEntry {
	posting := s.policy.Get().Posting
	amount := entry.Amount.Abs()

	description := fmt.Sprintf("revenue recognition %s", entry.RecognitionMonth.Format("2006-01"))
	if entry.IsAdjustment && entry.AdjustmentType != nil {
		description = fmt.Sprintf("revenue recognition %s %s", string(*entry.AdjustmentType), entry.RecognitionMonth.Format("2006-01"))
	}

	debitAccount := posting.DeferredAccount
	creditAccount := posting.RevenueAccount
	if entry.Amount.IsNegative() {
		debitAccount, creditAccount = creditAccount, debitAccount
	}

	memo := description
	if entry.Reason != nil && strings.TrimSpace(*entry.Reason) != "" {
		memo = strings.TrimSpace(*entry.Reason)
	}

	date := entry.RecognitionMonth
	if entry.PostedAt != nil {
		date = *entry.PostedAt
	}

	return domain.JournalEntry{
		Date:      date,
		Reference: entry.ID.String(),
		Memo:      memo,
		Lines: []domain.JournalLine{
			{AccountCode: debitAccount, Debit: amount, Description: description},
			{AccountCode: creditAccount, Credit: amount, Description: description},
		},
	}
}

func (s *Service) resolveProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = strings.ToLower(strings.TrimSpace(s.policy.Get().Posting.DefaultProvider))
	}
	return provider
}

func (s *Service) adapterConfig(provider string) domain.AdapterConfig {
	var cfg config.ProviderConfig
	switch provider {
	case "xero":
		cfg = s.cfg.Xero
	default:
		cfg = s.cfg.QuickBooks
	}
	return domain.AdapterConfig{
		BaseURL:     cfg.BaseURL,
		AccessToken: cfg.AccessToken,
		CompanyID:   cfg.CompanyID,
	}
}

func (s *Service) auditExport(ctx context.Context, orgID, entryID snowflake.ID, provider, externalID string) {
	if s.audit == nil {
		return
	}
	targetID := entryID.String()
	err := s.audit.AuditLog(ctx, &orgID, "", nil, "entry.exported", "schedule_entry", &targetID, map[string]any{
		"provider":     provider,
		"external_ref": externalID,
	})
	if err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
}
