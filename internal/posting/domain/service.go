package domain

import (
	"context"
	"errors"
)

type ExportEntryRequest struct {
	EntryID  string
	Provider string
}

type ExportEntryResult struct {
	EntryID     string `json:"entry_id"`
	Provider    string `json:"provider"`
	ExternalRef string `json:"external_ref"`
	// AlreadyExported reports an idempotent hit: the entry carried an
	// external reference before this call and nothing was posted.
	AlreadyExported bool `json:"already_exported"`
}

type ListAccountsRequest struct {
	Provider string
}

type ListAccountsResponse struct {
	Provider string    `json:"provider"`
	Accounts []Account `json:"accounts"`
}

type Service interface {
	ExportEntry(context.Context, ExportEntryRequest) (ExportEntryResult, error)
	ListAccounts(context.Context, ListAccountsRequest) (ListAccountsResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrEntryNotPosted      = errors.New("entry_not_posted")
)
