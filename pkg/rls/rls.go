package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// WithTenant scopes the current transaction to one organization. Row
// level security policies read app.current_org_id, so this must run
// inside the transaction that carries the tenant's queries.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	return tx.Exec(
		"SET LOCAL app.current_org_id = ?",
		fmt.Sprintf("%d", tenantID),
	).Error
}

// Apply sets the tenant on postgres and is a no-op elsewhere, so the
// same code path works against the sqlite databases used in tests.
func Apply(tx *gorm.DB, tenantID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return WithTenant(tx, tenantID)
}
