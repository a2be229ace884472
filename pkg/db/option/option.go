package option

import (
	"time"

	"github.com/ledgerloop/revrec/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB {
	return f(stmt)
}

// ApplyPagination translates a cursor page request into a keyset filter
// plus a limit of pageSize+1 so callers can detect a next page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		pageSize := page.PageSize
		if pageSize <= 0 {
			pageSize = 10
		}
		if pageSize > 250 {
			pageSize = 250
		}

		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
					stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, cursor.ID)
				}
			}
		}

		return stmt.Limit(pageSize + 1)
	})
}
