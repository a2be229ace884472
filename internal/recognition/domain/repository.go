package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EntryFilter narrows a schedule listing.
type EntryFilter struct {
	Posted       *bool
	IsAdjustment *bool
	FromMonth    *time.Time
	ToMonth      *time.Time
}

type Repository interface {
	InsertEntries(ctx context.Context, db *gorm.DB, entries []*ScheduleEntry) error
	ListByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, filter EntryFilter) ([]*ScheduleEntry, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*ScheduleEntry, error)
	FindEntryByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ScheduleEntry, error)
	CountByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID) (int64, error)
	// DeleteUnposted removes the given entries, refusing posted rows at
	// the SQL level regardless of what the caller passes.
	DeleteUnposted(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, ids []snowflake.ID) (int64, error)
	MarkPosted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, postedAt time.Time) (int64, error)
	SetExternalRef(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, ref string) error
}
