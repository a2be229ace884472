package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerloop/revrec/internal/recognition/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEntries(ctx context.Context, db *gorm.DB, entries []*domain.ScheduleEntry) error {
	for _, entry := range entries {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO schedule_entries (
				id, org_id, contract_id, recognition_month, amount, posted, posted_at,
				is_adjustment, adjustment_type, adjusts_schedule_id, reason, needs_review,
				external_ref, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.OrgID,
			entry.ContractID,
			entry.RecognitionMonth,
			entry.Amount,
			entry.Posted,
			entry.PostedAt,
			entry.IsAdjustment,
			entry.AdjustmentType,
			entry.AdjustsScheduleID,
			entry.Reason,
			entry.NeedsReview,
			entry.ExternalRef,
			entry.CreatedAt,
			entry.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, filter domain.EntryFilter) ([]*domain.ScheduleEntry, error) {
	var entries []*domain.ScheduleEntry
	stmt := db.WithContext(ctx).
		Model(&domain.ScheduleEntry{}).
		Where("org_id = ? AND contract_id = ?", orgID, contractID)
	if filter.Posted != nil {
		stmt = stmt.Where("posted = ?", *filter.Posted)
	}
	if filter.IsAdjustment != nil {
		stmt = stmt.Where("is_adjustment = ?", *filter.IsAdjustment)
	}
	if filter.FromMonth != nil {
		stmt = stmt.Where("recognition_month >= ?", domain.MonthKey(*filter.FromMonth))
	}
	if filter.ToMonth != nil {
		stmt = stmt.Where("recognition_month <= ?", domain.MonthKey(*filter.ToMonth))
	}
	err := stmt.
		Order("recognition_month asc, created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.ScheduleEntry, error) {
	var entries []*domain.ScheduleEntry
	err := db.WithContext(ctx).
		Model(&domain.ScheduleEntry{}).
		Where("org_id = ?", orgID).
		Order("contract_id asc, recognition_month asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) FindEntryByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.ScheduleEntry, error) {
	var entry domain.ScheduleEntry
	err := db.WithContext(ctx).
		Model(&domain.ScheduleEntry{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) CountByContract(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ScheduleEntry{}).
		Where("org_id = ? AND contract_id = ?", orgID, contractID).
		Count(&count).Error
	return count, err
}

func (r *repo) DeleteUnposted(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	// posted = false is enforced here too: the immutability of posted
	// rows never depends on the caller having filtered correctly.
	result := db.WithContext(ctx).Exec(
		`DELETE FROM schedule_entries
		 WHERE org_id = ? AND contract_id = ? AND posted = ? AND id IN ?`,
		orgID,
		contractID,
		false,
		ids,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, postedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE schedule_entries SET posted = ?, posted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND posted = ?`,
		true,
		postedAt,
		time.Now().UTC(),
		orgID,
		id,
		false,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetExternalRef(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, ref string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE schedule_entries SET external_ref = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		ref,
		time.Now().UTC(),
		orgID,
		id,
	).Error
}
