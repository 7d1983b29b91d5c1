// Package repository provides the gorm-backed audit store.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
)

type repositoryImpl struct {
	db *gorm.DB
}

// New constructs the audit repository.
func New(db *gorm.DB) domain.Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Insert(ctx context.Context, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Entry, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Entry{}).
		Where("organization_id = ?", filter.OrgID)

	if action := strings.TrimSpace(filter.Action); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if filter.Success != nil {
		stmt = stmt.Where("success = ?", *filter.Success)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var entries []*domain.Entry
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repositoryImpl) Aggregate(ctx context.Context, orgID snowflake.ID, startAt, endAt *time.Time) (*domain.Stats, error) {
	base := func() *gorm.DB {
		stmt := r.db.WithContext(ctx).Model(&domain.Entry{}).
			Where("organization_id = ?", orgID)
		if startAt != nil {
			stmt = stmt.Where("created_at >= ?", startAt.UTC())
		}
		if endAt != nil {
			stmt = stmt.Where("created_at <= ?", endAt.UTC())
		}
		return stmt
	}

	stats := &domain.Stats{ActionsByType: make(map[domain.Action]int64)}

	if err := base().Count(&stats.TotalActions).Error; err != nil {
		return nil, err
	}
	if stats.TotalActions == 0 {
		return stats, nil
	}

	var succeeded int64
	if err := base().Where("success = ?", true).Count(&succeeded).Error; err != nil {
		return nil, err
	}
	stats.SuccessRate = float64(succeeded) / float64(stats.TotalActions)

	if err := base().Where("user_id IS NOT NULL").
		Distinct("user_id").Count(&stats.UniqueUsers).Error; err != nil {
		return nil, err
	}

	type actionCount struct {
		Action domain.Action
		Count  int64
	}
	var counts []actionCount
	if err := base().Select("action, count(*) as count").
		Group("action").Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, row := range counts {
		stats.ActionsByType[row.Action] = row.Count
	}
	return stats, nil
}
