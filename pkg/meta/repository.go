package meta

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMediaNotFound = errors.New("media record not found")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveMedia 写入媒体记录 (幂等：ID 已存在时不做任何事)
func (r *Repository) SaveMedia(ctx context.Context, rec *MediaRecord) error {
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save media: %w", err)
	}
	return nil
}

// GetMedia 按 ID 查询
func (r *Repository) GetMedia(ctx context.Context, id string) (*MediaRecord, error) {
	var rec MediaRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", id).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByOwner 按时间倒序列出某个用户的媒体
// includePrivate 为 false 时只返回公开的记录
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, includePrivate bool, limit int) ([]MediaRecord, error) {
	q := r.db.GetConn().WithContext(ctx).Where("owner_id = ?", ownerID)
	if !includePrivate {
		q = q.Where("is_public = ?", true)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []MediaRecord
	err := q.Order("created_at DESC").Find(&recs).Error
	return recs, err
}

// FindByRefs 按存储引用批量查询记录，用于签名前的访问控制
// 没有记录的引用不会出现在结果中
func (r *Repository) FindByRefs(ctx context.Context, refs []string) ([]MediaRecord, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var recs []MediaRecord
	err := r.db.GetConn().WithContext(ctx).Where("ref IN ?", refs).Find(&recs).Error
	return recs, err
}

// DeleteMedia 删除记录，返回被删除的记录 (调用方负责清理对象存储)
func (r *Repository) DeleteMedia(ctx context.Context, id string) (*MediaRecord, error) {
	rec, err := r.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.GetConn().WithContext(ctx).Delete(&MediaRecord{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete media: %w", err)
	}
	return rec, nil
}
