package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Resource      ResourceRepository
	Pattern       RecurrencePatternRepository
	Occurrence    OccurrenceRepository
	CalendarEvent CalendarEventRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Resource:      NewResourceRepo(db),
		Pattern:       NewPatternRepo(db),
		Occurrence:    NewOccurrenceRepo(db),
		CalendarEvent: NewCalendarEventRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
