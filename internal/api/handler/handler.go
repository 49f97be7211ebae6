package handler

import "bookloop/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Resource *ResourceHandler
	Pattern  *PatternHandler
	Calendar *CalendarHandler
	Export   *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Resource: NewResourceHandler(svc.Resource),
		Pattern:  NewPatternHandler(svc.Pattern),
		Calendar: NewCalendarHandler(svc.Calendar),
		Export:   NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
