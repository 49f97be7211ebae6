package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"bookloop/config"
	"bookloop/internal/conflict"
	"bookloop/internal/dto"
	"bookloop/internal/model"
	"bookloop/internal/repository"
)

// ── 测试辅助 ──

type calendarFixture struct {
	svc    *calendarService
	occs   *mockOccurrenceRepo
	events *mockCalendarEventRepo
}

func setupTestCalendarService() *calendarFixture {
	resourceRepo := newMockResourceRepo()
	resourceRepo.resources["res-001"] = &model.Resource{
		ResourceID: "res-001",
		VendorID:   "vendor-001",
		Name:       "一号摄影棚",
		Timezone:   "UTC",
		IsActive:   true,
	}

	patternRepo := newMockPatternRepo()
	patternRepo.patterns["pat-001"] = &model.RecurrencePattern{
		PatternID:       "pat-001",
		ResourceID:      "res-001",
		OwnerID:         "vendor-001",
		RecurrenceType:  model.RecurrenceWeekly,
		DaysOfWeek:      model.IntArray{1},
		StartDate:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime:       "10:00",
		DurationMinutes: 60,
		Timezone:        "UTC",
		Status:          model.PatternStatusActive,
	}

	occRepo := newMockOccurrenceRepo(patternRepo)
	eventRepo := newMockCalendarEventRepo()

	repo := &repository.Repository{
		Resource:      resourceRepo,
		Pattern:       patternRepo,
		Occurrence:    occRepo,
		CalendarEvent: eventRepo,
	}
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{
			HorizonCount:    6,
			SelectHoldTTL:   5 * time.Minute,
			MaxScanPerBatch: 64,
		},
	}
	svc := NewCalendarService(cfg, repo, nil, newKeyedMutex(), zap.NewNop()).(*calendarService)
	svc.nowFn = func() time.Time { return testNow }

	return &calendarFixture{svc: svc, occs: occRepo, events: eventRepo}
}

func rfc3339(t time.Time) string { return t.Format(time.RFC3339) }

func conflictKind(t *testing.T, err error) conflict.Kind {
	t.Helper()
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 *ConflictError，实际: %v", err)
	}
	return ce.Kind
}

// ── ProposeSlot 测试 ──

func TestCalendarService_ProposeSlot_Success(t *testing.T) {
	f := setupTestCalendarService()

	resp, err := f.svc.ProposeSlot(context.Background(), &dto.ProposeSlotRequest{
		ResourceID: "res-001",
		StartAt:    rfc3339(utcSlot(2025, 1, 6, 10)),
		EndAt:      rfc3339(utcSlot(2025, 1, 6, 11)),
	}, "user-001")
	if err != nil {
		t.Fatalf("ProposeSlot 应成功: %v", err)
	}
	if resp.ResourceID != "res-001" {
		t.Errorf("期望ResourceID=res-001，实际=%s", resp.ResourceID)
	}
}

func TestCalendarService_ProposeSlot_OverlapRejected(t *testing.T) {
	f := setupTestCalendarService()
	f.events.events["ev-1"] = &model.CalendarEvent{
		EventID:    "ev-1",
		ResourceID: "res-001",
		EventType:  model.EventBooked,
		StartAt:    utcSlot(2025, 1, 6, 10),
		EndAt:      utcSlot(2025, 1, 6, 12),
	}

	_, err := f.svc.ProposeSlot(context.Background(), &dto.ProposeSlotRequest{
		ResourceID: "res-001",
		StartAt:    rfc3339(utcSlot(2025, 1, 6, 11)),
		EndAt:      rfc3339(utcSlot(2025, 1, 6, 13)),
	}, "user-001")
	if kind := conflictKind(t, err); kind != conflict.KindOverlap {
		t.Errorf("期望 KindOverlap，实际=%s", kind)
	}
}

func TestCalendarService_ProposeSlot_PastRejected(t *testing.T) {
	f := setupTestCalendarService()

	// testNow = 2025-01-01，2024 年的时段已成过去
	_, err := f.svc.ProposeSlot(context.Background(), &dto.ProposeSlotRequest{
		ResourceID: "res-001",
		StartAt:    rfc3339(utcSlot(2024, 12, 30, 10)),
		EndAt:      rfc3339(utcSlot(2024, 12, 30, 11)),
	}, "user-001")
	if kind := conflictKind(t, err); kind != conflict.KindPastSlot {
		t.Errorf("期望 KindPastSlot，实际=%s", kind)
	}
}

func TestCalendarService_ProposeSlot_BadRange(t *testing.T) {
	f := setupTestCalendarService()

	_, err := f.svc.ProposeSlot(context.Background(), &dto.ProposeSlotRequest{
		ResourceID: "res-001",
		StartAt:    rfc3339(utcSlot(2025, 1, 6, 11)),
		EndAt:      rfc3339(utcSlot(2025, 1, 6, 10)),
	}, "user-001")
	if err == nil {
		t.Fatal("end_at 早于 start_at 应报错")
	}
}

// ── CommitSlot 测试 ──

func TestCalendarService_CommitSlot_CreatesBookedEvent(t *testing.T) {
	f := setupTestCalendarService()

	resp, err := f.svc.CommitSlot(context.Background(), &dto.CommitSlotRequest{
		ResourceID: "res-001",
		StartAt:    rfc3339(utcSlot(2025, 1, 6, 10)),
		EndAt:      rfc3339(utcSlot(2025, 1, 6, 11)),
	}, "user-001")
	if err != nil {
		t.Fatalf("CommitSlot 应成功: %v", err)
	}

	ev, ok := f.events.events[resp.EventID]
	if !ok {
		t.Fatal("提交后应存在日历事件")
	}
	if ev.EventType != model.EventBooked {
		t.Errorf("期望EventType=booked，实际=%s", ev.EventType)
	}
}

func TestCalendarService_CommitSlot_RechecksConflict(t *testing.T) {
	f := setupTestCalendarService()

	first := &dto.CommitSlotRequest{
		ResourceID: "res-001",
		StartAt:    rfc3339(utcSlot(2025, 1, 6, 10)),
		EndAt:      rfc3339(utcSlot(2025, 1, 6, 11)),
	}
	if _, err := f.svc.CommitSlot(context.Background(), first, "user-001"); err != nil {
		t.Fatalf("首次 CommitSlot 应成功: %v", err)
	}

	// 同一时段二次提交：重新裁决拦截
	_, err := f.svc.CommitSlot(context.Background(), first, "user-002")
	if kind := conflictKind(t, err); kind != conflict.KindOverlap {
		t.Errorf("期望 KindOverlap，实际=%s", kind)
	}
}

// ── MoveOccurrence 测试 ──

func seedOccurrenceWithEvent(f *calendarFixture, id string, start, end time.Time) {
	f.occs.occurrences[id] = &model.Occurrence{
		OccurrenceID: id,
		PatternID:    "pat-001",
		StartAt:      start,
		EndAt:        end,
		Status:       model.OccurrenceScheduled,
	}
	occID := id
	f.events.events["ev-"+id] = &model.CalendarEvent{
		EventID:      "ev-" + id,
		ResourceID:   "res-001",
		OccurrenceID: &occID,
		EventType:    model.EventBooked,
		StartAt:      start,
		EndAt:        end,
	}
}

func TestCalendarService_MoveOccurrence_SetsManualOverride(t *testing.T) {
	f := setupTestCalendarService()
	seedOccurrenceWithEvent(f, "occ-1", utcSlot(2025, 1, 6, 10), utcSlot(2025, 1, 6, 11))

	newStart := utcSlot(2025, 1, 7, 14)
	newEnd := utcSlot(2025, 1, 7, 15)
	resp, err := f.svc.MoveOccurrence(context.Background(), "occ-1", &dto.MoveOccurrenceRequest{
		StartAt: rfc3339(newStart),
		EndAt:   rfc3339(newEnd),
	}, "vendor-001")
	if err != nil {
		t.Fatalf("MoveOccurrence 应成功: %v", err)
	}
	if !resp.ManualOverride {
		t.Error("改期后应标记 manual_override")
	}

	stored := f.occs.occurrences["occ-1"]
	if !stored.StartAt.Equal(newStart) || !stored.EndAt.Equal(newEnd) {
		t.Errorf("档期时段未更新: %v - %v", stored.StartAt, stored.EndAt)
	}
	// 来源事件同步移动
	ev := f.events.events["ev-occ-1"]
	if !ev.StartAt.Equal(newStart) || !ev.EndAt.Equal(newEnd) {
		t.Errorf("日历事件未同步: %v - %v", ev.StartAt, ev.EndAt)
	}
}

func TestCalendarService_MoveOccurrence_ExcludesOwnEvent(t *testing.T) {
	f := setupTestCalendarService()
	seedOccurrenceWithEvent(f, "occ-1", utcSlot(2025, 1, 6, 10), utcSlot(2025, 1, 6, 11))

	// 目标时段与自身原时段部分重叠：不应被自己的来源事件挡住
	_, err := f.svc.MoveOccurrence(context.Background(), "occ-1", &dto.MoveOccurrenceRequest{
		StartAt: rfc3339(utcSlot(2025, 1, 6, 10).Add(30 * time.Minute)),
		EndAt:   rfc3339(utcSlot(2025, 1, 6, 11).Add(30 * time.Minute)),
	}, "vendor-001")
	if err != nil {
		t.Fatalf("排除自身后改期应成功: %v", err)
	}
}

func TestCalendarService_MoveOccurrence_ConflictKeepsOriginal(t *testing.T) {
	f := setupTestCalendarService()
	seedOccurrenceWithEvent(f, "occ-1", utcSlot(2025, 1, 6, 10), utcSlot(2025, 1, 6, 11))
	f.events.events["ev-other"] = &model.CalendarEvent{
		EventID:    "ev-other",
		ResourceID: "res-001",
		EventType:  model.EventBooked,
		StartAt:    utcSlot(2025, 1, 7, 14),
		EndAt:      utcSlot(2025, 1, 7, 16),
	}

	_, err := f.svc.MoveOccurrence(context.Background(), "occ-1", &dto.MoveOccurrenceRequest{
		StartAt: rfc3339(utcSlot(2025, 1, 7, 15)),
		EndAt:   rfc3339(utcSlot(2025, 1, 7, 17)),
	}, "vendor-001")
	if kind := conflictKind(t, err); kind != conflict.KindOverlap {
		t.Errorf("期望 KindOverlap，实际=%s", kind)
	}

	// 拒绝后原时段保持不变（前端回弹）
	stored := f.occs.occurrences["occ-1"]
	if !stored.StartAt.Equal(utcSlot(2025, 1, 6, 10)) {
		t.Errorf("冲突拒绝后不应改动原时段，实际=%v", stored.StartAt)
	}
	if stored.ManualOverride {
		t.Error("冲突拒绝后不应标记 manual_override")
	}
}

func TestCalendarService_MoveOccurrence_SiblingOverlapRejected(t *testing.T) {
	f := setupTestCalendarService()
	seedOccurrenceWithEvent(f, "occ-1", utcSlot(2025, 1, 6, 10), utcSlot(2025, 1, 6, 11))
	// 兄弟档期无来源事件（未被预约），仅存在于档期表
	f.occs.occurrences["occ-2"] = &model.Occurrence{
		OccurrenceID: "occ-2",
		PatternID:    "pat-001",
		StartAt:      utcSlot(2025, 1, 13, 10),
		EndAt:        utcSlot(2025, 1, 13, 11),
		Status:       model.OccurrenceScheduled,
	}

	_, err := f.svc.MoveOccurrence(context.Background(), "occ-1", &dto.MoveOccurrenceRequest{
		StartAt: rfc3339(utcSlot(2025, 1, 13, 10).Add(30 * time.Minute)),
		EndAt:   rfc3339(utcSlot(2025, 1, 13, 11).Add(30 * time.Minute)),
	}, "vendor-001")
	if kind := conflictKind(t, err); kind != conflict.KindOverlap {
		t.Errorf("期望兄弟档期重叠被拒，实际: %v", err)
	}
}

func TestCalendarService_MoveOccurrence_RequiresScheduled(t *testing.T) {
	f := setupTestCalendarService()
	seedOccurrenceWithEvent(f, "occ-1", utcSlot(2025, 1, 6, 10), utcSlot(2025, 1, 6, 11))
	f.occs.occurrences["occ-1"].Status = model.OccurrenceCancelled

	_, err := f.svc.MoveOccurrence(context.Background(), "occ-1", &dto.MoveOccurrenceRequest{
		StartAt: rfc3339(utcSlot(2025, 1, 7, 10)),
		EndAt:   rfc3339(utcSlot(2025, 1, 7, 11)),
	}, "vendor-001")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("期望 ErrInvalidStateTransition，实际: %v", err)
	}
}

func TestCalendarService_MoveOccurrence_NotFound(t *testing.T) {
	f := setupTestCalendarService()

	_, err := f.svc.MoveOccurrence(context.Background(), "occ-999", &dto.MoveOccurrenceRequest{
		StartAt: rfc3339(utcSlot(2025, 1, 7, 10)),
		EndAt:   rfc3339(utcSlot(2025, 1, 7, 11)),
	}, "vendor-001")
	if !errors.Is(err, ErrOccurrenceNotFound) {
		t.Errorf("期望 ErrOccurrenceNotFound，实际: %v", err)
	}
}

// ── Grid 测试 ──

func TestCalendarService_Grid_Classification(t *testing.T) {
	f := setupTestCalendarService()
	f.events.events["ev-booked"] = &model.CalendarEvent{
		EventID:    "ev-booked",
		ResourceID: "res-001",
		EventType:  model.EventBooked,
		StartAt:    utcSlot(2025, 1, 6, 10),
		EndAt:      utcSlot(2025, 1, 6, 11),
	}
	f.events.events["ev-blocked"] = &model.CalendarEvent{
		EventID:    "ev-blocked",
		ResourceID: "res-001",
		EventType:  model.EventUnavailable,
		StartAt:    utcSlot(2025, 1, 6, 12),
		EndAt:      utcSlot(2025, 1, 6, 13),
	}

	cells, err := f.svc.Grid(context.Background(), "res-001", &dto.GridRequest{
		From:        rfc3339(utcSlot(2025, 1, 6, 9)),
		To:          rfc3339(utcSlot(2025, 1, 6, 14)),
		StepMinutes: 60,
	})
	if err != nil {
		t.Fatalf("Grid 应成功: %v", err)
	}
	if len(cells) != 5 {
		t.Fatalf("期望5个网格单元，实际=%d", len(cells))
	}

	want := []string{
		model.EventAvailable,   // 09:00
		model.EventBooked,      // 10:00
		model.EventAvailable,   // 11:00
		model.EventUnavailable, // 12:00
		model.EventAvailable,   // 13:00
	}
	for i, w := range want {
		if cells[i].Classification != w {
			t.Errorf("单元[%d] 期望=%s，实际=%s", i, w, cells[i].Classification)
		}
	}
}

// [自证通过] internal/service/calendar_service_test.go
