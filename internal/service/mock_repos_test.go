package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"bookloop/internal/model"
	pkgerrors "bookloop/pkg/errors"
)

// ── Mock ResourceRepository ──

type mockResourceRepo struct {
	resources map[string]*model.Resource
}

func newMockResourceRepo() *mockResourceRepo {
	return &mockResourceRepo{resources: make(map[string]*model.Resource)}
}

func (m *mockResourceRepo) Create(_ context.Context, res *model.Resource) error {
	if res.ResourceID == "" {
		res.ResourceID = fmt.Sprintf("res-%03d", len(m.resources)+1)
	}
	m.resources[res.ResourceID] = res
	return nil
}

func (m *mockResourceRepo) GetByID(_ context.Context, id string) (*model.Resource, error) {
	if r, ok := m.resources[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockResourceRepo) ListByVendor(_ context.Context, vendorID string) ([]model.Resource, error) {
	var result []model.Resource
	for _, r := range m.resources {
		if r.VendorID == vendorID {
			result = append(result, *r)
		}
	}
	return result, nil
}

// ── Mock RecurrencePatternRepository ──

type mockPatternRepo struct {
	patterns map[string]*model.RecurrencePattern
}

func newMockPatternRepo() *mockPatternRepo {
	return &mockPatternRepo{patterns: make(map[string]*model.RecurrencePattern)}
}

func (m *mockPatternRepo) Create(_ context.Context, p *model.RecurrencePattern) error {
	if p.PatternID == "" {
		p.PatternID = fmt.Sprintf("pat-%03d", len(m.patterns)+1)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	cp := *p
	m.patterns[p.PatternID] = &cp
	return nil
}

func (m *mockPatternRepo) GetByID(_ context.Context, id string) (*model.RecurrencePattern, error) {
	if p, ok := m.patterns[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPatternRepo) ListByResource(_ context.Context, resourceID string) ([]model.RecurrencePattern, error) {
	var result []model.RecurrencePattern
	for _, p := range m.patterns {
		if p.ResourceID == resourceID {
			result = append(result, *p)
		}
	}
	return result, nil
}

// UpdateVersioned 复刻 version 不匹配即拒绝的乐观锁语义
func (m *mockPatternRepo) UpdateVersioned(_ context.Context, p *model.RecurrencePattern) error {
	stored, ok := m.patterns[p.PatternID]
	if !ok || stored.Version != p.Version {
		return pkgerrors.ErrOptimisticLock
	}
	cp := *p
	cp.Version++
	m.patterns[p.PatternID] = &cp
	p.Version++
	return nil
}

// ── Mock OccurrenceRepository ──

type mockOccurrenceRepo struct {
	occurrences map[string]*model.Occurrence // key: occurrence_id
	patterns    *mockPatternRepo             // 批量落库需同事务更新模式计数器
	persistErr  error                        // 注入一次性落库失败，模拟事务整体回滚
}

func newMockOccurrenceRepo(patterns *mockPatternRepo) *mockOccurrenceRepo {
	return &mockOccurrenceRepo{
		occurrences: make(map[string]*model.Occurrence),
		patterns:    patterns,
	}
}

func (m *mockOccurrenceRepo) slotTaken(patternID string, startAt time.Time) bool {
	for _, o := range m.occurrences {
		if o.PatternID == patternID && o.StartAt.Equal(startAt) {
			return true
		}
	}
	return false
}

// PersistBatchWithCounters 复刻单事务语义：失败时档期与计数器均不落库；
// 成功时按 (pattern_id, start_at) 幂等插入，计数器只加实际插入的行数
func (m *mockOccurrenceRepo) PersistBatchWithCounters(_ context.Context, p *model.RecurrencePattern, accepted, skipped []model.Occurrence) (int64, int64, error) {
	if m.persistErr != nil {
		err := m.persistErr
		m.persistErr = nil
		return 0, 0, err
	}

	stored, ok := m.patterns.patterns[p.PatternID]
	if !ok || stored.Version != p.Version {
		return 0, 0, pkgerrors.ErrOptimisticLock
	}

	insert := func(occs []model.Occurrence) int64 {
		var inserted int64
		for i := range occs {
			occ := occs[i]
			if m.slotTaken(occ.PatternID, occ.StartAt) {
				continue
			}
			cp := occ
			m.occurrences[occ.OccurrenceID] = &cp
			inserted++
		}
		return inserted
	}
	insAccepted := insert(accepted)
	insSkipped := insert(skipped)

	cp := *p
	cp.CreatedOccurrences = stored.CreatedOccurrences + int(insAccepted)
	cp.SkippedOccurrences = stored.SkippedOccurrences + int(insSkipped)
	cp.Version = stored.Version + 1
	m.patterns.patterns[p.PatternID] = &cp

	p.CreatedOccurrences = cp.CreatedOccurrences
	p.SkippedOccurrences = cp.SkippedOccurrences
	p.Version = cp.Version
	return insAccepted, insSkipped, nil
}

func (m *mockOccurrenceRepo) GetByID(_ context.Context, id string) (*model.Occurrence, error) {
	if o, ok := m.occurrences[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOccurrenceRepo) ListByPattern(_ context.Context, patternID string, from, to *time.Time) ([]model.Occurrence, error) {
	var result []model.Occurrence
	for _, o := range m.occurrences {
		if o.PatternID != patternID {
			continue
		}
		if from != nil && o.StartAt.Before(*from) {
			continue
		}
		if to != nil && !o.StartAt.Before(*to) {
			continue
		}
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result, nil
}

func (m *mockOccurrenceRepo) LatestStart(_ context.Context, patternID string) (*time.Time, error) {
	var latest *time.Time
	for _, o := range m.occurrences {
		if o.PatternID != patternID {
			continue
		}
		if latest == nil || o.StartAt.After(*latest) {
			t := o.StartAt
			latest = &t
		}
	}
	return latest, nil
}

func (m *mockOccurrenceRepo) CancelFutureScheduled(_ context.Context, patternID string, asOf time.Time) (int64, error) {
	var affected int64
	for _, o := range m.occurrences {
		if o.PatternID == patternID && o.StartAt.After(asOf) && o.Status == model.OccurrenceScheduled {
			o.Status = model.OccurrenceCancelled
			affected++
		}
	}
	return affected, nil
}

func (m *mockOccurrenceRepo) UpdateSlot(_ context.Context, occ *model.Occurrence) error {
	stored, ok := m.occurrences[occ.OccurrenceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.StartAt = occ.StartAt
	stored.EndAt = occ.EndAt
	stored.Status = occ.Status
	stored.ManualOverride = occ.ManualOverride
	return nil
}

// ── Mock CalendarEventRepository ──

type mockCalendarEventRepo struct {
	events map[string]*model.CalendarEvent
}

func newMockCalendarEventRepo() *mockCalendarEventRepo {
	return &mockCalendarEventRepo{events: make(map[string]*model.CalendarEvent)}
}

func (m *mockCalendarEventRepo) Create(_ context.Context, ev *model.CalendarEvent) error {
	if ev.EventID == "" {
		ev.EventID = fmt.Sprintf("ev-%03d", len(m.events)+1)
	}
	cp := *ev
	m.events[ev.EventID] = &cp
	return nil
}

func (m *mockCalendarEventRepo) ListByResource(_ context.Context, resourceID string, from, to *time.Time) ([]model.CalendarEvent, error) {
	var result []model.CalendarEvent
	for _, ev := range m.events {
		if ev.ResourceID != resourceID {
			continue
		}
		if to != nil && !ev.StartAt.Before(*to) {
			continue
		}
		if from != nil && !ev.EndAt.After(*from) {
			continue
		}
		result = append(result, *ev)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})
	return result, nil
}

func (m *mockCalendarEventRepo) MoveForOccurrence(_ context.Context, occurrenceID string, start, end time.Time) error {
	for _, ev := range m.events {
		if ev.OccurrenceID != nil && *ev.OccurrenceID == occurrenceID {
			ev.StartAt = start
			ev.EndAt = end
		}
	}
	return nil
}

// [自证通过] internal/service/mock_repos_test.go
